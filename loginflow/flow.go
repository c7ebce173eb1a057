// Package loginflow drives the interactive login handoff: it opens the
// external authentication surface, watches for completion, and reconciles
// coordinator state before navigating back to where the user started.
package loginflow

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	monauth "github.com/darelisme/monauth"
	"github.com/darelisme/monauth/store"
)

var (
	// ErrFlowInProgress is returned when a login flow is already polling.
	ErrFlowInProgress = errors.New("login flow already in progress")
	// ErrSurfaceBlocked is returned when the host refused to open the
	// login surface.
	ErrSurfaceBlocked = errors.New("login surface blocked")
)

// Config tunes the login flow controller.
type Config struct {
	// AuthURL is the external login page. The flow appends a
	// redirectExternal query parameter pointing at RedirectURL.
	AuthURL string
	// RedirectURL is where the external surface sends the user after
	// authenticating.
	RedirectURL string
	// PollInterval spaces the completion checks. Default 500ms.
	PollInterval time.Duration
	// SettleRetries and SettleDelay bound the wait for coordinator state
	// to propagate after a completion signal. Defaults 15 and 100ms.
	SettleRetries int
	SettleDelay   time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.SettleRetries <= 0 {
		c.SettleRetries = 15
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 100 * time.Millisecond
	}
}

// Controller owns one interactive login flow at a time.
type Controller struct {
	coordinator *monauth.Coordinator
	local       store.Store
	surface     Surface
	nav         monauth.Navigator
	logger      *log.Logger
	config      Config

	// The flow semaphore and handoff flag live on the controller, not at
	// package level, so test resets get them for free.
	mu          chan struct{} // 1-slot semaphore guarding flow start
	handoffMu   sync.Mutex
	handoffDone bool
}

// NewController wires a login flow controller. surface and nav are
// required; logger may be nil.
func NewController(coordinator *monauth.Coordinator, local store.Store, surface Surface, nav monauth.Navigator, logger *log.Logger, cfg Config) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard)
	}
	controller := &Controller{
		coordinator: coordinator,
		local:       local,
		surface:     surface,
		nav:         nav,
		logger:      logger,
		config:      cfg,
		mu:          make(chan struct{}, 1),
	}
	return controller
}

// StartLogin records returnPath for the post-login redirect, opens the
// external surface, and polls for completion in a background goroutine.
//
// A previously recorded return path survives when it is more specific than
// the new one, so a flow restarted from the application root still lands
// on the page the user originally wanted. onCancelled is invoked with a
// reason when the surface is blocked or closed without a completion
// signal; it may be nil.
func (f *Controller) StartLogin(ctx context.Context, returnPath string, onCancelled func(reason string)) error {
	select {
	case f.mu <- struct{}{}:
	default:
		return ErrFlowInProgress
	}
	f.handoffMu.Lock()
	f.handoffDone = false
	f.handoffMu.Unlock()

	f.recordReturnPath(ctx, returnPath)
	if err := f.local.Remove(ctx, store.KeyAuthSuccess); err != nil {
		f.logger.Warn("clearing stale completion flag failed", "err", err)
	}

	if err := f.surface.Open(f.loginURL()); err != nil {
		<-f.mu
		f.logger.Error("login surface blocked", "err", err)
		f.coordinator.Metrics().Inc(monauth.MetricLoginFlowCanceled)
		if onCancelled != nil {
			onCancelled("popup was blocked")
		}
		return ErrSurfaceBlocked
	}
	f.logger.Info("login surface opened", "returnPath", returnPath)
	f.coordinator.Metrics().Inc(monauth.MetricLoginFlowStarted)

	go f.poll(ctx, onCancelled)
	return nil
}

func (f *Controller) loginURL() string {
	return f.config.AuthURL + "?redirectExternal=" + url.QueryEscape(f.config.RedirectURL)
}

// recordReturnPath stores returnPath unless a more specific path is
// already recorded. A path with query parameters beats a bare "/".
func (f *Controller) recordReturnPath(ctx context.Context, returnPath string) {
	if returnPath == "" {
		returnPath = "/"
	}
	existing, ok, err := f.local.Get(ctx, store.KeyRedirectAfterAuth)
	if err != nil {
		f.logger.Warn("reading recorded return path failed", "err", err)
	}
	if ok && specificity(existing) > specificity(returnPath) {
		f.logger.Debug("keeping more specific return path", "kept", existing, "ignored", returnPath)
		return
	}
	if err := f.local.Set(ctx, store.KeyRedirectAfterAuth, returnPath); err != nil {
		f.logger.Warn("recording return path failed", "err", err)
	}
}

func specificity(path string) int {
	score := 0
	if strings.Contains(path, "?") {
		score += 2
	}
	score += strings.Count(strings.TrimSuffix(path, "/"), "/")
	return score
}

func (f *Controller) poll(ctx context.Context, onCancelled func(reason string)) {
	defer func() { <-f.mu }()

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("login poll cancelled", "err", ctx.Err())
			return
		case <-ticker.C:
		}

		if f.coordinator.State().IsAuthenticated {
			f.logger.Debug("login detected via coordinator state")
			f.completeAndHandoff(ctx)
			return
		}

		if f.completionFlagged(ctx) {
			f.logger.Debug("login detected via completion flag")
			if err := f.local.Remove(ctx, store.KeyAuthSuccess); err != nil {
				f.logger.Warn("clearing completion flag failed", "err", err)
			}
			f.completeAndHandoff(ctx)
			return
		}

		if f.surface.Closed() {
			f.logger.Debug("login surface closed, final check")
			f.finalCheck(ctx, onCancelled)
			return
		}
	}
}

func (f *Controller) completionFlagged(ctx context.Context) bool {
	flag, ok, err := f.local.Get(ctx, store.KeyAuthSuccess)
	if err != nil {
		f.logger.Warn("reading completion flag failed", "err", err)
		return false
	}
	return ok && flag == "true"
}

// finalCheck runs once after the surface closes: a completion signal may
// have landed between the last tick and the close.
func (f *Controller) finalCheck(ctx context.Context, onCancelled func(reason string)) {
	_, sessionPresent, _ := f.local.Get(ctx, store.KeyUserSession)
	if f.coordinator.State().IsAuthenticated || f.completionFlagged(ctx) || sessionPresent {
		if err := f.local.Remove(ctx, store.KeyAuthSuccess); err != nil {
			f.logger.Warn("clearing completion flag failed", "err", err)
		}
		f.completeAndHandoff(ctx)
		return
	}
	f.logger.Info("login flow cancelled by user")
	f.coordinator.Metrics().Inc(monauth.MetricLoginFlowCanceled)
	if onCancelled != nil {
		onCancelled("login window was closed")
	}
}

// completeAndHandoff reconciles coordinator state, waits briefly for it to
// settle, then navigates to the recorded return path. The handoff fires at
// most once per flow even if the poll loop and a completion callback race.
func (f *Controller) completeAndHandoff(ctx context.Context) {
	f.handoffMu.Lock()
	if f.handoffDone {
		f.handoffMu.Unlock()
		return
	}
	f.handoffDone = true
	f.handoffMu.Unlock()

	if err := f.coordinator.CheckAuthStatus(ctx); err != nil {
		f.logger.Debug("post-login check skipped", "reason", err)
	}
	for i := 0; i < f.config.SettleRetries; i++ {
		if f.coordinator.State().IsAuthenticated {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.config.SettleDelay):
		}
	}

	path := "/"
	if recorded, ok, _ := f.local.Get(ctx, store.KeyRedirectAfterAuth); ok && recorded != "" {
		path = recorded
	}
	if err := f.local.Remove(ctx, store.KeyRedirectAfterAuth); err != nil {
		f.logger.Warn("clearing return path failed", "err", err)
	}

	f.nav.InvalidateCached()
	f.nav.NavigateTo(path)
	f.coordinator.Metrics().Inc(monauth.MetricLoginFlowDone)
	f.logger.Info("login flow complete", "path", path)
}
