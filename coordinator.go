package monauth

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/darelisme/monauth/bridge"
	"github.com/darelisme/monauth/device"
	"github.com/darelisme/monauth/store"
	"github.com/darelisme/monauth/verify"
)

// Navigator hands control back to the host's routing layer after lifecycle
// events that require a page change.
type Navigator interface {
	// NavigateTo moves the host to the given application path.
	NavigateTo(path string)
	// InvalidateCached drops any cached page data that may embed
	// credential-gated content.
	InvalidateCached()
}

// Coordinator is the central authority over the client credential
// lifecycle. It owns the process-wide [AuthState], verifies the primary
// session, bridges the secondary one, and guards every operation with
// in-flight flags, cooldown limiters and a circuit breaker.
//
// A Coordinator is long-lived; remote failures are folded into state and
// never escape its public operations.
type Coordinator struct {
	config    Config
	local     store.Store
	cookies   store.Store
	verifier  *verify.Verifier
	bridge    *bridge.Bridge
	device    *device.Provider
	navigator Navigator
	logger    *log.Logger
	metrics   *Metrics
	now       func() time.Time

	mu            sync.Mutex
	state         AuthState
	checkInFlight bool
	checkLimiter  *rate.Limiter
	bridgeLimiter *rate.Limiter
	breaker       *gobreaker.CircuitBreaker
	bridgeGen     uint64
	subs          []subscriber
	nextSubID     int
}

type subscriber struct {
	id int
	fn func(AuthState)
}

// State returns a copy of the current authentication state.
func (c *Coordinator) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a state copy after every mutation, in
// subscription order. The returned cancel func removes the subscription.
func (c *Coordinator) Subscribe(fn func(AuthState)) (cancel func()) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// publish notifies subscribers with a snapshot taken after the mutation
// completed. Callbacks run outside the lock; they observe either the pre-
// or post-mutation state, never a partial one.
func (c *Coordinator) publish() {
	c.mu.Lock()
	snap := c.state.clone()
	fns := make([]func(AuthState), len(c.subs))
	for i, sub := range c.subs {
		fns[i] = sub.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Device returns the device identity provider wired into the coordinator.
func (c *Coordinator) Device() *device.Provider {
	return c.device
}

// IsSuperadmin reports whether the current identity carries the superadmin
// role claim, checked at the known candidate nesting depths.
func (c *Coordinator) IsSuperadmin() bool {
	c.mu.Lock()
	session := c.state.UserSession
	c.mu.Unlock()
	return session.Role() == "superadmin"
}

// AuthorizationHeader renders the data-plane Authorization header from the
// current secondary credentials. ok is false while the secondary session is
// absent.
func (c *Coordinator) AuthorizationHeader() (value string, ok bool) {
	c.mu.Lock()
	userID, accessToken := c.state.JellyUserID, c.state.JellyAccessToken
	c.mu.Unlock()
	if userID == "" || accessToken == "" {
		return "", false
	}
	return bridge.AuthorizationValue(userID, accessToken), true
}

// ClearReauthState resets the re-login prompt and transient bridge failure
// flags without touching credential data.
func (c *Coordinator) ClearReauthState() {
	c.mu.Lock()
	c.state.NeedsReauth = false
	c.state.JellyAuthFailed = false
	c.state.JellyAuthError = ""
	c.state.JellyAutoLoginAttempted = false
	c.state.RetryCount = 0
	c.mu.Unlock()
	c.publish()
}

// ClearJellyfinAuthState resets the bridge failure flags and the retry
// counter so automatic bridge attempts may resume.
func (c *Coordinator) ClearJellyfinAuthState() {
	c.mu.Lock()
	c.state.JellyAuthFailed = false
	c.state.JellyAuthError = ""
	c.state.JellyAutoLoginAttempted = false
	c.state.RetryCount = 0
	c.mu.Unlock()
	c.publish()
}

// ResetCircuitBreaker discards the verification breaker, clearing its
// failure count and cooldown.
func (c *Coordinator) ResetCircuitBreaker() {
	c.mu.Lock()
	c.breaker = c.newBreaker()
	c.mu.Unlock()
	c.logger.Info("verification circuit breaker reset")
}

func (c *Coordinator) newBreaker() *gobreaker.CircuitBreaker {
	logger := c.logger
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "primary-verification",
		Timeout: c.config.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.config.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("verification breaker state change",
				"from", from.String(), "to", to.String())
		},
	})
}

// Logout unconditionally clears all persisted primary and secondary
// credentials, resets the state to defaults except LastLogoutTime, and
// hands off to navigation. Calling it twice yields the same terminal state.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.state.IsLoggingOut {
		c.mu.Unlock()
		return ErrLogoutInFlight
	}
	c.state.IsLoggingOut = true
	c.mu.Unlock()
	c.publish()

	// Secondary credentials leave persistence before the unauthenticated
	// state becomes observable.
	c.purgeSecondary(ctx)
	c.purgePrimary(ctx)
	if err := c.local.Remove(ctx, store.KeyRedirectAfterAuth); err != nil {
		c.logger.Warn("clearing redirect path failed", "err", err)
	}

	c.mu.Lock()
	c.state = initialState()
	c.state.IsLoading = false
	c.state.LastLogoutTime = c.now()
	c.mu.Unlock()
	c.publish()
	c.metricInc(MetricLogout)
	c.logger.Info("logged out")

	if c.navigator != nil {
		c.navigator.NavigateTo("/")
	}
	return nil
}

func (c *Coordinator) purgePrimary(ctx context.Context) {
	if err := c.local.Remove(ctx, store.KeyUserSession); err != nil {
		c.logger.Warn("removing local session failed", "err", err)
	}
	if err := c.cookies.Remove(ctx, store.KeyUserSession); err != nil {
		c.logger.Warn("removing session cookie failed", "err", err)
	}
}

func (c *Coordinator) purgeSecondary(ctx context.Context) {
	if err := c.cookies.Remove(ctx, store.KeyJellyUserID); err != nil {
		c.logger.Warn("removing jellyfin user cookie failed", "err", err)
	}
	if err := c.cookies.Remove(ctx, store.KeyJellyAccessToken); err != nil {
		c.logger.Warn("removing jellyfin token cookie failed", "err", err)
	}
}

// becomeUnauthenticated clears persisted secondary credentials and then
// publishes the unauthenticated state. The ordering is load-bearing: no
// subscriber may observe IsAuthenticated=false with stale secondary
// credentials still persisted.
func (c *Coordinator) becomeUnauthenticated(ctx context.Context, needsReauth bool) {
	c.purgeSecondary(ctx)
	c.mu.Lock()
	c.state.IsAuthenticated = false
	c.state.UserSession = nil
	c.state.JellyUserID = ""
	c.state.JellyAccessToken = ""
	c.state.NeedsReauth = needsReauth
	c.mu.Unlock()
	c.publish()
}
