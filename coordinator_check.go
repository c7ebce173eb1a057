package monauth

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/darelisme/monauth/store"
	"github.com/darelisme/monauth/token"
	"github.com/darelisme/monauth/verify"
)

// CheckAuthStatus reconciles the persisted session against the identity
// provider and, when authenticated, the secondary media server.
//
// A call while another check is in flight returns [ErrCheckInFlight]; a
// call inside the cooldown window of the previous one returns
// [ErrCheckCooldown]; a call while the verification breaker is open returns
// [ErrBreakerOpen] and leaves state unchanged except IsLoading. All three
// are no-op skips. Remote failures return nil and are folded into state.
func (c *Coordinator) CheckAuthStatus(ctx context.Context) error {
	c.mu.Lock()
	if c.checkInFlight {
		c.mu.Unlock()
		c.metricInc(MetricCheckSkipped)
		return ErrCheckInFlight
	}
	if !c.checkLimiter.Allow() {
		c.mu.Unlock()
		c.metricInc(MetricCheckSkipped)
		return ErrCheckCooldown
	}
	c.checkInFlight = true
	c.state.IsLoading = true
	c.mu.Unlock()
	c.publish()

	skip := c.runCheck(ctx)

	c.mu.Lock()
	c.checkInFlight = false
	c.state.IsLoading = false
	c.mu.Unlock()
	c.publish()
	return skip
}

func (c *Coordinator) runCheck(ctx context.Context) error {
	raw, ok, err := c.local.Get(ctx, store.KeyUserSession)
	if err != nil {
		c.logger.Error("reading local session failed", "err", err)
		c.metricInc(MetricCheckFailure)
		c.becomeUnauthenticated(ctx, false)
		return nil
	}
	if !ok || raw == "" {
		// Never logged in, or already cleared. Not a reauth prompt.
		c.becomeUnauthenticated(ctx, false)
		return nil
	}

	session, err := ParseUserSession(raw)
	if err != nil || session.AccessToken == "" {
		c.logger.Warn("stored session blob unusable, purging", "err", err)
		c.purgePrimary(ctx)
		c.metricInc(MetricCheckInvalid)
		c.becomeUnauthenticated(ctx, false)
		return nil
	}

	// Mirror the local blob into the cookie scope so server-side requests
	// carry the session too.
	if _, mirrored, _ := c.cookies.Get(ctx, store.KeyUserSession); !mirrored {
		if err := c.cookies.Set(ctx, store.KeyUserSession, raw,
			store.WithTTL(c.config.Session.CookieTTL)); err != nil {
			c.logger.Warn("mirroring session cookie failed", "err", err)
		}
	}

	expired, err := token.Expired(session.AccessToken, c.now())
	if err != nil {
		c.logger.Warn("stored token malformed, purging", "err", err)
		c.purgePrimary(ctx)
		c.metricInc(MetricCheckInvalid)
		c.becomeUnauthenticated(ctx, false)
		return nil
	}
	if expired {
		c.logger.Info("primary token expired")
		c.purgePrimary(ctx)
		c.metricInc(MetricCheckInvalid)
		c.becomeUnauthenticated(ctx, true)
		return nil
	}

	result, err := c.verifyThroughBreaker(ctx, session.AccessToken)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metricInc(MetricBreakerOpen)
			return ErrBreakerOpen
		}
		c.logger.Error("verification pipeline failed", "err", err)
		c.metricInc(MetricCheckFailure)
		c.becomeUnauthenticated(ctx, false)
		return nil
	}
	if !result.Valid {
		c.logger.Info("primary session rejected by verifier")
		c.purgePrimary(ctx)
		c.metricInc(MetricCheckInvalid)
		c.becomeUnauthenticated(ctx, true)
		return nil
	}

	c.refreshSession(ctx, session, result)
	c.metricInc(MetricCheckSuccess)

	jellyUserID, _, _ := c.cookies.Get(ctx, store.KeyJellyUserID)
	jellyToken, _, _ := c.cookies.Get(ctx, store.KeyJellyAccessToken)

	c.mu.Lock()
	c.state.IsAuthenticated = true
	c.state.UserSession = session
	c.state.NeedsReauth = false
	c.state.JellyUserID = jellyUserID
	c.state.JellyAccessToken = jellyToken
	bridging := c.state.IsJellyLoading
	autoAttempted := c.state.JellyAutoLoginAttempted
	c.mu.Unlock()
	c.publish()

	if jellyUserID != "" && jellyToken != "" {
		c.validateSecondary(ctx, session, jellyToken)
		return nil
	}

	if !bridging && !autoAttempted {
		// Flag the attempt before it begins so overlapping checks cannot
		// trigger a duplicate.
		c.mu.Lock()
		c.state.JellyAutoLoginAttempted = true
		c.mu.Unlock()
		c.publish()
		if err := c.LoginToJellyfin(ctx, session.ProviderID()); err != nil {
			c.logger.Debug("auto bridge skipped", "reason", err)
		}
	}
	return nil
}

// refreshSession merges the verifier's fresh profile claims into the stored
// session, keeping unrelated existing claims, and persists the result back
// to both scopes.
func (c *Coordinator) refreshSession(ctx context.Context, session *UserSession, result verify.Result) {
	if len(result.Claims) > 0 {
		session.User = mergeClaims(session.User, result.Claims)
	}
	encoded, err := session.Encode()
	if err != nil {
		c.logger.Warn("re-encoding session failed", "err", err)
		return
	}
	if err := c.local.Set(ctx, store.KeyUserSession, encoded); err != nil {
		c.logger.Warn("persisting refreshed session failed", "err", err)
	}
	if err := c.cookies.Set(ctx, store.KeyUserSession, encoded,
		store.WithTTL(c.config.Session.CookieTTL)); err != nil {
		c.logger.Warn("persisting session cookie failed", "err", err)
	}
}

// validateSecondary revalidates previously stored secondary credentials.
// Invalid credentials are cleared from persistence and state while primary
// access is kept; the auto-bridge flag is re-armed so a later check can
// bridge fresh ones.
func (c *Coordinator) validateSecondary(ctx context.Context, session *UserSession, jellyToken string) {
	identityKey := session.ProviderID()
	if identityKey == "" {
		return
	}

	result, err := c.bridge.ValidateCredentials(ctx, identityKey, jellyToken)
	if err == nil && result.Valid {
		return
	}

	reason := "invalid jellyfin credentials"
	if err != nil {
		reason = err.Error()
		c.logger.Error("jellyfin credential validation failed", "err", err)
	} else {
		c.logger.Info("stored jellyfin credentials rejected, clearing")
	}
	c.metricInc(MetricValidateInvalid)

	c.purgeSecondary(ctx)
	c.mu.Lock()
	c.state.JellyUserID = ""
	c.state.JellyAccessToken = ""
	c.state.JellyAuthFailed = true
	c.state.JellyAuthError = reason
	c.state.JellyAutoLoginAttempted = false
	c.mu.Unlock()
	c.publish()
}

func (c *Coordinator) verifyThroughBreaker(ctx context.Context, accessToken string) (verify.Result, error) {
	c.mu.Lock()
	breaker := c.breaker
	c.mu.Unlock()

	value, err := breaker.Execute(func() (any, error) {
		return c.verifier.Verify(ctx, accessToken)
	})
	if err != nil {
		return verify.Result{}, err
	}
	return value.(verify.Result), nil
}
