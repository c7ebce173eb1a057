package monauth

import (
	"context"
	"errors"

	"github.com/darelisme/monauth/bridge"
	"github.com/darelisme/monauth/store"
)

var errPostLoginValidation = errors.New("jellyfin credentials failed post-login validation")

// LoginToJellyfin exchanges the primary identity key for secondary
// credentials and validates them before accepting. An empty identityKey
// falls back to the current session's provider id.
//
// Skips: [ErrBridgeInFlight] while another attempt runs,
// [ErrBridgeCooldown] inside the cooldown window, and
// [ErrBridgeRetriesExhausted] once the consecutive-failure ceiling is
// reached (which also sets the terminal failure flag). Bridge failures
// themselves return nil and land in JellyAuthFailed/JellyAuthError.
func (c *Coordinator) LoginToJellyfin(ctx context.Context, identityKey string) error {
	c.mu.Lock()
	if c.state.IsJellyLoading {
		c.mu.Unlock()
		c.metricInc(MetricBridgeSkipped)
		c.logger.Debug("jellyfin login already in progress, skipping")
		return ErrBridgeInFlight
	}
	if c.state.RetryCount >= c.config.Bridge.MaxRetries {
		c.state.JellyAuthFailed = true
		c.state.JellyAuthError = ErrBridgeRetriesExhausted.Error()
		c.mu.Unlock()
		c.publish()
		c.metricInc(MetricBridgeSkipped)
		return ErrBridgeRetriesExhausted
	}
	if !c.bridgeLimiter.Allow() {
		c.mu.Unlock()
		c.metricInc(MetricBridgeSkipped)
		return ErrBridgeCooldown
	}
	if identityKey == "" && c.state.UserSession != nil {
		identityKey = c.state.UserSession.ProviderID()
	}
	c.bridgeGen++
	gen := c.bridgeGen
	c.state.IsJellyLoading = true
	c.state.JellyAuthFailed = false
	c.state.JellyAuthError = ""
	c.mu.Unlock()
	c.publish()

	if identityKey == "" {
		c.finishBridge(ctx, gen, bridge.Credentials{}, ErrNotAuthenticated)
		return nil
	}

	creds, err := c.bridge.Login(ctx, identityKey)
	if err == nil {
		// The secondary service is a separate trust domain; every bridge
		// is followed by an independent validation.
		validated, verr := c.bridge.ValidateCredentials(ctx, identityKey, creds.AccessToken)
		switch {
		case verr != nil:
			err = verr
		case !validated.Valid:
			err = errPostLoginValidation
		}
	}
	c.finishBridge(ctx, gen, creds, err)
	return nil
}

// finishBridge applies the outcome of a bridge attempt. The generation
// guard keeps an attempt that was superseded by a breaker or limiter reset
// from overwriting newer state.
func (c *Coordinator) finishBridge(ctx context.Context, gen uint64, creds bridge.Credentials, bridgeErr error) {
	if bridgeErr != nil {
		c.mu.Lock()
		if c.bridgeGen != gen || !c.state.IsJellyLoading {
			c.mu.Unlock()
			return
		}
		c.state.IsJellyLoading = false
		c.state.RetryCount++
		c.state.JellyAuthFailed = true
		c.state.JellyAuthError = bridgeErr.Error()
		retries := c.state.RetryCount
		c.mu.Unlock()
		c.publish()
		c.metricInc(MetricBridgeFailure)
		c.logger.Warn("jellyfin bridge failed", "err", bridgeErr, "retries", retries)
		return
	}

	c.mu.Lock()
	stale := c.bridgeGen != gen || !c.state.IsJellyLoading
	c.mu.Unlock()
	if stale {
		return
	}

	// Persist before publishing so no subscriber observes credentials that
	// are not yet durable.
	if err := c.cookies.Set(ctx, store.KeyJellyUserID, creds.UserID); err != nil {
		c.finishBridge(ctx, gen, bridge.Credentials{}, err)
		return
	}
	if err := c.cookies.Set(ctx, store.KeyJellyAccessToken, creds.AccessToken); err != nil {
		c.finishBridge(ctx, gen, bridge.Credentials{}, err)
		return
	}

	c.mu.Lock()
	if c.bridgeGen != gen || !c.state.IsJellyLoading {
		c.mu.Unlock()
		return
	}
	c.state.IsJellyLoading = false
	c.state.JellyUserID = creds.UserID
	c.state.JellyAccessToken = creds.AccessToken
	c.state.JellyAuthFailed = false
	c.state.JellyAuthError = ""
	c.state.NeedsReauth = false
	c.state.RetryCount = 0
	c.mu.Unlock()
	c.publish()
	c.metricInc(MetricBridgeSuccess)
	c.logger.Debug("jellyfin bridge succeeded", "jellyUserID", creds.UserID)
}
