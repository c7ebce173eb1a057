package monauth

import (
	"errors"
	"time"
)

// Config groups all coordinator tuning parameters. Use [DefaultConfig] and
// override what you need; [Builder.Build] validates the result.
type Config struct {
	Endpoints EndpointConfig
	Session   SessionConfig
	Check     CheckConfig
	Bridge    BridgeConfig
	Breaker   BreakerConfig
	HTTP      HTTPConfig
	Metrics   MetricsConfig
}

/*
====================================
ENDPOINT CONFIG
====================================
*/

// EndpointConfig holds the external service bases consumed by the
// coordinator.
type EndpointConfig struct {
	// AuthBase is the primary identity provider base URL; the verification
	// endpoint is {AuthBase}/verify.
	AuthBase string
	// APIBase is the media proxy base URL; the secondary endpoints are
	// {APIBase}/jellyfin/login and {APIBase}/jellyfin/profile.
	APIBase string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls primary session persistence.
type SessionConfig struct {
	// CookieTTL is the lifetime of the cookie-scope session mirror.
	CookieTTL time.Duration
	// AppVersion is reported in the device profile auditing header.
	AppVersion string
}

/*
====================================
CHECK CONFIG
====================================
*/

// CheckConfig controls the auth status check guards.
type CheckConfig struct {
	// Cooldown is the minimum spacing between two checks; a check inside
	// the window is a no-op.
	Cooldown time.Duration
}

/*
====================================
BRIDGE CONFIG
====================================
*/

// BridgeConfig controls the secondary bridge guards.
type BridgeConfig struct {
	// Cooldown is the minimum spacing between two bridge attempts.
	Cooldown time.Duration
	// MaxRetries caps consecutive failed attempts; at the cap, automatic
	// attempts stop until the failure state is cleared.
	MaxRetries int
}

/*
====================================
BREAKER CONFIG
====================================
*/

// BreakerConfig controls the verification pipeline circuit breaker. The
// breaker counts thrown pipeline failures, never negative verification
// results.
type BreakerConfig struct {
	// FailureThreshold opens the breaker after this many consecutive
	// failures.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before resetting.
	OpenTimeout time.Duration
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig controls the outbound transport.
type HTTPConfig struct {
	// RequestTimeout bounds every remote call. The host transport has no
	// built-in deadline.
	RequestTimeout time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process metrics collection.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the defaults used by [New]. Endpoint bases are
// empty and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			CookieTTL: 30 * 24 * time.Hour,
		},
		Check: CheckConfig{
			Cooldown: time.Second,
		},
		Bridge: BridgeConfig{
			Cooldown:   2 * time.Second,
			MaxRetries: 10,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeout:      60 * time.Second,
		},
		HTTP: HTTPConfig{
			RequestTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Endpoints.AuthBase == "" {
		return errors.New("Endpoints.AuthBase is required")
	}
	if c.Endpoints.APIBase == "" {
		return errors.New("Endpoints.APIBase is required")
	}
	if c.Session.CookieTTL <= 0 {
		return errors.New("Session.CookieTTL must be positive")
	}
	if c.Check.Cooldown <= 0 {
		return errors.New("Check.Cooldown must be positive")
	}
	if c.Bridge.Cooldown <= 0 {
		return errors.New("Bridge.Cooldown must be positive")
	}
	if c.Bridge.MaxRetries <= 0 {
		return errors.New("Bridge.MaxRetries must be positive")
	}
	if c.Breaker.FailureThreshold == 0 {
		return errors.New("Breaker.FailureThreshold must be positive")
	}
	if c.Breaker.OpenTimeout <= 0 {
		return errors.New("Breaker.OpenTimeout must be positive")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("HTTP.RequestTimeout must be positive")
	}
	return nil
}
