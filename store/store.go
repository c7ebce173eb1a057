package store

import (
	"context"
	"time"
)

// Well-known keys shared between the coordinator, the login flow controller
// and the device identity provider. The literal values are part of the wire
// contract with the backend and the external login surface.
const (
	// KeyUserSession holds the JSON-encoded primary session blob.
	KeyUserSession = "user-session"
	// KeyJellyUserID holds the secondary (Jellyfin) user id.
	KeyJellyUserID = "jellyUserId"
	// KeyJellyAccessToken holds the secondary (Jellyfin) access token.
	KeyJellyAccessToken = "jellyAccessToken"
	// KeyDeviceID holds the stable per-client device identifier.
	KeyDeviceID = "DeviceId"
	// KeyRedirectAfterAuth holds the return path across the login handoff.
	KeyRedirectAfterAuth = "redirectAfterAuth"
	// KeyAuthSuccess is the cross-context completion flag written by the
	// external login surface.
	KeyAuthSuccess = "authSuccess"
)

// SetOptions carries per-write options. Backends ignore options that have no
// meaning for them (Memory has no path, Redis has no path).
type SetOptions struct {
	// TTL expires the key after the given duration. Zero means no expiry.
	TTL time.Duration
	// Path scopes a cookie-backed key to a URL path prefix.
	Path string
}

// SetOption mutates a [SetOptions].
type SetOption func(*SetOptions)

// WithTTL expires the key after d.
func WithTTL(d time.Duration) SetOption {
	return func(o *SetOptions) { o.TTL = d }
}

// WithPath scopes the key to a URL path prefix (cookie scope only).
func WithPath(p string) SetOption {
	return func(o *SetOptions) { o.Path = p }
}

// ApplyOptions folds a list of [SetOption] into a [SetOptions] value.
func ApplyOptions(opts []SetOption) SetOptions {
	var o SetOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Store is an opaque key-value persistence scope.
//
// Get reports ok=false for missing or expired keys without an error.
// Remove of a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, opts ...SetOption) error
	Remove(ctx context.Context, key string) error
}
