// Package monauth coordinates the client credential lifecycle for the
// monobar media frontend.
//
// It reconciles two independent credential systems: a primary
// identity-provider session, verified remotely and pre-checked locally for
// expiry, and a secondary media server session bridged from the primary
// identity. The [Coordinator] owns the single process-wide [AuthState],
// serializes conflicting operations through in-flight guards, rate-limits
// repeated checks, and circuit-breaks a failing verification pipeline.
//
// Build a coordinator with [New]:
//
//	coord, err := monauth.New().
//		WithConfig(cfg).
//		WithLocalStore(local).
//		WithCookieStore(cookies).
//		WithLogger(logger).
//		Build()
//
// Consumers subscribe to state with [Coordinator.Subscribe] and drive the
// lifecycle through [Coordinator.CheckAuthStatus], [Coordinator.Logout] and
// the loginflow subpackage. Remote failures never escape the public
// operations; they are folded into state fields. The only errors returned
// are skip sentinels such as [ErrCheckInFlight].
package monauth
