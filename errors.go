package monauth

import "errors"

// Skip sentinels. Coordinator operations return these when a logically
// conflicting operation is already running or a guard refuses the attempt.
// A skip is a no-op, not a failure; remote failures are folded into
// [AuthState] fields instead of being returned.
var (
	// ErrCheckInFlight is returned when an auth status check is already
	// running.
	ErrCheckInFlight = errors.New("auth check already in progress")
	// ErrCheckCooldown is returned when a check lands inside the cooldown
	// window of the previous one.
	ErrCheckCooldown = errors.New("auth check rate limited")
	// ErrBreakerOpen is returned when the verification circuit breaker is
	// open and the check was skipped entirely.
	ErrBreakerOpen = errors.New("auth check circuit breaker open")
	// ErrBridgeInFlight is returned when a secondary bridge attempt is
	// already running.
	ErrBridgeInFlight = errors.New("jellyfin login already in progress")
	// ErrBridgeCooldown is returned when a bridge attempt lands inside the
	// cooldown window of the previous one.
	ErrBridgeCooldown = errors.New("jellyfin login rate limited")
	// ErrBridgeRetriesExhausted is returned when the consecutive-failure
	// ceiling has been reached; automatic attempts stay suspended until
	// [Coordinator.ClearJellyfinAuthState] is called.
	ErrBridgeRetriesExhausted = errors.New("jellyfin login retries exhausted")
	// ErrLogoutInFlight is returned when a logout is already in progress.
	ErrLogoutInFlight = errors.New("logout already in progress")
	// ErrNotAuthenticated is returned when an operation requires a live
	// primary session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrBuilderUsed is returned when a [Builder] is reused after Build.
	ErrBuilderUsed = errors.New("builder already used")
)
