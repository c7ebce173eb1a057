package monauth

import (
	"encoding/json"
	"time"

	"github.com/darelisme/monauth/verify"
)

// UserSession is the decoded primary session blob: the identity-provider
// token plus a bag of identity claims. Only id, email, the access token and
// the role claim are load-bearing; everything else is carried opaquely.
type UserSession struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	User         map[string]any `json:"user,omitempty"`
}

// ParseUserSession decodes a persisted session blob.
func ParseUserSession(raw string) (*UserSession, error) {
	var session UserSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Encode renders the session for persistence.
func (s *UserSession) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Claim extracts the first string claim found at any of the dot-notation
// candidate paths, relative to the session's user object.
func (s *UserSession) Claim(paths ...string) (string, bool) {
	if s == nil || s.User == nil {
		return "", false
	}
	return verify.StringClaim(s.User, paths...)
}

// UserID returns the primary identity id claim.
func (s *UserSession) UserID() string {
	id, _ := s.Claim("id")
	return id
}

// Email returns the primary identity email claim.
func (s *UserSession) Email() string {
	email, _ := s.Claim("email")
	return email
}

// ProviderID returns the downstream provider identity key used for
// secondary bridging. Falls back to the plain user id when the metadata
// claim is absent.
func (s *UserSession) ProviderID() string {
	if id, ok := s.Claim("user_metadata.provider_id"); ok && id != "" {
		return id
	}
	return s.UserID()
}

// Role returns the role claim, looked up at the known candidate nesting
// depths in order.
func (s *UserSession) Role() string {
	role, _ := s.Claim(verify.RoleClaimPaths...)
	return role
}

func (s *UserSession) clone() *UserSession {
	if s == nil {
		return nil
	}
	copied := &UserSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if s.User != nil {
		copied.User = cloneClaims(s.User)
	}
	return copied
}

func cloneClaims(claims map[string]any) map[string]any {
	copied := make(map[string]any, len(claims))
	for key, value := range claims {
		if nested, ok := value.(map[string]any); ok {
			copied[key] = cloneClaims(nested)
			continue
		}
		copied[key] = value
	}
	return copied
}

// mergeClaims folds fresh verifier claims into the existing user object
// without discarding unrelated existing claims. Nested maps merge
// recursively; scalar conflicts resolve in favor of the fresh value.
func mergeClaims(existing, fresh map[string]any) map[string]any {
	if existing == nil {
		return cloneClaims(fresh)
	}
	merged := cloneClaims(existing)
	for key, value := range fresh {
		freshNested, freshIsMap := value.(map[string]any)
		existingNested, existingIsMap := merged[key].(map[string]any)
		if freshIsMap && existingIsMap {
			merged[key] = mergeClaims(existingNested, freshNested)
			continue
		}
		if freshIsMap {
			merged[key] = cloneClaims(freshNested)
			continue
		}
		merged[key] = value
	}
	return merged
}

// AuthState is the process-wide authentication state owned by the
// [Coordinator]. Snapshots handed to subscribers and returned by
// [Coordinator.State] are copies; mutating them has no effect.
type AuthState struct {
	// IsAuthenticated is true iff the primary session was verified and its
	// token is unexpired.
	IsAuthenticated bool
	// UserSession is the decoded primary identity, nil when unauthenticated.
	UserSession *UserSession
	// IsLoading is true while an auth status check is in flight.
	IsLoading bool
	// IsLoggingOut is true while a logout is in progress.
	IsLoggingOut bool
	// LastLogoutTime records the most recent logout, zero if none.
	LastLogoutTime time.Time

	// JellyUserID and JellyAccessToken are the secondary media server
	// credentials. They are never persisted while unauthenticated.
	JellyUserID      string
	JellyAccessToken string
	// IsJellyLoading is true while a bridge attempt is in flight. Exactly
	// one attempt may run at a time.
	IsJellyLoading bool
	// JellyAuthFailed and JellyAuthError record the last bridge failure.
	JellyAuthFailed bool
	JellyAuthError  string
	// JellyAutoLoginAttempted prevents duplicate auto-bridge attempts
	// within one authenticated session.
	JellyAutoLoginAttempted bool
	// RetryCount is the number of consecutive failed bridge attempts.
	RetryCount int

	// NeedsReauth is true when a previously valid-looking session was
	// rejected and the user must log in again.
	NeedsReauth bool
}

func initialState() AuthState {
	return AuthState{IsLoading: true}
}

func (s AuthState) clone() AuthState {
	copied := s
	copied.UserSession = s.UserSession.clone()
	return copied
}
