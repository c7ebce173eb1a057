// Package bridge exchanges a verified primary identity for secondary media
// server credentials, and independently validates previously issued ones.
//
// The media server is a different trust domain from the identity provider:
// credentials are bridged, never shared, and every bridge is followed by an
// independent validation to catch silent backend inconsistencies.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrCredentialMismatch is returned when the media server rejects the
	// primary identity outright.
	ErrCredentialMismatch = errors.New("jellyfin rejected the primary identity")
	// ErrBackendFault is returned for media server responses that look like
	// a transient backend fault rather than a credential problem.
	ErrBackendFault = errors.New("jellyfin login failed, backend fault")
)

// Credentials are the secondary-service credentials issued by a successful
// bridge login.
type Credentials struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"access_token"`
}

// Profile is the media server's view of the bridged account. All four
// fields must be present for stored credentials to count as valid.
type Profile struct {
	Name         string `json:"name"`
	ID           string `json:"id"`
	LastLogin    string `json:"last_login"`
	LastActivity string `json:"last_activity"`
}

// ValidateResult is the outcome of a credential validation call. Valid is
// false with a nil error when the server answered but the credentials did
// not check out.
type ValidateResult struct {
	Valid   bool
	Profile Profile
}

// AuthorizationValue renders the composite Authorization header the media
// proxy expects for profile and data-plane calls.
func AuthorizationValue(userID, accessToken string) string {
	return fmt.Sprintf("monobar_user=%s,monobar_token=%s", userID, accessToken)
}

// Bridge talks to the media proxy's jellyfin endpoints.
type Bridge struct {
	baseURL      string
	client       *http.Client
	deviceHeader func() string
}

// New creates a Bridge against the media proxy base URL. deviceHeader
// supplies the X-Device-Profile auditing string and may be nil.
func New(baseURL string, client *http.Client, deviceHeader func() string) *Bridge {
	if client == nil {
		client = http.DefaultClient
	}
	return &Bridge{baseURL: baseURL, client: client, deviceHeader: deviceHeader}
}

// Login presents the primary identity key to the secondary login endpoint
// and returns freshly issued credentials.
//
// Non-success responses are translated into descriptive errors rather than
// raw status codes: 401/403 report a credential mismatch, everything else a
// transient backend fault.
func (b *Bridge) Login(ctx context.Context, identityKey string) (Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/jellyfin/login", nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", identityKey)
	b.setDeviceHeader(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("jellyfin login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return Credentials{}, ErrCredentialMismatch
		}
		return Credentials{}, ErrBackendFault
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read login response: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode login response: %w", err)
	}
	if creds.UserID == "" || creds.AccessToken == "" {
		return Credentials{}, fmt.Errorf("%w: incomplete credential response", ErrBackendFault)
	}

	return creds, nil
}

// ValidateCredentials presents stored credentials to the profile endpoint.
// The credentials are valid only when the response carries a non-empty
// name, id, last_login and last_activity; anything less is a negative
// result, not an error. Transport failures are reported as errors.
func (b *Bridge) ValidateCredentials(ctx context.Context, userID, accessToken string) (ValidateResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/jellyfin/profile", nil)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", AuthorizationValue(userID, accessToken))
	b.setDeviceHeader(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("jellyfin profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return ValidateResult{Valid: false}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("failed to read profile response: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return ValidateResult{Valid: false}, nil
	}
	if profile.Name == "" || profile.ID == "" || profile.LastLogin == "" || profile.LastActivity == "" {
		return ValidateResult{Valid: false}, nil
	}

	return ValidateResult{Valid: true, Profile: profile}, nil
}

func (b *Bridge) setDeviceHeader(req *http.Request) {
	if b.deviceHeader == nil {
		return
	}
	if value := b.deviceHeader(); value != "" {
		req.Header.Set("X-Device-Profile", value)
	}
}
