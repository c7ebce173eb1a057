// Package verify validates primary identity tokens against their issuing
// authority and extracts a fresh identity profile.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// statusValid is the literal status the identity provider returns for a
// live token. Anything else is a normal negative result, not an error.
const statusValid = "valid"

// Result is the outcome of a verification call. When Valid is false and the
// call returned no error, the token was positively rejected.
type Result struct {
	Valid  bool
	Claims map[string]any
}

// Verifier calls the primary identity provider's verification endpoint.
// It performs no retries; retry policy belongs to the caller.
type Verifier struct {
	baseURL string
	client  *http.Client
}

// New creates a Verifier against the given identity-provider base URL.
func New(baseURL string, client *http.Client) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Verifier{baseURL: baseURL, client: client}
}

type verifyResponse struct {
	Status string         `json:"status"`
	User   map[string]any `json:"user"`
}

// Verify presents accessToken to the verification endpoint.
//
// A non-success HTTP status or a body whose status field is not "valid"
// yields Result{Valid: false} with a nil error. Transport and decode
// failures are reported as errors with a zero Result.
func (v *Verifier) Verify(ctx context.Context, accessToken string) (Result, error) {
	query := url.Values{}
	query.Set("at", accessToken)
	endpoint := v.baseURL + "/verify?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create verify request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Result{Valid: false}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read verify response: %w", err)
	}

	var decoded verifyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("failed to decode verify response: %w", err)
	}

	if decoded.Status != statusValid {
		return Result{Valid: false}, nil
	}

	return Result{Valid: true, Claims: decoded.User}, nil
}
