package monauth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/darelisme/monauth/store"
)

func TestAutoBridgeAfterPrimaryAuth(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedSession(t, signTestToken(t, time.Now().Add(time.Hour)))

	f.backend.loginHandler = func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "prov-1" {
			t.Errorf("expected provider id as identity key, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"userId":       "jelly-1",
			"access_token": "jtok-1",
		})
	}

	if err := f.coordinator.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("unexpected skip: %v", err)
	}

	state := f.coordinator.State()
	if !state.IsAuthenticated {
		t.Fatal("expected authenticated")
	}
	if !state.JellyAutoLoginAttempted {
		t.Fatal("expected auto bridge flagged")
	}
	if state.JellyUserID != "jelly-1" || state.JellyAccessToken != "jtok-1" {
		t.Fatalf("expected bridged credentials in state, got %+v", state)
	}
	if state.RetryCount != 0 || state.JellyAuthFailed {
		t.Fatalf("expected clean failure state, got %+v", state)
	}

	if got, ok, _ := f.cookies.Get(ctx, store.KeyJellyUserID); !ok || got != "jelly-1" {
		t.Fatalf("expected jelly user persisted, got %q ok=%v", got, ok)
	}
	if got, ok, _ := f.cookies.Get(ctx, store.KeyJellyAccessToken); !ok || got != "jtok-1" {
		t.Fatalf("expected jelly token persisted, got %q ok=%v", got, ok)
	}
	if got := f.backend.loginHits.Load(); got != 1 {
		t.Fatalf("expected 1 bridge login, got %d", got)
	}
	// One post-login validation.
	if got := f.backend.profileHits.Load(); got != 1 {
		t.Fatalf("expected 1 validation, got %d", got)
	}
	if got := f.counter(MetricBridgeSuccess); got != 1 {
		t.Fatalf("expected 1 bridge success, got %d", got)
	}
}

func TestAutoBridgeRunsOncePerSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedSession(t, signTestToken(t, time.Now().Add(time.Hour)))
	f.backend.loginHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}

	if err := f.coordinator.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("unexpected skip: %v", err)
	}
	state := f.coordinator.State()
	if !state.JellyAuthFailed || state.RetryCount != 1 {
		t.Fatalf("expected recorded bridge failure, got %+v", state)
	}
	if !state.JellyAutoLoginAttempted {
		t.Fatal("expected auto bridge flagged even on failure")
	}

	// A later check must not fire a second automatic attempt.
	if err := f.coordinator.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("unexpected skip: %v", err)
	}
	if got := f.backend.loginHits.Load(); got != 1 {
		t.Fatalf("expected no duplicate auto bridge, got %d logins", got)
	}
}

func TestStoredSecondaryValidateOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedSession(t, signTestToken(t, time.Now().Add(time.Hour)))
	f.seedJellyCookies(t)

	if err := f.coordinator.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("unexpected skip: %v", err)
	}

	state := f.coordinator.State()
	if !state.IsAuthenticated {
		t.Fatal("expected authenticated")
	}
	if state.JellyUserID != "jelly-old" || state.JellyAccessToken != "jtok-old" {
		t.Fatalf("expected stored credentials kept, got %+v", state)
	}
	if got := f.backend.loginHits.Load(); got != 0 {
		t.Fatalf("stored credentials must be validated, not re-bridged; got %d logins", got)
	}
	if got := f.backend.profileHits.Load(); got != 1 {
		t.Fatalf("expected 1 validation, got %d", got)
	}
}

func TestStoredSecondaryRejectedIsCleared(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedSession(t, signTestToken(t, time.Now().Add(time.Hour)))
	f.seedJellyCookies(t)
	f.backend.profileHandler = func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "Darel", "id": "jelly-old"})
	}

	if err := f.coordinator.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("unexpected skip: %v", err)
	}

	state := f.coordinator.State()
	if !state.IsAuthenticated {
		t.Fatal("rejected secondary credentials must not cost primary access")
	}
	if state.JellyUserID != "" || state.JellyAccessToken != "" {
		t.Fatalf("expected secondary credentials cleared from state, got %+v", state)
	}
	if !state.JellyAuthFailed || state.JellyAuthError == "" {
		t.Fatalf("expected failure flags set, got %+v", state)
	}
	if state.JellyAutoLoginAttempted {
		t.Fatal("expected auto bridge re-armed after clearing")
	}
	if _, ok, _ := f.cookies.Get(ctx, store.KeyJellyUserID); ok {
		t.Fatal("expected jelly user cookie purged")
	}
	if got := f.counter(MetricValidateInvalid); got != 1 {
		t.Fatalf("expected 1 invalid validation, got %d", got)
	}
}

func TestLoginToJellyfinRetryCeiling(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Bridge.MaxRetries = 3
	})
	ctx := context.Background()
	f.backend.loginHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}

	for i := 0; i < 3; i++ {
		if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != nil {
			t.Fatalf("attempt %d: failures fold into state, got %v", i+1, err)
		}
		if got := f.coordinator.State().RetryCount; got != i+1 {
			t.Fatalf("attempt %d: expected RetryCount %d, got %d", i+1, i+1, got)
		}
	}

	if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != ErrBridgeRetriesExhausted {
		t.Fatalf("expected ErrBridgeRetriesExhausted, got %v", err)
	}
	state := f.coordinator.State()
	if !state.JellyAuthFailed || state.JellyAuthError != ErrBridgeRetriesExhausted.Error() {
		t.Fatalf("expected terminal failure flags, got %+v", state)
	}
	if got := f.backend.loginHits.Load(); got != 3 {
		t.Fatalf("the ceiling must stop network attempts, got %d logins", got)
	}

	// Clearing the failure state re-arms attempts.
	f.coordinator.ClearJellyfinAuthState()
	if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != nil {
		t.Fatalf("expected attempt after clear, got %v", err)
	}
	if got := f.backend.loginHits.Load(); got != 4 {
		t.Fatalf("expected a fresh attempt after clear, got %d logins", got)
	}
}

func TestLoginToJellyfinInFlightGuard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	release := make(chan struct{})
	f.backend.loginHandler = func(w http.ResponseWriter, _ *http.Request) {
		<-release
		json.NewEncoder(w).Encode(map[string]string{
			"userId":       "jelly-1",
			"access_token": "jtok-1",
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != nil {
			t.Errorf("first attempt must run, got %v", err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !f.coordinator.State().IsJellyLoading {
		if time.Now().After(deadline) {
			t.Fatal("first attempt never entered flight")
		}
		time.Sleep(time.Millisecond)
	}

	if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != ErrBridgeInFlight {
		t.Fatalf("expected ErrBridgeInFlight, got %v", err)
	}
	close(release)
	wg.Wait()

	if got := f.coordinator.State().JellyUserID; got != "jelly-1" {
		t.Fatalf("expected first attempt to finish, got %q", got)
	}
}

func TestLoginToJellyfinCooldown(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Bridge.Cooldown = time.Minute
	})
	ctx := context.Background()

	if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != nil {
		t.Fatalf("first attempt must run, got %v", err)
	}
	if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != ErrBridgeCooldown {
		t.Fatalf("expected ErrBridgeCooldown, got %v", err)
	}
	if got := f.counter(MetricBridgeSkipped); got != 1 {
		t.Fatalf("expected 1 skipped attempt, got %d", got)
	}
}

func TestLoginToJellyfinWithoutIdentity(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.coordinator.LoginToJellyfin(context.Background(), ""); err != nil {
		t.Fatalf("missing identity folds into state, got %v", err)
	}
	state := f.coordinator.State()
	if !state.JellyAuthFailed || state.JellyAuthError != ErrNotAuthenticated.Error() {
		t.Fatalf("expected not-authenticated failure, got %+v", state)
	}
	if got := f.backend.loginHits.Load(); got != 0 {
		t.Fatalf("expected no network attempt, got %d", got)
	}
}

func TestBridgeSuccessPersistsBeforePublish(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var violation bool
	cancel := f.coordinator.Subscribe(func(state AuthState) {
		if state.JellyUserID == "" {
			return
		}
		if _, ok, _ := f.cookies.Get(ctx, store.KeyJellyUserID); !ok {
			violation = true
		}
	})
	defer cancel()

	if err := f.coordinator.LoginToJellyfin(ctx, "prov-1"); err != nil {
		t.Fatalf("unexpected skip: %v", err)
	}
	if violation {
		t.Fatal("observed in-state credentials before they were persisted")
	}
}
