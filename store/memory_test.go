package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := m.Set(ctx, KeyUserSession, "blob"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err := m.Get(ctx, KeyUserSession)
	if err != nil || !ok || value != "blob" {
		t.Fatalf("expected blob, got %q ok=%v err=%v", value, ok, err)
	}

	if err := m.Remove(ctx, KeyUserSession); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok, _ := m.Get(ctx, KeyUserSession); ok {
		t.Fatal("expected key removed")
	}
	if err := m.Remove(ctx, KeyUserSession); err != nil {
		t.Fatalf("removing a missing key must be a no-op, got %v", err)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	current := time.Now()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "k", "v", WithTTL(time.Minute)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("expected key live before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected key expired")
	}
	if m.Len() != 0 {
		t.Fatalf("expected expired entry evicted, len=%d", m.Len())
	}
}

func TestMemoryPathOptionIgnored(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Set(ctx, KeyDeviceID, "dev-1", WithPath("/")); err != nil {
		t.Fatalf("set with path failed: %v", err)
	}
	if value, ok, _ := m.Get(ctx, KeyDeviceID); !ok || value != "dev-1" {
		t.Fatalf("expected dev-1, got %q ok=%v", value, ok)
	}
}
