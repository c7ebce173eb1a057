package verify

import "testing"

func TestStringClaim(t *testing.T) {
	claims := map[string]any{
		"id": "u1",
		"user_metadata": map[string]any{
			"role": "superadmin",
		},
		"user": map[string]any{
			"user_metadata": map[string]any{
				"role": "viewer",
			},
		},
		"count": float64(3),
	}

	// First matching path wins.
	if got, ok := StringClaim(claims, RoleClaimPaths...); !ok || got != "superadmin" {
		t.Fatalf("expected superadmin, got %q ok=%v", got, ok)
	}

	// Deeper candidate is used when the shallow one is absent.
	nested := map[string]any{
		"user": map[string]any{
			"user_metadata": map[string]any{"role": "viewer"},
		},
	}
	if got, ok := StringClaim(nested, RoleClaimPaths...); !ok || got != "viewer" {
		t.Fatalf("expected viewer, got %q ok=%v", got, ok)
	}

	if _, ok := StringClaim(claims, "missing.path"); ok {
		t.Fatal("expected miss for absent path")
	}
	if _, ok := StringClaim(claims, "count"); ok {
		t.Fatal("expected miss for non-string claim")
	}
	if _, ok := StringClaim(claims, "id.deeper"); ok {
		t.Fatal("expected miss when traversing through a scalar")
	}
	if _, ok := StringClaim(nil, "id"); ok {
		t.Fatal("expected miss on nil claims")
	}
}
