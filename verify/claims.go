package verify

import "strings"

// Role claim candidate paths, checked in order. The profile schema has
// carried the role claim at two nesting depths across backend versions;
// both are looked up until the backend settles on one canonical shape.
var RoleClaimPaths = []string{
	"user_metadata.role",
	"user.user_metadata.role",
}

// StringClaim extracts the first string value found at any of the given
// dot-notation candidate paths.
func StringClaim(claims map[string]any, paths ...string) (string, bool) {
	for _, path := range paths {
		value, ok := nestedClaim(claims, path)
		if !ok {
			continue
		}
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// nestedClaim retrieves a claim using dot notation, e.g.
// "user_metadata.provider_id".
func nestedClaim(claims map[string]any, path string) (any, bool) {
	var current any = claims
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
