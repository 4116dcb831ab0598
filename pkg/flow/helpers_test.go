package flow

import (
	"encoding/base64"
	"testing"
	"time"
)

// compactTestToken builds an unsigned compact token with a fixed
// header around the given claim set.
func compactTestToken(t *testing.T, claims string) string {
	t.Helper()
	encode := base64.RawURLEncoding.EncodeToString
	return encode([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." + encode([]byte(claims))
}

// fixedClock returns a clock frozen at the given instant.
func fixedClock(at time.Time) Clock {
	return func() time.Time {
		return at
	}
}
