package flow

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// stateBytes is the entropy of generated state and nonce values.
// 16 bytes encode to 22 base64url characters.
const stateBytes = 16

// GenerateState returns an unpredictable state token: 16
// cryptographically random bytes, base64url encoded without padding.
// The value is both a CSRF defense and the correlation key into the
// [PendingRequestStore].
func GenerateState() (string, error) {
	return randomToken()
}

// GenerateNonce returns a nonce with the same shape as a state token.
func GenerateNonce() (string, error) {
	return randomToken()
}

func randomToken() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oauth.ErrInvalidState().WithDescription("entropy source failed").WithParent(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
