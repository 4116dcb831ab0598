package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const (
	CodeChallengeMethodPlain CodeChallengeMethod = "plain"
	CodeChallengeMethodS256  CodeChallengeMethod = "S256"

	// MinCodeVerifierLength and MaxCodeVerifierLength bound the code
	// verifier as required by RFC 7636, section 4.1.
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128

	// codeVerifierBytes yields 43 base64url characters, the RFC minimum.
	codeVerifierBytes = 32
)

type CodeChallengeMethod string

type CodeChallenge struct {
	Challenge string
	Method    CodeChallengeMethod
}

// GenerateCodeVerifier returns a cryptographically random code verifier
// of 43 characters from the unreserved URI character set.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, codeVerifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", ErrInvalidState().WithDescription("entropy source failed").WithParent(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CheckCodeVerifier validates the length and character set constraints
// of RFC 7636, section 4.1.
func CheckCodeVerifier(verifier string) error {
	if len(verifier) < MinCodeVerifierLength || len(verifier) > MaxCodeVerifierLength {
		return ErrInvalidArgument().WithDescription("code verifier must be between %d and %d characters", MinCodeVerifierLength, MaxCodeVerifierLength)
	}
	for _, r := range verifier {
		if !isUnreserved(r) {
			return ErrInvalidArgument().WithDescription("code verifier contains illegal character %q", r)
		}
	}
	return nil
}

// unreserved characters per RFC 3986, section 2.3
func isUnreserved(r rune) bool {
	switch {
	case 'A' <= r && r <= 'Z',
		'a' <= r && r <= 'z',
		'0' <= r && r <= '9',
		r == '-', r == '.', r == '_', r == '~':
		return true
	}
	return false
}

// NewSHACodeChallenge returns the S256 challenge for the verifier:
// the base64url encoding, without padding, of its SHA-256 digest.
func NewSHACodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DeriveCodeChallenge derives the challenge for the verifier with the
// given method. The verifier must pass [CheckCodeVerifier] first.
func DeriveCodeChallenge(verifier string, method CodeChallengeMethod) (string, error) {
	if err := CheckCodeVerifier(verifier); err != nil {
		return "", err
	}
	switch method {
	case CodeChallengeMethodPlain:
		return verifier, nil
	case CodeChallengeMethodS256:
		return NewSHACodeChallenge(verifier), nil
	}
	return "", ErrInvalidArgument().WithDescription("unsupported code challenge method %q", method)
}

func VerifyCodeChallenge(c *CodeChallenge, codeVerifier string) bool {
	if c == nil {
		return false
	}
	if c.Method == CodeChallengeMethodS256 {
		codeVerifier = NewSHACodeChallenge(codeVerifier)
	}
	return codeVerifier == c.Challenge
}
