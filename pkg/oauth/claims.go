package oauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrIssuerInvalid = errors.New("issuer does not match")
	ErrAudience      = errors.New("audience is not valid")
	ErrExpired       = errors.New("token has expired")
	ErrNonceInvalid  = errors.New("nonce does not match")
)

// IDTokenClaims is the decoded, unverified claim set of an identity
// token. Claims retains the complete raw claim set, so claims outside
// the registered ones survive a parse round trip.
//
// No signature verification happens at this layer. A caller must layer
// verification on top before trusting any of these values.
type IDTokenClaims struct {
	Issuer          string   `json:"iss,omitempty"`
	Subject         string   `json:"sub,omitempty"`
	Audience        Audience `json:"aud,omitempty"`
	Expiration      Time     `json:"exp,omitempty"`
	IssuedAt        Time     `json:"iat,omitempty"`
	AuthTime        Time     `json:"auth_time,omitempty"`
	Nonce           string   `json:"nonce,omitempty"`
	AuthorizedParty string   `json:"azp,omitempty"`
	AccessTokenHash string   `json:"at_hash,omitempty"`

	Claims map[string]any `json:"-"`
}

// ParseIDTokenClaims splits a compact token and decodes its claim
// section. The header section is decoded only to confirm it is
// well-formed JSON, its content is not interpreted. `exp` and `iat`
// must be present and numeric.
func ParseIDTokenClaims(token string) (*IDTokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, ErrMalformedToken().WithDescription("token contains an invalid number of segments")
	}
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrMalformedToken().WithDescription("malformed token header").WithParent(err)
	}
	if !json.Valid(header) {
		return nil, ErrMalformedToken().WithDescription("token header is not valid JSON")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken().WithDescription("malformed token payload").WithParent(err)
	}

	claims := new(IDTokenClaims)
	if err = json.Unmarshal(payload, claims); err != nil {
		return nil, ErrMalformedToken().WithDescription("cannot decode claim set").WithParent(err)
	}
	if err = json.Unmarshal(payload, &claims.Claims); err != nil {
		return nil, ErrMalformedToken().WithDescription("cannot decode claim set").WithParent(err)
	}
	for _, required := range [...]string{"exp", "iat"} {
		if _, ok := claims.Claims[required].(float64); !ok {
			return nil, ErrMalformedToken().WithDescription("claim %q is missing or not numeric", required)
		}
	}
	return claims, nil
}

func (c *IDTokenClaims) GetIssuer() string {
	return c.Issuer
}

func (c *IDTokenClaims) GetSubject() string {
	return c.Subject
}

func (c *IDTokenClaims) GetAudience() []string {
	return c.Audience
}

func (c *IDTokenClaims) GetExpiration() time.Time {
	return c.Expiration.AsTime()
}

func (c *IDTokenClaims) GetIssuedAt() time.Time {
	return c.IssuedAt.AsTime()
}

func (c *IDTokenClaims) GetNonce() string {
	return c.Nonce
}

// CheckIssuer compares the `iss` claim against the expected issuer.
func CheckIssuer(claims *IDTokenClaims, issuer string) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("%w: expected %q, got %q", ErrIssuerInvalid, issuer, claims.Issuer)
	}
	return nil
}

// CheckAudience verifies that the `aud` claim contains the client id.
func CheckAudience(claims *IDTokenClaims, clientID string) error {
	for _, aud := range claims.Audience {
		if aud == clientID {
			return nil
		}
	}
	return fmt.Errorf("%w: audience must contain client_id %q", ErrAudience, clientID)
}

// CheckExpiration verifies the token has not expired at the given time.
func CheckExpiration(claims *IDTokenClaims, now time.Time) error {
	expiration := claims.Expiration.AsTime().Round(time.Second)
	if !now.UTC().Before(expiration) {
		return ErrExpired
	}
	return nil
}

// CheckNonce compares the `nonce` claim against the nonce sent in the
// authorization request. An empty expected nonce skips the check.
func CheckNonce(claims *IDTokenClaims, nonce string) error {
	if nonce == "" {
		return nil
	}
	if claims.Nonce != nonce {
		return fmt.Errorf("%w: expected %q, got %q", ErrNonceInvalid, nonce, claims.Nonce)
	}
	return nil
}
