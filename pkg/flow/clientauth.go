package flow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// ClientAuthentication contributes the client credentials to an
// outbound request. A strategy uses exactly one channel: form
// parameters or request headers, never both.
type ClientAuthentication interface {
	// Parameters returns the form parameters the strategy adds to the
	// request body.
	Parameters(clientID string) (url.Values, error)
	// Headers returns the headers the strategy adds to the request.
	Headers(clientID string) (http.Header, error)
}

// NoneAuthentication identifies a public client through its client_id
// form parameter only.
type NoneAuthentication struct{}

func (NoneAuthentication) Parameters(clientID string) (url.Values, error) {
	return url.Values{"client_id": {clientID}}, nil
}

func (NoneAuthentication) Headers(string) (http.Header, error) {
	return nil, nil
}

// ClientSecretBasic authenticates through the HTTP Basic scheme
// according to RFC 6749, section 2.3.1. Client id and secret are form
// urlencoded before they enter the Authorization header.
type ClientSecretBasic struct {
	ClientSecret string
}

func (ClientSecretBasic) Parameters(string) (url.Values, error) {
	return nil, nil
}

func (c ClientSecretBasic) Headers(clientID string) (http.Header, error) {
	if c.ClientSecret == "" {
		return nil, oauth.ErrInvalidArgument().WithDescription("client secret missing")
	}
	req := &http.Request{Header: http.Header{}}
	req.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(c.ClientSecret))
	return req.Header, nil
}

// ClientSecretPost sends client id and secret as form parameters
// according to RFC 6749, section 2.3.1.
type ClientSecretPost struct {
	ClientSecret string
}

func (c ClientSecretPost) Parameters(clientID string) (url.Values, error) {
	if c.ClientSecret == "" {
		return nil, oauth.ErrInvalidArgument().WithDescription("client secret missing")
	}
	return url.Values{
		"client_id":     {clientID},
		"client_secret": {c.ClientSecret},
	}, nil
}

func (ClientSecretPost) Headers(string) (http.Header, error) {
	return nil, nil
}

// JWTProfileAuthentication authenticates through a signed JWT
// assertion according to RFC 7523, section 2.2.
type JWTProfileAuthentication struct {
	// Key signs the assertion. The algorithm must match the key type
	// registered at the authorization server.
	Key jose.SigningKey
	// KeyID is set as the `kid` header of the assertion when not
	// empty.
	KeyID string
	// Audience the assertion is issued for, usually the issuer or the
	// token endpoint of the authorization server.
	Audience string
	// Lifetime of the assertion, one hour when zero.
	Lifetime time.Duration
	// Clock for issuance and expiration claims, the system clock when
	// nil.
	Clock Clock
}

func (a JWTProfileAuthentication) Parameters(clientID string) (url.Values, error) {
	assertion, err := a.sign(clientID)
	if err != nil {
		return nil, err
	}
	return url.Values{
		"client_assertion":      {assertion},
		"client_assertion_type": {oauth.ClientAssertionTypeJWTAssertion},
	}, nil
}

func (JWTProfileAuthentication) Headers(string) (http.Header, error) {
	return nil, nil
}

func (a JWTProfileAuthentication) sign(clientID string) (string, error) {
	if a.Audience == "" {
		return "", oauth.ErrInvalidArgument().WithDescription("assertion audience missing")
	}
	clock := a.Clock
	if clock == nil {
		clock = systemClock
	}
	lifetime := a.Lifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	now := clock()

	opts := (&jose.SignerOptions{}).WithType("JWT")
	if a.KeyID != "" {
		opts.WithHeader("kid", a.KeyID)
	}
	signer, err := jose.NewSigner(a.Key, opts)
	if err != nil {
		return "", fmt.Errorf("unable to create assertion signer: %w", err)
	}

	payload, err := json.Marshal(struct {
		Issuer     string         `json:"iss"`
		Subject    string         `json:"sub"`
		Audience   oauth.Audience `json:"aud"`
		Expiration oauth.Time     `json:"exp"`
		IssuedAt   oauth.Time     `json:"iat"`
		JWTID      string         `json:"jti"`
	}{
		Issuer:     clientID,
		Subject:    clientID,
		Audience:   oauth.Audience{a.Audience},
		Expiration: oauth.FromTime(now.Add(lifetime)),
		IssuedAt:   oauth.FromTime(now),
		JWTID:      uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	signature, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("unable to sign assertion: %w", err)
	}
	return signature.CompactSerialize()
}
