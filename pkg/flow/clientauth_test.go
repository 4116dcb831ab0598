package flow

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

func TestNoneAuthentication(t *testing.T) {
	params, err := NoneAuthentication{}.Parameters("client1")
	require.NoError(t, err)
	assert.Equal(t, "client1", params.Get("client_id"))

	headers, err := NoneAuthentication{}.Headers("client1")
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestClientSecretBasic(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		auth := ClientSecretBasic{ClientSecret: "secret"}
		params, err := auth.Parameters("client1")
		require.NoError(t, err)
		assert.Empty(t, params)

		headers, err := auth.Headers("client1")
		require.NoError(t, err)
		assert.NotEmpty(t, headers.Get("Authorization"))
	})
	t.Run("credentials are form urlencoded", func(t *testing.T) {
		// RFC 6749, section 2.3.1 requires urlencoding before the
		// Basic scheme is applied
		auth := ClientSecretBasic{ClientSecret: "secret/with:chars"}
		headers, err := auth.Headers("client 1")
		require.NoError(t, err)

		value := headers.Get("Authorization")
		assert.True(t, strings.HasPrefix(value, "Basic "))
	})
	t.Run("missing secret", func(t *testing.T) {
		_, err := ClientSecretBasic{}.Headers("client1")
		assert.ErrorIs(t, err, oauth.ErrInvalidArgument())
	})
}

func TestClientSecretPost(t *testing.T) {
	t.Run("parameters only", func(t *testing.T) {
		auth := ClientSecretPost{ClientSecret: "secret"}
		params, err := auth.Parameters("client1")
		require.NoError(t, err)
		assert.Equal(t, "client1", params.Get("client_id"))
		assert.Equal(t, "secret", params.Get("client_secret"))

		headers, err := auth.Headers("client1")
		require.NoError(t, err)
		assert.Empty(t, headers)
	})
	t.Run("missing secret", func(t *testing.T) {
		_, err := ClientSecretPost{}.Parameters("client1")
		assert.ErrorIs(t, err, oauth.ErrInvalidArgument())
	})
}

func TestJWTProfileAuthentication(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0).UTC()

	auth := JWTProfileAuthentication{
		Key:      jose.SigningKey{Algorithm: jose.ES256, Key: key},
		KeyID:    "key1",
		Audience: "https://issuer.example",
		Clock:    fixedClock(now),
	}

	params, err := auth.Parameters("client1")
	require.NoError(t, err)
	assert.Equal(t, oauth.ClientAssertionTypeJWTAssertion, params.Get("client_assertion_type"))

	assertion := params.Get("client_assertion")
	require.NotEmpty(t, assertion)

	parsed, err := jwt.ParseSigned(assertion, []jose.SignatureAlgorithm{jose.ES256})
	require.NoError(t, err)
	var claims jwt.Claims
	require.NoError(t, parsed.Claims(key.Public(), &claims))
	assert.Equal(t, "client1", claims.Issuer)
	assert.Equal(t, "client1", claims.Subject)
	assert.Equal(t, jwt.Audience{"https://issuer.example"}, claims.Audience)
	assert.Equal(t, now, claims.IssuedAt.Time().UTC())
	assert.Equal(t, now.Add(time.Hour), claims.Expiry.Time().UTC())
	assert.NotEmpty(t, claims.ID)

	headers, err := auth.Headers("client1")
	require.NoError(t, err)
	assert.Empty(t, headers)

	t.Run("missing audience", func(t *testing.T) {
		_, err := JWTProfileAuthentication{
			Key: jose.SigningKey{Algorithm: jose.ES256, Key: key},
		}.Parameters("client1")
		assert.ErrorIs(t, err, oauth.ErrInvalidArgument())
	})
}
