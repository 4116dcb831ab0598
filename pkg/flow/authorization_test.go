package flow

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

var testConfig = &ServiceConfiguration{
	AuthorizationEndpoint:       "https://issuer.example/authorize",
	TokenEndpoint:               "https://issuer.example/oauth/token",
	EndSessionEndpoint:          "https://issuer.example/logout",
	DeviceAuthorizationEndpoint: "https://issuer.example/device",
}

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func TestAuthorizationRequestBuilder_Build(t *testing.T) {
	type args struct {
		build func() (*AuthorizationRequest, error)
	}
	tests := []struct {
		name    string
		args    args
		wantErr error
	}{
		{
			name: "mandatory fields only",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").Build()
			}},
		},
		{
			name: "missing endpoint",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(&ServiceConfiguration{}, "client1", oauth.ResponseTypeCode, "https://app.example/callback").Build()
			}},
			wantErr: oauth.ErrInvalidState(),
		},
		{
			name: "nil configuration",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(nil, "client1", oauth.ResponseTypeCode, "https://app.example/callback").Build()
			}},
			wantErr: oauth.ErrInvalidState(),
		},
		{
			name: "missing client id",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "", oauth.ResponseTypeCode, "https://app.example/callback").Build()
			}},
			wantErr: oauth.ErrInvalidState(),
		},
		{
			name: "missing response type",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "client1", "", "https://app.example/callback").Build()
			}},
			wantErr: oauth.ErrInvalidState(),
		},
		{
			name: "missing redirect uri",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "").Build()
			}},
			wantErr: oauth.ErrInvalidState(),
		},
		{
			name: "empty scope element",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
					Scopes(oauth.ScopeOpenID, "").Build()
			}},
			wantErr: oauth.ErrInvalidArgument(),
		},
		{
			name: "invalid code verifier",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
					CodeVerifier("short").Build()
			}},
			wantErr: oauth.ErrInvalidArgument(),
		},
		{
			name: "reserved additional parameter",
			args: args{func() (*AuthorizationRequest, error) {
				return NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
					AdditionalParameters(map[string]string{"client_id": "evil"}).Build()
			}},
			wantErr: oauth.ErrInvalidArgument(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, err := tt.args.build()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, request.State)
			assert.NotEmpty(t, request.Nonce)
		})
	}
}

func TestAuthorizationRequestBuilder_generatedValues(t *testing.T) {
	first, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").Build()
	require.NoError(t, err)
	second, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").Build()
	require.NoError(t, err)

	assert.Len(t, first.State, 22)
	assert.Len(t, first.Nonce, 22)
	assert.NotEqual(t, first.State, second.State)
	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.State, first.Nonce)
}

func TestAuthorizationRequestBuilder_explicitValues(t *testing.T) {
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
		Scopes(oauth.ScopeOpenID, oauth.ScopeProfile).
		State("state1").
		Nonce("nonce1").
		Display(oauth.DisplayPopup).
		Prompt(oauth.PromptLogin, oauth.PromptConsent).
		UILocales(language.German, language.English).
		LoginHint("user@app.example").
		CodeVerifier(testVerifier).
		AdditionalParameters(map[string]string{"audience": "https://api.example"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "state1", request.State)
	assert.Equal(t, "nonce1", request.Nonce)
	assert.Equal(t, testVerifier, request.CodeVerifier)
	assert.Equal(t, oauth.NewSHACodeChallenge(testVerifier), request.CodeChallenge)
	assert.Equal(t, oauth.CodeChallengeMethodS256, request.CodeChallengeMethod)

	params, err := request.Parameters()
	require.NoError(t, err)
	assert.Equal(t, "code", params.Get("response_type"))
	assert.Equal(t, "client1", params.Get("client_id"))
	assert.Equal(t, "https://app.example/callback", params.Get("redirect_uri"))
	assert.Equal(t, "openid profile", params.Get("scope"))
	assert.Equal(t, "state1", params.Get("state"))
	assert.Equal(t, "nonce1", params.Get("nonce"))
	assert.Equal(t, "popup", params.Get("display"))
	assert.Equal(t, "login consent", params.Get("prompt"))
	assert.Equal(t, "de en", params.Get("ui_locales"))
	assert.Equal(t, "user@app.example", params.Get("login_hint"))
	assert.Equal(t, "S256", params.Get("code_challenge_method"))
	assert.Equal(t, oauth.NewSHACodeChallenge(testVerifier), params.Get("code_challenge"))
	assert.Equal(t, "https://api.example", params.Get("audience"))

	// the verifier is a client secret, it must never go on the wire
	assert.Empty(t, params.Get("code_verifier"))
}

func TestAuthorizationRequest_Parameters_deterministic(t *testing.T) {
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
		Scopes(oauth.ScopeOpenID).
		Build()
	require.NoError(t, err)

	first, err := request.Parameters()
	require.NoError(t, err)
	second, err := request.Parameters()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAuthorizationRequestBuilder_copiesSlices(t *testing.T) {
	locales := []language.Tag{language.English}
	prompt := []string{"login"}
	params := map[string]string{"audience": "https://api.example"}
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
		UILocales(locales...).
		Prompt(prompt...).
		AdditionalParameters(params).
		Build()
	require.NoError(t, err)

	locales[0] = language.German
	prompt[0] = "consent"
	params["audience"] = "changed"

	assert.Equal(t, oauth.Locales{language.English}, request.UILocales)
	assert.Equal(t, oauth.SpaceDelimitedArray{"login"}, request.Prompt)
	assert.Equal(t, "https://api.example", request.AdditionalParameters["audience"])
}

func TestAuthorizationRequest_URL(t *testing.T) {
	config := &ServiceConfiguration{AuthorizationEndpoint: "https://issuer.example/authorize?tenant=t1"}
	request, err := NewAuthorizationRequest(config, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
		State("state1").Build()
	require.NoError(t, err)

	raw, err := request.URL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "t1", u.Query().Get("tenant"))
	assert.Equal(t, "client1", u.Query().Get("client_id"))
	assert.Equal(t, "state1", u.Query().Get("state"))
}

func TestAuthorizationRequest_ParseResponse(t *testing.T) {
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
		State("state1").Build()
	require.NoError(t, err)

	type res struct {
		code       string
		additional map[string]string
		err        error
	}
	tests := []struct {
		name     string
		redirect string
		res      res
	}{
		{
			name:     "success",
			redirect: "https://app.example/callback?code=code1&state=state1",
			res:      res{code: "code1"},
		},
		{
			name:     "additional parameters round trip",
			redirect: "https://app.example/callback?code=code1&state=state1&session_state=s1",
			res:      res{code: "code1", additional: map[string]string{"session_state": "s1"}},
		},
		{
			name:     "state mismatch",
			redirect: "https://app.example/callback?code=code1&state=other",
			res:      res{err: oauth.ErrStateMismatch()},
		},
		{
			name:     "missing state",
			redirect: "https://app.example/callback?code=code1",
			res:      res{err: oauth.ErrStateMismatch()},
		},
		{
			name: "state mismatch wins over error parameter",
			// an error report must not be trusted when its state is foreign
			redirect: "https://app.example/callback?error=access_denied&state=other",
			res:      res{err: oauth.ErrStateMismatch()},
		},
		{
			name:     "error response",
			redirect: "https://app.example/callback?error=access_denied&error_description=denied&state=state1",
			res:      res{err: &oauth.Error{Kind: oauth.KindAuthorization, ErrorType: oauth.AccessDenied}},
		},
		{
			name:     "unknown error code normalizes",
			redirect: "https://app.example/callback?error=tea_pot&state=state1",
			res:      res{err: &oauth.Error{Kind: oauth.KindAuthorization, ErrorType: oauth.Unknown}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redirect, err := url.Parse(tt.redirect)
			require.NoError(t, err)
			response, err := request.ParseResponse(redirect)
			if tt.res.err != nil {
				assert.ErrorIs(t, err, tt.res.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.res.code, response.Code)
			assert.Equal(t, "state1", response.State)
			assert.Equal(t, tt.res.additional, response.AdditionalParameters)
			assert.Same(t, request, response.Request)
		})
	}
}

func TestAuthorizationRequest_ParseResponse_fragment(t *testing.T) {
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeIDToken, "https://app.example/callback").
		State("state1").Build()
	require.NoError(t, err)

	redirect, err := url.Parse("https://app.example/callback#access_token=at1&token_type=Bearer&state=state1&expires_in=3600&broken")
	require.NoError(t, err)

	response, err := request.ParseResponse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "at1", response.AccessToken)
	assert.Equal(t, "Bearer", response.TokenType)
	assert.Equal(t, uint64(3600), response.ExpiresIn)
	assert.Empty(t, response.Code)
}

func TestAuthorizationRequest_ParseResponse_expiresInNotNumeric(t *testing.T) {
	request := testAuthorizationRequest(t, "state1")

	redirect, err := url.Parse("https://app.example/callback?code=code1&state=state1&expires_in=soon")
	require.NoError(t, err)

	_, err = request.ParseResponse(redirect)
	require.ErrorContains(t, err, "expires_in is not numeric")
	// a malformed server response is not caller misuse
	assert.NotErrorIs(t, err, oauth.ErrInvalidArgument())
}

func TestAuthorizationResponse_TokenExchangeRequest(t *testing.T) {
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeCode, "https://app.example/callback").
		State("state1").
		CodeVerifier(testVerifier).
		Build()
	require.NoError(t, err)

	redirect, err := url.Parse("https://app.example/callback?code=code1&state=state1")
	require.NoError(t, err)
	response, err := request.ParseResponse(redirect)
	require.NoError(t, err)

	exchange, err := response.TokenExchangeRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, oauth.GrantTypeCode, exchange.GrantType)
	assert.Equal(t, "code1", exchange.Code)
	assert.Equal(t, "https://app.example/callback", exchange.RedirectURI)
	assert.Equal(t, testVerifier, exchange.CodeVerifier)
	assert.Equal(t, "client1", exchange.ClientID)

	t.Run("without code", func(t *testing.T) {
		_, err := (&AuthorizationResponse{Request: request}).TokenExchangeRequest(nil)
		assert.ErrorIs(t, err, oauth.ErrInvalidState())
	})
}

func TestAuthorizationResponse_IDTokenClaims(t *testing.T) {
	request, err := NewAuthorizationRequest(testConfig, "client1", oauth.ResponseTypeIDTokenOnly, "https://app.example/callback").
		State("state1").Nonce("nonce1").Build()
	require.NoError(t, err)

	t.Run("nonce echo matches", func(t *testing.T) {
		response := &AuthorizationResponse{
			Request: request,
			IDToken: compactTestToken(t, `{"aud":"client1","nonce":"nonce1","exp":1700003600,"iat":1700000000}`),
		}
		claims, err := response.IDTokenClaims()
		require.NoError(t, err)
		assert.Equal(t, "nonce1", claims.GetNonce())
	})
	t.Run("nonce echo mismatch", func(t *testing.T) {
		response := &AuthorizationResponse{
			Request: request,
			IDToken: compactTestToken(t, `{"aud":"client1","nonce":"other","exp":1700003600,"iat":1700000000}`),
		}
		_, err := response.IDTokenClaims()
		assert.ErrorIs(t, err, oauth.ErrMalformedToken())
	})
	t.Run("no id_token", func(t *testing.T) {
		response := &AuthorizationResponse{Request: request}
		_, err := response.IDTokenClaims()
		assert.ErrorIs(t, err, oauth.ErrInvalidState())
	})
}
