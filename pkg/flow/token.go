package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/muhlemmer/gu"
	httphelper "github.com/oauthkit/oauthkit/pkg/http"
	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// TokenRequest is a token endpoint request according to RFC 6749,
// sections 4.1.3 and 6, and RFC 8628, section 3.4. Build it through
// [NewTokenRequest] or derive it from a response
// ([AuthorizationResponse.TokenExchangeRequest],
// [DeviceAuthorizationResponse.TokenRequest],
// [TokenResponse.RefreshRequest]).
type TokenRequest struct {
	Configuration        *ServiceConfiguration     `json:"configuration"`
	ClientID             string                    `json:"client_id"`
	GrantType            oauth.GrantType           `json:"grant_type"`
	Code                 string                    `json:"code,omitempty"`
	RedirectURI          string                    `json:"redirect_uri,omitempty"`
	RefreshToken         string                    `json:"refresh_token,omitempty"`
	DeviceCode           string                    `json:"device_code,omitempty"`
	Scopes               oauth.SpaceDelimitedArray `json:"scope,omitempty"`
	CodeVerifier         string                    `json:"code_verifier,omitempty"`
	AdditionalParameters map[string]string         `json:"additional_parameters,omitempty"`
}

func (r *TokenRequest) kind() requestKind {
	return kindToken
}

// Parameters returns the canonical token request body. Client
// authentication is not part of it, the chosen
// [ClientAuthentication] contributes its own parameters or headers
// when the outbound request is assembled.
func (r *TokenRequest) Parameters() (url.Values, error) {
	wire := struct {
		oauth.DeviceAccessTokenRequest
		Code         string                    `schema:"code,omitempty"`
		RedirectURI  string                    `schema:"redirect_uri,omitempty"`
		RefreshToken string                    `schema:"refresh_token,omitempty"`
		Scopes       oauth.SpaceDelimitedArray `schema:"scope,omitempty"`
		CodeVerifier string                    `schema:"code_verifier,omitempty"`
	}{
		DeviceAccessTokenRequest: oauth.DeviceAccessTokenRequest{
			GrantType:  r.GrantType,
			DeviceCode: r.DeviceCode,
		},
		Code:         r.Code,
		RedirectURI:  r.RedirectURI,
		RefreshToken: r.RefreshToken,
		Scopes:       r.Scopes,
		CodeVerifier: r.CodeVerifier,
	}
	values, err := httphelper.URLEncodeParams(wire, Encoder)
	if err != nil {
		return nil, err
	}
	return mergeAdditionalParameters(values, r.AdditionalParameters), nil
}

// HTTPRequest assembles the outbound POST for the token endpoint,
// applying the client authentication to exactly one channel: the form
// body or the request headers, depending on the strategy.
func (r *TokenRequest) HTTPRequest(ctx context.Context, auth ClientAuthentication) (*http.Request, error) {
	if auth == nil {
		auth = NoneAuthentication{}
	}
	form, err := r.Parameters()
	if err != nil {
		return nil, err
	}
	return formPost(ctx, r.Configuration.TokenEndpoint, form, auth, r.ClientID)
}

func formPost(ctx context.Context, endpoint string, form url.Values, auth ClientAuthentication, clientID string) (*http.Request, error) {
	authParams, err := auth.Parameters(clientID)
	if err != nil {
		return nil, err
	}
	req, err := httphelper.FormRequest(ctx, endpoint, emptyForm{}, Encoder, httphelper.FormAuthorization(func(body url.Values) {
		for key, values := range form {
			body[key] = values
		}
		for key, values := range authParams {
			body[key] = values
		}
	}))
	if err != nil {
		return nil, err
	}
	headers, err := auth.Headers(clientID)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	return req, nil
}

// emptyForm satisfies the encoder when the body parameters are
// already url.Values; the authorization callback fills them in.
type emptyForm struct{}

// Exchange performs the token request through the given transport
// client and parses the response. Errors from the transport wrap into
// a network error; OAuth error bodies surface as structured errors.
func (r *TokenRequest) Exchange(ctx context.Context, auth ClientAuthentication, client *http.Client, opts ...ResponseOption) (*TokenResponse, error) {
	ctx, span := Tracer.Start(ctx, "Exchange")
	defer span.End()

	if client == nil {
		client = httphelper.DefaultHTTPClient
	}
	req, err := r.HTTPRequest(ctx, auth)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, oauth.ErrNetwork().WithDescription("token request failed").WithParent(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oauth.ErrNetwork().WithDescription("unable to read token response").WithParent(err)
	}
	return r.ParseResponse(body, opts...)
}

// ParseResponse parses a token endpoint body, success or error. The
// `error` field is checked before anything else; a body carrying one
// never yields a response.
func (r *TokenRequest) ParseResponse(body []byte, opts ...ResponseOption) (*TokenResponse, error) {
	options := newResponseOptions(opts)

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("token response is not valid JSON: %w", err)
	}
	if errValue, ok := raw["error"].(string); ok && errValue != "" {
		description, _ := raw["error_description"].(string)
		uri, _ := raw["error_uri"].(string)
		return nil, oauth.TokenError(errValue, description, uri)
	}

	var wire oauth.AccessTokenResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("cannot decode token response: %w", err)
	}
	if wire.AccessToken == "" {
		return nil, oauth.ErrInvalidState().WithDescription("token response carries no access_token")
	}

	response := &TokenResponse{
		Request:              r,
		AccessToken:          wire.AccessToken,
		TokenType:            wire.TokenType,
		RefreshToken:         wire.RefreshToken,
		ExpiresIn:            wire.ExpiresIn,
		IDToken:              wire.IDToken,
		Scopes:               wire.Scope,
		AdditionalParameters: collectAdditionalJSON(raw, tokenResponseParams),
	}
	if wire.ExpiresIn > 0 {
		response.AccessTokenExpiration = options.clock().Add(time.Duration(wire.ExpiresIn) * time.Second)
	}
	return response, nil
}

var tokenResponseParams = reserved(
	"access_token", "token_type", "refresh_token", "expires_in",
	"id_token", "scope", "state", "error", "error_description", "error_uri",
)

func collectAdditionalJSON(raw map[string]any, known map[string]bool) map[string]any {
	var additional map[string]any
	for key, value := range raw {
		if known[key] {
			continue
		}
		if additional == nil {
			additional = make(map[string]any)
		}
		additional[key] = value
	}
	return additional
}

// TokenRequestBuilder assembles a [TokenRequest]. The grant type may
// be left implicit: an authorization code infers `authorization_code`,
// a refresh token infers `refresh_token`.
type TokenRequestBuilder struct {
	request TokenRequest
	err     error
}

func NewTokenRequest(config *ServiceConfiguration, clientID string) *TokenRequestBuilder {
	return &TokenRequestBuilder{
		request: TokenRequest{
			Configuration: config,
			ClientID:      clientID,
		},
	}
}

func (b *TokenRequestBuilder) GrantType(grantType oauth.GrantType) *TokenRequestBuilder {
	b.request.GrantType = grantType
	return b
}

func (b *TokenRequestBuilder) Code(code string) *TokenRequestBuilder {
	b.request.Code = code
	return b
}

func (b *TokenRequestBuilder) RedirectURI(uri string) *TokenRequestBuilder {
	b.request.RedirectURI = uri
	return b
}

func (b *TokenRequestBuilder) RefreshToken(token string) *TokenRequestBuilder {
	b.request.RefreshToken = token
	return b
}

func (b *TokenRequestBuilder) DeviceCode(code string) *TokenRequestBuilder {
	b.request.DeviceCode = code
	return b
}

func (b *TokenRequestBuilder) Scopes(scopes ...string) *TokenRequestBuilder {
	b.request.Scopes = scopes
	return b
}

// CodeVerifier sets the PKCE verifier sent with the code exchange.
// An empty verifier is ignored, so responses of requests built without
// PKCE chain through unchanged.
func (b *TokenRequestBuilder) CodeVerifier(verifier string) *TokenRequestBuilder {
	b.request.CodeVerifier = verifier
	return b
}

func (b *TokenRequestBuilder) AdditionalParameters(params map[string]string) *TokenRequestBuilder {
	if err := checkAdditionalParameters(params, tokenReservedParams); err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.request.AdditionalParameters = gu.MapCopy(params)
	return b
}

// Build validates the request. The grant type decides which fields are
// mandatory: a code exchange needs code and redirect URI, a refresh
// needs the refresh token, a device exchange needs the device code.
func (b *TokenRequestBuilder) Build() (*TokenRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.request.Configuration == nil || b.request.Configuration.TokenEndpoint == "" {
		return nil, oauth.ErrInvalidState().WithDescription("token endpoint not configured")
	}
	if b.request.ClientID == "" {
		return nil, oauth.ErrInvalidState().WithDescription("client id missing")
	}
	if err := checkScopes(b.request.Scopes); err != nil {
		return nil, err
	}
	if b.request.GrantType == "" {
		switch {
		case b.request.Code != "":
			b.request.GrantType = oauth.GrantTypeCode
		case b.request.RefreshToken != "":
			b.request.GrantType = oauth.GrantTypeRefreshToken
		default:
			return nil, oauth.ErrInvalidState().WithDescription("grant type missing and not inferable")
		}
	}
	switch b.request.GrantType {
	case oauth.GrantTypeCode:
		if b.request.Code == "" {
			return nil, oauth.ErrInvalidState().WithDescription("authorization code missing for grant type %q", oauth.GrantTypeCode)
		}
		if b.request.RedirectURI == "" {
			return nil, oauth.ErrInvalidState().WithDescription("redirect URI missing for grant type %q", oauth.GrantTypeCode)
		}
	case oauth.GrantTypeRefreshToken:
		if b.request.RefreshToken == "" {
			return nil, oauth.ErrInvalidState().WithDescription("refresh token missing for grant type %q", oauth.GrantTypeRefreshToken)
		}
	case oauth.GrantTypeDeviceCode:
		if b.request.DeviceCode == "" {
			return nil, oauth.ErrInvalidState().WithDescription("device code missing for grant type %q", oauth.GrantTypeDeviceCode)
		}
	}
	if b.request.CodeVerifier != "" {
		if err := oauth.CheckCodeVerifier(b.request.CodeVerifier); err != nil {
			return nil, err
		}
	}

	request := b.request
	request.Scopes = append(oauth.SpaceDelimitedArray(nil), b.request.Scopes...)
	request.AdditionalParameters = gu.MapCopy(b.request.AdditionalParameters)
	return &request, nil
}

// TokenResponse is a successful token endpoint response according to
// RFC 6749, section 5.1, matched to the request that produced it.
type TokenResponse struct {
	Request               *TokenRequest             `json:"-"`
	AccessToken           string                    `json:"access_token"`
	TokenType             string                    `json:"token_type,omitempty"`
	RefreshToken          string                    `json:"refresh_token,omitempty"`
	ExpiresIn             uint64                    `json:"expires_in,omitempty"`
	IDToken               string                    `json:"id_token,omitempty"`
	Scopes                oauth.SpaceDelimitedArray `json:"scope,omitempty"`
	AccessTokenExpiration time.Time                 `json:"access_token_expiration,omitempty"`
	AdditionalParameters  map[string]any            `json:"additional_parameters,omitempty"`
}

// Tokens converts the response into an [oauth.Tokens] bundle, parsing
// the identity token claims when one is present. Claims are decoded
// but not signature verified.
func (r *TokenResponse) Tokens() (*oauth.Tokens, error) {
	tokens := &oauth.Tokens{
		Token:   (&oauth.AccessTokenResponse{AccessToken: r.AccessToken, TokenType: r.TokenType, RefreshToken: r.RefreshToken, IDToken: r.IDToken}).Token(time.Now()),
		IDToken: r.IDToken,
	}
	if !r.AccessTokenExpiration.IsZero() {
		tokens.Token.Expiry = r.AccessTokenExpiration
	}
	if r.IDToken != "" {
		claims, err := oauth.ParseIDTokenClaims(r.IDToken)
		if err != nil {
			return nil, err
		}
		tokens.IDTokenClaims = claims
	}
	return tokens, nil
}

// RefreshRequest derives the token request which trades the refresh
// token of this response for new tokens.
func (r *TokenResponse) RefreshRequest(additionalParameters map[string]string) (*TokenRequest, error) {
	if r.RefreshToken == "" {
		return nil, oauth.ErrInvalidState().WithDescription("token response carries no refresh_token")
	}
	return NewTokenRequest(r.Request.Configuration, r.Request.ClientID).
		RefreshToken(r.RefreshToken).
		AdditionalParameters(additionalParameters).
		Build()
}
