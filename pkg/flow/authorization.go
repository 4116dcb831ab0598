package flow

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/muhlemmer/gu"
	httphelper "github.com/oauthkit/oauthkit/pkg/http"
	"github.com/oauthkit/oauthkit/pkg/oauth"
	"golang.org/x/text/language"
)

// AuthorizationRequest is an authorization endpoint request according
// to RFC 6749, section 4.1.1 and OpenID Connect Core, section 3.1.2.1.
// Build it through [NewAuthorizationRequest]; it is immutable after
// Build and safe to share.
type AuthorizationRequest struct {
	Configuration        *ServiceConfiguration     `json:"configuration"`
	ClientID             string                    `json:"client_id"`
	ResponseType         oauth.ResponseType        `json:"response_type"`
	RedirectURI          string                    `json:"redirect_uri"`
	Scopes               oauth.SpaceDelimitedArray `json:"scope,omitempty"`
	State                string                    `json:"state,omitempty"`
	Nonce                string                    `json:"nonce,omitempty"`
	Display              oauth.Display             `json:"display,omitempty"`
	Prompt               oauth.SpaceDelimitedArray `json:"prompt,omitempty"`
	UILocales            oauth.Locales             `json:"ui_locales,omitempty"`
	LoginHint            string                    `json:"login_hint,omitempty"`
	ResponseMode         oauth.ResponseMode        `json:"response_mode,omitempty"`
	CodeVerifier         string                    `json:"code_verifier,omitempty"`
	CodeChallenge        string                    `json:"code_challenge,omitempty"`
	CodeChallengeMethod  oauth.CodeChallengeMethod `json:"code_challenge_method,omitempty"`
	AdditionalParameters map[string]string         `json:"additional_parameters,omitempty"`
}

func (r *AuthorizationRequest) kind() requestKind {
	return kindAuthorization
}

func (r *AuthorizationRequest) requestState() string {
	return r.State
}

// responseMode is the effective mode: an explicit request wins,
// otherwise code responses arrive in the query and implicit responses
// in the fragment.
func (r *AuthorizationRequest) responseMode() oauth.ResponseMode {
	if r.ResponseMode != "" {
		return r.ResponseMode
	}
	if r.ResponseType == oauth.ResponseTypeCode {
		return oauth.ResponseModeQuery
	}
	return oauth.ResponseModeFragment
}

// Parameters returns the canonical authorization parameters. The code
// verifier itself never appears, only the derived challenge.
func (r *AuthorizationRequest) Parameters() (url.Values, error) {
	wire := struct {
		ResponseType        oauth.ResponseType        `schema:"response_type"`
		ClientID            string                    `schema:"client_id"`
		RedirectURI         string                    `schema:"redirect_uri"`
		Scopes              oauth.SpaceDelimitedArray `schema:"scope,omitempty"`
		State               string                    `schema:"state,omitempty"`
		Nonce               string                    `schema:"nonce,omitempty"`
		Display             oauth.Display             `schema:"display,omitempty"`
		Prompt              oauth.SpaceDelimitedArray `schema:"prompt,omitempty"`
		UILocales           oauth.Locales             `schema:"ui_locales,omitempty"`
		LoginHint           string                    `schema:"login_hint,omitempty"`
		ResponseMode        oauth.ResponseMode        `schema:"response_mode,omitempty"`
		CodeChallenge       string                    `schema:"code_challenge,omitempty"`
		CodeChallengeMethod oauth.CodeChallengeMethod `schema:"code_challenge_method,omitempty"`
	}{
		ResponseType:        r.ResponseType,
		ClientID:            r.ClientID,
		RedirectURI:         r.RedirectURI,
		Scopes:              r.Scopes,
		State:               r.State,
		Nonce:               r.Nonce,
		Display:             r.Display,
		Prompt:              r.Prompt,
		UILocales:           r.UILocales,
		LoginHint:           r.LoginHint,
		ResponseMode:        r.ResponseMode,
		CodeChallenge:       r.CodeChallenge,
		CodeChallengeMethod: r.CodeChallengeMethod,
	}
	values, err := httphelper.URLEncodeParams(wire, Encoder)
	if err != nil {
		return nil, err
	}
	return mergeAdditionalParameters(values, r.AdditionalParameters), nil
}

// URL returns the browser navigable authorization URL, preserving any
// query the configured endpoint already carries.
func (r *AuthorizationRequest) URL() (string, error) {
	return requestURL(r.Configuration.AuthorizationEndpoint, r)
}

func requestURL(endpoint string, request Request) (string, error) {
	params, err := request.Parameters()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", oauth.ErrInvalidState().WithDescription("cannot parse endpoint %q", endpoint).WithParent(err)
	}
	query := u.Query()
	for key, values := range params {
		query[key] = values
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ParseResponse matches a redirect URI against this request and
// returns the parsed response. The state check runs before anything
// else: a payload with a foreign state cannot be trusted, not even its
// error parameter.
func (r *AuthorizationRequest) ParseResponse(redirect *url.URL) (*AuthorizationResponse, error) {
	return r.parseResponse(redirect, slog.Default())
}

func (r *AuthorizationRequest) parseResponse(redirect *url.URL, logger *slog.Logger) (*AuthorizationResponse, error) {
	values := redirectValues(redirect, r.responseMode(), logger)
	state := values.Get("state")
	if state != r.State {
		return nil, oauth.ErrStateMismatch().WithDescription("response state does not match request state").WithState(state)
	}
	if errValue := values.Get("error"); errValue != "" {
		return nil, oauth.AuthorizationError(errValue, values.Get("error_description"), values.Get("error_uri")).WithState(state)
	}

	response := &AuthorizationResponse{
		Request:     r,
		State:       state,
		Code:        values.Get("code"),
		AccessToken: values.Get("access_token"),
		TokenType:   values.Get("token_type"),
		IDToken:     values.Get("id_token"),
	}
	if scope := values.Get("scope"); scope != "" {
		_ = response.Scopes.UnmarshalText([]byte(scope))
	}
	if expiresIn := values.Get("expires_in"); expiresIn != "" {
		seconds, err := strconv.ParseUint(expiresIn, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expires_in is not numeric: %w", err)
		}
		response.ExpiresIn = seconds
	}
	response.AdditionalParameters = collectAdditional(values, authorizationResponseParams)
	return response, nil
}

// authorizationResponseParams are the response parameters owned by the
// protocol; everything else round trips as additional parameters.
var authorizationResponseParams = reserved(
	"state", "code", "access_token", "token_type", "id_token",
	"scope", "expires_in", "error", "error_description", "error_uri",
)

func collectAdditional(values url.Values, known map[string]bool) map[string]string {
	var additional map[string]string
	for key := range values {
		if known[key] {
			continue
		}
		if additional == nil {
			additional = make(map[string]string)
		}
		additional[key] = values.Get(key)
	}
	return additional
}

// AuthorizationRequestBuilder assembles an [AuthorizationRequest].
// Validation happens once, in Build, never earlier.
type AuthorizationRequestBuilder struct {
	request AuthorizationRequest
	err     error
}

// NewAuthorizationRequest starts a builder over the mandatory fields
// of an authorization request.
func NewAuthorizationRequest(config *ServiceConfiguration, clientID string, responseType oauth.ResponseType, redirectURI string) *AuthorizationRequestBuilder {
	return &AuthorizationRequestBuilder{
		request: AuthorizationRequest{
			Configuration: config,
			ClientID:      clientID,
			ResponseType:  responseType,
			RedirectURI:   redirectURI,
		},
	}
}

func (b *AuthorizationRequestBuilder) Scopes(scopes ...string) *AuthorizationRequestBuilder {
	b.request.Scopes = scopes
	return b
}

// State sets an explicit state. When not called, Build generates one.
func (b *AuthorizationRequestBuilder) State(state string) *AuthorizationRequestBuilder {
	b.request.State = state
	return b
}

// Nonce sets an explicit nonce. When not called, Build generates one.
func (b *AuthorizationRequestBuilder) Nonce(nonce string) *AuthorizationRequestBuilder {
	b.request.Nonce = nonce
	return b
}

func (b *AuthorizationRequestBuilder) Display(display oauth.Display) *AuthorizationRequestBuilder {
	b.request.Display = display
	return b
}

func (b *AuthorizationRequestBuilder) Prompt(prompt ...string) *AuthorizationRequestBuilder {
	b.request.Prompt = prompt
	return b
}

func (b *AuthorizationRequestBuilder) UILocales(locales ...language.Tag) *AuthorizationRequestBuilder {
	b.request.UILocales = locales
	return b
}

func (b *AuthorizationRequestBuilder) LoginHint(hint string) *AuthorizationRequestBuilder {
	b.request.LoginHint = hint
	return b
}

func (b *AuthorizationRequestBuilder) ResponseMode(mode oauth.ResponseMode) *AuthorizationRequestBuilder {
	b.request.ResponseMode = mode
	return b
}

// CodeVerifier sets the PKCE verifier and derives its S256 challenge.
func (b *AuthorizationRequestBuilder) CodeVerifier(verifier string) *AuthorizationRequestBuilder {
	return b.CodeVerifierWithMethod(verifier, oauth.CodeChallengeMethodS256)
}

// CodeVerifierWithMethod sets the PKCE verifier with an explicit
// challenge method. "plain" must be requested through here.
func (b *AuthorizationRequestBuilder) CodeVerifierWithMethod(verifier string, method oauth.CodeChallengeMethod) *AuthorizationRequestBuilder {
	challenge, err := oauth.DeriveCodeChallenge(verifier, method)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.request.CodeVerifier = verifier
	b.request.CodeChallenge = challenge
	b.request.CodeChallengeMethod = method
	return b
}

func (b *AuthorizationRequestBuilder) AdditionalParameters(params map[string]string) *AuthorizationRequestBuilder {
	if err := checkAdditionalParameters(params, authorizationReservedParams); err != nil {
		b.setErr(err)
		return b
	}
	b.request.AdditionalParameters = gu.MapCopy(params)
	return b
}

func (b *AuthorizationRequestBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build validates the request and finalizes it. State and nonce are
// generated when not explicitly supplied.
func (b *AuthorizationRequestBuilder) Build() (*AuthorizationRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.request.Configuration == nil || b.request.Configuration.AuthorizationEndpoint == "" {
		return nil, oauth.ErrInvalidState().WithDescription("authorization endpoint not configured")
	}
	if b.request.ClientID == "" {
		return nil, oauth.ErrInvalidState().WithDescription("client id missing")
	}
	if b.request.ResponseType == "" {
		return nil, oauth.ErrInvalidState().WithDescription("response type missing")
	}
	if b.request.RedirectURI == "" {
		return nil, oauth.ErrInvalidState().WithDescription("redirect URI missing")
	}
	if err := checkScopes(b.request.Scopes); err != nil {
		return nil, err
	}
	if b.request.State == "" {
		state, err := GenerateState()
		if err != nil {
			return nil, err
		}
		b.request.State = state
	}
	if b.request.Nonce == "" {
		nonce, err := GenerateNonce()
		if err != nil {
			return nil, err
		}
		b.request.Nonce = nonce
	}

	request := b.request
	request.Scopes = append(oauth.SpaceDelimitedArray(nil), b.request.Scopes...)
	request.Prompt = append(oauth.SpaceDelimitedArray(nil), b.request.Prompt...)
	request.UILocales = append(oauth.Locales(nil), b.request.UILocales...)
	request.AdditionalParameters = gu.MapCopy(b.request.AdditionalParameters)
	return &request, nil
}

func checkScopes(scopes oauth.SpaceDelimitedArray) error {
	for _, scope := range scopes {
		if scope == "" {
			return oauth.ErrInvalidArgument().WithDescription("scope elements must not be empty")
		}
	}
	return nil
}

// AuthorizationResponse is the success response of the authorization
// endpoint, matched to the request that produced it. The token fields
// are only present for implicit and hybrid response types.
type AuthorizationResponse struct {
	Request              *AuthorizationRequest     `json:"-"`
	State                string                    `json:"state,omitempty"`
	Code                 string                    `json:"code,omitempty"`
	AccessToken          string                    `json:"access_token,omitempty"`
	TokenType            string                    `json:"token_type,omitempty"`
	IDToken              string                    `json:"id_token,omitempty"`
	Scopes               oauth.SpaceDelimitedArray `json:"scope,omitempty"`
	ExpiresIn            uint64                    `json:"expires_in,omitempty"`
	AdditionalParameters map[string]string         `json:"additional_parameters,omitempty"`
}

// TokenExchangeRequest derives the token request for the next leg of
// the code flow, carrying over the authorization code, redirect URI
// and PKCE verifier from the original request, so the caller does not
// have to re-supply them.
func (r *AuthorizationResponse) TokenExchangeRequest(additionalParameters map[string]string) (*TokenRequest, error) {
	if r.Code == "" {
		return nil, oauth.ErrInvalidState().WithDescription("authorization response carries no code")
	}
	return NewTokenRequest(r.Request.Configuration, r.Request.ClientID).
		Code(r.Code).
		RedirectURI(r.Request.RedirectURI).
		CodeVerifier(r.Request.CodeVerifier).
		AdditionalParameters(additionalParameters).
		Build()
}

// IDTokenClaims parses the identity token of an implicit or hybrid
// response and verifies the nonce echo against the request.
// The signature is not verified here.
func (r *AuthorizationResponse) IDTokenClaims() (*oauth.IDTokenClaims, error) {
	if r.IDToken == "" {
		return nil, oauth.ErrInvalidState().WithDescription("response carries no id_token")
	}
	claims, err := oauth.ParseIDTokenClaims(r.IDToken)
	if err != nil {
		return nil, err
	}
	if err = oauth.CheckNonce(claims, r.Request.Nonce); err != nil {
		return nil, oauth.ErrMalformedToken().WithDescription("nonce check failed").WithParent(err)
	}
	return claims, nil
}
