package flow

import (
	"log/slog"
	"net/url"

	"github.com/muhlemmer/gu"
	httphelper "github.com/oauthkit/oauthkit/pkg/http"
	"github.com/oauthkit/oauthkit/pkg/oauth"
	"golang.org/x/text/language"
)

// EndSessionRequest is an RP initiated logout request according to
// https://openid.net/specs/openid-connect-rpinitiated-1_0.html#RPLogout
type EndSessionRequest struct {
	Configuration         *ServiceConfiguration `json:"configuration"`
	IDTokenHint           string                `json:"id_token_hint,omitempty"`
	LogoutHint            string                `json:"logout_hint,omitempty"`
	ClientID              string                `json:"client_id,omitempty"`
	PostLogoutRedirectURI string                `json:"post_logout_redirect_uri,omitempty"`
	State                 string                `json:"state,omitempty"`
	UILocales             oauth.Locales         `json:"ui_locales,omitempty"`
	AdditionalParameters  map[string]string     `json:"additional_parameters,omitempty"`
}

func (r *EndSessionRequest) kind() requestKind {
	return kindEndSession
}

func (r *EndSessionRequest) requestState() string {
	return r.State
}

func (r *EndSessionRequest) Parameters() (url.Values, error) {
	wire := struct {
		IDTokenHint           string        `schema:"id_token_hint,omitempty"`
		LogoutHint            string        `schema:"logout_hint,omitempty"`
		ClientID              string        `schema:"client_id,omitempty"`
		PostLogoutRedirectURI string        `schema:"post_logout_redirect_uri,omitempty"`
		State                 string        `schema:"state,omitempty"`
		UILocales             oauth.Locales `schema:"ui_locales,omitempty"`
	}{
		IDTokenHint:           r.IDTokenHint,
		LogoutHint:            r.LogoutHint,
		ClientID:              r.ClientID,
		PostLogoutRedirectURI: r.PostLogoutRedirectURI,
		State:                 r.State,
		UILocales:             r.UILocales,
	}
	values, err := httphelper.URLEncodeParams(wire, Encoder)
	if err != nil {
		return nil, err
	}
	return mergeAdditionalParameters(values, r.AdditionalParameters), nil
}

// URL returns the browser navigable end session URL.
func (r *EndSessionRequest) URL() (string, error) {
	return requestURL(r.Configuration.EndSessionEndpoint, r)
}

// ParseResponse matches the post logout redirect against this request.
// End session responses carry the state echo in the query.
func (r *EndSessionRequest) ParseResponse(redirect *url.URL) (*EndSessionResponse, error) {
	return r.parseResponse(redirect, slog.Default())
}

func (r *EndSessionRequest) parseResponse(redirect *url.URL, logger *slog.Logger) (*EndSessionResponse, error) {
	values := redirectValues(redirect, oauth.ResponseModeQuery, logger)
	state := values.Get("state")
	if state != r.State {
		return nil, oauth.ErrStateMismatch().WithDescription("response state does not match request state").WithState(state)
	}
	if errValue := values.Get("error"); errValue != "" {
		return nil, oauth.AuthorizationError(errValue, values.Get("error_description"), values.Get("error_uri")).WithState(state)
	}
	return &EndSessionResponse{
		Request:              r,
		State:                state,
		AdditionalParameters: collectAdditional(values, endSessionResponseParams),
	}, nil
}

var endSessionResponseParams = reserved(
	"state", "error", "error_description", "error_uri",
)

// EndSessionResponse confirms the post logout redirect of an
// [EndSessionRequest].
type EndSessionResponse struct {
	Request              *EndSessionRequest `json:"-"`
	State                string             `json:"state,omitempty"`
	AdditionalParameters map[string]string  `json:"additional_parameters,omitempty"`
}

// EndSessionRequestBuilder assembles an [EndSessionRequest].
type EndSessionRequestBuilder struct {
	request EndSessionRequest
	err     error
}

func NewEndSessionRequest(config *ServiceConfiguration) *EndSessionRequestBuilder {
	return &EndSessionRequestBuilder{
		request: EndSessionRequest{Configuration: config},
	}
}

func (b *EndSessionRequestBuilder) IDTokenHint(idToken string) *EndSessionRequestBuilder {
	b.request.IDTokenHint = idToken
	return b
}

func (b *EndSessionRequestBuilder) LogoutHint(hint string) *EndSessionRequestBuilder {
	b.request.LogoutHint = hint
	return b
}

func (b *EndSessionRequestBuilder) ClientID(clientID string) *EndSessionRequestBuilder {
	b.request.ClientID = clientID
	return b
}

func (b *EndSessionRequestBuilder) PostLogoutRedirectURI(uri string) *EndSessionRequestBuilder {
	b.request.PostLogoutRedirectURI = uri
	return b
}

// State sets an explicit state. When not called, Build generates one.
func (b *EndSessionRequestBuilder) State(state string) *EndSessionRequestBuilder {
	b.request.State = state
	return b
}

func (b *EndSessionRequestBuilder) UILocales(locales ...language.Tag) *EndSessionRequestBuilder {
	b.request.UILocales = locales
	return b
}

func (b *EndSessionRequestBuilder) AdditionalParameters(params map[string]string) *EndSessionRequestBuilder {
	if err := checkAdditionalParameters(params, endSessionReservedParams); err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.request.AdditionalParameters = gu.MapCopy(params)
	return b
}

func (b *EndSessionRequestBuilder) Build() (*EndSessionRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.request.Configuration == nil || b.request.Configuration.EndSessionEndpoint == "" {
		return nil, oauth.ErrInvalidState().WithDescription("end session endpoint not configured")
	}
	if b.request.State == "" {
		state, err := GenerateState()
		if err != nil {
			return nil, err
		}
		b.request.State = state
	}

	request := b.request
	request.AdditionalParameters = gu.MapCopy(b.request.AdditionalParameters)
	return &request, nil
}
