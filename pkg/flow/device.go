package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/muhlemmer/gu"
	httphelper "github.com/oauthkit/oauthkit/pkg/http"
	"github.com/oauthkit/oauthkit/pkg/oauth"
)

const defaultPollInterval = 5 * time.Second

// DeviceAuthorizationRequest starts the device authorization grant
// according to RFC 8628, section 3.1.
type DeviceAuthorizationRequest struct {
	Configuration        *ServiceConfiguration     `json:"configuration"`
	ClientID             string                    `json:"client_id"`
	Scopes               oauth.SpaceDelimitedArray `json:"scope,omitempty"`
	AdditionalParameters map[string]string         `json:"additional_parameters,omitempty"`
}

func (r *DeviceAuthorizationRequest) kind() requestKind {
	return kindDeviceAuthorization
}

// Parameters returns the canonical device authorization request body.
func (r *DeviceAuthorizationRequest) Parameters() (url.Values, error) {
	wire := oauth.DeviceAuthorizationRequest{
		ClientID: r.ClientID,
		Scopes:   r.Scopes,
	}
	values, err := httphelper.URLEncodeParams(wire, Encoder)
	if err != nil {
		return nil, err
	}
	return mergeAdditionalParameters(values, r.AdditionalParameters), nil
}

// HTTPRequest assembles the outbound POST for the device authorization
// endpoint.
func (r *DeviceAuthorizationRequest) HTTPRequest(ctx context.Context, auth ClientAuthentication) (*http.Request, error) {
	if auth == nil {
		auth = NoneAuthentication{}
	}
	form, err := r.Parameters()
	if err != nil {
		return nil, err
	}
	return formPost(ctx, r.Configuration.DeviceAuthorizationEndpoint, form, auth, r.ClientID)
}

// Exchange performs the device authorization request and parses the
// response.
func (r *DeviceAuthorizationRequest) Exchange(ctx context.Context, auth ClientAuthentication, client *http.Client, opts ...ResponseOption) (*DeviceAuthorizationResponse, error) {
	ctx, span := Tracer.Start(ctx, "DeviceAuthorization")
	defer span.End()

	if client == nil {
		client = httphelper.DefaultHTTPClient
	}
	req, err := r.HTTPRequest(ctx, auth)
	if err != nil {
		return nil, err
	}
	var wire oauth.DeviceAuthorizationResponse
	if err := httphelper.HttpRequest(client, req, &wire); err != nil {
		return nil, err
	}
	return r.response(&wire, newResponseOptions(opts).clock), nil
}

// ParseResponse parses a device authorization endpoint body. The
// issuance time is taken from the clock so the code expiration can be
// evaluated later against the same clock.
func (r *DeviceAuthorizationRequest) ParseResponse(body []byte, opts ...ResponseOption) (*DeviceAuthorizationResponse, error) {
	wire := new(oauth.DeviceAuthorizationResponse)
	if err := unmarshalDeviceBody(body, wire); err != nil {
		return nil, err
	}
	return r.response(wire, newResponseOptions(opts).clock), nil
}

func unmarshalDeviceBody(body []byte, wire *oauth.DeviceAuthorizationResponse) error {
	var failure struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		ErrorURI    string `json:"error_uri"`
	}
	if err := json.Unmarshal(body, &failure); err != nil {
		return fmt.Errorf("device authorization response is not valid JSON: %w", err)
	}
	if failure.Error != "" {
		return oauth.TokenError(failure.Error, failure.Description, failure.ErrorURI)
	}
	if err := json.Unmarshal(body, wire); err != nil {
		return fmt.Errorf("cannot decode device authorization response: %w", err)
	}
	if wire.DeviceCode == "" {
		return oauth.ErrInvalidState().WithDescription("device authorization response carries no device_code")
	}
	return nil
}

func (r *DeviceAuthorizationRequest) response(wire *oauth.DeviceAuthorizationResponse, clock Clock) *DeviceAuthorizationResponse {
	response := &DeviceAuthorizationResponse{
		Request:                 r,
		DeviceCode:              wire.DeviceCode,
		UserCode:                wire.UserCode,
		VerificationURI:         wire.VerificationURI,
		VerificationURIComplete: wire.VerificationURIComplete,
		ExpiresIn:               wire.ExpiresIn,
		Interval:                wire.Interval,
		IssuedAt:                clock(),
		clock:                   clock,
	}
	return response
}

// DeviceAuthorizationResponse is a device authorization response
// according to RFC 8628, section 3.2, matched to the request that
// produced it.
type DeviceAuthorizationResponse struct {
	Request                 *DeviceAuthorizationRequest `json:"-"`
	DeviceCode              string                      `json:"device_code"`
	UserCode                string                      `json:"user_code"`
	VerificationURI         string                      `json:"verification_uri"`
	VerificationURIComplete string                      `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int                         `json:"expires_in"`
	Interval                int                         `json:"interval,omitempty"`
	IssuedAt                time.Time                   `json:"issued_at"`

	clock Clock
}

func (r *DeviceAuthorizationResponse) now() time.Time {
	if r.clock == nil {
		return time.Now()
	}
	return r.clock()
}

// CodeExpirationTime returns the instant at which the device code
// expires.
func (r *DeviceAuthorizationResponse) CodeExpirationTime() time.Time {
	return r.IssuedAt.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// HasCodeExpired reports whether the device code may no longer be
// exchanged. A code exactly at its expiration instant counts as
// expired.
func (r *DeviceAuthorizationResponse) HasCodeExpired() bool {
	return !r.now().Before(r.CodeExpirationTime())
}

// PollInterval returns the interval to wait between token requests,
// defaulting to 5 seconds when the authorization server did not name
// one.
func (r *DeviceAuthorizationResponse) PollInterval() time.Duration {
	if r.Interval <= 0 {
		return defaultPollInterval
	}
	return time.Duration(r.Interval) * time.Second
}

// TokenRequest derives the token request which exchanges the device
// code of this response.
func (r *DeviceAuthorizationResponse) TokenRequest(additionalParameters map[string]string) (*TokenRequest, error) {
	return NewTokenRequest(r.Request.Configuration, r.Request.ClientID).
		GrantType(oauth.GrantTypeDeviceCode).
		DeviceCode(r.DeviceCode).
		AdditionalParameters(additionalParameters).
		Build()
}

// DeviceAuthorizationRequestBuilder assembles a
// [DeviceAuthorizationRequest].
type DeviceAuthorizationRequestBuilder struct {
	request DeviceAuthorizationRequest
	err     error
}

func NewDeviceAuthorizationRequest(config *ServiceConfiguration, clientID string) *DeviceAuthorizationRequestBuilder {
	return &DeviceAuthorizationRequestBuilder{
		request: DeviceAuthorizationRequest{
			Configuration: config,
			ClientID:      clientID,
		},
	}
}

func (b *DeviceAuthorizationRequestBuilder) Scopes(scopes ...string) *DeviceAuthorizationRequestBuilder {
	b.request.Scopes = scopes
	return b
}

func (b *DeviceAuthorizationRequestBuilder) AdditionalParameters(params map[string]string) *DeviceAuthorizationRequestBuilder {
	if err := checkAdditionalParameters(params, deviceAuthorizationReservedParams); err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.request.AdditionalParameters = gu.MapCopy(params)
	return b
}

func (b *DeviceAuthorizationRequestBuilder) Build() (*DeviceAuthorizationRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.request.Configuration == nil || b.request.Configuration.DeviceAuthorizationEndpoint == "" {
		return nil, oauth.ErrInvalidState().WithDescription("device authorization endpoint not configured")
	}
	if b.request.ClientID == "" {
		return nil, oauth.ErrInvalidState().WithDescription("client id missing")
	}
	if err := checkScopes(b.request.Scopes); err != nil {
		return nil, err
	}

	request := b.request
	request.Scopes = append(oauth.SpaceDelimitedArray(nil), b.request.Scopes...)
	request.AdditionalParameters = gu.MapCopy(b.request.AdditionalParameters)
	return &request, nil
}
