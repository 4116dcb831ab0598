package flow

import (
	"net/http"

	httphelper "github.com/oauthkit/oauthkit/pkg/http"
	"github.com/oauthkit/oauthkit/pkg/oauth"
)

const requestCookieName = "oauthkit_request"

// CookieCorrelator correlates redirects with the requests that
// produced them through an authenticated cookie instead of a server
// side store. It serves HTTP hosts that must survive a process restart
// between issuing a request and receiving its redirect: the serialized
// request travels with the user agent, the host keeps nothing.
//
// Fragment response modes cannot be dispatched this way, the user
// agent never sends the fragment to the server.
type CookieCorrelator struct {
	cookies *httphelper.CookieHandler
}

func NewCookieCorrelator(cookies *httphelper.CookieHandler) (*CookieCorrelator, error) {
	if cookies == nil {
		return nil, oauth.ErrInvalidArgument().WithDescription("cookie handler must not be nil")
	}
	return &CookieCorrelator{cookies: cookies}, nil
}

// Bind writes the request into the correlation cookie on the response
// that sends the user agent to the authorization server. Only requests
// answered through a redirect can be bound.
func (c *CookieCorrelator) Bind(w http.ResponseWriter, request Request) error {
	if _, ok := request.(redirectRequest); !ok {
		return oauth.ErrInvalidArgument().WithDescription("request kind %q has no redirect response", request.kind())
	}
	doc, err := MarshalRequest(request)
	if err != nil {
		return err
	}
	return c.cookies.SetCookie(w, requestCookieName, string(doc))
}

// Dispatch restores the bound request from the correlation cookie,
// clears the cookie and parses the redirect against the request. As
// with the store backed dispatcher, a redirect gets exactly one
// dispatch attempt and a state mismatch is reported before any error
// parameter the redirect may carry.
func (c *CookieCorrelator) Dispatch(w http.ResponseWriter, r *http.Request) (*DispatchResult, error) {
	value, err := c.cookies.CheckCookie(r, requestCookieName)
	if err != nil {
		return nil, oauth.ErrNotFound().WithDescription("no request bound to this user agent").WithParent(err)
	}
	c.cookies.DeleteCookie(w, requestCookieName)
	request, err := UnmarshalRequest([]byte(value))
	if err != nil {
		return nil, err
	}
	logger := loggerFromContext(r.Context(), nil)
	result := new(DispatchResult)
	switch request := request.(type) {
	case *AuthorizationRequest:
		result.AuthorizationResponse, err = request.parseResponse(r.URL, logger)
	case *EndSessionRequest:
		result.EndSessionResponse, err = request.parseResponse(r.URL, logger)
	default:
		err = oauth.ErrInvalidState().WithDescription("bound request kind %q cannot parse a redirect", request.kind())
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
