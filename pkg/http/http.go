package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

var DefaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

type Decoder interface {
	Decode(dst any, src map[string][]string) error
}

type Encoder interface {
	Encode(src any, dst map[string][]string) error
}

type FormAuthorization func(url.Values)
type RequestAuthorization func(*http.Request)

func AuthorizeBasic(user, password string) RequestAuthorization {
	return func(req *http.Request) {
		req.SetBasicAuth(url.QueryEscape(user), url.QueryEscape(password))
	}
}

// FormRequest builds the outbound POST request for a token, device
// authorization or end session endpoint: the request struct is encoded
// into an urlencoded body and the optional authFn injects client
// authentication into either the form or the request headers.
func FormRequest(ctx context.Context, endpoint string, request any, encoder Encoder, authFn any) (*http.Request, error) {
	form := url.Values{}
	if err := encoder.Encode(request, form); err != nil {
		return nil, err
	}
	if fn, ok := authFn.(FormAuthorization); ok {
		fn(form)
	}
	body := strings.NewReader(form.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if fn, ok := authFn.(RequestAuthorization); ok {
		fn(req)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// HttpRequest performs the request and decodes a JSON success body into
// response. Transport failures wrap into a network error, non-200
// responses decode into the structured token error when the body
// carries one.
func HttpRequest(client *http.Client, req *http.Request, response any) error {
	resp, err := client.Do(req)
	if err != nil {
		return oauth.ErrNetwork().WithDescription("request to %s failed", req.URL.Host).WithParent(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return oauth.ErrNetwork().WithDescription("unable to read response body").WithParent(err)
	}

	if resp.StatusCode != http.StatusOK {
		var wire struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
			ErrorURI    string `json:"error_uri"`
		}
		err = json.Unmarshal(body, &wire)
		if err != nil || wire.Error == "" {
			return fmt.Errorf("http status not ok: %s %s", resp.Status, body)
		}
		return oauth.TokenError(wire.Error, wire.Description, wire.ErrorURI)
	}

	err = json.Unmarshal(body, response)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response: %v %s", err, body)
	}
	return nil
}

// URLEncodeParams encodes the struct into url.Values using the
// provided encoder.
func URLEncodeParams(resp any, encoder Encoder) (url.Values, error) {
	values := make(map[string][]string)
	err := encoder.Encode(resp, values)
	if err != nil {
		return nil, err
	}
	return values, nil
}
