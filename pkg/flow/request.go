package flow

import (
	"encoding/json"
	"net/url"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// Request is the closed union of the four request types. A request is
// immutable once built; Parameters is pure over its fields, so calling
// it twice yields identical values.
type Request interface {
	// Parameters returns the canonical wire parameters of the request,
	// additional parameters included.
	Parameters() (url.Values, error)

	kind() requestKind
}

type requestKind string

const (
	kindAuthorization       requestKind = "authorization"
	kindEndSession          requestKind = "end_session"
	kindDeviceAuthorization requestKind = "device_authorization"
	kindToken               requestKind = "token"
)

// requestEnvelope is the stable serialized form used for cross process
// handoff: an explicit type tag plus the request document. Unknown
// additional parameters round trip opaquely inside the request.
type requestEnvelope struct {
	Type    requestKind     `json:"request_type"`
	Request json.RawMessage `json:"request"`
}

// MarshalRequest serializes any request into the tagged envelope.
func MarshalRequest(request Request) ([]byte, error) {
	doc, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	return json.Marshal(requestEnvelope{
		Type:    request.kind(),
		Request: doc,
	})
}

// UnmarshalRequest deserializes a tagged envelope back into its
// concrete request type.
func UnmarshalRequest(data []byte) (Request, error) {
	var envelope requestEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, oauth.ErrInvalidArgument().WithDescription("cannot decode request envelope").WithParent(err)
	}
	var request Request
	switch envelope.Type {
	case kindAuthorization:
		request = new(AuthorizationRequest)
	case kindEndSession:
		request = new(EndSessionRequest)
	case kindDeviceAuthorization:
		request = new(DeviceAuthorizationRequest)
	case kindToken:
		request = new(TokenRequest)
	default:
		return nil, oauth.ErrInvalidArgument().WithDescription("unknown request type %q", envelope.Type)
	}
	if err := json.Unmarshal(envelope.Request, request); err != nil {
		return nil, oauth.ErrInvalidArgument().WithDescription("cannot decode %s request", envelope.Type).WithParent(err)
	}
	return request, nil
}
