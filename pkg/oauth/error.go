package oauth

import (
	"errors"
	"fmt"
	"log/slog"
)

type errorType string

const (
	InvalidRequest           errorType = "invalid_request"
	InvalidScope             errorType = "invalid_scope"
	InvalidClient            errorType = "invalid_client"
	InvalidGrant             errorType = "invalid_grant"
	UnauthorizedClient       errorType = "unauthorized_client"
	UnsupportedGrantType     errorType = "unsupported_grant_type"
	UnsupportedResponseType  errorType = "unsupported_response_type"
	AccessDenied             errorType = "access_denied"
	ServerError              errorType = "server_error"
	TemporarilyUnavailable   errorType = "temporarily_unavailable"
	InteractionRequired      errorType = "interaction_required"
	LoginRequired            errorType = "login_required"
	AccountSelectionRequired errorType = "account_selection_required"
	ConsentRequired          errorType = "consent_required"
	RequestNotSupported      errorType = "request_not_supported"

	// device flow errors, RFC 8628 section 3.5
	AuthorizationPending errorType = "authorization_pending"
	SlowDown             errorType = "slow_down"
	ExpiredToken         errorType = "expired_token"

	// Unknown is used when a response carries an error string
	// which is not defined for the endpoint it came from.
	Unknown errorType = "unknown"
)

// ErrorKind classifies an [Error] into the category the caller needs for
// its retry/abort decision. Caller-misuse kinds (invalid argument,
// invalid state) are always fatal to the current call; protocol and
// security kinds are reported as values; network errors pass through
// from the transport collaborator.
type ErrorKind string

const (
	// KindAuthorization covers error responses from the authorization
	// endpoint as defined in RFC 6749, section 4.1.2.1.
	KindAuthorization ErrorKind = "authorization"

	// KindToken covers error responses from the token endpoint
	// as defined in RFC 6749, section 5.2.
	KindToken ErrorKind = "token"

	// KindNetwork wraps transport level failures, opaque to this layer.
	KindNetwork ErrorKind = "network"

	// KindMalformedToken indicates an identity token which could not be
	// decoded or is structurally invalid.
	KindMalformedToken ErrorKind = "malformed_token"

	// KindInvalidState indicates builder misuse, such as a missing
	// mandatory field at build time.
	KindInvalidState ErrorKind = "invalid_state"

	// KindInvalidArgument indicates bad caller input.
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindStateMismatch indicates a response whose state does not equal
	// the state of the request it claims to answer. This is security
	// relevant (possible redirect injection) and must never be
	// downgraded to a generic failure.
	KindStateMismatch ErrorKind = "state_mismatch"

	// KindNotFound indicates a state correlation miss: no pending
	// request is registered under the presented state token.
	KindNotFound ErrorKind = "not_found"
)

// authorizationErrorTypes are the error codes defined for the
// authorization endpoint in RFC 6749, section 4.1.2.1 and
// OpenID Connect Core, section 3.1.2.6.
var authorizationErrorTypes = map[errorType]bool{
	InvalidRequest:           true,
	UnauthorizedClient:       true,
	AccessDenied:             true,
	UnsupportedResponseType:  true,
	InvalidScope:             true,
	ServerError:              true,
	TemporarilyUnavailable:   true,
	InteractionRequired:      true,
	LoginRequired:            true,
	AccountSelectionRequired: true,
	ConsentRequired:          true,
	RequestNotSupported:      true,
}

// tokenErrorTypes are the error codes defined for the token endpoint in
// RFC 6749, section 5.2 and RFC 8628, section 3.5.
var tokenErrorTypes = map[errorType]bool{
	InvalidRequest:       true,
	InvalidClient:        true,
	InvalidGrant:         true,
	UnauthorizedClient:   true,
	UnsupportedGrantType: true,
	InvalidScope:         true,
	AuthorizationPending: true,
	SlowDown:             true,
	ExpiredToken:         true,
	AccessDenied:         true,
	ServerError:          true,
}

var (
	ErrInvalidArgument = func() *Error {
		return &Error{Kind: KindInvalidArgument}
	}
	ErrInvalidState = func() *Error {
		return &Error{Kind: KindInvalidState}
	}
	ErrStateMismatch = func() *Error {
		return &Error{Kind: KindStateMismatch}
	}
	ErrNotFound = func() *Error {
		return &Error{Kind: KindNotFound}
	}
	ErrMalformedToken = func() *Error {
		return &Error{Kind: KindMalformedToken}
	}
	ErrNetwork = func() *Error {
		return &Error{Kind: KindNetwork}
	}
	ErrAccessDenied = func() *Error {
		return &Error{
			Kind:        KindAuthorization,
			ErrorType:   AccessDenied,
			Description: "The authorization request was denied.",
		}
	}
	ErrServerError = func() *Error {
		return &Error{
			Kind:      KindToken,
			ErrorType: ServerError,
		}
	}
	ErrAuthorizationPending = func() *Error {
		return &Error{
			Kind:        KindToken,
			ErrorType:   AuthorizationPending,
			Description: "The client SHOULD repeat the access token request to the token endpoint, after interval from device authorization response.",
		}
	}
	ErrSlowDown = func() *Error {
		return &Error{
			Kind:        KindToken,
			ErrorType:   SlowDown,
			Description: "Polling should continue, but the interval MUST be increased by 5 seconds for this and all subsequent requests.",
		}
	}
	ErrExpiredToken = func() *Error {
		return &Error{
			Kind:        KindToken,
			ErrorType:   ExpiredToken,
			Description: "The \"device_code\" has expired.",
		}
	}
)

// Error is the structured error of the protocol engine. For wire errors
// (authorization or token endpoint) ErrorType carries the normalized
// error code and RawError the code exactly as received.
type Error struct {
	Parent      error     `json:"-" schema:"-"`
	Kind        ErrorKind `json:"-" schema:"-"`
	ErrorType   errorType `json:"error" schema:"error"`
	RawError    string    `json:"-" schema:"-"`
	Description string    `json:"error_description,omitempty" schema:"error_description,omitempty"`
	ErrorURI    string    `json:"error_uri,omitempty" schema:"error_uri,omitempty"`
	State       string    `json:"state,omitempty" schema:"state,omitempty"`
}

func (e *Error) Error() string {
	message := "Kind=" + string(e.Kind)
	if e.ErrorType != "" {
		message += " ErrorType=" + string(e.ErrorType)
	}
	if e.Description != "" {
		message += " Description=" + e.Description
	}
	if e.Parent != nil {
		message += " Parent=" + e.Parent.Error()
	}
	return message
}

func (e *Error) Unwrap() error {
	return e.Parent
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind &&
		(e.ErrorType == t.ErrorType || t.ErrorType == "") &&
		(e.Description == t.Description || t.Description == "") &&
		(e.State == t.State || t.State == "")
}

func (e *Error) WithParent(err error) *Error {
	e.Parent = err
	return e
}

func (e *Error) WithDescription(desc string, args ...any) *Error {
	e.Description = fmt.Sprintf(desc, args...)
	return e
}

func (e *Error) WithState(state string) *Error {
	e.State = state
	return e
}

// AuthorizationError builds the error for an authorization endpoint
// response. Codes outside RFC 6749, section 4.1.2.1 (and the OIDC Core
// additions) normalize to [Unknown], the raw code is retained.
func AuthorizationError(code, description, uri string) *Error {
	e := &Error{
		Kind:        KindAuthorization,
		ErrorType:   errorType(code),
		RawError:    code,
		Description: description,
		ErrorURI:    uri,
	}
	if !authorizationErrorTypes[e.ErrorType] {
		e.ErrorType = Unknown
	}
	return e
}

// TokenError builds the error for a token or device authorization
// endpoint response. Codes outside RFC 6749, section 5.2 and
// RFC 8628, section 3.5 normalize to [Unknown].
func TokenError(code, description, uri string) *Error {
	e := &Error{
		Kind:        KindToken,
		ErrorType:   errorType(code),
		RawError:    code,
		Description: description,
		ErrorURI:    uri,
	}
	if !tokenErrorTypes[e.ErrorType] {
		e.ErrorType = Unknown
	}
	return e
}

// DefaultToServerError checks if the error is an Error,
// if not the provided error will be wrapped into a ServerError.
func DefaultToServerError(err error, description string) *Error {
	oauthErr := new(Error)
	if ok := errors.As(err, &oauthErr); !ok {
		oauthErr.Kind = KindToken
		oauthErr.ErrorType = ServerError
		oauthErr.Description = description
		oauthErr.Parent = err
	}
	return oauthErr
}

// LogLevel returns a suggested log level:
// slog.LevelError for server errors and security relevant conditions,
// slog.LevelInfo for expected polling states, slog.LevelWarn for the rest.
func (e *Error) LogLevel() slog.Level {
	level := slog.LevelWarn
	if e.ErrorType == ServerError || e.Kind == KindStateMismatch {
		level = slog.LevelError
	}
	if e.ErrorType == AuthorizationPending {
		level = slog.LevelInfo
	}
	return level
}

// LogValue implements [slog.LogValuer].
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 6)
	if e.Parent != nil {
		attrs = append(attrs, slog.Any("parent", e.Parent))
	}
	if e.Kind != "" {
		attrs = append(attrs, slog.String("kind", string(e.Kind)))
	}
	if e.ErrorType != "" {
		attrs = append(attrs, slog.String("type", string(e.ErrorType)))
	}
	if e.Description != "" {
		attrs = append(attrs, slog.String("description", e.Description))
	}
	if e.State != "" {
		attrs = append(attrs, slog.String("state", e.State))
	}
	return slog.GroupValue(attrs...)
}
