package flow

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/oauthkit/oauthkit/internal/otel"
	"github.com/oauthkit/oauthkit/pkg/oauth"
)

var Tracer = otel.Tracer("github.com/oauthkit/oauthkit/pkg/flow")

// Dispatcher routes redirect responses back to the requests that
// produced them. Requests go in through [Dispatcher.Register], the
// redirect the user agent returns with goes through
// [Dispatcher.DispatchRedirect].
type Dispatcher struct {
	store  *PendingRequestStore
	logger *slog.Logger
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for malformed redirect
// diagnostics.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher returns a dispatcher backed by the given store. A nil
// store gets a fresh in-memory one.
func NewDispatcher(store *PendingRequestStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		logger: slog.Default(),
	}
	if d.store == nil {
		d.store = NewPendingRequestStore()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the backing store.
func (d *Dispatcher) Store() *PendingRequestStore {
	return d.store
}

// redirectRequest is implemented by requests whose responses arrive
// through a redirect.
type redirectRequest interface {
	Request
	requestState() string
}

// Register stores the request for later correlation under its state
// value. The continuation is an opaque handle delivered back with the
// dispatched response; it may be nil. Only authorization and end
// session requests travel through redirects; anything else is
// rejected.
func (d *Dispatcher) Register(request Request, continuation any) (*PendingRequest, error) {
	r, ok := request.(redirectRequest)
	if !ok {
		return nil, oauth.ErrInvalidArgument().WithDescription("request kind %q has no redirect response", request.kind())
	}
	return d.store.Register(r.requestState(), r, continuation)
}

// DispatchResult is the outcome of a dispatched redirect. Exactly one
// of the response fields is set, matching the kind of the consumed
// request.
type DispatchResult struct {
	Pending               *PendingRequest
	AuthorizationResponse *AuthorizationResponse
	EndSessionResponse    *EndSessionResponse
}

// DispatchRedirect consumes the pending request matching the
// redirect's state and parses the redirect against it. The state is
// consumed even when parsing fails; a redirect gets exactly one
// dispatch attempt.
//
// A redirect without a state parameter cannot be correlated and yields
// a not found error. A state mismatch between redirect and request is
// reported as such even when the redirect also carries an error
// parameter.
func (d *Dispatcher) DispatchRedirect(ctx context.Context, redirect *url.URL) (*DispatchResult, error) {
	ctx, span := Tracer.Start(ctx, "DispatchRedirect")
	defer span.End()

	if redirect == nil {
		return nil, oauth.ErrInvalidArgument().WithDescription("redirect URL must not be nil")
	}
	logger := loggerFromContext(ctx, d.logger)
	state := redirectState(redirect, logger)
	if state == "" {
		return nil, oauth.ErrNotFound().WithDescription("redirect carries no state")
	}
	pending, err := d.store.Consume(state)
	if err != nil {
		return nil, err
	}
	logger.Debug("dispatching redirect", "pending_id", pending.ID, "kind", string(pending.Request.kind()))
	result := &DispatchResult{Pending: pending}
	switch request := pending.Request.(type) {
	case *AuthorizationRequest:
		result.AuthorizationResponse, err = request.parseResponse(redirect, logger)
	case *EndSessionRequest:
		result.EndSessionResponse, err = request.parseResponse(redirect, logger)
	default:
		err = oauth.ErrInvalidState().WithDescription("pending request kind %q cannot parse a redirect", pending.Request.kind())
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// redirectState extracts the state parameter from query or fragment,
// depending on where the response travelled.
func redirectState(redirect *url.URL, logger *slog.Logger) string {
	if state := redirect.Query().Get("state"); state != "" {
		return state
	}
	if redirect.Fragment == "" {
		return ""
	}
	return parseFragment(redirect.Fragment, logger).Get("state")
}
