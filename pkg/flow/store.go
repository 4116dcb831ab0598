package flow

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oauthkit/oauthkit/pkg/oauth"
)

// PendingRequest is a registered request awaiting its redirect
// response, keyed by its state value.
type PendingRequest struct {
	// ID uniquely identifies the registration, independent of the
	// state value the authorization server echoes back.
	ID    string
	State string
	// Continuation is an opaque handle the caller attached at
	// registration, delivered back exactly once with the response.
	Continuation any
	Request      Request
	RegisteredAt time.Time
}

// PendingRequestStore correlates redirect responses with the requests
// that initiated them. It is safe for concurrent use and is the only
// shared mutable component of the package.
//
// Consumption is single use: a state value yields its request exactly
// once, concurrent consumers racing on the same state see exactly one
// winner.
type PendingRequestStore struct {
	mu      sync.Mutex
	pending map[string]*PendingRequest
	clock   Clock
}

// NewPendingRequestStore returns an empty in-memory store.
func NewPendingRequestStore() *PendingRequestStore {
	return &PendingRequestStore{
		pending: make(map[string]*PendingRequest),
		clock:   systemClock,
	}
}

// Register stores the request under its state value, together with an
// opaque continuation the caller wants back when the response arrives.
// Registering a state that is already pending replaces the previous
// entry, the old request can no longer be correlated.
func (s *PendingRequestStore) Register(state string, request Request, continuation any) (*PendingRequest, error) {
	if state == "" {
		return nil, oauth.ErrInvalidArgument().WithDescription("state must not be empty")
	}
	if request == nil {
		return nil, oauth.ErrInvalidArgument().WithDescription("request must not be nil")
	}
	entry := &PendingRequest{
		ID:           uuid.NewString(),
		State:        state,
		Continuation: continuation,
		Request:      request,
		RegisteredAt: s.clock(),
	}
	s.mu.Lock()
	s.pending[state] = entry
	s.mu.Unlock()
	return entry, nil
}

// Consume removes and returns the request registered under state.
// An unknown or already consumed state yields a not found error.
func (s *PendingRequestStore) Consume(state string) (*PendingRequest, error) {
	s.mu.Lock()
	entry, ok := s.pending[state]
	if ok {
		delete(s.pending, state)
	}
	s.mu.Unlock()
	if !ok {
		return nil, oauth.ErrNotFound().WithDescription("no pending request for state")
	}
	return entry, nil
}

// Discard removes the request registered under state without
// returning it. Discarding an unknown state is a no-op.
func (s *PendingRequestStore) Discard(state string) {
	s.mu.Lock()
	delete(s.pending, state)
	s.mu.Unlock()
}

// Len returns the number of pending requests.
func (s *PendingRequestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
