package flow

// ResponseOption tweaks response parsing. The zero configuration uses
// the system clock.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	clock Clock
}

func newResponseOptions(opts []ResponseOption) *responseOptions {
	options := &responseOptions{
		clock: systemClock,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithClock sets the clock used to compute absolute expirations from
// relative lifetimes in responses.
func WithClock(clock Clock) ResponseOption {
	return func(o *responseOptions) {
		o.clock = clock
	}
}
