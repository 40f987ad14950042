package syncstate

import (
	"time"

	"github.com/rs/zerolog"
)

// Option is a set of configurable parameters. If left empty, defaults
// will be used
type Option func(s *State)

// WithLogger sets the logger that receives reported conditions.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *State) {
		s.logger = logger
	}
}

// WithMetrics records refresh outcomes and collection sizes.
func WithMetrics(m *Metrics) Option {
	return func(s *State) {
		s.metrics = m
	}
}

// WithBroadcaster relays every local append to peers.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *State) {
		s.broadcaster = b
	}
}

// WithBroadcastTimeout bounds each relay of a local append.
func WithBroadcastTimeout(d time.Duration) Option {
	return func(s *State) {
		s.broadcastTimeout = d
	}
}

// WithRefreshTimeout bounds each registry round trip of a refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *State) {
		s.refreshTimeout = d
	}
}

// WithClock overrides the time source used for Status.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		s.now = now
	}
}

const (
	DefaultBroadcastTimeout = 10 * time.Second
	DefaultRefreshTimeout   = 30 * time.Second
)
