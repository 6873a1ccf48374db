package engine

import (
	"log/slog"

	"github.com/roach88/stepwise/internal/broker"
	"github.com/roach88/stepwise/internal/ir"
)

// Option configures a strategy.
type Option func(*config)

type config struct {
	workers    int
	chunkSize  int
	bufferSize int
	start      ir.Time
	logger     *slog.Logger
}

func newConfig(opts []Option) config {
	c := config{
		chunkSize:  broker.DefaultChunkSize,
		bufferSize: broker.DefaultBufferSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithWorkers sets the worker pool size of Parallel and Distributed.
//
// Default: GOMAXPROCS. Ignored by Serial.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithChunkSize sets how many entities make up one unit of pulled work.
//
// Default: 128 (broker.DefaultChunkSize).
func WithChunkSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithBufferSize sets the per-worker buffering threshold for outgoing
// messages.
//
// Default: 256 (broker.DefaultBufferSize).
func WithBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithStart sets the start time of the first timestep. Default: 0.
func WithStart(t ir.Time) Option {
	return func(c *config) {
		c.start = t
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
