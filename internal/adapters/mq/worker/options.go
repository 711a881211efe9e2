// Package worker runs queued mutations, one serial worker per resource.
package worker

import (
	"time"

	"github.com/okian/taikai/pkg/logger"
)

// Option applies a configuration option to an InMemoryWorker or Pool.
type Option func(*settings)

type settings struct {
	name           string
	logger         logger.Logger
	metricsRefresh time.Duration
}

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsInterval sets how often the pool refreshes queue depth gauges.
func WithMetricsInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.metricsRefresh = d
		}
	}
}
