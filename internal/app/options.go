package service

import (
	"github.com/okian/taikai/internal/adapters/storage"
	"github.com/okian/taikai/internal/domain/scoring"
	"github.com/okian/taikai/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackend sets the storage backend and the name reported in stats.
func WithBackend(name string, b storage.Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.backend = b
			s.backendName = name
		}
	}
}

// WithQueueSize sets the maximum number of pending mutations per resource.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithPublishBuffer sets how many notifications may wait for fan-out.
func WithPublishBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.publishBuffer = size
		}
	}
}

// WithAutoRecompute controls whether an accepted ledger change recomputes the roster.
func WithAutoRecompute(enabled bool) Option {
	return func(s *Service) {
		s.autoRecompute = enabled
	}
}

// WithUnknownTeamPolicy sets how recompute treats ledger teams missing from the roster.
func WithUnknownTeamPolicy(p scoring.Policy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
