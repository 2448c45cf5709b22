package service

import (
	"time"

	"github.com/okian/earnsignal/internal/adapters/repository"
	"github.com/okian/earnsignal/internal/app/pipeline"
	"github.com/okian/earnsignal/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDataSource replaces the data-service client built from configuration.
func WithDataSource(src DataSource) Option {
	return func(s *Service) {
		if src != nil {
			s.data = src
		}
	}
}

// WithAnalyst replaces the AI analyst built from configuration.
func WithAnalyst(a pipeline.Analyst) Option {
	return func(s *Service) {
		if a != nil {
			s.analyst = a
		}
	}
}

// WithStore sets the snapshot store the status API reads.
func WithStore(store *repository.SnapshotStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
