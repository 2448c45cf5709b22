package worker

import (
	"github.com/okian/earnsignal/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithSize sets the number of concurrent workers.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithPolicy sets how ticker failures affect the run.
func WithPolicy(policy Policy) Option {
	return func(p *Pool) { p.policy = policy }
}

// WithLogger sets a custom logger for the pool.
func WithLogger(logger logger.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}
