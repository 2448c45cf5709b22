package cache

import "github.com/okian/earnsignal/pkg/logger"

// Option configures a store.
type Option func(*options)

type options struct {
	namespace string
	logger    logger.Logger
}

// WithNamespace sets the namespace reported in metrics and used to separate keys.
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{namespace: NamespaceHTTP}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("cache")
	}
	return o
}
