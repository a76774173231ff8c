package kubit

import (
	"log/slog"

	"github.com/toutaio/kubit/metrics"
)

// Option is a function that configures an Ioc container.
type Option func(*Ioc) error

// WithLogger sets the logger used for binding and fake changes.
// Container events are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Ioc) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics records resolutions and failures into the given collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Ioc) error {
		c.metrics = collector
		return nil
	}
}

// WithProxies enables transparent fake substitution from the start.
func WithProxies() Option {
	return func(c *Ioc) error {
		c.proxies.Store(true)
		return nil
	}
}
