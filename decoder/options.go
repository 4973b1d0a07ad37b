package decoder

import (
	"go.uber.org/zap"

	"github.com/ieee0824/sphinx-go/search"
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

// WithModels supplies preloaded models instead of loading hmm and dict.
func WithModels(m *Models) Option {
	return func(d *Decoder) {
		d.models = m
	}
}

// WithEngine replaces the default FSG search engine.
func WithEngine(f search.Factory) Option {
	return func(d *Decoder) {
		if f != nil {
			d.factory = f
		}
	}
}

// WithMetrics records decoder activity on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Decoder) {
		d.metrics = m
	}
}
