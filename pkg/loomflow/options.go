package loomflow

import (
	"log/slog"
	"time"

	"github.com/loomflow/loomflow/pkg/loomflow/command"
	"github.com/loomflow/loomflow/pkg/loomflow/observability"
)

// Defaults for engine options.
const (
	DefaultWorkers             = 8
	DefaultEventBuffer         = 64
	DefaultCommandPollInterval = 100 * time.Millisecond
)

// options holds resolved engine configuration.
type options struct {
	workers      int
	eventBuffer  int
	graphTimeout time.Duration
	pollInterval time.Duration
	commands     command.Channel
	layers       []Layer
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
}

func defaultOptions() options {
	return options{
		workers:      DefaultWorkers,
		eventBuffer:  DefaultEventBuffer,
		pollInterval: DefaultCommandPollInterval,
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
	}
}

// Option configures an Engine.
type Option func(*options)

// WithWorkers sets the worker pool size. Values below 1 fall back to
// the default.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.workers = n
		}
	}
}

// WithEventBuffer sets the event channel buffer size.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.eventBuffer = n
		}
	}
}

// WithGraphTimeout bounds the whole run's wall time. On expiry the
// engine behaves as if it received a stop command. Zero disables.
func WithGraphTimeout(d time.Duration) Option {
	return func(o *options) {
		o.graphTimeout = d
	}
}

// WithCommandChannel attaches an out-of-band control channel the
// engine polls for stop and pause requests.
func WithCommandChannel(ch command.Channel) Option {
	return func(o *options) {
		o.commands = ch
	}
}

// WithCommandPollInterval sets how often the command channel is
// polled between scheduling cycles.
func WithCommandPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLayers registers observer layers, invoked in the given order.
func WithLayers(layers ...Layer) Option {
	return func(o *options) {
		o.layers = append(o.layers, layers...)
	}
}

// WithLogger enables structured logging for the run.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpanManager sets the trace span manager.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(o *options) {
		if sm != nil {
			o.spans = sm
		}
	}
}
