package instrumentation

import (
	"go.uber.org/zap"

	"github.com/lightstep/lightstep-instrumentation-go/contextstore"
	"github.com/lightstep/lightstep-instrumentation-go/internal/timex"
)

// Option configures a Tracer.
type Option func(*tracerConfig)

type tracerConfig struct {
	config      Config
	recorder    SpanRecorder
	propagators []Propagator
	onEvent     func(Event)
	clock       timex.Clock
	stores      *contextstore.Registry
}

// WithConfig replaces the default configuration.
func WithConfig(config Config) Option {
	return func(c *tracerConfig) {
		c.config = config
	}
}

// WithRecorder sets the sink for finished spans.
func WithRecorder(recorder SpanRecorder) Option {
	return func(c *tracerConfig) {
		c.recorder = recorder
	}
}

// WithPropagator adds a wire format. When any propagator is given the
// PROPAGATORS setting is ignored.
func WithPropagator(propagator Propagator) Option {
	return func(c *tracerConfig) {
		c.propagators = append(c.propagators, propagator)
	}
}

// WithEventHandler sets the callback for events. The default logs through
// zap.L().
func WithEventHandler(onEvent func(Event)) Option {
	return func(c *tracerConfig) {
		c.onEvent = onEvent
	}
}

func WithClock(clock timex.Clock) Option {
	return func(c *tracerConfig) {
		c.clock = clock
	}
}

// WithContextStores shares a context store registry with other components.
func WithContextStores(stores *contextstore.Registry) Option {
	return func(c *tracerConfig) {
		c.stores = stores
	}
}

func defaultTracerConfig() *tracerConfig {
	return &tracerConfig{
		config:   DefaultConfig(),
		recorder: noopRecorder{},
		onEvent:  NewOnEventLogger(zap.L()),
		clock:    timex.NewClock(),
	}
}
