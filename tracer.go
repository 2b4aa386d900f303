package instrumentation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/lightstep/lightstep-instrumentation-go/contextstore"
	"github.com/lightstep/lightstep-instrumentation-go/internal/randx"
	"github.com/lightstep/lightstep-instrumentation-go/internal/timex"
)

// Tracer starts spans and moves span contexts across process boundaries. It
// is constructed once at startup and closed at shutdown.
type Tracer struct {
	config     Config
	recorder   SpanRecorder
	propagator *PropagatorStack
	onEvent    func(Event)
	clock      timex.Clock
	stores     *contextstore.Registry

	closed atomic.Bool
}

func NewTracer(opts ...Option) *Tracer {
	c := defaultTracerConfig()
	for _, opt := range opts {
		opt(c)
	}
	if c.onEvent == nil {
		c.onEvent = func(Event) {}
	}
	if c.stores == nil {
		c.stores = contextstore.NewRegistry()
	}

	propagators := c.propagators
	if len(propagators) == 0 {
		propagators = resolvePropagators(c.onEvent, c.config.Propagators)
	}

	return &Tracer{
		config:     c.config,
		recorder:   c.recorder,
		propagator: NewPropagatorStack(propagators...),
		onEvent:    c.onEvent,
		clock:      c.clock,
		stores:     c.stores,
	}
}

// Config returns the configuration the tracer was built with.
func (t *Tracer) Config() Config {
	return t.config
}

// ContextStores returns the registry shared by this tracer's adapters.
func (t *Tracer) ContextStores() *contextstore.Registry {
	return t.stores
}

// Propagator returns the tracer's wire formats.
func (t *Tracer) Propagator() *PropagatorStack {
	return t.propagator
}

// StartSpan starts a span named name. Its parent is the active span in ctx,
// else the remote span context in ctx; otherwise it starts a new trace. The
// returned context carries the new span.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	c := spanConfig{}
	for _, opt := range opts {
		opt(&c)
	}

	parent := c.parent
	if !c.parentSet {
		parent = SpanContextFromContext(ctx)
	}

	sc := SpanContext{SpanID: randx.GenSeededGUID()}
	if parent.IsValid() {
		sc.LeadingTraceID = parent.LeadingTraceID
		sc.TraceID = parent.TraceID
		sc.Flags = parent.Flags
		sc.Baggage = parent.Baggage
		sc.TraceState = parent.TraceState
	} else {
		sc.LeadingTraceID, sc.TraceID = randx.GenSeededGUID2()
		sc.Flags = FlagSampled
		parent = SpanContext{}
	}

	start := c.start
	if start.IsZero() {
		start = t.clock.Now()
	}

	span := newSpan(t, name, c.kind, sc, parent.SpanID, start)
	for k, v := range c.tags {
		span.SetTag(k, v)
	}
	return ContextWithSpan(ctx, span), span
}

// Inject writes the span context found in ctx into carrier.
func (t *Tracer) Inject(ctx context.Context, carrier Carrier) (err error) {
	sc := SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return opentracing.ErrInvalidSpanContext
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return t.propagator.Inject(sc, carrier)
}

// Extract reads a span context from reader and returns ctx carrying it as
// the remote parent. A missing or malformed context leaves ctx unchanged;
// malformed input is reported as an EventPropagationError.
func (t *Tracer) Extract(ctx context.Context, reader opentracing.TextMapReader) context.Context {
	sc, err := t.extract(reader)
	if err != nil {
		if !isNotFound(err) {
			t.emit(newEventPropagationError(err))
		}
		return ctx
	}
	return ContextWithRemoteSpanContext(ctx, sc)
}

func (t *Tracer) extract(reader opentracing.TextMapReader) (sc SpanContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			sc, err = SpanContext{}, panicError(r)
		}
	}()
	return t.propagator.Extract(reader)
}

// Flush flushes the recorder if it buffers spans.
func (t *Tracer) Flush(ctx context.Context) error {
	f, ok := t.recorder.(Flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(ctx); err != nil {
		err = fmt.Errorf("flush failed: %w", err)
		t.emit(newEventRecorderError(err))
		return err
	}
	return nil
}

// Close flushes the recorder. Spans finished after Close are dropped.
func (t *Tracer) Close(ctx context.Context) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.Flush(ctx)
}

func (t *Tracer) record(raw RawSpan) {
	if t.closed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.emit(newEventRecorderError(panicError(r)))
		}
	}()
	t.recorder.RecordSpan(raw)
}

func (t *Tracer) emit(event Event) {
	t.onEvent(event)
}

// SpanOption configures StartSpan.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind      SpanKind
	start     time.Time
	tags      opentracing.Tags
	parent    SpanContext
	parentSet bool
}

func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

func WithSpanStartTime(start time.Time) SpanOption {
	return func(c *spanConfig) {
		c.start = start
	}
}

func WithTags(tags opentracing.Tags) SpanOption {
	return func(c *spanConfig) {
		c.tags = tags
	}
}

// WithParent overrides the parent found in the context. An invalid parent
// starts a new trace.
func WithParent(parent SpanContext) SpanOption {
	return func(c *spanConfig) {
		c.parent, c.parentSet = parent, true
	}
}
