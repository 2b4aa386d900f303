package instrumentation

import (
	"context"
	"fmt"
	"time"

	"github.com/lightstep/lightstep-instrumentation-go/internal/statusrange"
)

// Attributes derives span data from a library's request and response types.
// Implementations may panic or fail; the failure is contained and reported
// as an EventAttributeError.
type Attributes[Req, Resp any] interface {
	// SpanName names the span for req.
	SpanName(req Req) string

	// OnRequest sets the attributes known when the operation starts.
	OnRequest(span *Span, req Req)

	// StatusCode extracts a numeric status from resp, if it carries one.
	StatusCode(resp Resp) (int, bool)

	// OnResponse sets the attributes known when the operation ends.
	OnResponse(span *Span, resp Resp)
}

// OperationTracer drives the span of one kind of library operation through
// start and end. It is what library adapters build on.
type OperationTracer[Req, Resp any] struct {
	tracer        *Tracer
	kind          SpanKind
	attributes    Attributes[Req, Resp]
	errorStatuses statusrange.Set
}

type operationKey struct{}

// OperationTracerOption configures NewOperationTracer.
type OperationTracerOption func(*operationTracerConfig)

type operationTracerConfig struct {
	setting  string
	ranges   string
	fallback string
}

// WithErrorStatuses maps status codes within ranges to StatusError. A
// malformed ranges value is reported against setting and fallback is used.
func WithErrorStatuses(setting, ranges, fallback string) OperationTracerOption {
	return func(c *operationTracerConfig) {
		c.setting, c.ranges, c.fallback = setting, ranges, fallback
	}
}

// NewOperationTracer returns a tracer for operations of kind. Without
// WithErrorStatuses, server and consumer operations use the HTTP server
// error statuses and all other kinds the HTTP client error statuses.
func NewOperationTracer[Req, Resp any](tracer *Tracer, kind SpanKind, attributes Attributes[Req, Resp], opts ...OperationTracerOption) *OperationTracer[Req, Resp] {
	c := operationTracerConfig{
		setting:  "HTTP_CLIENT_ERROR_STATUSES",
		ranges:   tracer.config.HTTPClientErrorStatuses,
		fallback: DefaultHTTPClientErrorStatuses,
	}
	if kind == SpanKindServer || kind == SpanKindConsumer {
		c.setting = "HTTP_SERVER_ERROR_STATUSES"
		c.ranges = tracer.config.HTTPServerErrorStatuses
		c.fallback = DefaultHTTPServerErrorStatuses
	}
	for _, opt := range opts {
		opt(&c)
	}

	return &OperationTracer[Req, Resp]{
		tracer:        tracer,
		kind:          kind,
		attributes:    attributes,
		errorStatuses: statusRange(tracer.emit, c.setting, c.ranges, c.fallback),
	}
}

// OperationOption configures a single start or end call.
type OperationOption func(*operationConfig)

type operationConfig struct {
	start time.Time
	end   time.Time
}

func WithStartTime(start time.Time) OperationOption {
	return func(c *operationConfig) {
		c.start = start
	}
}

func WithEndTime(end time.Time) OperationOption {
	return func(c *operationConfig) {
		c.end = end
	}
}

// OperationFromContext returns the span of the operation started in ctx. It
// is nil for a suppressed operation.
func OperationFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(operationKey{}).(*Span)
	return span
}

// StartOperation starts a span for req as a child of ctx and injects the new
// span context into carrier, which may be nil. When ctx already carries an
// operation span of the same kind, no span is started and the returned
// context only shadows ctx: ending it does nothing.
func (o *OperationTracer[Req, Resp]) StartOperation(ctx context.Context, req Req, carrier Carrier, opts ...OperationOption) context.Context {
	if o.kind.suppressible() && spanOfKind(ctx, o.kind) != nil {
		return context.WithValue(ctx, operationKey{}, (*Span)(nil))
	}

	c := operationConfig{}
	for _, opt := range opts {
		opt(&c)
	}

	ctx, span := o.tracer.StartSpan(ctx, o.spanName(req), WithSpanKind(o.kind), WithSpanStartTime(c.start))
	ctx = context.WithValue(ctx, operationKey{}, span)

	o.guard("request", func() { o.attributes.OnRequest(span, req) })

	if carrier != nil {
		if err := o.tracer.Inject(ctx, carrier); err != nil {
			o.tracer.emit(newEventPropagationError(err))
		}
	}
	return ctx
}

// End maps the status of resp onto the span and finishes it. It does nothing
// when the operation was suppressed or has already ended.
func (o *OperationTracer[Req, Resp]) End(ctx context.Context, resp Resp, opts ...OperationOption) {
	span := OperationFromContext(ctx)
	if span == nil || span.IsEnded() {
		return
	}

	o.onResponse(span, resp)
	o.finish(span, opts)
}

// EndExceptionally marks the span as failed with err and finishes it,
// regardless of any status code.
func (o *OperationTracer[Req, Resp]) EndExceptionally(ctx context.Context, err error, opts ...OperationOption) {
	o.endExceptionally(ctx, err, nil, opts)
}

// EndExceptionallyWithResponse is EndExceptionally for an operation that
// also produced a response.
func (o *OperationTracer[Req, Resp]) EndExceptionallyWithResponse(ctx context.Context, err error, resp Resp, opts ...OperationOption) {
	o.endExceptionally(ctx, err, &resp, opts)
}

// EndMaybeExceptionally calls EndExceptionallyWithResponse when err is
// non-nil and End otherwise.
func (o *OperationTracer[Req, Resp]) EndMaybeExceptionally(ctx context.Context, resp Resp, err error, opts ...OperationOption) {
	if err != nil {
		o.EndExceptionallyWithResponse(ctx, err, resp, opts...)
		return
	}
	o.End(ctx, resp, opts...)
}

func (o *OperationTracer[Req, Resp]) endExceptionally(ctx context.Context, err error, resp *Resp, opts []OperationOption) {
	span := OperationFromContext(ctx)
	if span == nil || span.IsEnded() {
		return
	}

	if resp != nil {
		o.onResponse(span, *resp)
	}
	message := ""
	if err != nil {
		span.RecordError(err)
		message = err.Error()
	}
	span.SetStatus(StatusError, message)
	o.finish(span, opts)
}

func (o *OperationTracer[Req, Resp]) onResponse(span *Span, resp Resp) {
	o.guard("status", func() {
		if code, ok := o.attributes.StatusCode(resp); ok {
			if o.errorStatuses.Contains(code) {
				span.SetStatus(StatusError, fmt.Sprintf("status code %d", code))
			} else {
				span.SetStatus(StatusOK, "")
			}
		}
	})
	o.guard("response", func() { o.attributes.OnResponse(span, resp) })
}

func (o *OperationTracer[Req, Resp]) finish(span *Span, opts []OperationOption) {
	c := operationConfig{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.end.IsZero() {
		span.Finish()
		return
	}
	span.FinishWithTime(c.end)
}

func (o *OperationTracer[Req, Resp]) spanName(req Req) (name string) {
	defer func() {
		if r := recover(); r != nil {
			o.tracer.emit(newEventAttributeError(newAttributeError("span.name", panicError(r))))
			name = DefaultSpanName
		}
	}()
	if name = o.attributes.SpanName(req); name == "" {
		name = DefaultSpanName
	}
	return name
}

// guard runs fn, reporting a panic as an attribute error for attribute.
func (o *OperationTracer[Req, Resp]) guard(attribute string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.tracer.emit(newEventAttributeError(newAttributeError(attribute, panicError(r))))
		}
	}()
	fn()
}
