package instrumentation

import (
	"errors"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
)

// Propagator serializes a SpanContext into a carrier and back.
//
// Extract looks up keys case-insensitively. A missing context is reported as
// opentracing.ErrSpanContextNotFound and an unusable one as an error wrapping
// opentracing.ErrSpanContextCorrupted.
type Propagator interface {
	Inject(sc SpanContext, carrier Carrier) error
	Extract(reader opentracing.TextMapReader) (SpanContext, error)
}

var (
	// TraceContextPropagator uses the traceparent and tracestate headers.
	TraceContextPropagator Propagator = theTraceContextPropagator

	// B3Propagator uses the x-b3-* headers.
	B3Propagator Propagator = theB3Propagator

	// LightStepPropagator uses the ot-tracer-* headers.
	LightStepPropagator Propagator = theLightStepPropagator
)

// PropagatorByName resolves the names accepted by the PROPAGATORS setting.
func PropagatorByName(name string) (Propagator, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tracecontext":
		return TraceContextPropagator, true
	case "b3":
		return B3Propagator, true
	case "lightstep":
		return LightStepPropagator, true
	}
	return nil, false
}

// isNotFound reports whether err only says that no context was present.
func isNotFound(err error) bool {
	return errors.Is(err, opentracing.ErrSpanContextNotFound)
}
