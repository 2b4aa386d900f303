package instrumentation

import (
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// SpanKind is the role a span plays in an operation.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindClient
	SpanKindServer
	SpanKindProducer
	SpanKindConsumer
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindClient:
		return string(ext.SpanKindRPCClientEnum)
	case SpanKindServer:
		return string(ext.SpanKindRPCServerEnum)
	case SpanKindProducer:
		return string(ext.SpanKindProducerEnum)
	case SpanKindConsumer:
		return string(ext.SpanKindConsumerEnum)
	default:
		return "internal"
	}
}

// suppressible reports whether a nested operation of the same kind should be
// folded into the outer span.
func (k SpanKind) suppressible() bool {
	return k != SpanKindInternal
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// RawSpan encapsulates all state associated with a (finished) Span.
type RawSpan struct {
	// Those recording the RawSpan should also record the contents of its
	// SpanContext.
	Context SpanContext

	// The SpanID of this SpanContext's first intra-trace reference (i.e.,
	// "parent"), or 0 if there is no parent.
	ParentSpanID uint64

	// The name of the "operation" this span is an instance of. (Called a "span
	// name" in some implementations)
	Operation string

	Kind SpanKind

	// We store <start, duration> rather than <start, end> so that only
	// one of the timestamps has global clock uncertainty issues.
	Start    time.Time
	Duration time.Duration

	// Essentially an extension mechanism. Can be used for many purposes,
	// not to be enumerated here.
	Tags opentracing.Tags

	// The span's "microlog".
	Logs []opentracing.LogRecord

	Status        StatusCode
	StatusMessage string
}

// End returns the span's end time.
func (r RawSpan) End() time.Time {
	return r.Start.Add(r.Duration)
}
