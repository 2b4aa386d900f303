package conversions

import (
	"encoding/binary"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"go.opencensus.io/trace"
	"go.opencensus.io/trace/tracestate"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
)

// ConvertTraceID splits the 128-bit id into its leading and trailing halves.
func ConvertTraceID(original trace.TraceID) (leading, trailing uint64, ok bool) {
	leading = binary.BigEndian.Uint64(original[0:8])
	trailing = binary.BigEndian.Uint64(original[8:])
	return leading, trailing, leading != 0 || trailing != 0
}

func ConvertSpanID(original trace.SpanID) (uint64, bool) {
	spanID := binary.BigEndian.Uint64(original[:])
	return spanID, spanID != 0
}

func ConvertSpanKind(kind int) instrumentation.SpanKind {
	switch kind {
	case trace.SpanKindServer:
		return instrumentation.SpanKindServer
	case trace.SpanKindClient:
		return instrumentation.SpanKindClient
	default:
		return instrumentation.SpanKindInternal
	}
}

// ConvertStatus maps the OK code to StatusOK and any other code to
// StatusError.
func ConvertStatus(status trace.Status) (instrumentation.StatusCode, string) {
	if status.Code == trace.StatusCodeOK {
		return instrumentation.StatusOK, ""
	}
	return instrumentation.StatusError, status.Message
}

func ConvertTracestate(ts *tracestate.Tracestate) []instrumentation.OpaqueTraceState {
	if ts == nil {
		return nil
	}
	var out []instrumentation.OpaqueTraceState
	for _, entry := range ts.Entries() {
		out = append(out, instrumentation.OpaqueTraceState{Vendor: entry.Key, Value: entry.Value})
	}
	return out
}

func ConvertMessageEvent(event trace.MessageEvent) opentracing.LogRecord {
	eventType := "unspecified"
	switch event.EventType {
	case trace.MessageEventTypeSent:
		eventType = "sent"
	case trace.MessageEventTypeRecv:
		eventType = "received"
	}
	return opentracing.LogRecord{
		Timestamp: event.Time,
		Fields: []log.Field{
			log.String("event", "message"),
			log.String("message.type", eventType),
			log.Int64("message.id", event.MessageID),
			log.Int64("message.uncompressed_size", event.UncompressedByteSize),
			log.Int64("message.compressed_size", event.CompressedByteSize),
		},
	}
}
