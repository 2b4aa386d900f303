package ocbridge

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"go.opencensus.io/trace"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/ocbridge/internal/conversions"
)

// Exporter may be registered with OpenCensus so that span data is recorded
// by a SpanRecorder.
type Exporter struct {
	recorder instrumentation.SpanRecorder
	tags     opentracing.Tags
}

func NewExporter(recorder instrumentation.SpanRecorder, opts ...Option) *Exporter {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	return &Exporter{
		recorder: recorder,
		tags:     c.tags,
	}
}

// ExportSpan converts sd and records it. Spans without a valid trace and
// span id are dropped.
func (e *Exporter) ExportSpan(sd *trace.SpanData) {
	leading, trailing, ok := conversions.ConvertTraceID(sd.SpanContext.TraceID)
	if !ok {
		return
	}
	spanID, ok := conversions.ConvertSpanID(sd.SpanContext.SpanID)
	if !ok {
		return
	}
	parentSpanID, _ := conversions.ConvertSpanID(sd.ParentSpanID)

	sc := instrumentation.SpanContext{
		LeadingTraceID: leading,
		TraceID:        trailing,
		SpanID:         spanID,
		TraceState:     conversions.ConvertTracestate(sd.SpanContext.Tracestate),
	}
	if sd.SpanContext.IsSampled() {
		sc.Flags |= instrumentation.FlagSampled
	}

	kind := conversions.ConvertSpanKind(sd.SpanKind)
	raw := instrumentation.RawSpan{
		Context:      sc,
		ParentSpanID: parentSpanID,
		Operation:    sd.Name,
		Kind:         kind,
		Start:        sd.StartTime,
		Tags:         make(opentracing.Tags, len(e.tags)+len(sd.Attributes)+2),
	}
	if sd.EndTime.After(sd.StartTime) {
		raw.Duration = sd.EndTime.Sub(sd.StartTime)
	}

	for k, v := range e.tags {
		raw.Tags[k] = v
	}
	for k, v := range sd.Attributes {
		raw.Tags[k] = v
	}
	raw.Tags[string(ext.SpanKind)] = kind.String()

	raw.Status, raw.StatusMessage = conversions.ConvertStatus(sd.Status)
	if raw.Status == instrumentation.StatusError {
		raw.Tags[string(ext.Error)] = true
	}

	for _, annotation := range sd.Annotations {
		raw.Logs = append(raw.Logs, opentracing.LogRecord{
			Timestamp: annotation.Time,
			Fields:    []log.Field{log.Object(annotation.Message, annotation.Attributes)},
		})
	}
	for _, event := range sd.MessageEvents {
		raw.Logs = append(raw.Logs, conversions.ConvertMessageEvent(event))
	}

	e.recorder.RecordSpan(raw)
}

// Flush flushes the recorder when it buffers spans.
func (e *Exporter) Flush(ctx context.Context) error {
	if f, ok := e.recorder.(instrumentation.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
