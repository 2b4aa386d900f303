package collector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gogo/protobuf/types"
	"github.com/lightstep/lightstep-tracer-common/golang/gogo/collectorpb"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
)

// ToProto converts a finished span into its collector representation.
func ToProto(span instrumentation.RawSpan) *collectorpb.Span {
	out := &collectorpb.Span{
		SpanContext:    toSpanContext(span.Context, span.Context.SpanID),
		OperationName:  span.Operation,
		StartTimestamp: timestamp(span.Start),
		DurationMicros: uint64(span.Duration / time.Microsecond),
	}
	if span.ParentSpanID != 0 {
		out.References = []*collectorpb.Reference{{
			Relationship: collectorpb.Reference_CHILD_OF,
			SpanContext:  toSpanContext(span.Context, span.ParentSpanID),
		}}
	}
	for key, value := range span.Tags {
		out.Tags = append(out.Tags, toKeyValue(key, value))
	}
	for _, record := range span.Logs {
		out.Logs = append(out.Logs, toLog(record))
	}
	return out
}

func toSpanContext(sc instrumentation.SpanContext, spanID uint64) *collectorpb.SpanContext {
	return &collectorpb.SpanContext{
		TraceId: sc.TraceID,
		SpanId:  spanID,
		Baggage: sc.BaggageMap(),
	}
}

func toLog(record opentracing.LogRecord) *collectorpb.Log {
	out := &collectorpb.Log{Timestamp: timestamp(record.Timestamp)}
	encoder := logFieldEncoder{out: out}
	for _, field := range record.Fields {
		field.Marshal(&encoder)
	}
	return out
}

func timestamp(t time.Time) *types.Timestamp {
	ts, err := types.TimestampProto(t)
	if err != nil {
		return nil
	}
	return ts
}

func toKeyValue(key string, value interface{}) *collectorpb.KeyValue {
	kv := &collectorpb.KeyValue{Key: key}
	switch v := value.(type) {
	case string:
		kv.Value = &collectorpb.KeyValue_StringValue{StringValue: v}
	case bool:
		kv.Value = &collectorpb.KeyValue_BoolValue{BoolValue: v}
	case int:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: int64(v)}
	case int8:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: int64(v)}
	case int16:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: int64(v)}
	case int32:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: int64(v)}
	case int64:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: v}
	case uint8:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: int64(v)}
	case uint16:
		kv.Value = &collectorpb.KeyValue_IntValue{IntValue: int64(v)}
	case uint32:
		kv.Value = &collectorpb.KeyValue_StringValue{StringValue: strconv.FormatUint(uint64(v), 10)}
	case uint64:
		kv.Value = &collectorpb.KeyValue_StringValue{StringValue: strconv.FormatUint(v, 10)}
	case float32:
		kv.Value = &collectorpb.KeyValue_DoubleValue{DoubleValue: float64(v)}
	case float64:
		kv.Value = &collectorpb.KeyValue_DoubleValue{DoubleValue: v}
	case fmt.Stringer:
		kv.Value = &collectorpb.KeyValue_StringValue{StringValue: v.String()}
	default:
		kv.Value = &collectorpb.KeyValue_StringValue{StringValue: fmt.Sprint(v)}
	}
	return kv
}

// logFieldEncoder appends opentracing log fields to a collector log.
// Unsigned 32 and 64 bit values are sent as strings.
type logFieldEncoder struct {
	out *collectorpb.Log
}

func (e *logFieldEncoder) emit(key string, value interface{}) {
	e.out.Fields = append(e.out.Fields, toKeyValue(key, value))
}

func (e *logFieldEncoder) EmitString(key, value string)        { e.emit(key, value) }
func (e *logFieldEncoder) EmitBool(key string, value bool)     { e.emit(key, value) }
func (e *logFieldEncoder) EmitInt(key string, value int)       { e.emit(key, value) }
func (e *logFieldEncoder) EmitInt32(key string, value int32)   { e.emit(key, value) }
func (e *logFieldEncoder) EmitInt64(key string, value int64)   { e.emit(key, value) }
func (e *logFieldEncoder) EmitUint32(key string, value uint32) { e.emit(key, value) }
func (e *logFieldEncoder) EmitUint64(key string, value uint64) { e.emit(key, value) }
func (e *logFieldEncoder) EmitFloat32(key string, value float32) {
	e.emit(key, value)
}
func (e *logFieldEncoder) EmitFloat64(key string, value float64) {
	e.emit(key, value)
}

func (e *logFieldEncoder) EmitObject(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		e.EmitString(key, fmt.Sprintf("%#v", value))
		return
	}
	e.out.Fields = append(e.out.Fields, &collectorpb.KeyValue{
		Key:   key,
		Value: &collectorpb.KeyValue_JsonValue{JsonValue: string(data)},
	})
}

func (e *logFieldEncoder) EmitLazyLogger(value log.LazyLogger) {
	value(e)
}
