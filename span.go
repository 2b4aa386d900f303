package instrumentation

import (
	"fmt"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

// Span is a unit of work in progress. It is owned by the operation that
// started it; every mutator is ignored once the span has finished.
type Span struct {
	tracer *Tracer
	kind   SpanKind

	lock  sync.Mutex
	raw   RawSpan
	ended bool
}

func newSpan(tracer *Tracer, name string, kind SpanKind, sc SpanContext, parentSpanID uint64, start time.Time) *Span {
	return &Span{
		tracer: tracer,
		kind:   kind,
		raw: RawSpan{
			Context:      sc,
			ParentSpanID: parentSpanID,
			Operation:    name,
			Kind:         kind,
			Start:        start,
			Tags:         opentracing.Tags{string(ext.SpanKind): kind.String()},
		},
	}
}

// Context returns the span's SpanContext.
func (s *Span) Context() SpanContext {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.raw.Context
}

func (s *Span) Kind() SpanKind {
	return s.kind
}

func (s *Span) SetOperationName(operationName string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ended {
		return
	}
	s.raw.Operation = operationName
}

func (s *Span) SetTag(key string, value interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ended {
		return
	}
	s.raw.Tags[key] = value
}

// SetTagFrom sets key to the value returned by extract. An empty string or
// nil value leaves the tag unset. When extract fails or panics the tag is
// omitted and an EventAttributeError is emitted.
func (s *Span) SetTagFrom(key string, extract func() (interface{}, error)) {
	value, err := safeExtract(extract)
	if err != nil {
		s.tracer.emit(newEventAttributeError(newAttributeError(key, err)))
		return
	}
	if value == nil || value == "" {
		return
	}
	s.SetTag(key, value)
}

func safeExtract(extract func() (interface{}, error)) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, panicError(r)
		}
	}()
	return extract()
}

// Tag returns the current value of key.
func (s *Span) Tag(key string) (interface{}, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	v, ok := s.raw.Tags[key]
	return v, ok
}

// SetStatus records the outcome of the span's operation.
func (s *Span) SetStatus(code StatusCode, message string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ended {
		return
	}
	s.raw.Status, s.raw.StatusMessage = code, message
	if code == StatusError {
		s.raw.Tags[string(ext.Error)] = true
	} else {
		delete(s.raw.Tags, string(ext.Error))
	}
}

func (s *Span) LogFields(fields ...log.Field) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ended {
		return
	}
	s.raw.Logs = append(s.raw.Logs, opentracing.LogRecord{
		Timestamp: s.tracer.clock.Now(),
		Fields:    fields,
	})
}

// RecordError logs err as an error event on the span.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.LogFields(
		log.String("event", "error"),
		log.Error(err),
		log.String("error.kind", fmt.Sprintf("%T", err)),
		log.String("message", err.Error()),
	)
}

// IsEnded reports whether Finish has been called.
func (s *Span) IsEnded() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.ended
}

func (s *Span) Finish() {
	s.FinishWithTime(s.tracer.clock.Now())
}

// FinishWithTime ends the span at end, or at its start time if end is
// earlier. Only the first call has any effect.
func (s *Span) FinishWithTime(end time.Time) {
	s.lock.Lock()
	if s.ended {
		s.lock.Unlock()
		return
	}
	s.ended = true

	if end.Before(s.raw.Start) {
		end = s.raw.Start
	}
	s.raw.Duration = end.Sub(s.raw.Start)

	raw := s.raw
	raw.Tags = make(opentracing.Tags, len(s.raw.Tags))
	for k, v := range s.raw.Tags {
		raw.Tags[k] = v
	}
	s.lock.Unlock()

	s.tracer.record(raw)
}
