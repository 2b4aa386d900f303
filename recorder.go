package instrumentation

import (
	"context"
	"sync"
)

// A SpanRecorder handles all of the `RawSpan` data generated via an
// associated `Tracer` instance.
type SpanRecorder interface {
	RecordSpan(RawSpan)
}

// Flusher is implemented by recorders that buffer spans. Tracer.Flush and
// Tracer.Close call it.
type Flusher interface {
	Flush(context.Context) error
}

type noopRecorder struct{}

func (noopRecorder) RecordSpan(RawSpan) {}

// InMemoryRecorder stores spans in memory. It is intended for tests.
type InMemoryRecorder struct {
	lock  sync.Mutex
	spans []RawSpan
}

func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

func (r *InMemoryRecorder) RecordSpan(span RawSpan) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.spans = append(r.spans, span)
}

// GetSpans returns a copy of the recorded spans.
func (r *InMemoryRecorder) GetSpans() []RawSpan {
	r.lock.Lock()
	defer r.lock.Unlock()

	spans := make([]RawSpan, len(r.spans))
	copy(spans, r.spans)
	return spans
}

// Reset discards the recorded spans.
func (r *InMemoryRecorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.spans = nil
}
