package instrumentation

import (
	"fmt"
)

// FlagSampled is bit 0 of SpanContext.Flags.
const FlagSampled byte = 0x01

// SpanContext is the propagated identity of a span. It is treated as an
// immutable value: the With* methods return modified copies.
type SpanContext struct {
	// Used to store the leading 64 bits of a 128-bit trace ID.
	LeadingTraceID uint64

	// Trailing 64 bits of the trace ID.
	TraceID uint64

	// A probabilistically unique identifier for a span.
	SpanID uint64

	// Trace flags, as carried by the traceparent header.
	Flags byte

	// The span's associated baggage, in insertion order.
	Baggage []BaggageItem

	// Data propagated across vendors.
	TraceState []OpaqueTraceState

	// Remote is set on contexts extracted from a carrier.
	Remote bool
}

// BaggageItem is a single baggage key and value.
type BaggageItem struct {
	Key   string
	Value string
}

// OpaqueTraceState contains data from other vendors, propagated via the `tracestate` header
type OpaqueTraceState struct {
	Vendor string
	Value  string
}

// IsValid reports whether both the trace ID and span ID are non-zero.
func (c SpanContext) IsValid() bool {
	return (c.LeadingTraceID != 0 || c.TraceID != 0) && c.SpanID != 0
}

func (c SpanContext) IsSampled() bool {
	return c.Flags&FlagSampled != 0
}

// TraceIDHex renders the 128-bit trace ID as 32 lowercase hex digits.
func (c SpanContext) TraceIDHex() string {
	return fmt.Sprintf("%016x%016x", c.LeadingTraceID, c.TraceID)
}

// SpanIDHex renders the span ID as 16 lowercase hex digits.
func (c SpanContext) SpanIDHex() string {
	return fmt.Sprintf("%016x", c.SpanID)
}

// ForeachBaggageItem belongs to the opentracing.SpanContext interface
func (c SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for _, item := range c.Baggage {
		if !handler(item.Key, item.Value) {
			break
		}
	}
}

// BaggageItem returns the value stored under key, or "".
func (c SpanContext) BaggageItem(key string) string {
	for _, item := range c.Baggage {
		if item.Key == key {
			return item.Value
		}
	}
	return ""
}

// WithBaggageItem returns a copy of the context with key set to val. An
// existing key keeps its position.
func (c SpanContext) WithBaggageItem(key, val string) SpanContext {
	baggage := make([]BaggageItem, 0, len(c.Baggage)+1)
	replaced := false
	for _, item := range c.Baggage {
		if item.Key == key {
			item.Value = val
			replaced = true
		}
		baggage = append(baggage, item)
	}
	if !replaced {
		baggage = append(baggage, BaggageItem{Key: key, Value: val})
	}

	c.Baggage = baggage
	return c
}

// BaggageMap copies the baggage into a map. Later duplicates win.
func (c SpanContext) BaggageMap() map[string]string {
	if len(c.Baggage) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.Baggage))
	for _, item := range c.Baggage {
		m[item.Key] = item.Value
	}
	return m
}
