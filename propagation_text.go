package instrumentation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"go.opencensus.io/trace/tracestate"
)

const (
	vendorKey = "lightstep"

	traceParentKey = "traceparent"
	traceStateKey  = "tracestate"

	traceParentVersion = "00"
	maxTraceStateLen   = 512
)

var (
	errUnsupportedVersion = errors.New("unsupported traceparent version")
	errZeroID             = errors.New("all-zero trace or span id")
)

var theTraceContextPropagator traceContextPropagator

type traceContextPropagator struct{}

func (traceContextPropagator) Inject(sc SpanContext, carrier Carrier) error {
	if !sc.IsValid() {
		return opentracing.ErrInvalidSpanContext
	}

	if err := carrier.Set(traceParentKey, formatTraceParent(sc)); err != nil {
		return err
	}

	if traceState := formatTraceState(sc); traceState != "" {
		return carrier.Set(traceStateKey, traceState)
	}
	return nil
}

func (traceContextPropagator) Extract(reader opentracing.TextMapReader) (SpanContext, error) {
	var (
		traceParent string
		traceState  []string
		found       bool
	)
	err := reader.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case traceParentKey:
			traceParent, found = v, true
		case traceStateKey:
			traceState = append(traceState, v)
		}
		return nil
	})
	if err != nil {
		return SpanContext{}, newPropagationError(traceParentKey, err)
	}
	if !found {
		return SpanContext{}, opentracing.ErrSpanContextNotFound
	}

	sc, err := parseTraceParent(traceParent)
	if err != nil {
		return SpanContext{}, newPropagationError(traceParentKey, fmt.Errorf("%w: %v", opentracing.ErrSpanContextCorrupted, err))
	}
	sc.Baggage, sc.TraceState = parseTraceState(strings.Join(traceState, ","))
	sc.Remote = true

	return sc, nil
}

func formatTraceParent(sc SpanContext) string {
	return fmt.Sprintf("%s-%s-%s-%02x", traceParentVersion, sc.TraceIDHex(), sc.SpanIDHex(), sc.Flags)
}

// parseTraceParent accepts version 00 only: 2-32-16-2 hex digits.
func parseTraceParent(v string) (SpanContext, error) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 {
		return SpanContext{}, fmt.Errorf("expected 4 fields, found %d", len(parts))
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]

	if len(version) != 2 || !isHex(version) {
		return SpanContext{}, fmt.Errorf("malformed version %q", version)
	}
	if version != traceParentVersion {
		return SpanContext{}, fmt.Errorf("%w %q", errUnsupportedVersion, version)
	}
	if len(traceID) != 32 || !isHex(traceID) {
		return SpanContext{}, fmt.Errorf("malformed trace id %q", traceID)
	}
	if len(spanID) != 16 || !isHex(spanID) {
		return SpanContext{}, fmt.Errorf("malformed span id %q", spanID)
	}
	if len(flags) != 2 || !isHex(flags) {
		return SpanContext{}, fmt.Errorf("malformed flags %q", flags)
	}

	var sc SpanContext
	sc.LeadingTraceID, _ = strconv.ParseUint(traceID[:16], 16, 64)
	sc.TraceID, _ = strconv.ParseUint(traceID[16:], 16, 64)
	sc.SpanID, _ = strconv.ParseUint(spanID, 16, 64)
	f, _ := strconv.ParseUint(flags, 16, 8)
	sc.Flags = byte(f)

	if !sc.IsValid() {
		return SpanContext{}, errZeroID
	}
	return sc, nil
}

// formatTraceState writes our baggage first, followed by as many foreign
// entries as fit in maxTraceStateLen. Baggage that alone exceeds the limit
// is not propagated.
func formatTraceState(sc SpanContext) string {
	var b strings.Builder
	if entry := encodeBaggage(sc.Baggage); entry != "" && len(entry) <= maxTraceStateLen {
		b.WriteString(entry)
	}

	for _, ts := range sc.TraceState {
		if ts.Vendor == vendorKey {
			continue
		}
		entry := ts.Vendor + "=" + ts.Value
		sep := 0
		if b.Len() > 0 {
			sep = 1
		}
		if b.Len()+sep+len(entry) > maxTraceStateLen {
			break
		}
		if sep > 0 {
			b.WriteByte(',')
		}
		b.WriteString(entry)
	}
	return b.String()
}

// parseTraceState splits a tracestate header into our baggage and the
// foreign entries. Entries that fail validation are dropped.
func parseTraceState(v string) ([]BaggageItem, []OpaqueTraceState) {
	var (
		baggage []BaggageItem
		opaque  []OpaqueTraceState
	)
	for _, member := range strings.Split(v, ",") {
		member = strings.TrimSpace(member)
		key, value, ok := strings.Cut(member, "=")
		if !ok || key == "" {
			continue
		}

		if key == vendorKey {
			baggage = append(baggage, decodeBaggage(value)...)
			continue
		}

		if _, err := tracestate.New(nil, tracestate.Entry{Key: key, Value: value}); err != nil {
			continue
		}
		opaque = append(opaque, OpaqueTraceState{Vendor: key, Value: value})
	}
	return baggage, opaque
}

// encodeBaggage renders baggage as a single "lightstep=" tracestate member.
// Keys and values are query-escaped so that ',' and '=' survive the trip.
func encodeBaggage(baggage []BaggageItem) string {
	if len(baggage) == 0 {
		return ""
	}
	items := make([]string, len(baggage))
	for i, item := range baggage {
		items[i] = url.QueryEscape(item.Key) + "=" + url.QueryEscape(item.Value)
	}
	return vendorKey + "=" + base64.RawURLEncoding.EncodeToString([]byte(strings.Join(items, ",")))
}

func decodeBaggage(encoded string) []BaggageItem {
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}

	var baggage []BaggageItem
	for _, item := range strings.Split(string(decoded), ",") {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		baggage = append(baggage, BaggageItem{Key: key, Value: value})
	}
	return baggage
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
