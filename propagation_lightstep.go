package instrumentation

import (
	"fmt"
	"strconv"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
)

const (
	prefixTracerState = "ot-tracer-"
	prefixBaggage     = "ot-baggage-"

	fieldNameTraceID = prefixTracerState + "traceid"
	fieldNameSpanID  = prefixTracerState + "spanid"
	fieldNameSampled = prefixTracerState + "sampled"
)

var theLightStepPropagator = headerPropagator{
	traceIDKey:    fieldNameTraceID,
	spanIDKey:     fieldNameSpanID,
	sampledKey:    fieldNameSampled,
	formatTraceID: func(sc SpanContext) string { return strconv.FormatUint(sc.TraceID, 16) },
	parseTraceID:  lightstepTraceIDParser,
	formatSampled: func(sampled bool) string { return strconv.FormatBool(sampled) },
}

func lightstepTraceIDParser(v string) (uint64, uint64, error) {
	traceID, err := strconv.ParseUint(v, 16, 64)
	return 0, traceID, err
}

// headerPropagator writes one header per field plus one ot-baggage-*
// header per baggage item.
type headerPropagator struct {
	traceIDKey string
	spanIDKey  string
	sampledKey string

	formatTraceID func(SpanContext) string
	parseTraceID  func(string) (uint64, uint64, error)
	formatSampled func(bool) string
}

func (p headerPropagator) Inject(sc SpanContext, carrier Carrier) error {
	if !sc.IsValid() {
		return opentracing.ErrInvalidSpanContext
	}

	fields := [][2]string{
		{p.traceIDKey, p.formatTraceID(sc)},
		{p.spanIDKey, strconv.FormatUint(sc.SpanID, 16)},
		{p.sampledKey, p.formatSampled(sc.IsSampled())},
	}
	for _, item := range sc.Baggage {
		fields = append(fields, [2]string{prefixBaggage + item.Key, item.Value})
	}

	for _, f := range fields {
		if err := carrier.Set(f[0], f[1]); err != nil {
			return err
		}
	}
	return nil
}

func (p headerPropagator) Extract(reader opentracing.TextMapReader) (SpanContext, error) {
	var (
		sc                    SpanContext
		foundTrace, foundSpan bool
		sampled               = true
	)
	err := reader.ForeachKey(func(k, v string) error {
		var err error
		switch lk := strings.ToLower(k); {
		case lk == p.traceIDKey:
			sc.LeadingTraceID, sc.TraceID, err = p.parseTraceID(v)
			if err != nil {
				return newPropagationError(p.traceIDKey, fmt.Errorf("%w: %v", opentracing.ErrSpanContextCorrupted, err))
			}
			foundTrace = true
		case lk == p.spanIDKey:
			sc.SpanID, err = strconv.ParseUint(v, 16, 64)
			if err != nil {
				return newPropagationError(p.spanIDKey, fmt.Errorf("%w: %v", opentracing.ErrSpanContextCorrupted, err))
			}
			foundSpan = true
		case lk == p.sampledKey:
			sampled = parseSampled(v)
		case strings.HasPrefix(lk, prefixBaggage):
			sc.Baggage = append(sc.Baggage, BaggageItem{Key: strings.TrimPrefix(lk, prefixBaggage), Value: v})
		}
		return nil
	})
	if err != nil {
		return SpanContext{}, err
	}

	switch {
	case !foundTrace && !foundSpan:
		return SpanContext{}, opentracing.ErrSpanContextNotFound
	case !foundTrace || !foundSpan:
		return SpanContext{}, newPropagationError(p.traceIDKey, fmt.Errorf("%w: incomplete trace headers", opentracing.ErrSpanContextCorrupted))
	case !sc.IsValid():
		return SpanContext{}, newPropagationError(p.traceIDKey, fmt.Errorf("%w: %v", opentracing.ErrSpanContextCorrupted, errZeroID))
	}

	if sampled {
		sc.Flags |= FlagSampled
	}
	sc.Remote = true
	return sc, nil
}

func parseSampled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false":
		return false
	}
	return true
}
