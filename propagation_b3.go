package instrumentation

import (
	"fmt"
	"strconv"
)

const (
	b3Prefix           = "x-b3-"
	b3FieldNameTraceID = b3Prefix + "traceid"
	b3FieldNameSpanID  = b3Prefix + "spanid"
	b3FieldNameSampled = b3Prefix + "sampled"
)

var theB3Propagator = headerPropagator{
	traceIDKey:    b3FieldNameTraceID,
	spanIDKey:     b3FieldNameSpanID,
	sampledKey:    b3FieldNameSampled,
	formatTraceID: padTraceID,
	parseTraceID:  b3TraceIDParser,
	formatSampled: func(sampled bool) string {
		if sampled {
			return "1"
		}
		return "0"
	},
}

// b3TraceIDParser accepts 64-bit and 128-bit ids.
func b3TraceIDParser(v string) (uint64, uint64, error) {
	switch {
	case len(v) == 32:
		leading, err := strconv.ParseUint(v[:16], 16, 64)
		if err != nil {
			return 0, 0, err
		}
		trailing, err := strconv.ParseUint(v[16:], 16, 64)
		return leading, trailing, err
	case len(v) > 0 && len(v) <= 16:
		trailing, err := strconv.ParseUint(v, 16, 64)
		return 0, trailing, err
	default:
		return 0, 0, fmt.Errorf("trace id %q must be at most 16 or exactly 32 hex digits", v)
	}
}

func padTraceID(sc SpanContext) string {
	if sc.LeadingTraceID == 0 {
		return fmt.Sprintf("%016x", sc.TraceID)
	}
	return sc.TraceIDHex()
}
