// Package tracehttp traces net/http clients and servers.
package tracehttp

import (
	"context"
	"errors"
	"net/http"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/calldepth"
	"github.com/lightstep/lightstep-instrumentation-go/contextstore"
)

var errSharedHeader = errors.New("header belongs to the caller")

type transportPoint struct{}

// Transport is an http.RoundTripper recording a CLIENT span per request.
// Traced transports wrapping each other record a single span.
type Transport struct {
	base       http.RoundTripper
	operations *instrumentation.OperationTracer[*http.Request, *http.Response]
	responses  *contextstore.Store[http.Response, context.Context]
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(tracer *instrumentation.Tracer, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:       base,
		operations: instrumentation.NewHTTPClientTracer[*http.Request, *http.Response](tracer, clientAccessor{}),
		responses:  contextstore.For[http.Response, context.Context](tracer.ContextStores()),
	}
}

// ContextForResponse returns the context of the operation that produced
// resp, for starting spans that continue it.
func ContextForResponse(tracer *instrumentation.Tracer, resp *http.Response) (context.Context, bool) {
	return contextstore.For[http.Response, context.Context](tracer.ContextStores()).Get(resp)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, depth := calldepth.Increment(req.Context(), transportPoint{})
	if depth > calldepth.Baseline {
		return t.base.RoundTrip(req)
	}
	defer calldepth.Reset(ctx, transportPoint{})

	header := outboundHeader{header: req.Header}
	carrier := instrumentation.NewCarrier(&header, setHeader, forkHeader)

	ctx = t.operations.StartOperation(ctx, req, carrier)

	out := req.WithContext(ctx)
	out.Header = header.header

	resp, err := t.base.RoundTrip(out)
	t.operations.EndMaybeExceptionally(ctx, resp, err)
	if resp != nil {
		t.responses.Put(resp, ctx)
	}
	return resp, err
}

// outboundHeader refuses writes until forked, since a RoundTripper must not
// modify the caller's request.
type outboundHeader struct {
	header http.Header
	owned  bool
}

func setHeader(h outboundHeader, key, value string) error {
	if !h.owned {
		return errSharedHeader
	}
	h.header.Set(key, value)
	return nil
}

func forkHeader(h outboundHeader) outboundHeader {
	header := h.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return outboundHeader{header: header, owned: true}
}
