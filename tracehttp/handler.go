package tracehttp

import (
	"fmt"
	"net/http"

	opentracing "github.com/opentracing/opentracing-go"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
)

// NewHandler records a SERVER span per request served by next, continuing
// the trace found in the request headers. When next is registered on a
// ServeMux under a pattern, the pattern names the span.
func NewHandler(tracer *instrumentation.Tracer, next http.Handler) http.Handler {
	operations := instrumentation.NewHTTPServerTracer[*http.Request, *responseWriter](tracer, serverAccessor{})

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := tracer.Extract(req.Context(), opentracing.HTTPHeadersCarrier(req.Header))
		ctx = operations.StartOperation(ctx, req, nil)

		rw := &responseWriter{ResponseWriter: w}
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", r)
				}
				operations.EndExceptionallyWithResponse(ctx, err, rw)
				panic(r)
			}
			operations.End(ctx, rw)
		}()

		next.ServeHTTP(rw, req.WithContext(ctx))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

// Status is the written status code. Handlers that never call WriteHeader
// answer 200.
func (w *responseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
