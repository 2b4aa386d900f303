package tracehttp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go/ext"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/tracehttp"
)

var _ = Describe("tracehttp", func() {
	var (
		recorder *instrumentation.InMemoryRecorder
		tracer   *instrumentation.Tracer
		server   *httptest.Server
		received http.Header
	)

	BeforeEach(func() {
		recorder = instrumentation.NewInMemoryRecorder()
		tracer = instrumentation.NewTracer(instrumentation.WithRecorder(recorder))

		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			received = req.Header.Clone()
			if req.URL.Path == "/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte("ok"))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Transport", func() {
		var client *http.Client

		BeforeEach(func() {
			client = &http.Client{Transport: tracehttp.NewTransport(tracer, nil)}
		})

		It("records a client span and propagates it", func() {
			resp, err := client.Get(server.URL + "/users?id=1")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			span := spans[0]
			Expect(span.Kind).To(Equal(instrumentation.SpanKindClient))
			Expect(span.Operation).To(Equal("HTTP GET"))
			Expect(span.Status).To(Equal(instrumentation.StatusOK))
			Expect(span.Tags).To(HaveKeyWithValue(string(ext.HTTPMethod), "GET"))
			Expect(span.Tags).To(HaveKeyWithValue(string(ext.HTTPUrl), server.URL+"/users?id=1"))
			Expect(span.Tags).To(HaveKeyWithValue(string(ext.HTTPStatusCode), 200))
			Expect(span.Tags).To(HaveKeyWithValue(string(ext.PeerHostname), "127.0.0.1"))

			Expect(received.Get("traceparent")).To(Equal(
				"00-" + span.Context.TraceIDHex() + "-" + span.Context.SpanIDHex() + "-01"))
		})

		It("does not modify the caller's request headers", func() {
			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("X-Custom", "value")

			resp, err := client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(req.Header).NotTo(HaveKey("Traceparent"))
			Expect(received.Get("X-Custom")).To(Equal("value"))
			Expect(received.Get("traceparent")).NotTo(BeEmpty())
		})

		It("marks client error statuses as errors", func() {
			resp, err := client.Get(server.URL + "/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Status).To(Equal(instrumentation.StatusError))
			Expect(spans[0].StatusMessage).To(Equal("status code 404"))
		})

		It("records transport failures", func() {
			client.Transport = tracehttp.NewTransport(tracer, roundTripFunc(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			}))

			_, err := client.Get("http://example.invalid/")
			Expect(err).To(HaveOccurred())

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Status).To(Equal(instrumentation.StatusError))
			Expect(spans[0].Tags).To(HaveKeyWithValue(string(ext.Error), true))
		})

		It("records one span for stacked transports", func() {
			client.Transport = tracehttp.NewTransport(tracer, tracehttp.NewTransport(tracer, nil))

			resp, err := client.Get(server.URL)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(recorder.GetSpans()).To(HaveLen(1))
		})

		It("records one span per sequential request sharing a context", func() {
			ctx := context.Background()
			for i := 0; i < 2; i++ {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := client.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
			}
			Expect(recorder.GetSpans()).To(HaveLen(2))
		})

		It("continues the active span", func() {
			ctx, parent := tracer.StartSpan(context.Background(), "parent")
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].ParentSpanID).To(Equal(parent.Context().SpanID))
			Expect(spans[0].Context.TraceID).To(Equal(parent.Context().TraceID))
		})

		It("attaches the operation context to the response", func() {
			resp, err := client.Get(server.URL)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			ctx, ok := tracehttp.ContextForResponse(tracer, resp)
			Expect(ok).To(BeTrue())
			span := instrumentation.OperationFromContext(ctx)
			Expect(span).NotTo(BeNil())
			Expect(span.Context()).To(Equal(recorder.GetSpans()[0].Context))
		})
	})

	Describe("Handler", func() {
		It("continues the caller's trace", func() {
			var inHandler *instrumentation.Span
			mux := http.NewServeMux()
			mux.Handle("GET /users/{id}", tracehttp.NewHandler(tracer, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				inHandler = instrumentation.OperationFromContext(req.Context())
				w.WriteHeader(http.StatusCreated)
			})))
			traced := httptest.NewServer(mux)
			defer traced.Close()

			client := &http.Client{Transport: tracehttp.NewTransport(tracer, nil)}
			resp, err := client.Get(traced.URL + "/users/42")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Eventually(recorder.GetSpans).Should(HaveLen(2))
			var serverSpan, clientSpan instrumentation.RawSpan
			for _, s := range recorder.GetSpans() {
				if s.Kind == instrumentation.SpanKindServer {
					serverSpan = s
				} else {
					clientSpan = s
				}
			}
			Expect(inHandler).NotTo(BeNil())
			Expect(inHandler.Context()).To(Equal(serverSpan.Context))
			Expect(serverSpan.Operation).To(Equal("GET /users/{id}"))
			Expect(serverSpan.Tags).To(HaveKeyWithValue(instrumentation.TagHTTPRoute, "/users/{id}"))
			Expect(serverSpan.Tags).To(HaveKeyWithValue(string(ext.HTTPStatusCode), http.StatusCreated))
			Expect(serverSpan.Context.TraceID).To(Equal(clientSpan.Context.TraceID))
			Expect(serverSpan.ParentSpanID).To(Equal(clientSpan.Context.SpanID))
		})

		It("answers 200 when the handler never writes a status", func() {
			handler := tracehttp.NewHandler(tracer, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Operation).To(Equal("HTTP GET"))
			Expect(spans[0].Tags).To(HaveKeyWithValue(string(ext.HTTPStatusCode), 200))
			Expect(spans[0].Status).To(Equal(instrumentation.StatusOK))
		})

		It("marks server error statuses as errors", func() {
			handler := tracehttp.NewHandler(tracer, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Status).To(Equal(instrumentation.StatusError))
		})

		It("ends the span and re-panics when the handler panics", func() {
			handler := tracehttp.NewHandler(tracer, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}))

			Expect(func() {
				handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			}).To(PanicWith("boom"))

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Status).To(Equal(instrumentation.StatusError))
			Expect(spans[0].StatusMessage).To(ContainSubstring("boom"))
		})
	})
})

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
