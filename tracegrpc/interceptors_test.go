package tracegrpc_test

import (
	"context"
	"net"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/tracegrpc"
)

var _ = Describe("interceptors", func() {
	var (
		recorder *instrumentation.InMemoryRecorder
		tracer   *instrumentation.Tracer
		server   *grpc.Server
		conn     *grpc.ClientConn
		client   healthpb.HealthClient
		incoming metadata.MD
	)

	spansOfKind := func(kind instrumentation.SpanKind) []instrumentation.RawSpan {
		var spans []instrumentation.RawSpan
		for _, s := range recorder.GetSpans() {
			if s.Kind == kind {
				spans = append(spans, s)
			}
		}
		return spans
	}

	BeforeEach(func() {
		recorder = instrumentation.NewInMemoryRecorder()
		tracer = instrumentation.NewTracer(instrumentation.WithRecorder(recorder))

		healthServer := health.NewServer()
		healthServer.SetServingStatus("checkout", healthpb.HealthCheckResponse_SERVING)

		incoming = nil
		capture := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			incoming, _ = metadata.FromIncomingContext(ctx)
			return handler(ctx, req)
		}

		listener := bufconn.Listen(1 << 20)
		server = grpc.NewServer(grpc.ChainUnaryInterceptor(capture, tracegrpc.UnaryServerInterceptor(tracer)))
		healthpb.RegisterHealthServer(server, healthServer)
		go server.Serve(listener)

		var err error
		conn, err = grpc.Dial("bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUnaryInterceptor(tracegrpc.UnaryClientInterceptor(tracer)),
		)
		Expect(err).NotTo(HaveOccurred())
		client = healthpb.NewHealthClient(conn)
	})

	AfterEach(func() {
		conn.Close()
		server.Stop()
	})

	It("records client and server spans in one trace", func() {
		_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "checkout"})
		Expect(err).NotTo(HaveOccurred())

		Eventually(recorder.GetSpans).Should(HaveLen(2))
		clientSpan := spansOfKind(instrumentation.SpanKindClient)[0]
		serverSpan := spansOfKind(instrumentation.SpanKindServer)[0]

		Expect(clientSpan.Operation).To(Equal("grpc.health.v1.Health/Check"))
		Expect(clientSpan.Tags).To(HaveKeyWithValue(tracegrpc.TagRPCSystem, "grpc"))
		Expect(clientSpan.Tags).To(HaveKeyWithValue(tracegrpc.TagRPCService, "grpc.health.v1.Health"))
		Expect(clientSpan.Tags).To(HaveKeyWithValue(tracegrpc.TagRPCMethod, "Check"))
		Expect(clientSpan.Tags).To(HaveKeyWithValue(instrumentation.TagNetPeerName, "bufnet"))
		Expect(clientSpan.Tags).To(HaveKeyWithValue(tracegrpc.TagRPCGRPCStatusCode, 0))
		Expect(clientSpan.Status).To(Equal(instrumentation.StatusOK))

		Expect(serverSpan.Context.TraceID).To(Equal(clientSpan.Context.TraceID))
		Expect(serverSpan.ParentSpanID).To(Equal(clientSpan.Context.SpanID))
		Expect(incoming.Get("traceparent")).To(HaveLen(1))
	})

	It("maps status codes with the configured ranges", func() {
		_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"})
		Expect(status.Code(err)).To(Equal(codes.NotFound))

		Eventually(recorder.GetSpans).Should(HaveLen(2))
		clientSpan := spansOfKind(instrumentation.SpanKindClient)[0]
		serverSpan := spansOfKind(instrumentation.SpanKindServer)[0]

		Expect(clientSpan.Status).To(Equal(instrumentation.StatusError))
		Expect(clientSpan.Tags).To(HaveKeyWithValue(tracegrpc.TagRPCGRPCStatusCode, int(codes.NotFound)))
		Expect(serverSpan.Status).To(Equal(instrumentation.StatusOK))
	})

	It("keeps the caller's outgoing metadata", func() {
		md := metadata.Pairs("x-request-id", "42")
		ctx := metadata.NewOutgoingContext(context.Background(), md)

		_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "checkout"})
		Expect(err).NotTo(HaveOccurred())

		Expect(md).NotTo(HaveKey("traceparent"))
		Expect(incoming.Get("x-request-id")).To(Equal([]string{"42"}))
		Expect(incoming.Get("traceparent")).To(HaveLen(1))
	})

	It("does not nest client spans", func() {
		ctx, span := tracer.StartSpan(context.Background(), "outer", instrumentation.WithSpanKind(instrumentation.SpanKindClient))
		_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "checkout"})
		Expect(err).NotTo(HaveOccurred())
		span.Finish()

		Eventually(recorder.GetSpans).Should(HaveLen(2))
		Expect(spansOfKind(instrumentation.SpanKindClient)).To(HaveLen(1))
	})

	It("ends the server span and re-panics when the handler panics", func() {
		interceptor := tracegrpc.UnaryServerInterceptor(tracer)
		info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Panic"}

		Expect(func() {
			interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
				panic("boom")
			})
		}).To(PanicWith("boom"))

		spans := recorder.GetSpans()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].Operation).To(Equal("test.Service/Panic"))
		Expect(spans[0].Status).To(Equal(instrumentation.StatusError))
	})
})
