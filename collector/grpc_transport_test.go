package collector_test

import (
	"context"
	"net"
	"sync"

	"github.com/lightstep/lightstep-tracer-common/golang/gogo/collectorpb"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"

	instrumentation "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/collector"
)

var _ = Describe("gRPC transport", func() {
	var (
		satellite *gRPCSatellite
		server    *grpc.Server
		recorder  *collector.Recorder
		tracer    *instrumentation.Tracer
	)

	BeforeEach(func() {
		satellite = &gRPCSatellite{}

		server = grpc.NewServer()
		collectorpb.RegisterCollectorServiceServer(server, satellite)

		// Start on a random available port
		listener, err := net.Listen("tcp", "localhost:")
		Expect(err).To(Succeed())
		go server.Serve(listener)

		recorder, err = collector.NewRecorder(
			collector.WithAddress(listener.Addr().String()),
			collector.WithInsecure(),
			collector.WithAccessToken(accessToken),
		)
		Expect(err).To(Succeed())
		tracer = instrumentation.NewTracer(instrumentation.WithRecorder(recorder))
	})

	AfterEach(func() {
		Expect(recorder.Close(context.Background())).To(Succeed())
		server.GracefulStop()
	})

	It("successfully serializes and sends finished spans", func() {
		ctx, parent := tracer.StartSpan(context.Background(), "parent")
		_, child := tracer.StartSpan(ctx, "child")
		child.Finish()
		parent.Finish()

		Expect(satellite.ReportedSpans()).To(BeEmpty())
		Expect(tracer.Flush(context.Background())).To(Succeed())

		Eventually(satellite.ReportedSpans).Should(ConsistOf(
			reportedSpan{OperationName: "child", ParentSpanID: parent.Context().SpanID},
			reportedSpan{OperationName: "parent"},
		))
		Expect(satellite.AccessToken()).To(Equal(accessToken))
	})

	It("can send multiple span reports", func() {
		_, span := tracer.StartSpan(context.Background(), "test1")
		span.Finish()
		Expect(tracer.Flush(context.Background())).To(Succeed())

		_, span = tracer.StartSpan(context.Background(), "test2")
		span.Finish()
		Expect(tracer.Flush(context.Background())).To(Succeed())

		Eventually(satellite.ReportedSpans).Should(ConsistOf(
			reportedSpan{OperationName: "test1"},
			reportedSpan{OperationName: "test2"},
		))
	})

	It("flushes on close", func() {
		_, span := tracer.StartSpan(context.Background(), "closing")
		span.Finish()

		Expect(tracer.Close(context.Background())).To(Succeed())
		Eventually(satellite.ReportedSpans).Should(ContainElement(reportedSpan{OperationName: "closing"}))
	})
})

type reportedSpan struct {
	OperationName string
	ParentSpanID  uint64
}

type gRPCSatellite struct {
	lock          sync.RWMutex
	accessToken   string
	reportedSpans []reportedSpan
}

func (s *gRPCSatellite) ReportedSpans() []reportedSpan {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]reportedSpan(nil), s.reportedSpans...)
}

func (s *gRPCSatellite) AccessToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.accessToken
}

func (s *gRPCSatellite) Report(ctx context.Context, req *collectorpb.ReportRequest) (*collectorpb.ReportResponse, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.accessToken = req.GetAuth().GetAccessToken()
	for _, span := range req.GetSpans() {
		reported := reportedSpan{OperationName: span.GetOperationName()}
		for _, ref := range span.GetReferences() {
			reported.ParentSpanID = ref.GetSpanContext().GetSpanId()
		}
		s.reportedSpans = append(s.reportedSpans, reported)
	}
	return &collectorpb.ReportResponse{}, nil
}
