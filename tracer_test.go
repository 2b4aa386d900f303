package instrumentation_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	. "github.com/lightstep/lightstep-instrumentation-go"
	"github.com/lightstep/lightstep-instrumentation-go/contextstore"
	"github.com/lightstep/lightstep-instrumentation-go/internal/timex/testtimex"
)

var _ = Describe("Tracer", func() {
	var (
		tracer   *Tracer
		recorder *InMemoryRecorder
		clock    testtimex.Clock
		events   <-chan Event
		opts     []Option
	)

	BeforeEach(func() {
		opts = nil
	})

	JustBeforeEach(func() {
		tracer, recorder, clock, events = newTestTracer(opts...)
	})

	Describe("StartSpan", func() {
		It("should start a span that can be finished", func() {
			_, span := tracer.StartSpan(context.Background(), "operation_name")
			clock.Advance(time.Millisecond)
			span.Finish()

			spans := recorder.GetSpans()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Operation).To(Equal("operation_name"))
			Expect(spans[0].Kind).To(Equal(SpanKindInternal))
			Expect(spans[0].Duration).To(Equal(time.Millisecond))
		})

		It("should start a span that can be finished twice but only reports once", func() {
			_, span := tracer.StartSpan(context.Background(), "operation_name")
			span.Finish()
			span.Finish()

			Expect(recorder.GetSpans()).To(HaveLen(1))
		})

		It("parents new spans on the active span", func() {
			ctx, parent := tracer.StartSpan(context.Background(), "parent")
			_, child := tracer.StartSpan(ctx, "child")

			Expect(child.Context().TraceIDHex()).To(Equal(parent.Context().TraceIDHex()))
			Expect(child.Context().SpanID).NotTo(Equal(parent.Context().SpanID))

			child.Finish()
			parent.Finish()
			Expect(recorder.GetSpans()[0].ParentSpanID).To(Equal(parent.Context().SpanID))
		})

		It("inherits baggage from the parent", func() {
			remote := SpanContext{TraceID: 1, SpanID: 2, Flags: FlagSampled}.WithBaggageItem("tenant", "acme")
			ctx := ContextWithRemoteSpanContext(context.Background(), remote)

			_, span := tracer.StartSpan(ctx, "child")
			Expect(span.Context().BaggageItem("tenant")).To(Equal("acme"))
		})

		It("honors an explicit parent", func() {
			ctx, _ := tracer.StartSpan(context.Background(), "ignored")
			_, root := tracer.StartSpan(ctx, "root", WithParent(SpanContext{}))
			root.Finish()

			Expect(recorder.GetSpans()[0].ParentSpanID).To(BeZero())
		})

		It("ignores mutations after finish", func() {
			_, span := tracer.StartSpan(context.Background(), "operation_name", WithTags(opentracing.Tags{"component": "test"}))
			span.Finish()
			span.SetTag("late", true)
			span.SetStatus(StatusError, "late")
			span.RecordError(errors.New("late"))
			span.SetOperationName("renamed")

			raw := recorder.GetSpans()[0]
			Expect(raw).To(HaveTag("component", "test"))
			Expect(raw).NotTo(HaveTag("late"))
			Expect(raw.Status).To(Equal(StatusUnset))
			Expect(raw.Logs).To(BeEmpty())
			Expect(raw.Operation).To(Equal("operation_name"))
		})

		It("clears the error tag when the status recovers", func() {
			_, span := tracer.StartSpan(context.Background(), "retry")
			span.SetStatus(StatusError, "first attempt failed")
			span.SetStatus(StatusOK, "")
			span.Finish()

			Expect(recorder.GetSpans()[0]).NotTo(HaveTag(string(ext.Error)))
		})
	})

	Describe("Inject", func() {
		It("fails without a span context", func() {
			err := tracer.Inject(context.Background(), TextMapCarrier(opentracing.TextMapCarrier{}))
			Expect(err).To(MatchError(opentracing.ErrInvalidSpanContext))
		})

		It("contains panics raised by the carrier", func() {
			ctx, _ := tracer.StartSpan(context.Background(), "operation_name")
			var panicky map[string]string
			carrier := NewCarrier(&panicky, func(m map[string]string, k, v string) error {
				m[k] = v
				return nil
			}, nil)

			Expect(tracer.Inject(ctx, carrier)).To(HaveOccurred())
		})
	})

	Describe("Extract", func() {
		It("uses a valid context as the remote parent", func() {
			ctx := tracer.Extract(context.Background(), opentracing.TextMapCarrier{
				"traceparent": "00-4fd0b6131f19f39af59518d127b0cafe-00f067aa0ba902b7-01",
			})

			sc := SpanContextFromContext(ctx)
			Expect(sc.TraceIDHex()).To(Equal("4fd0b6131f19f39af59518d127b0cafe"))
			Expect(sc.Remote).To(BeTrue())
			Expect(SpanFromContext(ctx)).To(BeNil())
		})

		It("treats a malformed header as no parent and reports it", func() {
			ctx := tracer.Extract(context.Background(), opentracing.TextMapCarrier{"traceparent": "not-a-real-header"})
			Expect(SpanContextFromContext(ctx).IsValid()).To(BeFalse())

			expectEvent[EventPropagationError](events)

			_, span := tracer.StartSpan(ctx, "root")
			span.Finish()
			Expect(recorder.GetSpans()[0].ParentSpanID).To(BeZero())
		})

		It("stays quiet when no header is present", func() {
			tracer.Extract(context.Background(), opentracing.TextMapCarrier{})
			Expect(drainEvents(events)).To(BeEmpty())
		})
	})

	Describe("Close", func() {
		var flusher *fakeFlusher

		BeforeEach(func() {
			flusher = &fakeFlusher{InMemoryRecorder: NewInMemoryRecorder()}
			opts = append(opts, WithRecorder(flusher))
		})

		It("flushes the recorder and drops later spans", func() {
			_, span := tracer.StartSpan(context.Background(), "late")

			Expect(tracer.Close(context.Background())).To(Succeed())
			Expect(flusher.flushes).To(Equal(1))

			span.Finish()
			Expect(flusher.GetSpans()).To(BeEmpty())

			Expect(tracer.Close(context.Background())).To(Succeed())
			Expect(flusher.flushes).To(Equal(1))
		})

		It("reports flush failures", func() {
			flusher.err = errors.New("collector unavailable")

			Expect(tracer.Flush(context.Background())).To(MatchError(ContainSubstring("collector unavailable")))
			expectEvent[EventRecorderError](events)
		})
	})

	Describe("configuration", func() {
		Context("with unknown propagators", func() {
			BeforeEach(func() {
				config := DefaultConfig()
				config.Propagators = "b3,carrier-pigeon"
				opts = append(opts, WithConfig(config))
			})

			It("skips them", func() {
				Expect(expectEvent[EventConfigurationError](events).Setting()).To(Equal("PROPAGATORS"))
				Expect(tracer.Propagator().Len()).To(Equal(1))

				ctx, _ := tracer.StartSpan(context.Background(), "operation_name")
				carrier := opentracing.TextMapCarrier{}
				Expect(tracer.Inject(ctx, TextMapCarrier(carrier))).To(Succeed())
				Expect(carrier).To(HaveKey("x-b3-traceid"))
			})
		})

		Context("with explicit propagators", func() {
			BeforeEach(func() {
				opts = append(opts, WithPropagator(LightStepPropagator), WithPropagator(TraceContextPropagator))
			})

			It("ignores the setting", func() {
				Expect(tracer.Propagator().Len()).To(Equal(2))
			})
		})

		Context("with a shared context store registry", func() {
			registry := contextstore.NewRegistry()

			BeforeEach(func() {
				opts = append(opts, WithContextStores(registry))
			})

			It("exposes it", func() {
				Expect(tracer.ContextStores()).To(BeIdenticalTo(registry))
			})
		})
	})
})

var _ = Describe("NewOnEventLogger", func() {
	It("logs events at a level matching their severity", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		config := DefaultConfig()
		config.HTTPServerErrorStatuses = "five hundred"

		tracer := NewTracer(WithConfig(config), WithEventHandler(NewOnEventLogger(zap.New(core))))
		NewHTTPServerTracer[*fakeRequest, *fakeResponse](tracer, fakeAccessor{})
		tracer.Extract(context.Background(), opentracing.TextMapCarrier{"traceparent": "garbage"})

		entries := logs.All()
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Level).To(Equal(zapcore.WarnLevel))
		Expect(entries[0].ContextMap()).To(HaveKeyWithValue("setting", "HTTP_SERVER_ERROR_STATUSES"))
		Expect(entries[1].Level).To(Equal(zapcore.DebugLevel))
	})

	It("logs only the first error with NewOnEventLogOneError", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		tracer := NewTracer(WithEventHandler(NewOnEventLogOneError(zap.New(core))))

		tracer.Extract(context.Background(), opentracing.TextMapCarrier{"traceparent": "garbage"})
		tracer.Extract(context.Background(), opentracing.TextMapCarrier{"traceparent": "still garbage"})

		Expect(logs.Len()).To(Equal(1))
	})
})

type fakeFlusher struct {
	*InMemoryRecorder
	flushes int
	err     error
}

func (f *fakeFlusher) Flush(context.Context) error {
	f.flushes++
	return f.err
}
