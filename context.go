package instrumentation

import (
	"context"
)

type activeSpanKey struct{}

type remoteSpanContextKey struct{}

// kindKey marks the innermost span of a kind, for suppression.
type kindKey struct {
	kind SpanKind
}

// ContextWithSpan returns ctx with span as the active span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	ctx = context.WithValue(ctx, activeSpanKey{}, span)
	if span != nil && span.kind.suppressible() {
		ctx = context.WithValue(ctx, kindKey{span.kind}, span)
	}
	return ctx
}

// SpanFromContext returns the active span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(activeSpanKey{}).(*Span)
	return span
}

// ContextWithRemoteSpanContext records a span context received from another
// process. New spans started from the returned context are its children,
// even if ctx already carried an active span.
func ContextWithRemoteSpanContext(ctx context.Context, sc SpanContext) context.Context {
	sc.Remote = true
	ctx = context.WithValue(ctx, activeSpanKey{}, (*Span)(nil))
	return context.WithValue(ctx, remoteSpanContextKey{}, sc)
}

// SpanContextFromContext returns the context of the active span, falling
// back to a remote span context. The result is invalid when neither exists.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if span := SpanFromContext(ctx); span != nil {
		return span.Context()
	}
	sc, _ := ctx.Value(remoteSpanContextKey{}).(SpanContext)
	return sc
}

// spanOfKind returns the innermost span of kind started in ctx.
func spanOfKind(ctx context.Context, kind SpanKind) *Span {
	span, _ := ctx.Value(kindKey{kind}).(*Span)
	return span
}
