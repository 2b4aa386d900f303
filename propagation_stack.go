package instrumentation

import (
	"errors"

	opentracing "github.com/opentracing/opentracing-go"
)

// PropagatorStack composes several wire formats. Inject emits every format;
// Extract returns the first valid context in push order.
type PropagatorStack struct {
	propagators []Propagator
}

func NewPropagatorStack(propagators ...Propagator) *PropagatorStack {
	return &PropagatorStack{propagators: append([]Propagator(nil), propagators...)}
}

// PushPropagator adds p after the propagators already in the stack.
func (stack *PropagatorStack) PushPropagator(p Propagator) {
	stack.propagators = append(stack.propagators, p)
}

// Len reports the number of propagators.
func (stack *PropagatorStack) Len() int {
	return len(stack.propagators)
}

// Inject writes sc with every propagator. A rejected write forks the carrier
// and retries that propagator once; a failure in one propagator does not stop
// the others. The returned error joins every failure.
func (stack *PropagatorStack) Inject(sc SpanContext, carrier Carrier) error {
	if len(stack.propagators) == 0 {
		return ErrNoPropagators
	}

	var (
		errs   []error
		forked bool
	)
	for _, p := range stack.propagators {
		err := p.Inject(sc, carrier)
		if errors.Is(err, ErrCarrierRejected) && !forked {
			forked = true
			if carrier.Fork() {
				err = p.Inject(sc, carrier)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Extract returns the first valid context found. When none is found the
// first error other than opentracing.ErrSpanContextNotFound is returned.
func (stack *PropagatorStack) Extract(reader opentracing.TextMapReader) (SpanContext, error) {
	if len(stack.propagators) == 0 {
		return SpanContext{}, ErrNoPropagators
	}

	var firstErr error
	for _, p := range stack.propagators {
		sc, err := p.Extract(reader)
		if err == nil && sc.IsValid() {
			return sc, nil
		}
		if err != nil && !isNotFound(err) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = opentracing.ErrSpanContextNotFound
	}
	return SpanContext{}, firstErr
}
