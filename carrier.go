package instrumentation

import (
	"fmt"

	opentracing "github.com/opentracing/opentracing-go"
)

// Carrier is the write side of a propagation carrier, usually a set of
// outbound headers.
type Carrier interface {
	// Set writes one header. A carrier that cannot accept writes returns an
	// error wrapping ErrCarrierRejected.
	Set(key, value string) error

	// Fork replaces the underlying carrier with a writable copy of its
	// current contents. It returns false when the carrier cannot be copied.
	Fork() bool
}

// Setter writes key and value into carrier.
type Setter[C any] func(carrier C, key, value string) error

// TextMapCarrier adapts an opentracing.TextMapWriter, such as
// opentracing.HTTPHeadersCarrier or opentracing.TextMapCarrier. Writes never
// fail and the carrier cannot be forked.
func TextMapCarrier(w opentracing.TextMapWriter) Carrier {
	return textMapCarrier{w: w}
}

type textMapCarrier struct {
	w opentracing.TextMapWriter
}

func (c textMapCarrier) Set(key, value string) error {
	c.w.Set(key, value)
	return nil
}

func (textMapCarrier) Fork() bool {
	return false
}

// NewCarrier wraps a carrier of any type. Errors returned by setter are
// reported as ErrCarrierRejected. When copy is non-nil, Fork stores
// copy(*carrier) back through the pointer so the caller observes the fresh
// carrier.
func NewCarrier[C any](carrier *C, setter Setter[C], copy func(C) C) Carrier {
	return &funcCarrier[C]{carrier: carrier, setter: setter, copy: copy}
}

type funcCarrier[C any] struct {
	carrier *C
	setter  Setter[C]
	copy    func(C) C
}

func (c *funcCarrier[C]) Set(key, value string) error {
	if err := c.setter(*c.carrier, key, value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCarrierRejected, key, err)
	}
	return nil
}

func (c *funcCarrier[C]) Fork() bool {
	if c.copy == nil {
		return false
	}
	*c.carrier = c.copy(*c.carrier)
	return true
}
