package instrumentation

import (
	"errors"
	"fmt"
)

var (
	// ErrCarrierRejected is returned by a Carrier that refused a write, for
	// example because the underlying headers were already sent. Propagators
	// pass it through so the caller can fork the carrier and retry.
	ErrCarrierRejected = errors.New("carrier rejected write")

	// ErrNoPropagators is returned by an empty PropagatorStack.
	ErrNoPropagators = errors.New("no propagators configured")
)

/*
	Error Types
*/

// ConfigurationError reports a malformed setting. The default value has been
// substituted by the time it is observed.
type ConfigurationError interface {
	ConfigurationError()
	Setting() string
	error
}

// PropagationError reports a malformed or unsupported wire header. Extraction
// proceeds as if no parent were present.
type PropagationError interface {
	PropagationError()
	Header() string
	error
}

// AttributeError reports a failure while deriving a span attribute. The
// attribute is omitted and the span proceeds normally.
type AttributeError interface {
	AttributeError()
	Attribute() string
	error
}

type configurationError struct {
	setting string
	value   string
	err     error
}

func newConfigurationError(setting, value string, err error) ConfigurationError {
	return &configurationError{setting: setting, value: value, err: err}
}

func (*configurationError) ConfigurationError() {}

func (e *configurationError) Setting() string {
	return e.setting
}

func (e *configurationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.value, e.setting, e.err)
}

func (e *configurationError) Unwrap() error {
	return e.err
}

type propagationError struct {
	header string
	err    error
}

func newPropagationError(header string, err error) PropagationError {
	return &propagationError{header: header, err: err}
}

func (*propagationError) PropagationError() {}

func (e *propagationError) Header() string {
	return e.header
}

func (e *propagationError) Error() string {
	return fmt.Sprintf("%s: %v", e.header, e.err)
}

func (e *propagationError) Unwrap() error {
	return e.err
}

type attributeError struct {
	attribute string
	err       error
}

func newAttributeError(attribute string, err error) AttributeError {
	return &attributeError{attribute: attribute, err: err}
}

func (*attributeError) AttributeError() {}

func (e *attributeError) Attribute() string {
	return e.attribute
}

func (e *attributeError) Error() string {
	return fmt.Sprintf("attribute %s: %v", e.attribute, e.err)
}

func (e *attributeError) Unwrap() error {
	return e.err
}

// panicError turns a recovered value into an error.
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
