package instrumentation

import (
	"sync"

	"go.uber.org/zap"
)

// Events are emitted by the Tracer as a reporting mechanism. They are handled
// by passing an OnEvent callback to NewTracer with WithEventHandler. Events
// may be cast to specific event types in order access additional information.
//
// NOTE: To ensure that events can be accurately identified, each event type contains
// a sentinel method matching the name of the type. This method is a no-op, it is only used
// for type coercion.
type Event interface {
	Event()
	String() string
}

// The ErrorEvent type can be used to filter events for errors. The `Err` method
// returns the underlying error.
type ErrorEvent interface {
	Event
	error
	Err() error
}

// EventConfigurationError occurs when a setting could not be parsed and its
// default was used instead.
type EventConfigurationError interface {
	ErrorEvent
	EventConfigurationError()
	Setting() string
}

type eventConfigurationError struct {
	err ConfigurationError
}

func newEventConfigurationError(err ConfigurationError) *eventConfigurationError {
	return &eventConfigurationError{err: err}
}

func (*eventConfigurationError) Event()                   {}
func (*eventConfigurationError) EventConfigurationError() {}

func (e *eventConfigurationError) Setting() string {
	return e.err.Setting()
}

func (e *eventConfigurationError) String() string {
	return e.err.Error()
}

func (e *eventConfigurationError) Error() string {
	return e.err.Error()
}

func (e *eventConfigurationError) Err() error {
	return e.err
}

// EventPropagationError occurs when an inbound carrier held a trace header
// that could not be used, or an outbound carrier refused a header.
type EventPropagationError interface {
	ErrorEvent
	EventPropagationError()
}

type eventPropagationError struct {
	err error
}

func newEventPropagationError(err error) *eventPropagationError {
	return &eventPropagationError{err: err}
}

func (*eventPropagationError) Event()                 {}
func (*eventPropagationError) EventPropagationError() {}

func (e *eventPropagationError) String() string {
	return e.err.Error()
}

func (e *eventPropagationError) Error() string {
	return e.err.Error()
}

func (e *eventPropagationError) Err() error {
	return e.err
}

// EventAttributeError occurs when deriving a span attribute failed. The span
// was recorded without it.
type EventAttributeError interface {
	ErrorEvent
	EventAttributeError()
	Attribute() string
}

type eventAttributeError struct {
	err AttributeError
}

func newEventAttributeError(err AttributeError) *eventAttributeError {
	return &eventAttributeError{err: err}
}

func (*eventAttributeError) Event()               {}
func (*eventAttributeError) EventAttributeError() {}

func (e *eventAttributeError) Attribute() string {
	return e.err.Attribute()
}

func (e *eventAttributeError) String() string {
	return e.err.Error()
}

func (e *eventAttributeError) Error() string {
	return e.err.Error()
}

func (e *eventAttributeError) Err() error {
	return e.err
}

// EventRecorderError occurs when the SpanRecorder failed to record or flush
// finished spans.
type EventRecorderError interface {
	ErrorEvent
	EventRecorderError()
}

type eventRecorderError struct {
	err error
}

func newEventRecorderError(err error) *eventRecorderError {
	return &eventRecorderError{err: err}
}

func (*eventRecorderError) Event()              {}
func (*eventRecorderError) EventRecorderError() {}

func (e *eventRecorderError) String() string {
	return e.err.Error()
}

func (e *eventRecorderError) Error() string {
	return e.err.Error()
}

func (e *eventRecorderError) Err() error {
	return e.err
}

/*
	OnEvent Handlers
*/

// NewOnEventLogger logs events to logger. Configuration problems are logged
// at WARN, propagation and attribute problems at DEBUG, recorder failures at
// ERROR.
func NewOnEventLogger(logger *zap.Logger) func(Event) {
	logger = logger.Named("instrumentation")
	return func(event Event) {
		logEvent(logger, event)
	}
}

func logEvent(logger *zap.Logger, event Event) {
	switch event := event.(type) {
	case EventConfigurationError:
		logger.Warn("configuration error, using default", zap.String("setting", event.Setting()), zap.Error(event.Err()))
	case EventPropagationError:
		logger.Debug("trace context not propagated", zap.Error(event.Err()))
	case EventAttributeError:
		logger.Debug("span attribute omitted", zap.String("attribute", event.Attribute()), zap.Error(event.Err()))
	case EventRecorderError:
		logger.Error("span recorder failed", zap.Error(event.Err()))
	case ErrorEvent:
		logger.Error("instrumentation error", zap.Error(event.Err()))
	default:
		logger.Info("instrumentation event", zap.Stringer("event", event))
	}
}

// NewOnEventLogOneError only logs the first error event.
func NewOnEventLogOneError(logger *zap.Logger) func(Event) {
	l := logOneError{logger: logger.Named("instrumentation")}
	return l.OnEvent
}

type logOneError struct {
	sync.Once
	logger *zap.Logger
}

func (l *logOneError) OnEvent(event Event) {
	switch event := event.(type) {
	case ErrorEvent:
		l.Once.Do(func() {
			l.logger.Error("instrumentation error, further errors are not logged", zap.Error(event.Err()))
		})
	}
}

// NewOnEventChannel returns an OnEvent callback handler, and a channel that
// produces the events. When the channel buffer is full, subsequent events will
// be dropped. A buffer size of less than one is incorrect, and will be adjusted
// to a buffer size of one.
func NewOnEventChannel(buffer int) (func(Event), <-chan Event) {
	if buffer < 1 {
		buffer = 1
	}

	eventChan := make(chan Event, buffer)

	handler := func(event Event) {
		select {
		case eventChan <- event:
		default:
		}
	}

	return handler, eventChan
}
