package timex

import "time"

// Clock is the time source for span start and end timestamps.
type Clock interface {
	Now() time.Time
}

func NewClock() Clock {
	return clock{}
}

type clock struct{}

func (clock) Now() time.Time {
	return time.Now()
}
