package testtimex

import (
	"sync"
	"time"

	"github.com/lightstep/lightstep-instrumentation-go/internal/timex"
)

// Clock is a manually driven timex.Clock.
type Clock interface {
	timex.Clock

	// Advance moves the clock forward. Non-positive durations are ignored.
	Advance(time.Duration)
}

func NewClock(start time.Time) Clock {
	return &clock{now: start}
}

type clock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.now = c.now.Add(d)
}
