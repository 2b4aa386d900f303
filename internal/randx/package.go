package randx

import (
	"runtime"
	"time"

	"github.com/lightstep/lightstep-tracer-go/lightstep/rand"
)

var (
	// a pool of 16 generators or one per CPU, whichever is higher, spreads
	// id generation across goroutines serving independent requests.
	randomPool = NewPool()
)

// NewPool returns a time-seeded generator pool sized for this machine.
func NewPool() *rand.Pool {
	return rand.NewPool(time.Now().UnixNano(), uint64(max(16, runtime.NumCPU())))
}

// GenSeededGUID returns a non-zero 64-bit id, suitable for span ids.
func GenSeededGUID(opts ...Option) uint64 {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	gen := c.randomPool.Pick()
	for {
		if n := gen.Int63(); n != 0 {
			return uint64(n)
		}
	}
}

// GenSeededGUID2 returns the high and low halves of a 128-bit trace id.
// The low half is never zero.
func GenSeededGUID2(opts ...Option) (uint64, uint64) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	gen := c.randomPool.Pick()
	for {
		if n1, n2 := gen.TwoInt63(); n2 != 0 {
			return uint64(n1), uint64(n2)
		}
	}
}

type Option func(*config)

func WithRandomPool(randomPool *rand.Pool) Option {
	return func(c *config) {
		c.randomPool = randomPool
	}
}

type config struct {
	randomPool *rand.Pool
}

func defaultConfig() *config {
	return &config{
		randomPool: randomPool,
	}
}
