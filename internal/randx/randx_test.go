package randx_test

import (
	"sync"

	"github.com/lightstep/lightstep-tracer-go/lightstep/rand"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lightstep/lightstep-instrumentation-go/internal/randx"
)

var _ = Describe("GenSeededGUID", func() {
	It("never returns zero", func() {
		pool := randx.NewPool()
		for i := 0; i < 1000; i++ {
			Expect(randx.GenSeededGUID(randx.WithRandomPool(pool))).NotTo(BeZero())
		}
	})

	It("draws from a caller supplied pool", func() {
		pool := rand.NewPool(42, 1)
		for i := 0; i < 100; i++ {
			Expect(randx.GenSeededGUID(randx.WithRandomPool(pool))).NotTo(BeZero())
		}
	})

	It("hands out unique ids across goroutines", func() {
		const workers, perWorker = 8, 200

		var (
			wg   sync.WaitGroup
			lock sync.Mutex
			seen = make(map[uint64]struct{}, workers*perWorker)
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					id := randx.GenSeededGUID()
					lock.Lock()
					seen[id] = struct{}{}
					lock.Unlock()
				}
			}()
		}
		wg.Wait()

		Expect(seen).To(HaveLen(workers * perWorker))
	})
})

var _ = Describe("GenSeededGUID2", func() {
	It("returns two distinct halves with a non-zero low half", func() {
		hi, lo := randx.GenSeededGUID2()
		Expect(lo).NotTo(BeZero())
		Expect(hi).NotTo(Equal(lo))
	})
})
