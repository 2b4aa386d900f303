// Package calldepth guards instrumentation points against recording the same
// logical operation twice when a library's entry points call each other.
//
// Depths live in a table carried by the context.Context of the call, so the
// state follows one request through its call stack and never becomes a
// process wide counter. Work handed to another goroutine should be given a
// context passed through Detach.
package calldepth

import (
	"context"
	"sync"
)

// Baseline is the depth observed by the outermost call of an instrumentation
// point.
const Baseline = 0

type tableKey struct{}

type table struct {
	lock   sync.Mutex
	depths map[any]int
}

func tableFrom(ctx context.Context) *table {
	t, _ := ctx.Value(tableKey{}).(*table)
	return t
}

// Increment bumps the depth for point and returns the depth observed before
// the increment. Only the caller that observed Baseline may record a span,
// and it must call Reset once its operation completes. The returned context
// carries the table and must be passed down to nested calls.
func Increment(ctx context.Context, point any) (context.Context, int) {
	t := tableFrom(ctx)
	if t == nil {
		t = &table{depths: make(map[any]int)}
		ctx = context.WithValue(ctx, tableKey{}, t)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	depth := t.depths[point]
	t.depths[point] = depth + 1
	return ctx, depth
}

// Reset restores point to Baseline. It is a no-op when ctx carries no table.
func Reset(ctx context.Context, point any) {
	t := tableFrom(ctx)
	if t == nil {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.depths, point)
}

// Depth reports the current depth of point.
func Depth(ctx context.Context, point any) int {
	t := tableFrom(ctx)
	if t == nil {
		return Baseline
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	return t.depths[point]
}

// Detach returns a context whose values otherwise match ctx but which starts
// from an empty depth table.
func Detach(ctx context.Context) context.Context {
	if tableFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, tableKey{}, (*table)(nil))
}
