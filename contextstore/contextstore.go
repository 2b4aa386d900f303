// Package contextstore attaches auxiliary values to instances of types the
// caller does not own, such as a third party client or response object.
//
// Stores are partitioned by owner type and value type. An entry lives exactly
// as long as its owner: stores hold owners through weak pointers and drop the
// entry once the owner has been collected. Values must not reference their
// owner, or the owner will never be collected. Owners that never move to the
// heap, such as package-level variables, are accepted and keep their entry
// for the life of the process. All pointers to a zero-size type share one
// entry.
package contextstore

import (
	"reflect"
	"runtime"
	"sync"
	"weak"
)

type storeKey struct {
	owner reflect.Type
	value reflect.Type
}

// Registry holds one Store per (owner type, value type) pair. Construct one
// per process lifecycle and hand it to the code that needs it.
type Registry struct {
	stores sync.Map // storeKey -> *Store[O, V]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// For returns the Store for owners of type O carrying values of type V,
// creating it on first use. Concurrent first calls all observe the same
// Store.
func For[O, V any](r *Registry) *Store[O, V] {
	key := storeKey{owner: reflect.TypeFor[O](), value: reflect.TypeFor[V]()}
	if s, ok := r.stores.Load(key); ok {
		return s.(*Store[O, V])
	}

	s, _ := r.stores.LoadOrStore(key, newStore[O, V]())
	return s.(*Store[O, V])
}

// Store maps owner identity to a single value.
type Store[O, V any] struct {
	entries sync.Map // weak.Pointer[O] -> *entry[V]
}

type entry[V any] struct {
	lock    sync.Mutex
	value   V
	present bool
}

func newStore[O, V any]() *Store[O, V] {
	return &Store[O, V]{}
}

func (s *Store[O, V]) lookup(owner *O, create bool) *entry[V] {
	key := weak.Make(owner)
	if e, ok := s.entries.Load(key); ok {
		return e.(*entry[V])
	}
	if !create {
		return nil
	}

	e, loaded := s.entries.LoadOrStore(key, &entry[V]{})
	if !loaded {
		runtime.AddCleanup(owner, s.evict, key)
	}
	return e.(*entry[V])
}

func (s *Store[O, V]) evict(key weak.Pointer[O]) {
	s.entries.Delete(key)
}

// Get returns the value attached to owner. A nil owner never has a value.
func (s *Store[O, V]) Get(owner *O) (V, bool) {
	var zero V
	if owner == nil {
		return zero, false
	}

	e := s.lookup(owner, false)
	if e == nil {
		return zero, false
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.present {
		return zero, false
	}
	return e.value, true
}

// Put attaches value to owner, replacing any previous value.
func (s *Store[O, V]) Put(owner *O, value V) {
	if owner == nil {
		return
	}

	e := s.lookup(owner, true)
	e.lock.Lock()
	defer e.lock.Unlock()

	e.value, e.present = value, true
}

// PutIfAbsent attaches value unless owner already has one, and returns the
// value attached after the call.
func (s *Store[O, V]) PutIfAbsent(owner *O, value V) V {
	return s.PutIfAbsentFunc(owner, func() V { return value })
}

// PutIfAbsentFunc attaches the result of factory unless owner already has a
// value. The factory runs at most once per owner, while holding that owner's
// entry lock, so it must not call back into this store for the same owner.
func (s *Store[O, V]) PutIfAbsentFunc(owner *O, factory func() V) V {
	if owner == nil {
		return factory()
	}

	e := s.lookup(owner, true)
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.present {
		e.value, e.present = factory(), true
	}
	return e.value
}

// Delete detaches any value from owner.
func (s *Store[O, V]) Delete(owner *O) {
	if owner == nil {
		return
	}

	if e := s.lookup(owner, false); e != nil {
		e.lock.Lock()
		defer e.lock.Unlock()

		var zero V
		e.value, e.present = zero, false
	}
}

// Len reports the number of owners the store still tracks.
func (s *Store[O, V]) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
