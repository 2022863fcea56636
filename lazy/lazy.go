// Package lazy holds process-wide values that are computed at most once
// and can be explicitly dropped.
package lazy

import (
	"context"
	"sync"
)

// InitFunc builds the value on first use.
type InitFunc[T any] func(ctx context.Context) (T, error)

// Value is a lazily initialized, manually invalidated singleton. A failed
// initialization is not cached; the next Get tries again.
type Value[T any] struct {
	mu    sync.Mutex
	init  InitFunc[T]
	value T
	ready bool
}

func New[T any](init InitFunc[T]) *Value[T] {
	return &Value[T]{init: init}
}

// Get returns the cached value, building it if needed. Concurrent callers
// wait for a single initialization.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ready {
		return v.value, nil
	}
	val, err := v.init(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.value = val
	v.ready = true
	return val, nil
}

// Ready reports whether a value is cached.
func (v *Value[T]) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Peek returns the cached value without building it.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.ready
}

// Invalidate drops the cached value so the next Get rebuilds it, and
// returns what was dropped.
func (v *Value[T]) Invalidate() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	old, had := v.value, v.ready
	var zero T
	v.value = zero
	v.ready = false
	return old, had
}
