// Package lazy provides a value that is initialized at most once, on first use,
// with every concurrent caller waiting on the same initialization.
package lazy

import (
	"context"
	"fmt"
	"sync"
)

// Value holds the result of an initializer that runs once
type Value[T any] struct {
	init func() (T, error)
	once sync.Once
	done chan struct{}

	val T
	err error
}

// New returns a Value that will run init on the first Get
func New[T any](init func() (T, error)) *Value[T] {
	return &Value[T]{
		init: init,
		done: make(chan struct{}),
	}
}

// Get starts the initializer if needed and waits for its result.
// A caller whose ctx ends stops waiting; the initializer keeps running
// and its result is still memoized for later callers. A panicking
// initializer is memoized as an error.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.once.Do(func() {
		go func() {
			defer close(v.done)
			defer func() {
				if r := recover(); r != nil {
					v.err = fmt.Errorf("initializer panicked: %v", r)
				}
			}()
			v.val, v.err = v.init()
		}()
	})

	select {
	case <-v.done:
		return v.val, v.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether initialization has finished
func (v *Value[T]) Ready() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}
