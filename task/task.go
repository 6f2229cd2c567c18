// Package task runs a function in the background and hands its outcome to
// whoever waits for it.
package task

import (
	"context"

	"github.com/pkg/errors"
)

type Task[T any] struct {
	done chan struct{}

	value T
	err   error
}

// Go starts fn. A panic inside fn is reported as the task's error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		defer func() {
			if r := recover(); r != nil {
				t.err = errors.Errorf("task panicked: %v", r)
			}
		}()

		t.value, t.err = fn(ctx)
	}()

	return t
}

// Done is closed once the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done. Giving up on a task does
// not stop it.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
