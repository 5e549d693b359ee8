package promise

import (
	"context"
	"sync"

	"github.com/cryguy/rtcbridge/internal/eventloop"
)

// Future is the asynchronous result of one bridge call. It settles exactly
// once; continuations registered with Then run on the event loop.
type Future[T any] struct {
	loop *eventloop.EventLoop

	mu      sync.Mutex
	done    chan struct{}
	settled bool
	val     T
	err     error
	thens   []func(T, error)
}

func newFuture[T any](loop *eventloop.EventLoop) *Future[T] {
	return &Future[T]{loop: loop, done: make(chan struct{})}
}

// Resolved returns a future already settled with v.
func Resolved[T any](loop *eventloop.EventLoop, v T) *Future[T] {
	f := newFuture[T](loop)
	f.settle(v, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](loop *eventloop.EventLoop, err error) *Future[T] {
	f := newFuture[T](loop)
	var zero T
	f.settle(zero, err)
	return f
}

// Pending returns an unsettled future and the function that settles it.
// The settle function reports false when the future had already settled.
func Pending[T any](loop *eventloop.EventLoop) (*Future[T], func(T, error) bool) {
	f := newFuture[T](loop)
	return f, f.settle
}

// settle records the outcome and runs queued continuations in registration
// order. It reports false if the future had already settled.
func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.val, f.err = v, err
	thens := f.thens
	f.thens = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range thens {
		fn(v, err)
	}
	return true
}

// Then registers fn to run once the future settles. fn always runs on the
// event loop, never synchronously inside Then.
func (f *Future[T]) Then(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.thens = append(f.thens, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()

	if f.loop == nil || !f.loop.Post(func() { fn(v, err) }) {
		fn(v, err)
	}
}

// Await blocks until the future settles or ctx is done. Calling Await on the
// event loop goroutine for a future that has not settled deadlocks.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Map derives a future whose value is fn applied to f's value. A rejection
// of f, or an error from fn, rejects the derived future.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := newFuture[U](f.loop)
	f.Then(func(v T, err error) {
		var zero U
		if err != nil {
			out.settle(zero, err)
			return
		}
		u, err := fn(v)
		if err != nil {
			out.settle(zero, err)
			return
		}
		out.settle(u, nil)
	})
	return out
}
