// Package future provides a Future/Promise pair for handing the result of an
// asynchronous computation from the goroutine that produces it to any number of
// goroutines that wait for it.
//
// A Future can be cancelled only while its work has not started yet. Producers
// call Promise.Start before doing any work; once Start has returned true, Cancel
// is a no-op and the work runs to completion.
package future

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amp-labs/amp-fsm/try"
	"go.uber.org/atomic"
)

var (
	// ErrCanceled is the failure of a future that was cancelled before its work began.
	ErrCanceled = errors.New("future canceled")
	// ErrTimeout is returned by AwaitTimeout when the result did not arrive in time.
	ErrTimeout = errors.New("future timed out")
	// ErrPanic wraps a panic recovered from the producing function or a callback.
	ErrPanic = errors.New("panic in future")
)

const (
	statePending int32 = iota
	stateStarted
	stateCanceled
)

// Future is the read-only side of an asynchronous computation.
type Future[T any] struct {
	once        sync.Once
	mu          sync.Mutex
	resultReady chan struct{}
	result      try.Try[T]
	callbacks   []func(try.Try[T])
	promise     *Promise[T]
}

// New creates a pending Future and the Promise that completes it. The optional
// cancelFuncs run once if the future is cancelled before the work starts.
func New[T any](cancelFuncs ...func()) (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		resultReady: make(chan struct{}),
	}

	promise := &Promise[T]{
		future:      fut,
		state:       atomic.NewInt32(statePending),
		cancelFuncs: cancelFuncs,
	}

	fut.promise = promise

	return fut, promise
}

// Go runs fn in a new goroutine and returns a Future for its result.
// A panic in fn fails the future with ErrPanic.
func Go[T any](fn func() (T, error)) *Future[T] {
	fut, promise := New[T]()

	go func() {
		if !promise.Start() {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				promise.Failure(panicError(r))
			}
		}()

		promise.Complete(fn())
	}()

	return fut
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.resultReady
}

// Await blocks until the result is available.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.resultReady

	return f.result.Get()
}

// AwaitContext blocks until the result is available or ctx is done.
// Giving up on the wait does not cancel the underlying work.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	select {
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	case <-f.resultReady:
		return f.result.Get()
	}
}

// AwaitTimeout blocks for at most timeout. A non-positive timeout waits forever.
func (f *Future[T]) AwaitTimeout(timeout time.Duration) (T, error) { //nolint:ireturn
	if timeout <= 0 {
		return f.Await()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		var zero T

		return zero, ErrTimeout
	case <-f.resultReady:
		return f.result.Get()
	}
}

// Cancel cancels the computation if it has not started. It reports whether the
// cancellation took effect; on success the future fails with ErrCanceled.
func (f *Future[T]) Cancel() bool {
	return f.promise.cancel()
}

// Canceled reports whether the future was cancelled.
func (f *Future[T]) Canceled() bool {
	return f.promise.IsCancelled()
}

// OnResult registers a callback invoked with the result in its own goroutine.
// Registering after completion invokes the callback right away.
func (f *Future[T]) OnResult(callback func(try.Try[T])) {
	if callback == nil {
		return
	}

	f.mu.Lock()

	select {
	case <-f.resultReady:
		f.mu.Unlock()
		invokeCallback("OnResult", callback, f.result)

		return
	default:
	}

	f.callbacks = append(f.callbacks, callback)
	f.mu.Unlock()
}
