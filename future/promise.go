package future

import (
	"github.com/amp-labs/amp-fsm/try"
	"go.uber.org/atomic"
)

// Promise is the write-only side of a Future.
//
// A promise moves from pending to either started or canceled exactly once.
// Fulfillment is idempotent: only the first Success/Failure/Complete is kept.
type Promise[T any] struct {
	future      *Future[T]
	state       *atomic.Int32
	cancelFuncs []func()
}

// Start marks the work as begun. It returns false if the future was already
// cancelled, in which case the producer must not run the work.
func (p *Promise[T]) Start() bool {
	if p.state.CompareAndSwap(statePending, stateStarted) {
		return true
	}

	return p.state.Load() == stateStarted
}

// IsCancelled returns true if the promise has been canceled.
func (p *Promise[T]) IsCancelled() bool {
	return p.state.Load() == stateCanceled
}

func (p *Promise[T]) cancel() bool {
	if !p.state.CompareAndSwap(statePending, stateCanceled) {
		return false
	}

	for _, cancel := range p.cancelFuncs {
		cancel()
	}

	p.Failure(ErrCanceled)

	return true
}

// fulfill stores the result, closes resultReady and hands the result to every
// registered callback. The mutex is held while closing the channel so OnResult
// cannot register a callback that would be missed.
func (p *Promise[T]) fulfill(result try.Try[T]) {
	p.future.once.Do(func() {
		p.future.result = result

		p.future.mu.Lock()
		close(p.future.resultReady)

		callbacks := p.future.callbacks
		p.future.callbacks = nil

		p.future.mu.Unlock()

		for _, callback := range callbacks {
			invokeCallback("OnResult", callback, result)
		}
	})
}

// Success fulfills the promise with a value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(try.Try[T]{Value: value})
}

// Failure fulfills the promise with an error.
func (p *Promise[T]) Failure(err error) {
	p.fulfill(try.Failure[T](err))
}

// Complete fulfills the promise from a (value, error) pair.
func (p *Promise[T]) Complete(value T, err error) {
	p.fulfill(try.Of(value, err))
}
