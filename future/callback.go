package future

import (
	"fmt"
	"runtime/debug"

	"github.com/amp-labs/amp-fsm/logger"
)

// invokeCallback runs a callback in its own goroutine so a slow or panicking
// callback cannot hold up promise fulfillment.
func invokeCallback[T any](kind string, callback func(T), value T) {
	if callback == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Error("panic encountered in future."+kind+" callback", "error", panicError(r))
			}
		}()

		callback(value)
	}()
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w\n%s", ErrPanic, err, debug.Stack())
	}

	return fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
}
