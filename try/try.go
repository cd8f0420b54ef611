// Package try holds a value/error pair so results can travel through channels
// and futures as a single value.
package try

// Try is the outcome of a computation that either produced a Value or failed with Error.
type Try[A any] struct {
	Value A
	Error error
}

// Of builds a Try from Go's usual (value, error) return pair.
func Of[A any](value A, err error) Try[A] {
	if err != nil {
		return Failure[A](err)
	}

	return Try[A]{Value: value}
}

// Failure builds a failed Try carrying the zero value.
func Failure[A any](err error) Try[A] {
	var zero A

	return Try[A]{Value: zero, Error: err}
}

func (t Try[A]) IsSuccess() bool {
	return t.Error == nil
}

func (t Try[A]) IsFailure() bool {
	return t.Error != nil
}

func (t Try[A]) Get() (A, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero A

		return zero, t.Error
	}

	return t.Value, nil
}

func (t Try[A]) GetOrElse(defaultValue A) A { //nolint:ireturn
	if t.IsSuccess() {
		return t.Value
	}

	return defaultValue
}
