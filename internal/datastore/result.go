package datastore

import "errors"

// Result is the outcome of a store call: either a value or an error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Fail wraps an error.
func Fail[T any](err error) Result[T] { return Result[T]{err: err} }

// Unwrap returns the value and error in Go's usual order.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// Err is nil on success.
func (r Result[T]) Err() error { return r.err }

// OK reports success.
func (r Result[T]) OK() bool { return r.err == nil }

// NotFound reports whether the call matched no rows.
func (r Result[T]) NotFound() bool { return errors.Is(r.err, ErrNotFound) }

// Conflict reports whether a unique constraint rejected the write.
func (r Result[T]) Conflict() bool { return errors.Is(r.err, ErrConflict) }
