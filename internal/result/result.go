// Package result provides the fallible-value type returned by every
// operation in the git layer.
//
// A Result is either a success carrying a value or a *Failure. Legitimately
// empty data (no tags, no branches, detached HEAD) is always a success;
// nil, false or an empty slice are never used to signal an error.
//
//	res := svc.GetTags(ctx)
//	res.When(
//		func(tags []git.Tag) { render(tags) },
//		func(f *result.Failure) { showError(f.Message, f.Detail) },
//	)
package result

import "fmt"

// Result is a value of type T or a *Failure, never both and never neither.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Success wraps a value.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a failure. A nil failure is a programming error.
func Fail[T any](f *Failure) Result[T] {
	if f == nil {
		panic("result: Fail called with nil failure")
	}
	return Result[T]{failure: f}
}

// Failf builds a failure of the given kind from a format string.
func Failf[T any](kind Kind, format string, args ...any) Result[T] {
	f := NewFailure(kind, fmt.Sprintf(format, args...))
	return Result[T]{failure: f}
}

// FromError converts a Go error into a failed Result.
func FromError[T any](err error) Result[T] {
	return Fail[T](AsFailure(err))
}

// IsSuccess reports whether the result carries a value.
func (r Result[T]) IsSuccess() bool { return r.failure == nil }

// Failure returns the failure, or nil on success.
func (r Result[T]) Failure() *Failure { return r.failure }

// Get bridges to the (value, error) convention.
func (r Result[T]) Get() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.value, nil
}

// When dispatches to exactly one of the two callbacks.
func (r Result[T]) When(onSuccess func(T), onFailure func(*Failure)) {
	if r.failure != nil {
		onFailure(r.failure)
		return
	}
	onSuccess(r.value)
}

// Unwrap returns the value and panics on failure. Only use it where a
// failure means a bug.
func (r Result[T]) Unwrap() T {
	if r.failure != nil {
		panic(fmt.Sprintf("result: Unwrap on failure (%s): %s", r.failure.Kind, r.failure.Message))
	}
	return r.value
}

// UnwrapOr returns the value, or def on failure.
func (r Result[T]) UnwrapOr(def T) T {
	if r.failure != nil {
		return def
	}
	return r.value
}

// Map transforms a successful value. The transform is never called on a
// failure; the failure propagates unchanged.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.failure != nil {
		return Result[U]{failure: r.failure}
	}
	return Success(fn(r.value))
}

// FlatMap chains a fallible step. A failure short-circuits the chain.
func FlatMap[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.failure != nil {
		return Result[U]{failure: r.failure}
	}
	return fn(r.value)
}

// Discard drops the value, keeping only success/failure.
func Discard[T any](r Result[T]) Result[struct{}] {
	return Map(r, func(T) struct{} { return struct{}{} })
}
