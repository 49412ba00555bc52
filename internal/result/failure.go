package result

import (
	"context"
	"errors"
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

// Kind classifies a Failure so callers can branch without string matching.
type Kind int

// Failure kinds.
const (
	KindCommandFailure Kind = iota
	KindToolMissing
	KindParseFailure
	KindTimeout
	KindCancelled
	KindStateInconsistent
)

// String returns the kind as a short label.
func (k Kind) String() string {
	switch k {
	case KindToolMissing:
		return "tool-missing"
	case KindCommandFailure:
		return "command-failure"
	case KindParseFailure:
		return "parse-failure"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindStateInconsistent:
		return "state-inconsistent"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is the error half of a Result. Message is what the user sees;
// Detail holds the raw diagnostic (git's stderr, or the offending output
// fragment for parse failures) so it can be copied verbatim.
type Failure struct {
	Kind    Kind
	Message string
	Detail  string
	Cause   error

	trace error
}

// NewFailure builds a Failure and records the caller's stack.
func NewFailure(kind Kind, message string) *Failure {
	return &Failure{
		Kind:    kind,
		Message: message,
		trace:   cerr.NewWithDepth(1, message),
	}
}

// WithDetail attaches the raw diagnostic text.
func (f *Failure) WithDetail(detail string) *Failure {
	f.Detail = detail
	return f
}

// WithCause attaches the underlying error.
func (f *Failure) WithCause(err error) *Failure {
	f.Cause = err
	return f
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Kind.String()
	}
	return f.Message
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (f *Failure) Unwrap() error { return f.Cause }

// StackTrace renders the stack captured when the Failure was created.
// Empty for failures built by hand as struct literals.
func (f *Failure) StackTrace() string {
	if f.trace == nil {
		return ""
	}
	return fmt.Sprintf("%+v", f.trace)
}

// IsCancelled reports whether the failure came from a user cancellation.
// UIs should not surface these as errors.
func (f *Failure) IsCancelled() bool { return f.Kind == KindCancelled }

// AsFailure converts any error into a *Failure. Existing failures are
// returned as-is; context errors map to Timeout / Cancelled.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	kind := KindCommandFailure
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	}
	return &Failure{
		Kind:    kind,
		Message: err.Error(),
		Cause:   err,
		trace:   cerr.WithStackDepth(err, 1),
	}
}
