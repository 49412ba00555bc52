package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
)

// ErrNotARepo is returned when the path is not inside a Git repository.
var ErrNotARepo = errors.New("not a git repository")

// ParseError reports git output that did not match the expected grammar.
// Fragment always carries the offending raw text.
type ParseError struct {
	Parser   string
	Line     int // 1-based; 0 when the error is not tied to one line
	Fragment string
	Reason   string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s: %q", e.Parser, e.Line, e.Reason, e.Fragment)
	}
	return fmt.Sprintf("%s: %s: %q", e.Parser, e.Reason, e.Fragment)
}

func newParseError(parser string, line int, fragment, reason string) *ParseError {
	return &ParseError{Parser: parser, Line: line, Fragment: fragment, Reason: reason}
}

// parseFailure converts a parser error into a failed Result payload with
// the raw fragment attached.
func parseFailure(err error) *result.Failure {
	var pe *ParseError
	if errors.As(err, &pe) {
		return result.NewFailure(result.KindParseFailure, pe.Error()).
			WithDetail(pe.Fragment).WithCause(pe)
	}
	return result.NewFailure(result.KindParseFailure, err.Error()).WithCause(err)
}

// stateFailure reports an operation whose phase could not be determined.
func stateFailure(op, format string, args ...any) *result.Failure {
	msg := fmt.Sprintf(format, args...)
	return result.NewFailure(result.KindStateInconsistent,
		fmt.Sprintf("cannot determine %s state: %s", op, msg))
}

// splitLines splits command output into lines, dropping the trailing newline.
// Empty output yields no lines.
func splitLines(out string) []string {
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// isHash accepts abbreviated (>= 4) through SHA-256 length hashes.
func isHash(s string) bool {
	return len(s) >= 4 && len(s) <= 64 && isHex(s)
}
