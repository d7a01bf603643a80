// Package errx wraps sentinel errors with causes and formatted detail while
// keeping errors.Is working against the sentinel.
package errx

import (
	"errors"
	"fmt"
)

// Wrap attaches cause to sentinel. errors.Is(result, sentinel) is true.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With attaches a formatted detail string to sentinel without a separate
// cause error, e.g. errx.With(ErrInvalidConfig, ": field %q is required", name).
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}

// Is is a re-export of errors.Is for callers that only import errx.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
