package claims

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common claim lifecycle errors. Anything not in this taxonomy is treated as
// a storage fault and surfaced to callers as an opaque internal error.
var (
	ErrPolicyNotFound    = errors.New("policy not found or does not belong to this wallet")
	ErrClaimNotFound     = errors.New("claim not found")
	ErrForbidden         = errors.New("claim does not belong to this wallet")
	ErrInvalidTransition = errors.New("status transition not permitted")
	ErrConflict          = errors.New("claim was modified concurrently")
	ErrSearchUnavailable = errors.New("claim search is not available")
)

// ValidationError signals malformed or missing input, including oversized or
// disallowed attachments. It never follows a mutation.
type ValidationError struct {
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a validation error with the given reason
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
