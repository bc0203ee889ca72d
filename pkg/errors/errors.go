// Package errors provides structured error handling for Warden.
// It defines the platform error taxonomy, HTTP status mapping, and
// helpers for adding context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Taxonomy codes. Every error crossing a component boundary carries one.
const (
	CodeValidation      = "VALIDATION"
	CodeNotFound        = "NOT_FOUND"
	CodePolicyViolation = "POLICY_VIOLATION"
	CodeAuth            = "AUTH"
	CodeRateLimited     = "RATE_LIMITED"
	CodeCapacity        = "CAPACITY"
	CodeChain           = "CHAIN"
	CodeCrypto          = "CRYPTO"
	CodeInternal        = "INTERNAL"
)

// WardenError is the structured error type for the platform.
type WardenError struct {
	Code       string            // Taxonomy code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for the caller
	Cause      error             // Underlying error
}

func (e *WardenError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WardenError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for WardenError. Two platform errors match
// when their taxonomy codes match.
func (e *WardenError) Is(target error) bool {
	var t *WardenError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors, one per taxonomy class. Use Validation, NotFound, etc.
// to construct specific instances; use these with errors.Is to classify.
var (
	ErrValidation = &WardenError{Code: CodeValidation, Message: "invalid input"}

	ErrNotFound = &WardenError{Code: CodeNotFound, Message: "resource not found"}

	ErrPolicyViolation = &WardenError{Code: CodePolicyViolation, Message: "policy violation"}

	ErrAuth = &WardenError{Code: CodeAuth, Message: "authentication failed"}

	ErrRateLimited = &WardenError{Code: CodeRateLimited, Message: "rate limit exceeded"}

	ErrCapacity = &WardenError{Code: CodeCapacity, Message: "capacity limit reached"}

	ErrChain = &WardenError{Code: CodeChain, Message: "chain operation failed"}

	ErrCrypto = &WardenError{Code: CodeCrypto, Message: "cryptographic operation failed"}

	ErrInternal = &WardenError{Code: CodeInternal, Message: "internal error"}
)

// New creates a new WardenError with the given code and message.
func New(code, message string) *WardenError {
	return &WardenError{Code: code, Message: message}
}

// Validation creates a validation error with a formatted message.
func Validation(format string, args ...any) *WardenError {
	return &WardenError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error naming the missing resource.
func NotFound(resource, id string) *WardenError {
	return &WardenError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"id": id},
	}
}

// PolicyViolation creates a policy error with a formatted message.
func PolicyViolation(format string, args ...any) *WardenError {
	return &WardenError{Code: CodePolicyViolation, Message: fmt.Sprintf(format, args...)}
}

// Auth creates an authentication error with a formatted message.
func Auth(format string, args ...any) *WardenError {
	return &WardenError{Code: CodeAuth, Message: fmt.Sprintf(format, args...)}
}

// Chain creates a chain error wrapping an underlying RPC failure.
func Chain(message string, cause error) *WardenError {
	return &WardenError{Code: CodeChain, Message: message, Cause: cause}
}

// Crypto creates a crypto error. Crypto failures are fatal for the
// affected wallet and must never be retried.
func Crypto(message string, cause error) *WardenError {
	return &WardenError{Code: CodeCrypto, Message: message, Cause: cause}
}

// Internal creates an internal error wrapping a programmer error.
func Internal(message string, cause error) *WardenError {
	return &WardenError{Code: CodeInternal, Message: message, Cause: cause}
}

// Wrap wraps an error with additional context, preserving its taxonomy code.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var we *WardenError
	if errors.As(err, &we) {
		return &WardenError{
			Code:       we.Code,
			Message:    fmt.Sprintf("%s: %s", msg, we.Message),
			Details:    we.Details,
			Suggestion: we.Suggestion,
			Cause:      err,
		}
	}

	return &WardenError{Code: CodeInternal, Message: msg, Cause: err}
}

// WithDetails returns a copy of the error carrying extra detail fields.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var we *WardenError
	if errors.As(err, &we) {
		return &WardenError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    details,
			Suggestion: we.Suggestion,
			Cause:      we.Cause,
		}
	}

	return &WardenError{Code: CodeInternal, Message: err.Error(), Details: details, Cause: err}
}

// WithSuggestion returns a copy of the error carrying an actionable suggestion.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var we *WardenError
	if errors.As(err, &we) {
		return &WardenError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    we.Details,
			Suggestion: suggestion,
			Cause:      we.Cause,
		}
	}

	return &WardenError{Code: CodeInternal, Message: err.Error(), Suggestion: suggestion, Cause: err}
}

// Code returns the taxonomy code for an error.
func Code(err error) string {
	var we *WardenError
	if errors.As(err, &we) {
		return we.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the HTTP status returned at the boundary.
// Policy and rate-limit rejections map to 422: the intent was accepted
// and processed, but refused by policy or quota.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAuth:
		return http.StatusUnauthorized
	case CodePolicyViolation, CodeRateLimited:
		return http.StatusUnprocessableEntity
	case CodeCapacity:
		return http.StatusUnprocessableEntity
	case CodeChain:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
