package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed data-access error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// Meta carries structured details such as the violated constraint or the failing field.
	Meta map[string]string `json:"meta,omitempty"`
	Err  error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// sentinel still match errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "record not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid client credentials")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "unique constraint violated")
	ErrForeignKey         = New("FOREIGN_KEY_VIOLATION", http.StatusConflict, "foreign key constraint violated")
	ErrNullConstraint     = New("NULL_CONSTRAINT", http.StatusBadRequest, "null constraint violated")
	ErrWriteConflict      = New("WRITE_CONFLICT", http.StatusConflict, "transaction failed due to a write conflict or deadlock")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConnection         = New("CONNECTION_ERROR", http.StatusServiceUnavailable, "database server is not reachable")
	ErrTransactionTimeout = New("TRANSACTION_TIMEOUT", http.StatusGatewayTimeout, "transaction timed out")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Meta != nil {
		clone.Meta = make(map[string]string, len(err.Meta))
		for k, v := range err.Meta {
			clone.Meta[k] = v
		}
	}
	return &clone
}

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...interface{}) *Error {
	return Clone(ErrValidation, fmt.Sprintf(format, args...))
}

// WithMeta returns a copy of err with the given key set in Meta.
func WithMeta(err *Error, key, value string) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Meta == nil {
		clone.Meta = map[string]string{}
	}
	clone.Meta[key] = value
	return clone
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a unique constraint violation.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsForeignKey reports whether err is a foreign key violation.
func IsForeignKey(err error) bool { return errors.Is(err, ErrForeignKey) }

// IsValidation reports whether err was raised before any statement was sent.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConnection reports whether err means the store could not be reached.
func IsConnection(err error) bool { return errors.Is(err, ErrConnection) }

// IsTimeout reports whether err is a transaction timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTransactionTimeout) }

// IsCacheMiss reports whether a cache lookup found nothing.
func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }
