package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeStateConflict         Code = "STATE_CONFLICT"
	CodeSessionNotInitialized Code = "SESSION_NOT_INITIALIZED"
	CodeTransport             Code = "TRANSPORT_ERROR"
	CodeIdempotency           Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal              Code = "INTERNAL_ERROR"
	CodeDependency            Code = "DEPENDENCY_ERROR"
)

// Metadata is the HTTP contract of a code: the status it maps to, whether a
// client may retry the same request, the message shown when the error's own
// message must stay private, and whether details reach the client.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:            {http.StatusBadRequest, false, "validation failed", true},
	CodeNotFound:              {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:              {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:         {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeSessionNotInitialized: {http.StatusPreconditionRequired, false, "session not initialized", false},
	CodeTransport:             {http.StatusBadGateway, true, "remote store unavailable", true},
	CodeIdempotency:           {http.StatusConflict, false, "idempotency key reused", true},
	CodeInternal:              {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:            {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor falls back to the internal error contract for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// RetryHint is implemented by error details that know better than the code
// whether a retry may succeed, such as a remote API failure carried inside a
// transport error.
type RetryHint interface {
	Retryable() bool
}

// IsRetryable reports whether repeating the failed call may succeed. Details
// implementing RetryHint take precedence over the code. Untyped errors count
// as internal failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if typed := As(err); typed != nil {
		if hint, ok := typed.details.(RetryHint); ok {
			return hint.Retryable()
		}
	}
	return MetadataFor(CodeOf(err)).Retryable
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf returns the typed code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the provided code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
