package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Stock ledger and POS integration.
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeConfiguration       Code = "CONFIGURATION_ERROR"
	CodeNotImplemented      Code = "NOT_IMPLEMENTED"
)

// Metadata describes how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable   = true
	final       = false
	withDetails = true
	opaque      = false
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:          {http.StatusBadRequest, final, "validation failed", withDetails},
	CodeUnauthorized:        {http.StatusUnauthorized, final, "authentication required", opaque},
	CodeForbidden:           {http.StatusForbidden, final, "access denied", opaque},
	CodeNotFound:            {http.StatusNotFound, final, "resource not found", opaque},
	CodeConflict:            {http.StatusConflict, final, "conflict detected", opaque},
	CodeStateConflict:       {http.StatusUnprocessableEntity, final, "state transition disallowed", withDetails},
	CodeIdempotency:         {http.StatusConflict, final, "idempotency key reused", withDetails},
	CodeRateLimit:           {http.StatusTooManyRequests, final, "rate limit exceeded", opaque},
	CodeInternal:            {http.StatusInternalServerError, retryable, "internal server error", opaque},
	CodeDependency:          {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},
	CodeInsufficientStock:   {http.StatusConflict, final, "out of stock", withDetails},
	CodeConcurrencyConflict: {http.StatusConflict, retryable, "concurrent update detected, retry the request", opaque},
	CodeConfiguration:       {http.StatusInternalServerError, final, "integration misconfigured", opaque},
	CodeNotImplemented:      {http.StatusNotImplemented, final, "not implemented", opaque},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. The message is internal; clients see the code's
// public message unless the HTTP layer decides otherwise.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
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
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost coded error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

func IsRetryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
