package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, client-visible category of an error
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindNotFound    Kind = "not_found"
	KindAuth        Kind = "auth_error"
	KindStorage     Kind = "storage_error"
	KindRender      Kind = "render_error"
	KindPersistence Kind = "persistence_error"
	KindInternal    Kind = "internal_error"
)

// Error carries a kind, a human readable detail and an optional cause.
// Only Kind and Detail are ever sent to clients.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports missing or malformed input
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, nil, format, args...)
}

// NotFound reports a missing document, annotation or user
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, nil, format, args...)
}

// Auth reports a missing or invalid caller identity
func Auth(format string, args ...interface{}) *Error {
	return newf(KindAuth, nil, format, args...)
}

// Storage wraps an object store failure
func Storage(err error, format string, args ...interface{}) *Error {
	return newf(KindStorage, err, format, args...)
}

// Render wraps a PDF parse, page or image failure
func Render(err error, format string, args ...interface{}) *Error {
	return newf(KindRender, err, format, args...)
}

// Persistence wraps a metadata store failure
func Persistence(err error, format string, args ...interface{}) *Error {
	return newf(KindPersistence, err, format, args...)
}

// Internal wraps an unexpected failure
func Internal(err error, format string, args ...interface{}) *Error {
	return newf(KindInternal, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the client-safe detail string for err
func Detail(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return "unexpected server error"
}

// HTTPStatus maps a kind to the status code handlers answer with
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindRender:
		return http.StatusUnprocessableEntity
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
