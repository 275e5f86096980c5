// Package errors defines the error taxonomy shared by the index, codec, query
// engine, and serving layers, and maps it onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIO marks a missing or unreadable index file during load or save.
	ErrIO = errors.New("index i/o error")
	// ErrFormat marks a corrupted index file: bad magic, varint overflow,
	// truncated data, or a declared length above the configured maximum.
	ErrFormat = errors.New("index format error")
	// ErrQuerySyntax marks a malformed boolean query expression.
	ErrQuerySyntax = errors.New("query syntax error")
	// ErrLookup marks a document id outside the valid range.
	ErrLookup = errors.New("document lookup error")

	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Syntaxf builds a query syntax error carrying a 400 status.
func Syntaxf(format string, args ...any) *AppError {
	return Newf(ErrQuerySyntax, http.StatusBadRequest, format, args...)
}

// Formatf wraps a corruption description in ErrFormat.
func Formatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// IOf wraps an underlying filesystem error in ErrIO while keeping it
// reachable through errors.Is / errors.As.
func IOf(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, fmt.Sprintf(format, args...), err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrQuerySyntax), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrLookup):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
