package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("requested resource not found")
	ErrMethodNotAllowed     = errors.New("method not allowed")
	ErrConflict             = errors.New("resource conflict") // e.g., email already registered
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnavailable          = errors.New("service unavailable") // store or filesystem down
)

type errorKind struct {
	err    error
	status int
	kind   string
}

// Order matters only when an error wraps more than one sentinel.
var errorKinds = []errorKind{
	{ErrInvalidInput, http.StatusBadRequest, "InvalidInput"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrNotFound, http.StatusNotFound, "NotFound"},
	{ErrMethodNotAllowed, http.StatusMethodNotAllowed, "MethodNotAllowed"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
	{ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "UnsupportedMediaType"},
	{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PayloadTooLarge"},
	{ErrUnavailable, http.StatusServiceUnavailable, "Unavailable"},
}

func lookupKind(err error) (errorKind, bool) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return errorKind{}, false
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if k, ok := lookupKind(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// KindOf returns the stable error kind reported to clients.
func KindOf(err error) string {
	if k, ok := lookupKind(err); ok {
		return k.kind
	}
	return "Internal"
}

// PublicMessage returns the text that may be shown to a caller. Store and
// unexpected failures are replaced by a generic sentence so driver details stay
// in the logs.
func PublicMessage(err error) string {
	k, ok := lookupKind(err)
	if !ok {
		return "internal server error"
	}
	if k.err == ErrUnavailable {
		return "service temporarily unavailable, please retry"
	}
	return err.Error()
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
