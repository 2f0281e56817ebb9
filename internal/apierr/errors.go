// Package apierr defines the error taxonomy shared by every component and
// the mapping the HTTP layer uses to turn a Kind into a status code.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names a category from the error taxonomy. It is never a Go type
// name — components return errors wrapping a Kind, and callers inspect the
// Kind rather than the concrete error, so a scheduled job and an HTTP
// handler can share the same classification.
type Kind string

const (
	KindUpstreamRateLimited   Kind = "UpstreamRateLimited"
	KindUpstreamHTTPError     Kind = "UpstreamHTTPError"
	KindUpstreamTimeout       Kind = "UpstreamTimeout"
	KindUpstreamParseError    Kind = "UpstreamParseError"
	KindValidationError       Kind = "ValidationError"
	KindStoreUnavailable      Kind = "StoreUnavailable"
	KindWriteConflict         Kind = "WriteConflict"
	KindModelNotTrained       Kind = "ModelNotTrained"
	KindForecastHorizonRange  Kind = "ForecastHorizonOutOfRange"
	KindCancelled             Kind = "Cancelled"
	KindConfigError           Kind = "ConfigError"
)

// Error is the typed error every component returns instead of a raw error
// once the failure has been classified. Details is optional free-form
// context (e.g. the HTTP status code for KindUpstreamHTTPError).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured detail fields and returns the receiver.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode maps a Kind to the HTTP status the error middleware returns
// for direct API calls. Kinds surfaced only in scheduled-job stats (never
// from a handler) still get a sane default for completeness.
func StatusCode(kind Kind) int {
	switch kind {
	case KindUpstreamRateLimited:
		return http.StatusServiceUnavailable
	case KindUpstreamHTTPError:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamParseError:
		return http.StatusBadGateway
	case KindValidationError:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindWriteConflict:
		return http.StatusConflict
	case KindModelNotTrained:
		return http.StatusServiceUnavailable
	case KindForecastHorizonRange:
		return http.StatusBadRequest
	case KindCancelled:
		return 499
	case KindConfigError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
