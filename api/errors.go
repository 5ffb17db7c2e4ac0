package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxTextMessage bounds how much of a plain-text error body is used as the
// error message
const maxTextMessage = 200

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid epoch API configuration")
	// ErrAborted is the cause attached to every aborted request, whether the
	// caller cancelled it or the request timed out
	ErrAborted = errors.New("request aborted")
)

// Kind classifies a failed request
type Kind int

const (
	// KindUnknown is never produced by the client; it is the zero value
	KindUnknown Kind = iota
	// KindAborted covers caller cancellation and timeouts alike
	KindAborted
	// KindHTTP is a non-2xx response; status and body are attached
	KindHTTP
	// KindTransport means no response was received at all
	KindTransport
	// KindValidation is a client-side check that failed before any network call
	KindValidation
	// KindShape means the server answered with an unrecognized JSON shape
	KindShape
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case KindAborted:
		return "aborted"
	case KindHTTP:
		return "http"
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindShape:
		return "shape"
	default:
		return "unknown"
	}
}

// Error represents a classified request failure
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	// Body is the parsed JSON body when it parsed, the raw text otherwise
	Body    any
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("epoch API error: status %d: %s", e.StatusCode, e.Message)
	case KindAborted:
		return fmt.Sprintf("epoch API request aborted: %s %s", e.Method, e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("epoch API %s error: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("epoch API %s error: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound checks if the error indicates a not found response
func (e *Error) IsNotFound() bool {
	return e.Kind == KindHTTP && e.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *Error) IsUnauthorized() bool {
	return e.Kind == KindHTTP && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// ServerMessage returns the message supplied by the server, if any.
// Laravel-style backends put it under "message", others under "error".
// Plain-text bodies count only when short and on a single line.
func (e *Error) ServerMessage() string {
	switch body := e.Body.(type) {
	case map[string]any:
		for _, key := range []string{"message", "error", "detail"} {
			if msg, ok := body[key].(string); ok && msg != "" {
				return msg
			}
		}
	case string:
		// HTML error pages from proxies are never a message
		text := strings.TrimSpace(body)
		if text == "" || len(text) > maxTextMessage || strings.ContainsAny(text, "\r\n") || strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}
	return ""
}

// KindOf returns the classification of err, or KindUnknown when err is not
// an *Error
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsAborted reports whether err is a cancellation or timeout
func IsAborted(err error) bool {
	return KindOf(err) == KindAborted
}

// IsHTTP reports whether err is a non-2xx response
func IsHTTP(err error) bool {
	return KindOf(err) == KindHTTP
}

// IsTransport reports whether err is a network failure with no response
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// NewValidationError builds a KindValidation error for checks that run
// before any request is made
func NewValidationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}
