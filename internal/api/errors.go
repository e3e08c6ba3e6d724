package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a RequestError.
type ErrorKind int

const (
	// KindHTTP is a non-success status other than 401.
	KindHTTP ErrorKind = iota
	// KindTransport means the request never produced a response.
	KindTransport
	// KindUnauthenticated is a 401: the stored token is no longer valid.
	KindUnauthenticated
	// KindValidation is raised before any network call.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindTransport:
		return "transport"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// ErrUnauthenticated matches every RequestError of KindUnauthenticated.
var ErrUnauthenticated = errors.New("authentication required")

// RequestError is the single error type returned by Client methods. Message
// is meant for display.
type RequestError struct {
	Kind     ErrorKind
	Status   int
	Method   string
	Endpoint string
	Message  string
	Err      error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrUnauthenticated && e.Kind == KindUnauthenticated
}

func statusError(method, endpoint string, status int, body any) *RequestError {
	msg := messageField(body)
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	kind := KindHTTP
	if status == http.StatusUnauthorized {
		kind = KindUnauthenticated
	}
	return &RequestError{Kind: kind, Status: status, Method: method, Endpoint: endpoint, Message: msg}
}

func validationError(msg string) *RequestError {
	return &RequestError{Kind: KindValidation, Message: msg}
}

// Message returns the display message of err, or fallback when err is not a
// RequestError or carries no message.
func Message(err error, fallback string) string {
	var re *RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}

func messageField(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m["message"].(string)
	return s
}

// IsUnauthenticated reports whether err is, or wraps, a 401.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
