package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Class classifies a provider failure for retry policy purposes.
type Class string

const (
	// Retryable within a backend candidate, and across candidates for
	// the video stage.
	ClassRateLimited = Class("rate_limited")
	ClassTimeout     = Class("timeout")

	// Non-retryable; escalate immediately to stage failure.
	ClassInvalidInput  = Class("invalid_input")
	ClassQuotaExceeded = Class("quota_exceeded")
	ClassResourceError = Class("resource_error")
	ClassStorageError  = Class("storage_error")
)

// Error is a classified provider failure.
type Error struct {
	Class   Class
	Backend string
	Message string
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Class, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Errorf builds a classified error.
func Errorf(class Class, format string, args ...interface{}) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Classify returns the failure class of err. Context deadline errors
// count as timeouts; unclassified errors return the empty class and are
// treated as non-retryable.
func Classify(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Class
	}
	return ""
}

// IsRetryable reports whether err may succeed on another attempt.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassRateLimited, ClassTimeout:
		return true
	}
	return false
}

// ClassifyTransport maps an http transport error to the taxonomy.
// Network timeouts and exceeded deadlines are retryable timeouts;
// anything else stays unclassified.
func ClassifyTransport(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: ClassTimeout, Backend: backend, Message: err.Error()}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Class: ClassTimeout, Backend: backend, Message: err.Error()}
	}
	return fmt.Errorf("%s: %w", backend, err)
}

// ClassifyStatus maps a non-2xx response to the taxonomy. A nil return
// means the status was a success.
func ClassifyStatus(backend string, code int, body []byte) error {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return &Error{Class: ClassRateLimited, Backend: backend, Message: msg}
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return &Error{Class: ClassTimeout, Backend: backend, Message: msg}
	case code == http.StatusPaymentRequired || code == http.StatusForbidden:
		return &Error{Class: ClassQuotaExceeded, Backend: backend, Message: msg}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &Error{Class: ClassInvalidInput, Backend: backend, Message: msg}
	}
	return fmt.Errorf("%s: received non 2xx status code, got %d with body: %s", backend, code, msg)
}
