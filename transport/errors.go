package transport

import (
	"errors"
	"fmt"
)

// Error is a failed auth API call: a non-2xx reply (StatusCode set, Message
// and Errors taken from the body) or a network failure (StatusCode 0, Err
// set).
type Error struct {
	StatusCode int
	Message    string
	Errors     map[string][]string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("request failed: %v", e.Err)
		}
		return "request failed"
	}
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// FieldErrors returns the messages reported for field.
func (e *Error) FieldErrors(field string) []string {
	if e == nil {
		return nil
	}
	return e.Errors[field]
}

// IsStatus reports whether err (or any wrapped error) is an Error with the
// given status code.
func IsStatus(err error, code int) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode == code
	}
	return false
}

// MessageOf returns the API-supplied message of err, or fallback when err is
// not an Error or carries no message.
func MessageOf(err error, fallback string) string {
	var te *Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return fallback
}
