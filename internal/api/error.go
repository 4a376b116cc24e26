package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is the uniform failure shape for every backend call: network
// failure, non-2xx status and response decode failure all surface as
// *Error so state containers can branch on status uniformly.
type Error struct {
	Status     int
	StatusText string
	Body       []byte

	cause error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		if e.cause != nil {
			return fmt.Sprintf("api: %s: %v", e.StatusText, e.cause)
		}
		return fmt.Sprintf("api: %s", e.StatusText)
	}
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("api: %s: %s", e.StatusText, msg)
	}
	return fmt.Sprintf("api: %s", e.StatusText)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// errorEnvelope covers the backend's error body shapes: a structured
// validation list, a plain detail string, or an error field.
type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
	Err    string          `json:"error"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// Message extracts the first human-readable message from the error
// body. Remaining validation messages are discarded.
func (e *Error) Message() string {
	if len(e.Body) == 0 {
		return ""
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(e.Body, &envelope); err != nil {
		return ""
	}

	if len(envelope.Detail) > 0 {
		var items []validationItem
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			return items[0].Msg
		}
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
	}

	return envelope.Err
}

func newError(status int, statusText string, body []byte) *Error {
	return &Error{Status: status, StatusText: statusText, Body: body}
}

// As is a convenience wrapper around errors.As for *Error
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
