package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNetwork is wrapped by every error caused by a request that never got a
// response.
var ErrNetwork = errors.New("network failure")

// A StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	// Body is the raw response body.
	Body string
	// Message is the "error" field of a JSON error body, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

func newStatusError(op string, status int, body []byte) *StatusError {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	return &StatusError{
		Op:      op,
		Status:  status,
		Body:    string(body),
		Message: payload.Error,
	}
}
