package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingToken = errors.New("authentication token is required")
	ErrInvalidQuery = errors.New("invalid news query")
)

// NetworkError means the request never produced an HTTP response: DNS,
// refused connections, timeouts and cancelled contexts all end up here.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx answer from the backend. The status code is kept
// so callers can tell "not found" from "unauthorized" from "server error".
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// Message is the text shown next to a form, preferring the server detail.
func (e *StatusError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.StatusCode)
}

func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports a rejected or expired token.
func IsUnauthorized(err error) bool {
	code := statusOf(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func IsServerError(err error) bool {
	return statusOf(err) >= http.StatusInternalServerError
}

// IsValidation reports input the backend refused, e.g. a taken username.
func IsValidation(err error) bool {
	switch statusOf(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// ErrorMessage extracts a user facing message from any gateway error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message()
	}
	if IsNetwork(err) {
		return "network unavailable, please try again"
	}
	return err.Error()
}

// parseDetail reads FastAPI error bodies. "detail" is a string for handled
// errors and a list of field errors for request validation failures.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}

	var fields []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &fields); err == nil {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			if f.Msg != "" {
				msgs = append(msgs, f.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(payload.Detail)
}
