package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNetwork marks failures where no HTTP response was received.
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method     string
	Path       string
	Status     int
	Message    string
	RetryAfter time.Duration
	// Fields holds structured field errors when the backend sends them.
	Fields map[string]string
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Message)
}

// errorBody is the JSON error envelope used by the backend.
type errorBody struct {
	Message    string            `json:"message"`
	Error      string            `json:"error"`
	RetryAfter json.RawMessage   `json:"retryAfter"`
	Fields     map[string]string `json:"fields"`
}

// newAPIError builds an APIError from a failed response. The retry hint is
// read from the Retry-After header, then the body's retryAfter, and for 429
// falls back to defaultRetryAfter.
func newAPIError(method, path string, status int, header http.Header, body []byte, defaultRetryAfter time.Duration) *APIError {
	apiErr := &APIError{
		Method: method,
		Path:   path,
		Status: status,
		Body:   body,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
		apiErr.Fields = eb.Fields
		if d, ok := parseRetryAfterBody(eb.RetryAfter); ok {
			apiErr.RetryAfter = d
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	if d, ok := parseRetryAfterHeader(header.Get("Retry-After")); ok {
		apiErr.RetryAfter = d
	}
	if status == http.StatusTooManyRequests && apiErr.RetryAfter <= 0 {
		apiErr.RetryAfter = defaultRetryAfter
	}
	return apiErr
}

// parseRetryAfterBody accepts a number of seconds, bare or quoted.
func parseRetryAfterBody(raw json.RawMessage) (time.Duration, bool) {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if v == "" || v == "null" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// parseRetryAfterHeader accepts delta-seconds or an HTTP date.
func parseRetryAfterHeader(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == status
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
