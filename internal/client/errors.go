package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// errRequestTimeout is the cancellation cause attached to the per-request timer.
var errRequestTimeout = errors.New("request timeout")

// APIError is the single failure shape returned by every Client call.
// Status is 0 for transport failures (DNS, connection, timeout).
type APIError struct {
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsTransport reports whether the request never produced an HTTP response.
func (e *APIError) IsTransport() bool {
	return e.Status == 0
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Message returns the user facing message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == status
}

type errorBody struct {
	Detail json.RawMessage     `json:"detail"`
	Errors map[string][]string `json:"errors"`
}

// errorFromBody builds an APIError from a non-2xx response. A body that is not
// the expected JSON is treated as empty.
func errorFromBody(status int, statusLine string, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		eb = errorBody{}
	}

	msg := detailMessage(eb.Detail)
	if msg == "" {
		msg = statusText(status, statusLine)
	}

	return &APIError{
		Status:  status,
		Message: msg,
		Errors:  eb.Errors,
	}
}

// detailMessage flattens the detail field. Validation failures send detail as a
// list of objects, in which case the raw JSON is used as the message.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

func statusText(status int, statusLine string) string {
	text := strings.TrimSpace(strings.TrimPrefix(statusLine, strconv.Itoa(status)))
	if text != "" {
		return text
	}
	return http.StatusText(status)
}

// normalize converts any failure raised while talking to the backend into an
// *APIError. ctx must be the request context carrying the timeout cause.
func (c *Client) normalize(ctx context.Context, err error) *APIError {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}

	if errors.Is(context.Cause(ctx), errRequestTimeout) {
		return &APIError{
			Status:  0,
			Message: fmt.Sprintf("Request timeout after %dms", c.timeout.Milliseconds()),
		}
	}

	msg := "Network error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}

	return &APIError{Status: 0, Message: msg}
}
