package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoAccessToken is returned by a refresh that succeeded without a token.
var ErrNoAccessToken = errors.New("refresh response carried no access token")

// ErrBodyNotReplayable is returned when a request that got 401 cannot be
// resubmitted because its body cannot be read again.
var ErrBodyNotReplayable = errors.New("request body cannot be replayed")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("socialn api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("socialn api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
	}
	return e
}
