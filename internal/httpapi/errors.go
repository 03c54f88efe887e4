package httpapi

import (
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/socialn/socialn"
	"github.com/socialn/socialn/middleware"
	"github.com/socialn/socialn/store"
	"github.com/socialn/socialn/upload"
)

// Messages shared by several handlers.
const (
	msgEmailTaken      = "An user with that email already exists"
	msgUserNameTaken   = "An user with that username already exists"
	msgInvalidRefresh  = "Invalid refresh token"
	msgUnavailable     = "Service temporarily unavailable"
	msgInternal        = "Internal server error"
	msgPasswordPolicy  = "Password must be at least 10 characters long"
	msgTooLarge        = "Request body too large"
	msgNotFound        = "Resource not found"
	msgInvalidJSON     = "Invalid JSON body"
	msgInvalidInput    = "Invalid input"
	msgBadCredentials  = "Invalid credentials"
	msgAccountDisabled = "Account disabled"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{errBadJSON, http.StatusBadRequest, msgInvalidJSON},
	{errBadMultipart, http.StatusBadRequest, "Invalid multipart form data"},
	{socialn.ErrInvalidInput, http.StatusBadRequest, msgInvalidInput},
	{socialn.ErrPasswordPolicy, http.StatusBadRequest, msgPasswordPolicy},
	{socialn.ErrInvalidCredentials, http.StatusUnauthorized, msgBadCredentials},
	{socialn.ErrAccountDisabled, http.StatusForbidden, msgAccountDisabled},
	{socialn.ErrLoginRateLimited, http.StatusTooManyRequests, "Too many login attempts. Try again later."},
	{socialn.ErrRefreshRateLimited, http.StatusTooManyRequests, "Too many refresh attempts. Try again later."},
	{socialn.ErrEmailTaken, http.StatusConflict, msgEmailTaken},
	{socialn.ErrUserNameTaken, http.StatusConflict, msgUserNameTaken},
	{store.ErrDuplicateEmail, http.StatusConflict, msgEmailTaken},
	{store.ErrDuplicateUserName, http.StatusConflict, msgUserNameTaken},
	{socialn.ErrRefreshReuse, http.StatusUnauthorized, msgInvalidRefresh},
	{socialn.ErrRefreshInvalid, http.StatusUnauthorized, msgInvalidRefresh},
	{socialn.ErrSessionNotFound, http.StatusUnauthorized, msgInvalidRefresh},
	{socialn.ErrTokenInvalid, http.StatusUnauthorized, middleware.MessageInvalidToken},
	{socialn.ErrRedisUnavailable, http.StatusServiceUnavailable, msgUnavailable},
	{socialn.ErrStrictBackendDown, http.StatusServiceUnavailable, msgUnavailable},
	{socialn.ErrAccountCreationUnavailable, http.StatusServiceUnavailable, msgUnavailable},
	{store.ErrNotFound, http.StatusNotFound, msgNotFound},
}

type limitResponse struct {
	Message    string             `json:"message"`
	Violations []upload.Violation `json:"violations"`
	Breakdown  map[string]string  `json:"breakdown,omitempty"`
}

// fail writes the response for err. Unknown errors are logged and become 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *upload.LimitError
	if errors.As(err, &limitErr) {
		writeJSON(w, http.StatusBadRequest, limitResponse{
			Message:    limitErr.Message(),
			Violations: limitErr.Violations,
			Breakdown:  limitErr.Breakdown,
		})
		return
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeMessage(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}

	if errors.Is(err, store.ErrInvalidFeedQuery) {
		writeMessage(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "store: "))
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				s.logger.Warn("dependency unavailable",
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.Error(err))
			}
			writeMessage(w, m.status, m.message)
			return
		}
	}

	s.logger.Error("unhandled error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}
