package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/socialn/socialn"
	"github.com/socialn/socialn/internal/flows"
	"github.com/socialn/socialn/middleware"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth"
)

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(s.auth.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

type registerRequest struct {
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	in := flows.NormalizeRegisterInput(flows.RegisterInput(req))
	if missing := flows.MissingRegisterFields(in); len(missing) > 0 {
		writeMissing(w, "Missing required fields", missing)
		return
	}

	res, err := s.auth.Register(r.Context(), socialn.RegisterInput(in))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondAuth(w, r, http.StatusCreated, "User created successfully", res)
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var missing []string
	if strings.TrimSpace(req.EmailOrUsername) == "" {
		missing = append(missing, "emailOrUsername")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		writeMissing(w, "Missing required fields", missing)
		return
	}

	res, err := s.auth.Login(r.Context(), req.EmailOrUsername, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondAuth(w, r, http.StatusOK, "User logged in successfully", res)
}

func (s *Server) respondAuth(w http.ResponseWriter, r *http.Request, status int, message string, res *socialn.LoginResult) {
	u, err := s.store.GetUser(r.Context(), res.User.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setRefreshCookie(w, res.RefreshToken)
	writeJSON(w, status, authView{
		Message:     message,
		AccessToken: res.AccessToken,
		User:        newUserView(u),
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshCookie(r)
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	access, next, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, socialn.ErrRefreshReuse) {
			s.logger.Warn("refresh token reuse", zap.String("ip", s.ips.clientIP(r)))
		}
		if !errors.Is(err, socialn.ErrRedisUnavailable) {
			s.clearRefreshCookie(w)
		}
		s.fail(w, r, err)
		return
	}

	s.setRefreshCookie(w, next)
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

// logout ends the session named by the refresh cookie, or by the bearer
// token when there is no cookie. Unknown or stale tokens still log out.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var err error
	if token := refreshCookie(r); token != "" {
		err = s.auth.LogoutByRefreshToken(r.Context(), token)
	} else if token, ok := middleware.BearerToken(r.Header.Get("Authorization")); ok {
		err = s.auth.LogoutByAccessToken(r.Context(), token)
	}
	s.clearRefreshCookie(w)

	if errors.Is(err, socialn.ErrRedisUnavailable) {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}
