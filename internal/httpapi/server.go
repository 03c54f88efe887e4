package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/socialn/socialn"
	"github.com/socialn/socialn/media"
	"github.com/socialn/socialn/middleware"
	"github.com/socialn/socialn/store"
)

// Auth is the part of *socialn.Engine the handlers use.
type Auth interface {
	middleware.Validator
	Register(ctx context.Context, in socialn.RegisterInput) (*socialn.LoginResult, error)
	Login(ctx context.Context, identifier, password string) (*socialn.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
	LogoutByRefreshToken(ctx context.Context, refreshToken string) error
	LogoutByAccessToken(ctx context.Context, accessToken string) error
	LogoutAll(ctx context.Context, userID string) error
	LogoutOthers(ctx context.Context, userID, keepSessionID string) error
	HashPassword(password string) (string, error)
	RefreshTTL() time.Duration
	Ping(ctx context.Context) error
}

var _ Auth = (*socialn.Engine)(nil)

// Config tunes the HTTP layer.
type Config struct {
	// CookieSecure marks the refresh cookie Secure. Enable behind TLS.
	CookieSecure bool
	// MediaPrefix is the path stored media is served under.
	MediaPrefix string
	// WriteRatePerSecond and WriteBurst throttle write routes per client IP.
	// Zero disables the throttle.
	WriteRatePerSecond float64
	WriteBurst         int
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the peer address is used.
	TrustedProxies []string
	MaxJSONBytes   int64
}

func DefaultConfig() Config {
	return Config{
		MediaPrefix:        "/media",
		WriteRatePerSecond: 5,
		WriteBurst:         20,
		MaxJSONBytes:       1 << 20,
	}
}

// Deps are the collaborators of a Server.
type Deps struct {
	Auth  Auth
	Store store.Store
	Media media.Storage
	// MediaHandler serves stored media under Config.MediaPrefix when set.
	MediaHandler http.Handler
	Logger       *zap.Logger
	// Registry receives HTTP metrics and is exposed at /metrics. Nil turns
	// both off.
	Registry *prometheus.Registry
	Config   Config
}

type Server struct {
	auth     Auth
	store    store.Store
	media    media.Storage
	logger   *zap.Logger
	metrics  *httpMetrics
	throttle *ipThrottle
	ips      *ipResolver
	cfg      Config
	router   *chi.Mux
}

func New(deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("httpapi: auth engine is required")
	}
	if deps.Store == nil {
		return nil, errors.New("httpapi: store is required")
	}
	if deps.Media == nil {
		return nil, errors.New("httpapi: media storage is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	cfg := deps.Config
	def := DefaultConfig()
	if cfg.MediaPrefix == "" {
		cfg.MediaPrefix = def.MediaPrefix
	}
	if cfg.MaxJSONBytes <= 0 {
		cfg.MaxJSONBytes = def.MaxJSONBytes
	}

	ips, err := newIPResolver(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		auth:     deps.Auth,
		store:    deps.Store,
		media:    deps.Media,
		logger:   deps.Logger.Named("http"),
		throttle: newIPThrottle(cfg.WriteRatePerSecond, cfg.WriteBurst, ips.clientIP),
		ips:      ips,
		cfg:      cfg,
	}
	if deps.Registry != nil {
		m, err := newHTTPMetrics(deps.Registry)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}

	s.router = s.routes(deps.Registry, deps.MediaHandler)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// NewHTTPServer wraps h with the timeouts the API is served with.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
}
