package socialn

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/socialn/socialn/internal/audit"
	"github.com/socialn/socialn/internal/rate"
	"github.com/socialn/socialn/jwt"
	"github.com/socialn/socialn/password"
	"github.com/socialn/socialn/session"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config       Config
	redis        redis.UniversalClient
	userProvider UserProvider
	auditSink    AuditSink
	logger       *zap.Logger
	registerer   prometheus.Registerer

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegisterer enables Prometheus counters on reg.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jwtCfg := jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	}
	jwtManager, err := jwt.NewManager(jwtCfg)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.params())
	if err != nil {
		return nil, err
	}

	var metrics *Metrics
	if b.registerer != nil {
		metrics, err = NewMetrics(b.registerer)
		if err != nil {
			return nil, err
		}
	}

	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewZapSink(logger)
	}

	b.built = true

	return &Engine{
		config:   cfg,
		logger:   logger.Named("auth"),
		users:    b.userProvider,
		sessions: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		limiter: rate.New(b.redis, rate.Config{
			Prefix:                  cfg.Session.RedisPrefix,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		}),
		jwt:     jwtManager,
		hasher:  hasher,
		audit:   internalaudit.NewDispatcher(internalaudit.Config(cfg.Audit), sink, logger),
		metrics: metrics,
		now:     time.Now,
	}, nil
}
