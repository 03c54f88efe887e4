// Package config loads the socialn server configuration from defaults, an
// optional YAML file, a .env file and SOCIALN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/socialn/socialn"
	"github.com/socialn/socialn/internal/httpapi"
)

// EnvPrefix is prepended to every environment override, e.g.
// SOCIALN_SERVER_ADDR for server.addr.
const EnvPrefix = "SOCIALN"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Media    MediaConfig    `mapstructure:"media"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	// WriteRate is the per-IP token rate on write routes. Zero disables it.
	WriteRate  float64 `mapstructure:"write_rate"`
	WriteBurst int     `mapstructure:"write_burst"`
	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type MediaConfig struct {
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
}

type AuthConfig struct {
	SigningMethod string `mapstructure:"signing_method"`
	// Secret is the HMAC key for hs256.
	Secret string `mapstructure:"secret"`
	// PrivateKeyFile holds a PEM ed25519 key for ed25519.
	PrivateKeyFile   string        `mapstructure:"private_key_file"`
	Issuer           string        `mapstructure:"issuer"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	ValidationMode   string        `mapstructure:"validation_mode"`
	RedisPrefix      string        `mapstructure:"redis_prefix"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginCooldown    time.Duration `mapstructure:"login_cooldown"`
	Audit            bool          `mapstructure:"audit"`
}

func setDefaults(v *viper.Viper) {
	eng := socialn.DefaultConfig()
	api := httpapi.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cookie_secure", false)
	v.SetDefault("server.write_rate", api.WriteRatePerSecond)
	v.SetDefault("server.write_burst", api.WriteBurst)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("media.root", "./data/media")
	v.SetDefault("media.base_url", api.MediaPrefix)

	v.SetDefault("auth.signing_method", eng.JWT.SigningMethod)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.private_key_file", "")
	v.SetDefault("auth.issuer", eng.JWT.Issuer)
	v.SetDefault("auth.access_ttl", eng.JWT.AccessTTL)
	v.SetDefault("auth.refresh_ttl", eng.JWT.RefreshTTL)
	v.SetDefault("auth.validation_mode", "strict")
	v.SetDefault("auth.redis_prefix", eng.Session.RedisPrefix)
	v.SetDefault("auth.max_login_attempts", eng.Security.MaxLoginAttempts)
	v.SetDefault("auth.login_cooldown", eng.Security.LoginCooldownDuration)
	v.SetDefault("auth.audit", eng.Audit.Enabled)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv exports the variables in path without overriding ones already
// set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting. Engine settings are checked
// separately by Engine.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.WriteRate < 0 {
		return errors.New("server.write_rate must be >= 0")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr must not be empty")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be memory or postgres, got %q", c.Database.Driver)
	}
	if c.Media.Root == "" {
		return errors.New("media.root must not be empty")
	}
	if !strings.HasPrefix(c.Media.BaseURL, "/") {
		return errors.New("media.base_url must start with /")
	}
	switch c.Auth.ValidationMode {
	case "strict", "jwt_only":
	default:
		return fmt.Errorf("auth.validation_mode must be strict or jwt_only, got %q", c.Auth.ValidationMode)
	}
	return nil
}

// Engine converts the auth section to an engine config and validates it.
func (c *Config) Engine() (socialn.Config, error) {
	cfg := socialn.DefaultConfig()
	cfg.JWT.SigningMethod = c.Auth.SigningMethod
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.AccessTTL = c.Auth.AccessTTL
	cfg.JWT.RefreshTTL = c.Auth.RefreshTTL
	cfg.Session.RedisPrefix = c.Auth.RedisPrefix
	cfg.Security.MaxLoginAttempts = c.Auth.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Auth.LoginCooldown
	cfg.Audit.Enabled = c.Auth.Audit

	if c.Auth.ValidationMode == "jwt_only" {
		cfg.ValidationMode = socialn.ModeJWTOnly
	}

	switch {
	case c.Auth.PrivateKeyFile != "":
		key, err := os.ReadFile(c.Auth.PrivateKeyFile)
		if err != nil {
			return socialn.Config{}, fmt.Errorf("read auth.private_key_file: %w", err)
		}
		cfg.JWT.PrivateKey = key
	case c.Auth.Secret != "":
		cfg.JWT.PrivateKey = []byte(c.Auth.Secret)
	}

	if err := cfg.Validate(); err != nil {
		return socialn.Config{}, fmt.Errorf("auth: %w", err)
	}
	return cfg, nil
}

// HTTP returns the HTTP layer settings.
func (c *Config) HTTP() httpapi.Config {
	cfg := httpapi.DefaultConfig()
	cfg.CookieSecure = c.Server.CookieSecure
	cfg.MediaPrefix = c.Media.BaseURL
	cfg.WriteRatePerSecond = c.Server.WriteRate
	cfg.WriteBurst = c.Server.WriteBurst
	cfg.TrustedProxies = c.Server.TrustedProxies
	return cfg
}
