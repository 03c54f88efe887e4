package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/socialn/socialn/internal/config"
	"github.com/socialn/socialn/store"
)

func newRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// openStore returns the configured store. Postgres is migrated first when
// database.auto_migrate is set.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.Store, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}

	pg, err := openPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		applied, err := store.Migrate(ctx, pg.DB())
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
	}
	return pg, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*store.Postgres, error) {
	if cfg.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("database.driver is %q; this command needs postgres", cfg.Driver)
	}
	return store.OpenPostgres(ctx, cfg.DSN, cfg.MaxOpenConns)
}
