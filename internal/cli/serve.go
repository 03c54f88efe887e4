package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socialn/socialn"
	"github.com/socialn/socialn/internal/httpapi"
	"github.com/socialn/socialn/media"
	"github.com/socialn/socialn/store"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

SIGINT or SIGTERM triggers a graceful shutdown bounded by server.shutdown_timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	rdb := newRedis(cfg.Redis)
	defer rdb.Close()

	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	disk, err := media.NewLocalDisk(cfg.Media.Root, cfg.Media.BaseURL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := socialn.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserProvider(store.AuthProvider(st)).
		WithLogger(logger).
		WithMetricsRegisterer(reg).
		Build()
	if err != nil {
		return fmt.Errorf("build auth engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		logger.Warn("redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	api, err := httpapi.New(httpapi.Deps{
		Auth:         engine,
		Store:        st,
		Media:        disk,
		MediaHandler: disk.Handler(),
		Logger:       logger,
		Registry:     reg,
		Config:       cfg.HTTP(),
	})
	if err != nil {
		return err
	}
	srv := httpapi.NewHTTPServer(cfg.Server.Addr, api.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", a.build.Version),
			zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})
	return g.Wait()
}
