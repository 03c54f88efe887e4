// Package cli wires the socialn commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/socialn/socialn/internal/config"
	"github.com/socialn/socialn/internal/logging"
)

// BuildInfo is stamped by the main package.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// app carries state shared by subcommands after PersistentPreRunE.
type app struct {
	build    BuildInfo
	cfgFile  string
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:           "socialn",
		Short:         "Social network API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newUsersCommand(a),
		newBenchCommand(a),
		newDoctorCommand(a),
		newVersionCommand(a),
	)
	return root
}

func (a *app) init() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
