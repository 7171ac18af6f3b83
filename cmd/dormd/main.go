package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"dorm-assignment-backend/config"
	"dorm-assignment-backend/internal/db"
	"dorm-assignment-backend/internal/store"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dormd",
	Short: "dormd assigns waiting soldiers to dorm rooms",
	Long: `dormd keeps a waiting list of soldiers and places them into the
rooms of a fixed set of dorms, furthest home first.

Configuration is read from --config (or CONFIG_PATH) and DORMD_* environment
variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath == "" {
			configPath = os.Getenv("CONFIG_PATH")
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("driver", cfg.Database.Driver))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, assignCmd, seedCmd, waitingCmd)
}

// openStore initializes the database, seeds the dorms on first start and
// returns the store over it.
func openStore(ctx context.Context) (store.Store, *gorm.DB, error) {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}
	if _, err := db.Seed(ctx, gormDB, cfg.Seed, logger); err != nil {
		closeDB(gormDB)
		return nil, nil, fmt.Errorf("seed dorms: %w", err)
	}
	return store.NewGormStore(gormDB), gormDB, nil
}

func closeDB(gormDB *gorm.DB) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("closing database failed", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
