package cmd

import (
	"errors"
	"fmt"
	"os"

	"backup-verifier/core/config"
	"backup-verifier/core/database"
	"backup-verifier/core/history"
	"backup-verifier/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errNotMatched signals a completed run whose backup did not verify. The
// summary has already been printed, so Execute only sets the exit code.
var errNotMatched = errors.New("backup does not match source")

var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "backup-verifier",
	Short: "Verify S3 JSON backups against their source",
	Long: `Backup Verifier compares JSON datasets stored in S3-compatible buckets
against their backups, record by record, independent of key order and
record order. It writes per-file and global reports and exits non-zero
when the backup is not a faithful copy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		if errors.Is(err, errNotMatched) {
			os.Exit(1)
		}
		// Use the application's standard logger for error reporting
		// We use "debug" level configuration to get ISO8601 timestamps (DevConfig) instead of Epoch (ProdConfig)
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "Directory holding config.yaml and .env")
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logg, nil
}

// openHistory connects the run history store. It returns nil when history
// is disabled.
func openHistory(cfg *config.Config, logg *zap.Logger) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := history.NewStore(db)
	if cfg.History.AutoMigrate {
		if err := store.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate history tables: %w", err)
		}
	}
	if err := store.Verify(); err != nil {
		return nil, fmt.Errorf("history schema check failed: %w", err)
	}
	logg.Debug("Run history enabled", zap.String("driver", cfg.Database.Driver), zap.String("name", cfg.Database.Name))
	return store, nil
}
