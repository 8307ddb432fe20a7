package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"backup-verifier/core/database"
	"backup-verifier/core/history"
	"backup-verifier/core/logger"
	"backup-verifier/core/metrics"
	"backup-verifier/core/report"
	"backup-verifier/core/server"
	"backup-verifier/core/storage"
	"backup-verifier/feature/compare"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Compare holds the default settings of a comparison run.
	Compare compare.Config `mapstructure:"compare"`
	// Report holds the report output settings.
	Report report.Config `mapstructure:"report"`
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// History controls persistence of finished runs.
	History history.Config `mapstructure:"history"`
	// Metrics holds the Prometheus push settings.
	Metrics metrics.Config `mapstructure:"metrics"`
}

// LoadConfig loads configuration from an optional config.yaml in path,
// the .env file and environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Map environment variables to nested keys (e.g. COMPARE_CHUNK_SIZE -> compare.chunk_size)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings shared by every command. Comparison
// settings are validated per run, after flags and request overrides apply.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported format %q", c.Log.Format))
	}
	if err := c.Report.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("report.path: %w", err))
	}
	if c.History.Enabled {
		switch c.Database.Driver {
		case database.DriverSQLite, database.DriverMySQL:
		default:
			errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
		}
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		errs = append(errs, fmt.Errorf("server.max_concurrent_runs must be positive, got %d", c.Server.MaxConcurrentRuns))
	}
	return errors.Join(errs...)
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
