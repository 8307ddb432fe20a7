package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "jsonl", cfg.Compare.Mode)
	assert.Equal(t, 10000, cfg.Compare.ChunkSize)
	assert.Equal(t, 4, cfg.Compare.Workers)
	assert.Equal(t, time.Duration(0), cfg.Compare.Timeout)
	assert.Equal(t, "sha256", cfg.Compare.Hash)
	assert.True(t, cfg.Compare.CaptureDetails)
	assert.Equal(t, "64KiB", cfg.Compare.MaxDetailBytes)
	assert.Equal(t, "compare_report.csv", cfg.Report.Path)
	assert.False(t, cfg.Report.Append)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1, cfg.Server.MaxConcurrentRuns)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "backup_verifier", cfg.Metrics.Job)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yaml := "compare:\n  source: s3://live/exports\n  backup: s3://vault/exports\n  workers: 2\nreport:\n  path: out/report.xlsx\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMPARE_CHUNK_SIZE=500\n"), 0o644))

	// Overload writes the .env values into the process environment.
	t.Setenv("COMPARE_CHUNK_SIZE", "")
	t.Setenv("COMPARE_WORKERS", "16")
	t.Setenv("COMPARE_TIMEOUT", "90s")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "s3://live/exports", cfg.Compare.Source)
	assert.Equal(t, "s3://vault/exports", cfg.Compare.Backup)
	assert.Equal(t, 16, cfg.Compare.Workers, "environment wins over the file")
	assert.Equal(t, 500, cfg.Compare.ChunkSize)
	assert.Equal(t, 90*time.Second, cfg.Compare.Timeout)
	assert.Equal(t, "out/report.xlsx", cfg.Report.Path)
	assert.NoError(t, cfg.Compare.Validate())
}

func TestLoadConfig_BrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("compare: [\n"), 0o644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "read config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"UnknownLevel", func(c *Config) { c.Log.Level = "TRACE" }, "log.level"},
		{"UnknownFormat", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"UnknownReport", func(c *Config) { c.Report.Path = "report.pdf" }, "report.path"},
		{"UnknownDriver", func(c *Config) {
			c.History.Enabled = true
			c.Database.Driver = "postgres"
		}, "database.driver"},
		{"NoRunSlots", func(c *Config) { c.Server.MaxConcurrentRuns = 0 }, "max_concurrent_runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(t.TempDir())
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
