package compare

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backup-verifier/core/format"
	"backup-verifier/core/reconcile"
	"backup-verifier/core/record"
	"backup-verifier/core/storage"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Config holds the settings of a comparison run.
type Config struct {
	// Source is the s3://bucket/prefix of the original data set.
	Source string `mapstructure:"source" default:""`
	// Backup is the s3://bucket/prefix of the copy to verify.
	Backup string `mapstructure:"backup" default:""`
	// Mode is the layout of files whose name does not reveal it.
	Mode string `mapstructure:"mode" default:"jsonl"`
	// ChunkSize is the number of records drawn per side per chunk.
	ChunkSize int `mapstructure:"chunk_size" default:"10000"`
	// Workers is the number of file pairs compared in parallel.
	Workers int `mapstructure:"workers" default:"4"`
	// Timeout bounds the whole run; 0 disables it.
	Timeout time.Duration `mapstructure:"timeout" default:"0s"`
	// Hash is the digest algorithm: sha256 or blake3.
	Hash string `mapstructure:"hash" default:"sha256"`
	// CaptureDetails keeps canonical record content for mismatch details.
	CaptureDetails bool `mapstructure:"capture_details" default:"true"`
	// MaxDetailBytes truncates captured content, e.g. 64KiB; 0 keeps it whole.
	MaxDetailBytes string `mapstructure:"max_detail_bytes" default:"64KiB"`
	// MaxDetails caps the mismatch details of one file; 0 means no limit.
	MaxDetails int `mapstructure:"max_details" default:"0"`
	// SpillDir enables the disk backed digest index for very large files.
	SpillDir string `mapstructure:"spill_dir" default:""`
	// SpillThreshold is the number of distinct digests kept in memory
	// before spilling.
	SpillThreshold int `mapstructure:"spill_threshold" default:"1000000"`
	// Include keeps only keys ending in one of these suffixes.
	Include []string `mapstructure:"include" default:""`
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := storage.ParseLocation(c.Source); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if _, err := storage.ParseLocation(c.Backup); err != nil {
		errs = append(errs, fmt.Errorf("backup: %w", err))
	}
	if _, err := format.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w", err))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if _, err := record.NewHasher(c.Hash); err != nil {
		errs = append(errs, fmt.Errorf("hash: %w", err))
	}
	if _, err := c.maxDetailBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxDetails < 0 {
		errs = append(errs, fmt.Errorf("max_details must not be negative, got %d", c.MaxDetails))
	}
	if c.SpillThreshold < 0 {
		errs = append(errs, fmt.Errorf("spill_threshold must not be negative, got %d", c.SpillThreshold))
	}
	return errors.Join(errs...)
}

func (c Config) maxDetailBytes() (int, error) {
	if strings.TrimSpace(c.MaxDetailBytes) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxDetailBytes)
	if err != nil {
		return 0, fmt.Errorf("max_detail_bytes: %w", err)
	}
	return int(n), nil
}

// includes returns the suffix filter with empty entries removed.
func (c Config) includes() []string {
	var out []string
	for _, item := range c.Include {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// NewEngine builds the reconciliation engine for a validated config.
func (c Config) NewEngine(opener reconcile.Opener, log *zap.Logger) (*reconcile.Engine, error) {
	mode, err := format.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	hasher, err := record.NewHasher(c.Hash)
	if err != nil {
		return nil, err
	}
	maxBytes, err := c.maxDetailBytes()
	if err != nil {
		return nil, err
	}
	return &reconcile.Engine{
		Opener:         opener,
		Mode:           mode,
		ChunkSize:      c.ChunkSize,
		Hasher:         hasher,
		CaptureDetails: c.CaptureDetails,
		MaxDetailBytes: maxBytes,
		MaxDetails:     c.MaxDetails,
		SpillDir:       c.SpillDir,
		SpillThreshold: c.SpillThreshold,
		Logger:         log,
	}, nil
}
