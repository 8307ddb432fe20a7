package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backup-verifier/core/config"
	"backup-verifier/core/metrics"
	"backup-verifier/core/report"
	"backup-verifier/core/storage"
	"backup-verifier/feature/compare"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var compareFlags struct {
	source     string
	backup     string
	mode       string
	chunkSize  int
	workers    int
	report     string
	details    string
	upload     string
	timeout    time.Duration
	hash       string
	include    []string
	noProgress bool
	appendRows bool
}

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a source location against its backup",
	Long: `Lists both locations, pairs files by their path relative to each prefix
and compares every pair record by record. Records are equal when their
canonical JSON is equal, regardless of key order or position.

The process exits 0 only when every record matched and no file is missing
on either side.

Examples:
  backup-verifier compare --source s3://live/exports --backup s3://vault/exports
  backup-verifier compare --source s3://live/a --backup s3://vault/a --report out/run.xlsx --workers 8`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&compareFlags.source, "source", "", "Source location (s3://bucket/prefix)")
	f.StringVar(&compareFlags.backup, "backup", "", "Backup location (s3://bucket/prefix)")
	f.StringVar(&compareFlags.mode, "mode", "", "Extraction mode when the suffix is ambiguous: jsonl, array, single or csv")
	f.IntVar(&compareFlags.chunkSize, "chunk-size", 0, "Records drawn per side per chunk")
	f.IntVar(&compareFlags.workers, "workers", 0, "Number of file pairs compared concurrently")
	f.StringVar(&compareFlags.report, "report", "", "Report file; the extension selects csv, json, xlsx or yaml")
	f.StringVar(&compareFlags.details, "details", "", "Mismatch detail CSV (default <report>_mismatches.csv)")
	f.StringVar(&compareFlags.upload, "upload", "", "Upload written reports to s3://bucket/prefix")
	f.DurationVar(&compareFlags.timeout, "timeout", 0, "Abort the run after this duration (0 disables)")
	f.StringVar(&compareFlags.hash, "hash", "", "Digest algorithm: sha256 or blake3")
	f.StringSliceVar(&compareFlags.include, "include", nil, "Only compare files with these suffixes")
	f.BoolVar(&compareFlags.noProgress, "no-progress", false, "Disable the progress bar")
	f.BoolVar(&compareFlags.appendRows, "append", false, "Append to existing CSV reports")

	RootCmd.AddCommand(compareCmd)
}

// applyCompareFlags overrides configuration with the flags set on cmd.
func applyCompareFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("source") {
		cfg.Compare.Source = compareFlags.source
	}
	if changed("backup") {
		cfg.Compare.Backup = compareFlags.backup
	}
	if changed("mode") {
		cfg.Compare.Mode = compareFlags.mode
	}
	if changed("chunk-size") {
		cfg.Compare.ChunkSize = compareFlags.chunkSize
	}
	if changed("workers") {
		cfg.Compare.Workers = compareFlags.workers
	}
	if changed("timeout") {
		cfg.Compare.Timeout = compareFlags.timeout
	}
	if changed("hash") {
		cfg.Compare.Hash = compareFlags.hash
	}
	if changed("include") {
		cfg.Compare.Include = compareFlags.include
	}
	if changed("report") {
		cfg.Report.Path = compareFlags.report
	}
	if changed("details") {
		cfg.Report.DetailsPath = compareFlags.details
	}
	if changed("upload") {
		cfg.Report.Upload = compareFlags.upload
	}
	if changed("append") {
		cfg.Report.Append = compareFlags.appendRows
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, logg, err := setup()
	if err != nil {
		return err
	}
	defer logg.Sync()
	applyCompareFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return err
	}
	hist, err := openHistory(cfg, logg)
	if err != nil {
		return err
	}
	m := metrics.New()
	lister := storage.NewLister(client, time.Duration(cfg.Storage.ListingTTLSeconds)*time.Second)
	svc := compare.NewService(client, lister, logg, hist, m)

	req := compare.Request{Config: cfg.Compare, Report: cfg.Report}
	if !compareFlags.noProgress {
		req.Progress = os.Stderr
	}

	rep, runErr := svc.Run(ctx, req)
	if rep == nil {
		return runErr
	}

	report.PrintSummary(os.Stdout, rep.Summary)
	report.PrintFiles(os.Stdout, rep.Files...)

	if cfg.Metrics.PushURL != "" {
		if err := m.Push(context.WithoutCancel(ctx), cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			logg.Warn("Failed to push metrics", zap.String("url", cfg.Metrics.PushURL), zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if !rep.AllMatched() {
		return errNotMatched
	}
	return nil
}
