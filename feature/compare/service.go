package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"backup-verifier/core/history"
	"backup-verifier/core/metrics"
	"backup-verifier/core/progress"
	"backup-verifier/core/reconcile"
	"backup-verifier/core/report"
	"backup-verifier/core/stats"
	"backup-verifier/core/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Request is one comparison run.
type Request struct {
	Config Config
	Report report.Config
	// Progress receives a progress bar when set.
	Progress io.Writer
	// RunID identifies the run; a new one is generated when empty.
	RunID string
}

// RunReport is the outcome of a run.
type RunReport struct {
	RunID   string                 `json:"run_id"`
	Summary stats.GlobalSummary    `json:"summary"`
	Results []reconcile.FileResult `json:"results"`
	// Files lists the report files written, including uploads.
	Files []string `json:"files,omitempty"`
}

// AllMatched reports whether the backup verified clean.
func (r *RunReport) AllMatched() bool {
	return r.Summary.AllMatched()
}

// Service orchestrates comparison runs: list, pair, compare on a bounded
// worker pool, aggregate, then write reports and history.
type Service struct {
	client  storage.Client
	lister  *storage.Lister
	logger  *zap.Logger
	history *history.Store
	metrics *metrics.Metrics
}

// NewService creates a service. history and metrics may be nil.
func NewService(client storage.Client, lister *storage.Lister, logger *zap.Logger, hist *history.Store, m *metrics.Metrics) *Service {
	if lister == nil {
		lister = storage.NewLister(client, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:  client,
		lister:  lister,
		logger:  logger,
		history: hist,
		metrics: m,
	}
}

// Run executes req. Invalid configuration and listing failures abort the
// run. Once comparison has started a RunReport is always returned; report
// or history failures are returned alongside it.
func (s *Service) Run(ctx context.Context, req Request) (*RunReport, error) {
	cfg := req.Config
	if err := errors.Join(cfg.Validate(), req.Report.Validate()); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.logger.With(zap.String("run_id", runID))

	source, _ := storage.ParseLocation(cfg.Source)
	backup, _ := storage.ParseLocation(cfg.Backup)
	engine, err := cfg.NewEngine(storage.Opener{Client: s.client}, log)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	pairs, err := s.pairs(ctx, source, backup, cfg.includes())
	if err != nil {
		return nil, err
	}
	log.Info("Starting comparison",
		zap.String("source", source.String()),
		zap.String("backup", backup.String()),
		zap.Int("pairs", len(pairs)),
		zap.Int("workers", cfg.Workers))

	var observers []stats.Observer
	var bar *progress.Bar
	if req.Progress != nil {
		bar = progress.New(req.Progress, len(pairs))
		observers = append(observers, bar)
	}
	if s.metrics != nil {
		observers = append(observers, s.metrics)
	}
	agg := stats.NewAggregator(log, observers...)

	var sink *report.DetailWriter
	if path := req.Report.Details(); path != "" && cfg.CaptureDetails {
		sink = report.NewDetailWriter(path, req.Report.Append)
	}

	sinkErr := s.compareAll(ctx, engine, pairs, cfg.Workers, agg, sink)
	if bar != nil {
		_ = bar.Close()
	}

	rep := &RunReport{RunID: runID, Summary: agg.Summary(), Results: agg.Results()}
	var errs []error
	if sinkErr != nil {
		errs = append(errs, fmt.Errorf("write mismatch details: %w", sinkErr))
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mismatch details: %w", err))
		}
		if sink.Written() > 0 {
			rep.Files = append(rep.Files, sink.Path())
		}
	}

	if req.Report.Path != "" {
		written, err := report.Write(req.Report.Path, report.Report{
			RunID:       runID,
			GeneratedAt: time.Now(),
			Source:      source.String(),
			Backup:      backup.String(),
			Summary:     rep.Summary,
			Results:     rep.Results,
		}, report.Options{Append: req.Report.Append})
		if err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		}
		rep.Files = append(written, rep.Files...)
	}

	if req.Report.Upload != "" && len(rep.Files) > 0 {
		// Uploads use a fresh context so that a timed out run still
		// publishes its partial report.
		uploaded, err := s.upload(context.WithoutCancel(ctx), req.Report.Upload, rep.Files)
		if err != nil {
			errs = append(errs, err)
		}
		rep.Files = append(rep.Files, uploaded...)
	}

	if s.history != nil {
		run := history.NewRun(runID, source.String(), backup.String(), req.Report.Path, rep.Summary, rep.Results)
		if err := s.history.Save(context.WithoutCancel(ctx), run); err != nil {
			errs = append(errs, err)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordRun(rep.Summary)
	}

	sum := rep.Summary
	log.Info("Comparison finished",
		zap.Bool("all_matched", sum.AllMatched()),
		zap.Int("files", sum.Files),
		zap.Int("mismatched_files", sum.MismatchedFiles),
		zap.Int("skipped_files", sum.Skipped),
		zap.Int64("source_records", sum.SourceRecords),
		zap.Int64("matched", sum.Matched),
		zap.Float64("match_rate", sum.MatchRate),
		zap.Duration("duration", sum.Duration()))

	return rep, errors.Join(errs...)
}

// pairs lists both locations concurrently and joins them.
func (s *Service) pairs(ctx context.Context, source, backup storage.Location, include []string) ([]reconcile.FilePair, error) {
	if err := storage.CheckBuckets(ctx, s.client, source, backup); err != nil {
		return nil, err
	}
	var srcFiles, bkpFiles map[string]reconcile.ObjectRef
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		srcFiles, err = s.lister.List(gctx, source, include)
		return err
	})
	g.Go(func() error {
		var err error
		bkpFiles, err = s.lister.List(gctx, backup, include)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	s.logger.Info("Listed files",
		zap.Int("source_files", len(srcFiles)),
		zap.Int("backup_files", len(bkpFiles)))
	return storage.PairFiles(srcFiles, bkpFiles), nil
}

// compareAll runs every pair through engine on at most workers goroutines
// and feeds the outcomes to agg. Once ctx is done, pairs that have not
// started are still reported, as cancelled.
func (s *Service) compareAll(ctx context.Context, engine *reconcile.Engine, pairs []reconcile.FilePair, workers int, agg *stats.Aggregator, sink *report.DetailWriter) error {
	outcomes := make(chan reconcile.Outcome, workers)
	aggDone := make(chan error, 1)
	go func() {
		if sink == nil {
			aggDone <- agg.Run(outcomes, nil)
			return
		}
		aggDone <- agg.Run(outcomes, sink)
	}()

	var g errgroup.Group
	g.SetLimit(workers)
	for _, pair := range pairs {
		if ctx.Err() != nil {
			// Compare returns a cancelled result without touching storage.
			outcomes <- engine.Compare(ctx, pair)
			continue
		}
		g.Go(func() error {
			outcomes <- engine.Compare(ctx, pair)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	return <-aggDone
}

func (s *Service) upload(ctx context.Context, target string, files []string) ([]string, error) {
	loc, err := storage.ParseLocation(target)
	if err != nil {
		return nil, fmt.Errorf("upload reports: %w", err)
	}
	var uploaded []string
	for _, name := range files {
		uri, err := storage.Upload(ctx, s.client, loc, name)
		if err != nil {
			return uploaded, err
		}
		s.logger.Info("Uploaded report", zap.String("file", name), zap.String("target", uri))
		uploaded = append(uploaded, uri)
	}
	return uploaded, nil
}

// ListRuns returns recent runs from history.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]history.Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, limit)
}

// GetRun returns one run from history.
func (s *Service) GetRun(ctx context.Context, runID string) (*history.Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, runID)
}

// ErrHistoryDisabled is returned by history queries when no store is set.
var ErrHistoryDisabled = errors.New("run history is disabled")
