package compare

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"backup-verifier/core/history"
	"backup-verifier/core/logger"
	"backup-verifier/core/report"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for comparison runs.
type Handler struct {
	service  *Service
	defaults Config
	reports  report.Config
	runs     *tracker
	// base outlives requests so asynchronous runs continue after the
	// response; it is cancelled on shutdown.
	base context.Context
}

// NewHandler creates a new HTTP handler. Runs started over HTTP inherit
// defaults and are cancelled when base is done.
func NewHandler(base context.Context, service *Service, defaults Config, reports report.Config, maxConcurrent int) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		reports:  reports,
		runs:     newTracker(maxConcurrent),
		base:     base,
	}
}

// RegisterRoutes registers the comparison routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/compare", h.HandleCompare)
	app.Get("/runs", h.HandleListRuns)
	app.Get("/runs/:id", h.HandleGetRun)
}

// compareRequest overrides the configured defaults for one run.
type compareRequest struct {
	Source    string   `json:"source"`
	Backup    string   `json:"backup"`
	Mode      string   `json:"mode"`
	ChunkSize int      `json:"chunk_size"`
	Workers   int      `json:"workers"`
	Hash      string   `json:"hash"`
	Include   []string `json:"include"`
	Timeout   string   `json:"timeout"`
	// Wait runs the comparison within the request and returns its report.
	Wait bool `json:"wait"`
}

func (r compareRequest) apply(cfg Config) (Config, error) {
	if r.Source != "" {
		cfg.Source = r.Source
	}
	if r.Backup != "" {
		cfg.Backup = r.Backup
	}
	if r.Mode != "" {
		cfg.Mode = r.Mode
	}
	if r.ChunkSize != 0 {
		cfg.ChunkSize = r.ChunkSize
	}
	if r.Workers != 0 {
		cfg.Workers = r.Workers
	}
	if r.Hash != "" {
		cfg.Hash = r.Hash
	}
	if r.Include != nil {
		cfg.Include = r.Include
	}
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return cfg, err
		}
		cfg.Timeout = d
	}
	return cfg, cfg.Validate()
}

// runReports gives every HTTP run its own report files so concurrent runs
// never share one.
func (h *Handler) runReports(runID string) report.Config {
	rc := report.Config{Upload: h.reports.Upload}
	if h.reports.Path == "" {
		return rc
	}
	ext := filepath.Ext(h.reports.Path)
	rc.Path = report.SiblingPath(h.reports.Path, "_"+runID, ext)
	return rc
}

// HandleCompare starts a comparison run.
// POST /compare with a JSON body of overrides. Responds 202 with the run id,
// or 200 with the full report when "wait" is set. 429 when the server is
// already running its maximum number of runs.
func (h *Handler) HandleCompare(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var body compareRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "details": err.Error()})
		}
	}
	cfg, err := body.apply(h.defaults)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid configuration", "details": err.Error()})
	}

	runID := uuid.NewString()
	if !h.runs.start(runID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many concurrent runs"})
	}
	req := Request{Config: cfg, Report: h.runReports(runID), RunID: runID}
	l.Info("Comparison requested",
		zap.String("run_id", runID),
		zap.String("source", cfg.Source),
		zap.String("backup", cfg.Backup))

	if body.Wait {
		rep, err := h.service.Run(c.UserContext(), req)
		h.runs.finish(runID, rep, err)
		if rep == nil {
			l.Error("Comparison failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "run_id": runID})
		}
		st, _ := h.runs.get(runID)
		return c.JSON(st)
	}

	go func() {
		rep, err := h.service.Run(h.base, req)
		if err != nil {
			h.service.logger.Error("Comparison failed", zap.String("run_id", runID), zap.Error(err))
		}
		h.runs.finish(runID, rep, err)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": runID,
		"state":  StateRunning,
	})
}

// HandleListRuns lists runs tracked in memory and, when history is
// enabled, the most recent stored runs.
// GET /runs?limit=20
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(history.DefaultListLimit)))
	if err != nil || limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
	}

	resp := fiber.Map{"active": h.runs.list()}
	stored, err := h.service.ListRuns(c.UserContext(), limit)
	switch {
	case errors.Is(err, ErrHistoryDisabled):
	case err != nil:
		l.Error("Failed to list runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	default:
		resp["history"] = stored
	}
	return c.JSON(resp)
}

// HandleGetRun returns one run, from memory first and then from history.
// GET /runs/:id
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	id := c.Params("id")

	if st, ok := h.runs.get(id); ok {
		return c.JSON(st)
	}

	run, err := h.service.GetRun(c.UserContext(), id)
	switch {
	case errors.Is(err, ErrHistoryDisabled), errors.Is(err, history.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found", "run_id": id})
	case err != nil:
		l.Error("Failed to load run", zap.String("run_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(run)
}
