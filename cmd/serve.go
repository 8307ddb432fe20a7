package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backup-verifier/core/config"
	"backup-verifier/core/loader"
	"backup-verifier/core/logger"
	"backup-verifier/core/metrics"
	"backup-verifier/core/middleware/auth"
	"backup-verifier/core/middleware/rayid"
	"backup-verifier/core/storage"
	"backup-verifier/feature/compare"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const metricsPath = "/metrics"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification server",
	Long: `Starts the HTTP server. Comparison runs are triggered with POST /compare
and queried with GET /runs and GET /runs/:id. Prometheus metrics are served
on /metrics without authentication.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Configuration
		cfg, logg, err := setup()
		if err != nil {
			return err
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 2. Initialize Storage
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return err
		}

		// 3. Run history (Optional)
		hist, err := openHistory(cfg, logg)
		if err != nil {
			return err
		}

		m := metrics.New()
		lister := storage.NewLister(client, time.Duration(cfg.Storage.ListingTTLSeconds)*time.Second)
		svc := compare.NewService(client, lister, logg, hist, m)

		// Runs started over HTTP outlive their request but not the server.
		base, cancel := context.WithCancel(context.Background())
		defer cancel()

		app, err := newServer(base, cfg, logg, svc, m)
		if err != nil {
			return err
		}

		// 4. Start Server
		errCh := make(chan error, 1)
		go func() {
			logg.Info("Starting server", zap.String("addr", cfg.Server.Addr()))
			errCh <- app.Listen(cfg.Server.Addr())
		}()

		// 5. Graceful Shutdown
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-sig:
		}
		logg.Info("Shutting down server...")
		cancel()
		return app.ShutdownWithTimeout(30 * time.Second)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

// newServer builds the fiber app with middleware, metrics and every
// enabled feature.
func newServer(base context.Context, cfg *config.Config, logg *zap.Logger, svc *compare.Service, m *metrics.Metrics) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	// Feature Loader
	mgr := loader.NewManager()
	handler := compare.NewHandler(base, svc, cfg.Compare, cfg.Report, cfg.Server.MaxConcurrentRuns)
	mgr.Register(compare.NewFeature(svc, handler))

	// 1. RayID (Must be first to trace everything)
	app.Use(rayid.New())

	// 2. Request logging with the ray id
	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		start := time.Now()
		err := c.Next()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			l.Error("Request error", append(fields, zap.Error(err))...)
			return err
		}
		l.Info("Request handled", fields...)
		return nil
	})

	// 3. Metrics (Public)
	app.Get(metricsPath, adaptor.HTTPHandler(m.Handler()))

	// 4. Auth (Protect API)
	app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey, Public: []string{metricsPath}}))

	// 5. Load Features
	loaded, err := mgr.LoadAll(app)
	if err != nil {
		return nil, err
	}
	logg.Info("Features loaded", zap.Strings("features", loaded), zap.Bool("auth", cfg.Server.AuthEnabled()))
	return app, nil
}
