package cmd

import (
	"context"
	"net/http/httptest"
	"testing"

	"backup-verifier/core/config"
	"backup-verifier/core/metrics"
	"backup-verifier/core/middleware/auth"
	"backup-verifier/core/storage/mocks"
	"backup-verifier/feature/compare"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupServer(t *testing.T, apiKey string) *fiber.App {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Server.ApiKey = apiKey

	svc := compare.NewService(new(mocks.Client), nil, zap.NewNop(), nil, metrics.New())
	app, err := newServer(context.Background(), cfg, zap.NewNop(), svc, metrics.New())
	require.NoError(t, err)
	return app
}

func TestServer_Auth(t *testing.T) {
	app := setupServer(t, "secret")

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{"MetricsArePublic", "/metrics", "", "", 200},
		{"RunsNeedKey", "/runs", "", "", 401},
		{"WrongKey", "/runs", auth.HeaderName, "nope", 401},
		{"HeaderKey", "/runs", auth.HeaderName, "secret", 200},
		{"BearerKey", "/runs", fiber.HeaderAuthorization, "Bearer secret", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServer_RayID(t *testing.T) {
	app := setupServer(t, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Ray-ID"))
}

func TestApplyCompareFlags(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, compareCmd.Flags().Parse([]string{
		"--source", "s3://live/x",
		"--workers", "9",
		"--report", "out.json",
		"--append",
	}))
	applyCompareFlags(compareCmd, cfg)

	assert.Equal(t, "s3://live/x", cfg.Compare.Source)
	assert.Equal(t, 9, cfg.Compare.Workers)
	assert.Equal(t, "out.json", cfg.Report.Path)
	assert.True(t, cfg.Report.Append)
	assert.Equal(t, 10000, cfg.Compare.ChunkSize, "unset flags keep the configured value")
}
