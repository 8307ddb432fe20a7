package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backup-verifier/core/reconcile"
	"backup-verifier/core/stats"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()
	m.Observe(reconcile.Outcome{Result: reconcile.FileResult{
		Status: reconcile.StatusMismatched, Matched: 8, MissingInBackup: 2, MissingInSource: 1, DurationMs: 40,
	}})
	m.Observe(reconcile.Outcome{Result: reconcile.FileResult{Status: reconcile.StatusCancelled, Matched: 99}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("mismatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("cancelled")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.records.WithLabelValues("matched")), "cancelled pairs add no records")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues("missing_in_backup")))
}

func TestMetrics_RecordRun(t *testing.T) {
	m := New()
	start := time.Now()
	m.RecordRun(stats.GlobalSummary{StartedAt: start, FinishedAt: start.Add(time.Second), MatchRate: 100})
	m.RecordRun(stats.GlobalSummary{StartedAt: start, FinishedAt: start, MissingInBackup: 1, MatchRate: 75})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mismatched")))
	assert.Equal(t, 75.0, testutil.ToFloat64(m.matchRate))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordRun(stats.GlobalSummary{MatchRate: 50})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backup_verifier_last_run_match_rate 50")
}

func TestMetrics_Push(t *testing.T) {
	var gotPath, gotBody string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	m := New()
	m.RecordRun(stats.GlobalSummary{MatchRate: 100})
	require.NoError(t, m.Push(context.Background(), gw.URL, "backup_verifier"))
	assert.True(t, strings.HasSuffix(gotPath, "/job/backup_verifier"), gotPath)
	assert.NotEmpty(t, gotBody)
}
