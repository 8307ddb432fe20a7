package stats

import (
	"errors"
	"testing"

	"backup-verifier/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collectSink struct {
	details []reconcile.MismatchDetail
	err     error
}

func (c *collectSink) WriteDetails(d []reconcile.MismatchDetail) error {
	if c.err != nil {
		return c.err
	}
	c.details = append(c.details, d...)
	return nil
}

func outcome(path string, status reconcile.Status, src, bkp, matched, mib, mis int64) reconcile.Outcome {
	return reconcile.Outcome{Result: reconcile.FileResult{
		RelativePath:    path,
		Status:          status,
		SourceRecords:   src,
		BackupRecords:   bkp,
		Matched:         matched,
		MissingInBackup: mib,
		MissingInSource: mis,
	}}
}

func feed(outcomes ...reconcile.Outcome) <-chan reconcile.Outcome {
	ch := make(chan reconcile.Outcome, len(outcomes))
	for _, o := range outcomes {
		ch <- o
	}
	close(ch)
	return ch
}

func TestAggregator_WeightedMatchRate(t *testing.T) {
	a := NewAggregator(zap.NewNop())
	// A small perfect file must not dominate a large poor one.
	err := a.Run(feed(
		outcome("small.jsonl", reconcile.StatusMatched, 10, 10, 10, 0, 0),
		outcome("large.jsonl", reconcile.StatusMismatched, 990, 500, 490, 500, 10),
	), nil)
	require.NoError(t, err)

	s := a.Summary()
	assert.Equal(t, int64(1000), s.SourceRecords)
	assert.Equal(t, int64(500), s.Matched)
	assert.InDelta(t, 50.0, s.MatchRate, 0.0001)
	assert.Equal(t, 2, s.ComparedFiles)
	assert.Equal(t, 1, s.MatchedFiles)
	assert.Equal(t, 1, s.MismatchedFiles)
	assert.False(t, s.AllMatched())
	assert.False(t, s.FinishedAt.IsZero())
}

func TestAggregator_OrderIndependent(t *testing.T) {
	outs := []reconcile.Outcome{
		outcome("a", reconcile.StatusMatched, 5, 5, 5, 0, 0),
		outcome("b", reconcile.StatusMismatched, 7, 3, 3, 4, 0),
		outcome("c", reconcile.StatusErrored, 2, 2, 2, 0, 0),
	}

	forward := NewAggregator(nil)
	require.NoError(t, forward.Run(feed(outs[0], outs[1], outs[2]), nil))
	backward := NewAggregator(nil)
	require.NoError(t, backward.Run(feed(outs[2], outs[1], outs[0]), nil))

	f, b := forward.Summary(), backward.Summary()
	f.StartedAt, f.FinishedAt = b.StartedAt, b.FinishedAt
	assert.Equal(t, f, b)
	assert.Equal(t, forward.Results(), backward.Results())
	assert.Equal(t, "a", forward.Results()[0].RelativePath)
}

func TestAggregator_CancelledAndSkipped(t *testing.T) {
	a := NewAggregator(nil)
	cancelled := outcome("late.jsonl", reconcile.StatusCancelled, 50, 0, 0, 0, 0)
	skipped := outcome("x.parquet", reconcile.StatusSkipped, 0, 0, 0, 0, 0)
	ok := outcome("ok.jsonl", reconcile.StatusMatched, 4, 4, 4, 0, 0)

	require.NoError(t, a.Run(feed(cancelled, skipped, ok), nil))
	s := a.Summary()

	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 1, s.Cancelled)
	assert.Equal(t, 1, s.ComparedFiles)
	assert.Equal(t, int64(4), s.SourceRecords, "cancelled records are excluded")
	assert.Equal(t, 100.0, s.MatchRate)
	require.Len(t, s.Failed, 2)
	assert.Equal(t, "late.jsonl", s.Failed[0].RelativePath)
	assert.False(t, s.AllMatched())
}

func TestAggregator_AllMatched(t *testing.T) {
	a := NewAggregator(nil)
	require.NoError(t, a.Run(feed(outcome("a", reconcile.StatusMatched, 3, 3, 3, 0, 0)), nil))
	assert.True(t, a.Summary().AllMatched())

	empty := NewAggregator(nil)
	require.NoError(t, empty.Run(feed(), nil))
	assert.True(t, empty.Summary().AllMatched())
	assert.Equal(t, 0.0, empty.Summary().MatchRate)

	missing := outcome("gone.jsonl", reconcile.StatusMismatched, 0, 0, 0, 0, 0)
	missing.Result.BackupMissing = true
	m := NewAggregator(nil)
	require.NoError(t, m.Run(feed(missing), nil))
	assert.Equal(t, 1, m.Summary().MissingBackupFiles)
	assert.False(t, m.Summary().AllMatched(), "an empty file missing from the backup still fails")
}

func TestAggregator_DetailsAndObservers(t *testing.T) {
	var observed []string
	obs := ObserverFunc(func(o reconcile.Outcome) { observed = append(observed, o.Result.RelativePath) })
	a := NewAggregator(nil, obs)

	o := outcome("a", reconcile.StatusMismatched, 1, 0, 0, 1, 0)
	o.Details = []reconcile.MismatchDetail{{RelativePath: "a", Side: reconcile.SourceOnly}}
	sink := &collectSink{}

	require.NoError(t, a.Run(feed(o, outcome("b", reconcile.StatusMatched, 1, 1, 1, 0, 0)), sink))

	assert.Equal(t, []string{"a", "b"}, observed)
	assert.Len(t, sink.details, 1)
	assert.Equal(t, int64(1), a.Summary().Details)
}

func TestAggregator_SinkFailureDrainsChannel(t *testing.T) {
	a := NewAggregator(nil)
	o := outcome("a", reconcile.StatusMismatched, 1, 0, 0, 1, 0)
	o.Details = []reconcile.MismatchDetail{{RelativePath: "a"}}

	err := a.Run(feed(o, o, o), &collectSink{err: errors.New("disk full")})

	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 3, a.Summary().Files)
}
