package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"backup-verifier/core/reconcile"

	"github.com/schollz/progressbar/v3"
)

// Bar renders file pair progress on a terminal. It implements
// stats.Observer, so it advances as the aggregator folds outcomes.
type Bar struct {
	bar *progressbar.ProgressBar

	mu         sync.Mutex
	matched    int
	mismatched int
	errored    int
	skipped    int
	records    int64
}

// New creates a bar over total file pairs writing to w.
func New(w io.Writer, total int) *Bar {
	b := &Bar{}
	b.bar = progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("comparing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(120*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
	_ = b.bar.RenderBlank()
	return b
}

// Observe advances the bar by one file pair.
func (b *Bar) Observe(o reconcile.Outcome) {
	b.mu.Lock()
	switch o.Result.Status {
	case reconcile.StatusMatched:
		b.matched++
	case reconcile.StatusMismatched:
		b.mismatched++
	case reconcile.StatusErrored:
		b.errored++
	default:
		b.skipped++
	}
	b.records += o.Result.SourceRecords + o.Result.BackupRecords
	desc := b.describe()
	b.mu.Unlock()

	b.bar.Describe(desc)
	_ = b.bar.Add(1)
}

func (b *Bar) describe() string {
	return fmt.Sprintf("comparing | ok=%d mismatched=%d err=%d skip=%d | %d records",
		b.matched, b.mismatched, b.errored, b.skipped, b.records)
}

// Close completes the bar.
func (b *Bar) Close() error {
	return b.bar.Finish()
}
