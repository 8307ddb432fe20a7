package report

import (
	"fmt"
	"io"
	"time"

	"backup-verifier/core/stats"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// maxConsoleFailures caps the failed pairs listed on the console; the
// report file has all of them.
const maxConsoleFailures = 20

// PrintSummary renders the run totals and a verdict line to w.
func PrintSummary(w io.Writer, s stats.GlobalSummary) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	tbl.AppendRows([]table.Row{
		{"Files", humanize.Comma(int64(s.Files))},
		{"Compared", humanize.Comma(int64(s.ComparedFiles))},
		{"Matched files", humanize.Comma(int64(s.MatchedFiles))},
		{"Mismatched files", humanize.Comma(int64(s.MismatchedFiles))},
		{"Errored files", humanize.Comma(int64(s.ErroredFiles))},
		{"Skipped files", humanize.Comma(int64(s.Skipped))},
		{"Missing in backup (files)", humanize.Comma(int64(s.MissingBackupFiles))},
		{"Missing in source (files)", humanize.Comma(int64(s.MissingSourceFiles))},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Source records", humanize.Comma(s.SourceRecords)},
		{"Backup records", humanize.Comma(s.BackupRecords)},
		{"Matched", humanize.Comma(s.Matched)},
		{"Missing in backup", humanize.Comma(s.MissingInBackup)},
		{"Missing in source", humanize.Comma(s.MissingInSource)},
		{"Divergent digests", humanize.Comma(s.DivergentDigests)},
		{"Record errors", humanize.Comma(s.RecordErrors)},
	})
	tbl.AppendFooter(table.Row{"Match rate", fmt.Sprintf("%.2f%%", s.MatchRate)})
	tbl.Render()

	fmt.Fprintf(w, "Completed in %s\n", s.Duration().Round(time.Millisecond))

	if len(s.Failed) > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d file pair(s) not fully compared:\n", len(s.Failed))
		for i, f := range s.Failed {
			if i == maxConsoleFailures {
				fmt.Fprintf(w, "  ... and %d more\n", len(s.Failed)-i)
				break
			}
			msg := string(f.Status)
			if len(f.Errors) > 0 {
				msg = f.Errors[0].Message
			}
			fmt.Fprintf(w, "  - %s: %s\n", f.RelativePath, msg)
		}
	}

	if s.AllMatched() {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "Backup matches source")
		return
	}
	color.New(color.FgRed, color.Bold).Fprintln(w, "Backup does not match source")
}

// PrintFiles lists the files written for a run.
func PrintFiles(w io.Writer, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		color.New(color.FgCyan).Fprintf(w, "Report written to %s\n", p)
	}
}
