// Package report writes the results of a comparison run.
//
// The report format follows the extension of the configured path. CSV
// reports get a <stem>_summary.csv companion and can be appended to across
// runs. Mismatch details stream to a separate CSV through DetailWriter as
// the run progresses, and PrintSummary renders the totals for a terminal.
package report
