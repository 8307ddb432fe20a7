// Package compare runs backup verification end to end.
//
// A run lists the source and backup locations, pairs files by relative
// path and compares every pair on a bounded worker pool. Each worker owns
// one pair from open to result; outcomes flow over a channel to a single
// aggregator, which also drives the progress bar, the metrics and the
// mismatch detail file. When the run context ends, pairs that have not
// started are reported as cancelled so totals stay complete.
//
// # HTTP
//
//	POST /compare   start a run (202) or run it inline with "wait": true
//	GET  /runs      runs tracked in memory plus stored history
//	GET  /runs/:id  one run, with its report once finished
package compare
