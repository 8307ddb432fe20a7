// Package progress shows a terminal progress bar while file pairs are
// compared, with running matched, mismatched, errored and skipped counters
// in the description.
package progress
