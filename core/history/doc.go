// Package history records finished comparison runs in a database so that
// verification results can be audited later. Each Run row carries the run
// totals and owns one FileRun row per file pair.
package history
