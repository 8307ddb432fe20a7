// Package stats aggregates per-file reconciliation outcomes into run-wide
// totals.
//
// Workers never touch shared counters. They send reconcile.Outcome values on
// a channel and a single Aggregator goroutine folds them into a
// GlobalSummary, notifies observers (progress, metrics) and streams mismatch
// details to a sink. The global match rate is weighted by record count.
package stats
