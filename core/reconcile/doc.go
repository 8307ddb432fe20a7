// Package reconcile compares the records of a source file with those of its
// backup counterpart by content digest.
//
// For every file pair the engine:
//   - detects the format and opens both sides,
//   - draws records from each side in chunks of ChunkSize, hashing every
//     record and counting its digest in a per-file Index,
//   - sweeps the index once both sides are exhausted and classifies every
//     distinct digest.
//
// # Classification
//
// Records are compared as multisets. A digest seen s times in the source and
// b times in the backup contributes min(s, b) to Matched, s-min(s, b) to
// MissingInBackup and b-min(s, b) to MissingInSource. Digests present on both
// sides with s != b are also counted in DivergentDigests. Because equal
// digests imply equal canonical content there is no positional content diff;
// Mismatched stays zero and is kept for report compatibility.
//
// Every digest present on exactly one side yields a MismatchDetail carrying
// the canonical content of its first record on that side.
//
// # Memory
//
// Chunking bounds the raw records held at once. The digest index spans the
// whole file because a count is final only after both sides are read. When
// SpillDir is set the index moves to lz4 compressed shard files once it
// exceeds SpillThreshold distinct digests and is swept one shard at a time.
//
// # Failures
//
// Compare never returns an error. Unsupported formats, open failures,
// malformed documents, read faults and cancellation are recorded as
// FileError entries and reflected in FileResult.Status.
package reconcile
