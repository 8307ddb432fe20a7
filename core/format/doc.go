// Package format detects the record layout and compression of a backup file
// from its name and opens a record extractor over the decoded bytes.
//
// # Detection
//
// A trailing compression suffix is removed first:
//   - .gz, .gzip: gzip
//   - .zst, .zstd: zstd
//   - .lz4: lz4 frame
//
// The remaining extension selects the layout. .jsonl, .ndjson and .jsonlines
// are line-delimited JSON, .csv and .tsv are delimited text with a header row.
// .json and names without an extension are ambiguous and use the configured
// mode. Anything else is rejected with ErrUnsupportedFormat.
//
// # Usage
//
//	f, err := format.Detect("exports/2024/orders.jsonl.gz", format.KindLines)
//	ex, closer, err := format.Open(body, f)
//	defer closer.Close()
package format
