// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface, which works
// against AWS S3 and self-hosted MinIO alike and is mocked in
// core/storage/mocks for unit tests.
//
// # Locations
//
// Source and backup sets are addressed as s3://bucket/prefix. The prefix
// is treated as a directory: objects are listed recursively beneath it and
// identified by their key relative to it, which is how files of the two
// sets are paired.
//
// # Operations
//
//   - ListFiles: relative path to object reference, skipping directory markers.
//   - PairFiles: joins two listings into file pairs, sorted by path.
//   - Lister: deduplicates concurrent listings and optionally caches them.
//   - Opener: streams objects for the reconciliation engine.
//   - Upload: copies a finished report into a bucket.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	src, err := storage.ParseLocation("s3://live/exports")
//	files, err := storage.ListFiles(ctx, client, src, nil)
package storage
