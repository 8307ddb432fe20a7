package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrBucketNotFound is returned when a location names a bucket that does
// not exist.
var ErrBucketNotFound = errors.New("bucket does not exist")

// CheckBuckets verifies that the bucket of every location exists. Each
// bucket is checked once.
func CheckBuckets(ctx context.Context, client Client, locs ...Location) error {
	seen := make(map[string]bool, len(locs))
	for _, loc := range locs {
		if seen[loc.Bucket] {
			continue
		}
		seen[loc.Bucket] = true

		exists, err := client.BucketExists(ctx, loc.Bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket existence for %s: %w", loc, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, loc.Bucket)
		}
	}
	return nil
}
