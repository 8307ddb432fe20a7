package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"backup-verifier/core/reconcile"

	"github.com/minio/minio-go/v7"
)

// ListFiles lists every object under loc, keyed by its path relative to
// the location. Directory markers are skipped. When include is not empty
// only keys ending in one of its suffixes are kept.
func ListFiles(ctx context.Context, client Client, loc Location, include []string) (map[string]reconcile.ObjectRef, error) {
	files := make(map[string]reconcile.ObjectRef)
	opts := minio.ListObjectsOptions{Prefix: loc.listPrefix(), Recursive: true}

	for obj := range client.ListObjects(ctx, loc.Bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", loc, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") || !included(obj.Key, include) {
			continue
		}
		rel := loc.relative(obj.Key)
		if rel == "" {
			continue
		}
		files[rel] = reconcile.ObjectRef{
			Bucket:       loc.Bucket,
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func included(key string, include []string) bool {
	if len(include) == 0 {
		return true
	}
	lower := strings.ToLower(key)
	for _, suffix := range include {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// PairFiles joins two listings on relative path. A side missing from one
// listing is left nil. Pairs are ordered by relative path.
func PairFiles(source, backup map[string]reconcile.ObjectRef) []reconcile.FilePair {
	paths := make([]string, 0, len(source)+len(backup))
	for rel := range source {
		paths = append(paths, rel)
	}
	for rel := range backup {
		if _, ok := source[rel]; !ok {
			paths = append(paths, rel)
		}
	}
	sort.Strings(paths)

	pairs := make([]reconcile.FilePair, len(paths))
	for i, rel := range paths {
		pairs[i] = reconcile.FilePair{RelativePath: rel}
		if ref, ok := source[rel]; ok {
			pairs[i].Source = &ref
		}
		if ref, ok := backup[rel]; ok {
			pairs[i].Backup = &ref
		}
	}
	return pairs
}
