package storage

import (
	"errors"
	"fmt"
	"strings"
)

const scheme = "s3://"

// ErrInvalidLocation is returned for locations that are not s3://bucket[/prefix].
var ErrInvalidLocation = errors.New("invalid storage location")

// Location is a bucket and key prefix.
type Location struct {
	Bucket string
	Prefix string
}

// ParseLocation parses s3://bucket/prefix. The prefix may be empty; a
// trailing slash is dropped.
func ParseLocation(raw string) (Location, error) {
	if !strings.HasPrefix(raw, scheme) {
		return Location{}, fmt.Errorf("%w: %q must start with %s", ErrInvalidLocation, raw, scheme)
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(raw, scheme), "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w: %q has no bucket", ErrInvalidLocation, raw)
	}
	return Location{Bucket: bucket, Prefix: strings.TrimRight(prefix, "/")}, nil
}

func (l Location) String() string {
	if l.Prefix == "" {
		return scheme + l.Bucket
	}
	return scheme + l.Bucket + "/" + l.Prefix
}

// Key returns the object key of rel under the location.
func (l Location) Key(rel string) string {
	if l.Prefix == "" {
		return rel
	}
	return l.Prefix + "/" + rel
}

// listPrefix is the prefix passed to the listing call. A prefix is treated
// as a directory, so s3://b/data does not pick up data-old/x.json.
func (l Location) listPrefix() string {
	if l.Prefix == "" {
		return ""
	}
	return l.Prefix + "/"
}

// relative returns key relative to the location.
func (l Location) relative(key string) string {
	return strings.TrimPrefix(key, l.listPrefix())
}
