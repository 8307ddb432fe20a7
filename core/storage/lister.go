package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"backup-verifier/core/reconcile"

	"golang.org/x/sync/singleflight"
)

// listing is a cached result of ListFiles.
type listing struct {
	files map[string]reconcile.ObjectRef
	built time.Time
}

// Lister lists locations through a shared cache. Concurrent listings of the
// same location and filter run once; with a TTL the result is also reused
// by later calls until it expires.
type Lister struct {
	client Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]*listing
	sf    singleflight.Group
}

// NewLister creates a lister over client. A zero ttl disables reuse across
// calls that do not overlap.
func NewLister(client Client, ttl time.Duration) *Lister {
	return &Lister{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]*listing),
	}
}

func (l *Lister) fresh(c *listing) bool {
	return c != nil && l.ttl > 0 && time.Since(c.built) <= l.ttl
}

// List returns the files under loc. The returned map is shared and must not
// be modified.
func (l *Lister) List(ctx context.Context, loc Location, include []string) (map[string]reconcile.ObjectRef, error) {
	key := loc.String() + "|" + strings.Join(include, ",")

	l.mu.RLock()
	c := l.cache[key]
	l.mu.RUnlock()
	if l.fresh(c) {
		return c.files, nil
	}

	result, err, _ := l.sf.Do(key, func() (any, error) {
		l.mu.RLock()
		c := l.cache[key]
		l.mu.RUnlock()
		if l.fresh(c) {
			return c.files, nil
		}

		files, err := ListFiles(ctx, l.client, loc, include)
		if err != nil {
			return nil, err
		}
		if l.ttl > 0 {
			l.mu.Lock()
			l.cache[key] = &listing{files: files, built: time.Now()}
			l.mu.Unlock()
		}
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]reconcile.ObjectRef), nil
}

// Invalidate drops every cached listing.
func (l *Lister) Invalidate() {
	l.mu.Lock()
	l.cache = make(map[string]*listing)
	l.mu.Unlock()
}
