package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pictor-io/pictor/internal/fingerprint"
	"github.com/pictor-io/pictor/internal/store"
)

// Entry is a resolved cache entry. It is owned by the Cache and
// mutated only under the Cache's internal lock.
type Entry struct {
	Key       fingerprint.Key
	Artifacts []store.Artifact
	CreatedAt time.Time

	lastAccessAt time.Time
}

type claim struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Cache maps fingerprints to artifact sets and guarantees that concurrent
// misses on the same fingerprint resolve through exactly one claim holder.
type Cache struct {
	maxEntries int
	ttl        time.Duration

	mtx     sync.Mutex
	entries map[fingerprint.Key]*Entry
	claims  map[fingerprint.Key]*claim
}

// New creates a cache bounded to maxEntries resolved entries
// (least-recently-accessed evicted first) whose entries expire
// ttl after creation. A non-positive maxEntries means unbounded.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    map[fingerprint.Key]*Entry{},
		claims:     map[fingerprint.Key]*claim{},
	}
}

// Lookup returns the entry for the given key, if any. It never blocks
// on in-flight resolutions.
func (cache *Cache) Lookup(key fingerprint.Key) (*Entry, bool) {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	cache.expireLocked()

	entry, ok := cache.entries[key]
	if !ok {
		return nil, false
	}

	entry.lastAccessAt = time.Now()

	return entry, true
}

// ClaimOrWait either registers the caller as the sole resolver for a missing
// key (claimed is true and the caller is obliged to call Resolve exactly
// once), or suspends the caller until the current claim holder resolves.
//
// A caller whose context expires while waiting gets the context's error;
// the claim itself is unaffected.
func (cache *Cache) ClaimOrWait(ctx context.Context, key fingerprint.Key) (entry *Entry, claimed bool, err error) {
	cache.mtx.Lock()

	cache.expireLocked()

	if entry, ok := cache.entries[key]; ok {
		entry.lastAccessAt = time.Now()
		cache.mtx.Unlock()

		return entry, false, nil
	}

	if existingClaim, ok := cache.claims[key]; ok {
		cache.mtx.Unlock()

		select {
		case <-existingClaim.done:
			return existingClaim.entry, false, existingClaim.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	cache.claims[key] = &claim{done: make(chan struct{})}
	cache.mtx.Unlock()

	return nil, true, nil
}

// Resolve completes the claim for the given key. On success (err is nil)
// the artifacts are cached and handed to all waiters; on failure nothing
// is cached, so a transient failure cannot poison the cache, but all
// waiters are still released with the same error.
func (cache *Cache) Resolve(key fingerprint.Key, artifacts []store.Artifact, err error) *Entry {
	cache.mtx.Lock()

	resolvedClaim, ok := cache.claims[key]
	if !ok {
		cache.mtx.Unlock()

		return nil
	}

	delete(cache.claims, key)

	var entry *Entry

	if err == nil {
		now := time.Now()

		entry = &Entry{
			Key:          key,
			Artifacts:    artifacts,
			CreatedAt:    now,
			lastAccessAt: now,
		}

		cache.entries[key] = entry
		cache.evictLocked()
	}

	resolvedClaim.entry = entry
	resolvedClaim.err = err

	cache.mtx.Unlock()

	// Release all waiters at once
	close(resolvedClaim.done)

	return entry
}

// Len returns the number of resolved entries.
func (cache *Cache) Len() int {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	return len(cache.entries)
}

// expireLocked drops entries past their TTL. Runs opportunistically on
// lookup and insert instead of a background timer.
func (cache *Cache) expireLocked() {
	if cache.ttl <= 0 {
		return
	}

	cutoff := time.Now().Add(-cache.ttl)

	for key, entry := range cache.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(cache.entries, key)
		}
	}
}

// evictLocked enforces the entry count bound by dropping the
// least-recently-accessed entries first.
func (cache *Cache) evictLocked() {
	if cache.maxEntries <= 0 {
		return
	}

	for len(cache.entries) > cache.maxEntries {
		var (
			oldestKey    fingerprint.Key
			oldestAccess time.Time
		)

		for key, entry := range cache.entries {
			if oldestAccess.IsZero() || entry.lastAccessAt.Before(oldestAccess) {
				oldestKey = key
				oldestAccess = entry.lastAccessAt
			}
		}

		delete(cache.entries, oldestKey)
	}
}
