package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pictor-io/pictor/internal/cache"
	"github.com/pictor-io/pictor/internal/fingerprint"
	"github.com/pictor-io/pictor/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func artifacts(id string) []store.Artifact {
	return []store.Artifact{{ID: id}}
}

func TestLookupMissThenHit(t *testing.T) {
	imageCache := cache.New(16, time.Hour)
	key := fingerprint.Key("key")

	_, ok := imageCache.Lookup(key)
	require.False(t, ok)

	_, claimed, err := imageCache.ClaimOrWait(context.Background(), key)
	require.NoError(t, err)
	require.True(t, claimed)

	imageCache.Resolve(key, artifacts("a"), nil)

	entry, ok := imageCache.Lookup(key)
	require.True(t, ok)
	require.Equal(t, artifacts("a"), entry.Artifacts)
}

func TestSingleFlight(t *testing.T) {
	imageCache := cache.New(16, time.Hour)
	key := fingerprint.Key("key")

	var claimHolders atomic.Int64
	var group errgroup.Group

	const callers = 10

	for i := 0; i < callers; i++ {
		group.Go(func() error {
			entry, claimed, err := imageCache.ClaimOrWait(context.Background(), key)
			if err != nil {
				return err
			}

			if claimed {
				claimHolders.Add(1)

				// Simulate the expensive remote call
				time.Sleep(10 * time.Millisecond)
				imageCache.Resolve(key, artifacts("shared"), nil)

				return nil
			}

			if entry == nil || entry.Artifacts[0].ID != "shared" {
				return errors.New("waiter received an unexpected entry")
			}

			return nil
		})
	}

	require.NoError(t, group.Wait())
	require.Equal(t, int64(1), claimHolders.Load())
}

func TestFailedResolutionIsNotCached(t *testing.T) {
	imageCache := cache.New(16, time.Hour)
	key := fingerprint.Key("key")

	_, claimed, err := imageCache.ClaimOrWait(context.Background(), key)
	require.NoError(t, err)
	require.True(t, claimed)

	// A waiter queued behind the claim
	waiterErr := make(chan error, 1)

	go func() {
		_, _, err := imageCache.ClaimOrWait(context.Background(), key)
		waiterErr <- err
	}()

	// Give the waiter a chance to suspend
	time.Sleep(10 * time.Millisecond)

	resolutionErr := errors.New("remote call failed")
	imageCache.Resolve(key, nil, resolutionErr)

	// The waiter observes the propagated failure
	require.ErrorIs(t, <-waiterErr, resolutionErr)

	// But the failure doesn't poison the cache: the next caller
	// gets a fresh claim
	_, ok := imageCache.Lookup(key)
	require.False(t, ok)

	_, claimed, err = imageCache.ClaimOrWait(context.Background(), key)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestWaiterCancellation(t *testing.T) {
	imageCache := cache.New(16, time.Hour)
	key := fingerprint.Key("key")

	_, claimed, err := imageCache.ClaimOrWait(context.Background(), key)
	require.NoError(t, err)
	require.True(t, claimed)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err = imageCache.ClaimOrWait(ctx, key)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned wait must not have disturbed the claim:
	// resolution still works and is still cached
	imageCache.Resolve(key, artifacts("late"), nil)

	entry, ok := imageCache.Lookup(key)
	require.True(t, ok)
	require.Equal(t, artifacts("late"), entry.Artifacts)
}

func TestTTLExpiry(t *testing.T) {
	imageCache := cache.New(16, 25*time.Millisecond)
	key := fingerprint.Key("key")

	_, claimed, err := imageCache.ClaimOrWait(context.Background(), key)
	require.NoError(t, err)
	require.True(t, claimed)
	imageCache.Resolve(key, artifacts("a"), nil)

	_, ok := imageCache.Lookup(key)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	// Expired on the next lookup, no background timer involved
	_, ok = imageCache.Lookup(key)
	require.False(t, ok)
}

func TestLeastRecentlyAccessedEviction(t *testing.T) {
	imageCache := cache.New(2, time.Hour)

	resolve := func(key fingerprint.Key) {
		_, claimed, err := imageCache.ClaimOrWait(context.Background(), key)
		require.NoError(t, err)
		require.True(t, claimed)
		imageCache.Resolve(key, artifacts(string(key)), nil)
	}

	resolve("first")
	time.Sleep(time.Millisecond)
	resolve("second")
	time.Sleep(time.Millisecond)

	// Touch "first" so that "second" becomes the eviction candidate
	_, ok := imageCache.Lookup("first")
	require.True(t, ok)
	time.Sleep(time.Millisecond)

	resolve("third")

	_, ok = imageCache.Lookup("first")
	require.True(t, ok)

	_, ok = imageCache.Lookup("second")
	require.False(t, ok)

	_, ok = imageCache.Lookup("third")
	require.True(t, ok)

	require.Equal(t, 2, imageCache.Len())
}
