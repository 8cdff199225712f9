package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pictor-io/pictor/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPersist(t *testing.T) {
	artifactStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	payload := []byte("fake image bytes")

	artifact, err := artifactStore.Persist(context.Background(), payload, store.Descriptor{
		Category:        "generated",
		Format:          "png",
		Prompt:          "a red cube",
		OptimizedPrompt: "a red cube, high quality",
		CostUSD:         0.039,
		Latency:         1500 * time.Millisecond,
		Fingerprint:     "deadbeef",
	})
	require.NoError(t, err)

	require.NotEmpty(t, artifact.ID)
	require.Contains(t, artifact.Filename, "pictor_generated_")
	require.Equal(t, int64(len(payload)), artifact.Size)

	// Payload should land in the category directory
	persistedBytes, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	require.Equal(t, payload, persistedBytes)

	// And the ledger should have exactly one matching record
	ledger, err := artifactStore.Ledger()
	require.NoError(t, err)
	require.Len(t, ledger.Artifacts, 1)
	require.Equal(t, artifact.ID, ledger.Artifacts[artifact.ID].ID)
	require.Equal(t, "a red cube", ledger.Artifacts[artifact.ID].Prompt)
}

func TestPersistDuplicatePayloadsKeepDistinctFiles(t *testing.T) {
	artifactStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	payload := []byte("identical candidate bytes")

	first, err := artifactStore.Persist(context.Background(), payload, store.Descriptor{
		Category: "generated",
		Format:   "png",
	})
	require.NoError(t, err)

	// Byte-identical payload within the same second must not
	// overwrite the first artifact
	second, err := artifactStore.Persist(context.Background(), payload, store.Descriptor{
		Category: "generated",
		Format:   "png",
	})
	require.NoError(t, err)

	require.NotEqual(t, first.Path, second.Path)
	require.FileExists(t, first.Path)
	require.FileExists(t, second.Path)

	ledger, err := artifactStore.Ledger()
	require.NoError(t, err)
	require.Len(t, ledger.Artifacts, 2)
}

func TestPersistRejectsUnknownCategory(t *testing.T) {
	artifactStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	_, err = artifactStore.Persist(context.Background(), []byte("payload"), store.Descriptor{
		Category: "thumbnails",
		Format:   "png",
	})
	require.Error(t, err)
}

func TestLedgerSurvivesConcurrentWriters(t *testing.T) {
	artifactStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	var group errgroup.Group

	const writers = 16

	for i := 0; i < writers; i++ {
		payload := []byte{byte(i)}

		group.Go(func() error {
			_, err := artifactStore.Persist(context.Background(), payload, store.Descriptor{
				Category: "generated",
				Format:   "png",
			})

			return err
		})
	}

	require.NoError(t, group.Wait())

	ledger, err := artifactStore.Ledger()
	require.NoError(t, err)
	require.Len(t, ledger.Artifacts, writers)
}

func TestLedgerNeverObservedPartiallyWritten(t *testing.T) {
	dir := t.TempDir()

	artifactStore, err := store.New(dir)
	require.NoError(t, err)

	artifact, err := artifactStore.Persist(context.Background(), []byte("payload"), store.Descriptor{
		Category: "generated",
		Format:   "png",
	})
	require.NoError(t, err)

	// Simulate a crash mid-update: a half-written temporary file
	// next to the ledger, never renamed into place
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pictor-tmp-crashed"),
		[]byte(`{"artifacts": {"tru`), 0600))

	// The ledger itself needs to remain complete and parsable
	ledgerBytes, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	require.True(t, json.Valid(ledgerBytes))

	ledger, err := artifactStore.Ledger()
	require.NoError(t, err)
	require.Len(t, ledger.Artifacts, 1)
	require.Contains(t, ledger.Artifacts, artifact.ID)

	// A fresh store over the same directory sees the same state
	reopenedStore, err := store.New(dir)
	require.NoError(t, err)

	reopenedLedger, err := reopenedStore.Ledger()
	require.NoError(t, err)
	require.Len(t, reopenedLedger.Artifacts, 1)
}

func TestHistory(t *testing.T) {
	artifactStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	for _, category := range []string{"generated", "generated", "edited"} {
		_, err := artifactStore.Persist(context.Background(), []byte(category), store.Descriptor{
			Category: category,
			Format:   "png",
		})
		require.NoError(t, err)
	}

	all, err := artifactStore.History(0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	generatedOnly, err := artifactStore.History(0, "generated")
	require.NoError(t, err)
	require.Len(t, generatedOnly, 2)

	limited, err := artifactStore.History(1, "")
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestStats(t *testing.T) {
	artifactStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	_, err = artifactStore.Persist(context.Background(), []byte("12345"), store.Descriptor{
		Category: "blended",
		Format:   "png",
	})
	require.NoError(t, err)

	stats, err := artifactStore.Stats()
	require.NoError(t, err)
	require.Equal(t, store.CategoryStats{Files: 1, Bytes: 5}, stats["blended"])
	require.Equal(t, store.CategoryStats{}, stats["generated"])
}

type recordingMirror struct {
	mtx  sync.Mutex
	keys []string
}

func (mirror *recordingMirror) Mirror(_ context.Context, key string, _ []byte) error {
	mirror.mtx.Lock()
	defer mirror.mtx.Unlock()

	mirror.keys = append(mirror.keys, key)

	return nil
}

func TestMirror(t *testing.T) {
	mirror := &recordingMirror{}

	artifactStore, err := store.New(t.TempDir(), store.WithMirror(mirror))
	require.NoError(t, err)

	artifact, err := artifactStore.Persist(context.Background(), []byte("payload"), store.Descriptor{
		Category: "generated",
		Format:   "png",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"generated/" + artifact.Filename}, mirror.keys)
}

func TestCleanupTemp(t *testing.T) {
	dir := t.TempDir()

	artifactStore, err := store.New(dir)
	require.NoError(t, err)

	stalePath := filepath.Join(dir, "pictor-tmp-stale")
	require.NoError(t, os.WriteFile(stalePath, []byte("junk"), 0600))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, stale, stale))

	removed, err := artifactStore.CleanupTemp(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = os.Stat(stalePath)
	require.ErrorIs(t, err, os.ErrNotExist)
}
