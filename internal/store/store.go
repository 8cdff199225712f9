package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Categories that artifacts are filed under, one directory each.
var Categories = []string{"generated", "edited", "blended"}

// Artifact describes a persisted binary payload and its provenance.
type Artifact struct {
	ID              string        `json:"id"`
	Filename        string        `json:"filename"`
	Path            string        `json:"path"`
	Category        string        `json:"category"`
	Size            int64         `json:"size"`
	Format          string        `json:"format"`
	CreatedAt       time.Time     `json:"created_at"`
	Prompt          string        `json:"prompt"`
	OptimizedPrompt string        `json:"optimized_prompt,omitempty"`
	CostUSD         float64       `json:"cost_usd"`
	Latency         time.Duration `json:"latency"`
	Fingerprint     string        `json:"fingerprint"`
	ContentHash     string        `json:"content_hash"`
}

// Descriptor carries the provenance for a payload about to be persisted.
type Descriptor struct {
	Category        string
	Format          string
	Prompt          string
	OptimizedPrompt string
	CostUSD         float64
	Latency         time.Duration
	Fingerprint     string
}

// Mirror receives a best-effort copy of every persisted artifact.
type Mirror interface {
	Mirror(ctx context.Context, key string, payload []byte) error
}

type Store struct {
	dir        string
	ledgerPath string
	logger     *zap.SugaredLogger
	mirror     Mirror

	// Serializes ledger mutations so that concurrent
	// writers cannot interleave read-modify-write cycles
	mtx sync.Mutex
}

type Option func(store *Store)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(store *Store) {
		store.logger = logger
	}
}

func WithMirror(mirror Mirror) Option {
	return func(store *Store) {
		store.mirror = mirror
	}
}

func New(dir string, opts ...Option) (*Store, error) {
	store := &Store{
		dir:        dir,
		ledgerPath: filepath.Join(dir, "metadata.json"),
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.logger == nil {
		store.logger = zap.NewNop().Sugar()
	}

	// Pre-create the category directories if not created yet
	for _, category := range Categories {
		if err := os.MkdirAll(filepath.Join(dir, category), 0755); err != nil &&
			!errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}

	return store, nil
}

// Persist writes the payload under its category directory and records it
// in the metadata ledger. The payload lands via a temporary file and a
// rename, and so does the ledger, so neither can be observed half-written.
func (store *Store) Persist(ctx context.Context, payload []byte, descriptor Descriptor) (Artifact, error) {
	category := descriptor.Category
	if !isKnownCategory(category) {
		return Artifact{}, fmt.Errorf("unknown artifact category %q", category)
	}

	contentHash := sha256.Sum256(payload)

	artifact := Artifact{
		ID:              uuid.NewString(),
		Category:        category,
		Size:            int64(len(payload)),
		Format:          descriptor.Format,
		CreatedAt:       time.Now(),
		Prompt:          descriptor.Prompt,
		OptimizedPrompt: descriptor.OptimizedPrompt,
		CostUSD:         descriptor.CostUSD,
		Latency:         descriptor.Latency,
		Fingerprint:     descriptor.Fingerprint,
		ContentHash:     hex.EncodeToString(contentHash[:]),
	}

	// The artifact ID keeps filenames unique even for byte-identical
	// payloads persisted within the same second
	artifact.Filename = fmt.Sprintf("pictor_%s_%s_%s_%s.%s",
		category,
		artifact.CreatedAt.Format("20060102_150405"),
		artifact.ContentHash[:8],
		artifact.ID[:8],
		descriptor.Format)
	artifact.Path = filepath.Join(store.dir, category, artifact.Filename)

	if err := store.writeAtomically(artifact.Path, payload); err != nil {
		return Artifact{}, fmt.Errorf("failed to write artifact %q: %w", artifact.Filename, err)
	}

	if err := store.record(artifact); err != nil {
		// Don't leave an orphaned payload behind a failed ledger update
		_ = os.Remove(artifact.Path)

		return Artifact{}, fmt.Errorf("failed to record artifact %q in the ledger: %w",
			artifact.Filename, err)
	}

	if store.mirror != nil {
		mirrorKey := category + "/" + artifact.Filename

		if err := store.mirror.Mirror(ctx, mirrorKey, payload); err != nil {
			store.logger.Warnf("failed to mirror artifact %q: %v", artifact.Filename, err)
		}
	}

	store.logger.With(
		"artifact_id", artifact.ID,
		"category", category,
		"size", artifact.Size,
	).Infof("persisted artifact %s", artifact.Filename)

	return artifact, nil
}

func (store *Store) writeAtomically(path string, payload []byte) error {
	tmpFile, err := os.CreateTemp(store.dir, "pictor-tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmpFile.Write(payload); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())

		return err
	}

	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())

		return err
	}

	if err := os.Rename(tmpFile.Name(), path); err != nil {
		_ = os.Remove(tmpFile.Name())

		return err
	}

	return nil
}

// CleanupTemp removes temporary files that a crashed run may have
// left behind and that are older than maxAge.
func (store *Store) CleanupTemp(maxAge time.Duration) (int, error) {
	dirEntries, err := os.ReadDir(store.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, dirEntry := range dirEntries {
		if !strings.HasPrefix(dirEntry.Name(), "pictor-tmp-") {
			continue
		}

		fi, err := dirEntry.Info()
		if err != nil {
			continue
		}

		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(store.dir, dirEntry.Name())); err == nil {
				removed++
			}
		}
	}

	return removed, nil
}

func isKnownCategory(category string) bool {
	for _, known := range Categories {
		if category == known {
			return true
		}
	}

	return false
}
