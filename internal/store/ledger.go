package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Ledger is the durable record of every artifact ever persisted,
// keyed by artifact identifier.
type Ledger struct {
	Artifacts   map[string]Artifact `json:"artifacts"`
	LastUpdated time.Time           `json:"last_updated"`
}

// Ledger returns the current ledger snapshot. A missing ledger file is
// an empty ledger, not an error.
func (store *Store) Ledger() (*Ledger, error) {
	store.mtx.Lock()
	defer store.mtx.Unlock()

	return store.readLedger()
}

func (store *Store) readLedger() (*Ledger, error) {
	ledgerBytes, err := os.ReadFile(store.ledgerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Ledger{Artifacts: map[string]Artifact{}}, nil
		}

		return nil, fmt.Errorf("failed to read the ledger: %w", err)
	}

	var ledger Ledger

	if err := json.Unmarshal(ledgerBytes, &ledger); err != nil {
		return nil, fmt.Errorf("failed to parse the ledger: %w", err)
	}

	if ledger.Artifacts == nil {
		ledger.Artifacts = map[string]Artifact{}
	}

	return &ledger, nil
}

func (store *Store) record(artifact Artifact) error {
	store.mtx.Lock()
	defer store.mtx.Unlock()

	ledger, err := store.readLedger()
	if err != nil {
		return err
	}

	ledger.Artifacts[artifact.ID] = artifact
	ledger.LastUpdated = time.Now()

	ledgerBytes, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so that a crash mid-update leaves either
	// the old or the new complete ledger, never a mix
	return store.writeAtomically(store.ledgerPath, ledgerBytes)
}

// History returns recorded artifacts, newest first, optionally filtered
// by category. A non-positive limit means no limit.
func (store *Store) History(limit int, category string) ([]Artifact, error) {
	ledger, err := store.Ledger()
	if err != nil {
		return nil, err
	}

	artifacts := lo.Values(ledger.Artifacts)

	if category != "" {
		artifacts = lo.Filter(artifacts, func(artifact Artifact, _ int) bool {
			return artifact.Category == category
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	if limit > 0 && len(artifacts) > limit {
		artifacts = artifacts[:limit]
	}

	return artifacts, nil
}

// CategoryStats summarizes the on-disk footprint of one artifact category.
type CategoryStats struct {
	Files int    `json:"files"`
	Bytes uint64 `json:"bytes"`
}

// Stats walks the ledger and aggregates per-category footprints.
func (store *Store) Stats() (map[string]CategoryStats, error) {
	ledger, err := store.Ledger()
	if err != nil {
		return nil, err
	}

	stats := map[string]CategoryStats{}

	for _, category := range Categories {
		stats[category] = CategoryStats{}
	}

	for _, artifact := range ledger.Artifacts {
		categoryStats := stats[artifact.Category]
		categoryStats.Files++
		categoryStats.Bytes += uint64(artifact.Size)
		stats[artifact.Category] = categoryStats
	}

	return stats, nil
}
