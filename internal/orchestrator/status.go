package orchestrator

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pictor-io/pictor/internal/store"
)

// Stats are cumulative counters since startup or the last reset.
type Stats struct {
	Requests     int64   `json:"requests"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	Images       int64   `json:"images"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

type CacheStatus struct {
	Entries int `json:"entries"`
}

type GateStatus struct {
	InFlight int64 `json:"in_flight"`
	Capacity int64 `json:"capacity"`
}

type CategoryStatus struct {
	Files      int    `json:"files"`
	Bytes      uint64 `json:"bytes"`
	BytesHuman string `json:"bytes_human"`
}

type Status struct {
	StartedAt time.Time                 `json:"started_at"`
	Uptime    string                    `json:"uptime"`
	Stats     Stats                     `json:"stats"`
	Cache     CacheStatus               `json:"cache"`
	Gate      GateStatus                `json:"gate"`
	Store     map[string]CategoryStatus `json:"store,omitempty"`
	History   []store.Artifact          `json:"history,omitempty"`
}

// Status reports uptime, counters and the per-category store footprint,
// plus the most recent historyLimit artifacts when historyLimit is positive.
func (orchestrator *Orchestrator) Status(historyLimit int, category string) (*Status, error) {
	storeStats, err := orchestrator.store.Stats()
	if err != nil {
		return nil, err
	}

	categories := make(map[string]CategoryStatus, len(storeStats))

	for name, categoryStats := range storeStats {
		categories[name] = CategoryStatus{
			Files:      categoryStats.Files,
			Bytes:      categoryStats.Bytes,
			BytesHuman: humanize.Bytes(categoryStats.Bytes),
		}
	}

	status := &Status{
		StartedAt: orchestrator.startedAt,
		Uptime:    time.Since(orchestrator.startedAt).Round(time.Second).String(),
		Stats: Stats{
			Requests:     orchestrator.requests.Value(),
			CacheHits:    orchestrator.cacheHits.Value(),
			CacheMisses:  orchestrator.cacheMisses.Value(),
			Images:       orchestrator.images.Value(),
			TotalCostUSD: float64(orchestrator.costMicroUSD.Value()) / 1e6,
		},
		Cache: CacheStatus{
			Entries: orchestrator.cache.Len(),
		},
		Gate: GateStatus{
			InFlight: orchestrator.gate.InFlight(),
			Capacity: orchestrator.gate.Capacity(),
		},
		Store: categories,
	}

	if historyLimit > 0 {
		history, err := orchestrator.store.History(historyLimit, category)
		if err != nil {
			return nil, err
		}

		status.History = history
	}

	return status, nil
}

// ResetStats zeroes the cumulative counters. Artifacts and the ledger
// are untouched.
func (orchestrator *Orchestrator) ResetStats() {
	orchestrator.requests.Reset()
	orchestrator.cacheHits.Reset()
	orchestrator.cacheMisses.Reset()
	orchestrator.images.Reset()
	orchestrator.costMicroUSD.Reset()
}
