// Package orchestrator drives a single image request through
// normalization, fingerprinting, the cache, the admission gate,
// the retried remote call and artifact persistence.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pictor-io/pictor/internal/cache"
	"github.com/pictor-io/pictor/internal/fingerprint"
	"github.com/pictor-io/pictor/internal/gate"
	"github.com/pictor-io/pictor/internal/promptopt"
	"github.com/pictor-io/pictor/internal/remote"
	"github.com/pictor-io/pictor/internal/request"
	"github.com/pictor-io/pictor/internal/retry"
	"github.com/pictor-io/pictor/internal/store"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type Orchestrator struct {
	client    remote.Client
	store     *store.Store
	cache     *cache.Cache
	gate      *gate.Gate
	retrier   *retry.Retrier
	logger    *zap.SugaredLogger
	startedAt time.Time

	requests     *xsync.Counter
	cacheHits    *xsync.Counter
	cacheMisses  *xsync.Counter
	images       *xsync.Counter
	costMicroUSD *xsync.Counter
}

type Option func(orchestrator *Orchestrator)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.logger = logger
	}
}

func New(
	client remote.Client,
	artifactStore *store.Store,
	requestCache *cache.Cache,
	admissionGate *gate.Gate,
	retrier *retry.Retrier,
	opts ...Option,
) *Orchestrator {
	orchestrator := &Orchestrator{
		client:    client,
		store:     artifactStore,
		cache:     requestCache,
		gate:      admissionGate,
		retrier:   retrier,
		startedAt: time.Now(),

		requests:     xsync.NewCounter(),
		cacheHits:    xsync.NewCounter(),
		cacheMisses:  xsync.NewCounter(),
		images:       xsync.NewCounter(),
		costMicroUSD: xsync.NewCounter(),
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	if orchestrator.logger == nil {
		orchestrator.logger = zap.NewNop().Sugar()
	}

	return orchestrator
}

// Outcome is the result of a single executed request.
type Outcome struct {
	Artifacts       []store.Artifact
	CacheHit        bool
	Attempts        int
	CostUSD         float64
	Prompt          string
	OptimizedPrompt string
}

// Execute runs the raw request end to end. Identical concurrent requests
// collapse onto one remote call; cache hits bypass the admission gate
// entirely and cost nothing.
func (orchestrator *Orchestrator) Execute(
	ctx context.Context,
	kind request.Kind,
	raw *request.Raw,
) (*Outcome, error) {
	orchestrator.requests.Inc()

	req, err := request.Normalize(kind, raw)
	if err != nil {
		return nil, err
	}

	sourceImages, mask, err := loadSourceImages(req)
	if err != nil {
		return nil, err
	}

	optimizedPrompt, err := promptopt.Optimize(req)
	if err != nil {
		return nil, &request.FieldError{Field: "prompt", Reason: err.Error()}
	}

	key := fingerprint.Compute(req, sourceImages, mask)

	entry, claimed, err := orchestrator.cache.ClaimOrWait(ctx, key)
	if err != nil {
		return nil, err
	}

	if !claimed {
		orchestrator.cacheHits.Inc()

		orchestrator.logger.With("fingerprint", string(key)[:8]).
			Debugf("request satisfied from cache")

		return &Outcome{
			Artifacts:       entry.Artifacts,
			CacheHit:        true,
			Prompt:          req.Prompt,
			OptimizedPrompt: optimizedPrompt,
		}, nil
	}

	orchestrator.cacheMisses.Inc()

	artifacts, attempts, cost, err := orchestrator.resolve(ctx, req, optimizedPrompt,
		key, sourceImages, mask)

	orchestrator.cache.Resolve(key, artifacts, err)

	if err != nil {
		return nil, err
	}

	orchestrator.images.Add(int64(len(artifacts)))
	orchestrator.costMicroUSD.Add(int64(cost * 1e6))

	return &Outcome{
		Artifacts:       artifacts,
		Attempts:        attempts,
		CostUSD:         cost,
		Prompt:          req.Prompt,
		OptimizedPrompt: optimizedPrompt,
	}, nil
}

// resolve performs the remote call and persists the results. The admission
// gate is held for the duration of the remote call, retries included, and
// is released before persistence starts.
func (orchestrator *Orchestrator) resolve(
	ctx context.Context,
	req *request.Request,
	optimizedPrompt string,
	key fingerprint.Key,
	sourceImages [][]byte,
	mask []byte,
) ([]store.Artifact, int, float64, error) {
	if err := orchestrator.gate.Acquire(ctx); err != nil {
		return nil, 0, 0, err
	}

	result, attempts, err := orchestrator.retrier.Do(ctx,
		func(ctx context.Context) (*remote.Result, error) {
			return orchestrator.client.Invoke(ctx, remote.Request{
				Prompt:         optimizedPrompt,
				SourceImages:   sourceImages,
				Mask:           mask,
				CandidateCount: req.Options.CandidateCount,
			})
		})

	orchestrator.gate.Release()

	if err != nil {
		return nil, attempts, 0, err
	}

	costPerImage := result.CostUSD / float64(len(result.Images))

	artifacts := make([]store.Artifact, 0, len(result.Images))

	for _, image := range result.Images {
		artifact, err := orchestrator.store.Persist(ctx, image.Data, store.Descriptor{
			Category:        req.Kind.Category(),
			Format:          string(req.Options.Format),
			Prompt:          req.Prompt,
			OptimizedPrompt: optimizedPrompt,
			CostUSD:         costPerImage,
			Latency:         result.Latency,
			Fingerprint:     string(key),
		})
		if err != nil {
			return nil, attempts, 0, fmt.Errorf("failed to persist generated image: %w", err)
		}

		artifacts = append(artifacts, artifact)
	}

	return artifacts, attempts, result.CostUSD, nil
}

// loadSourceImages reads the request's source images and optional mask.
// An unreadable path is a validation failure, not a remote one.
func loadSourceImages(req *request.Request) ([][]byte, []byte, error) {
	var sourceImages [][]byte

	for _, sourcePath := range req.SourcePaths {
		sourceImage, err := os.ReadFile(sourcePath)
		if err != nil {
			return nil, nil, &request.FieldError{
				Field:  "image_path",
				Reason: fmt.Sprintf("cannot read %q: %v", sourcePath, err),
			}
		}

		sourceImages = append(sourceImages, sourceImage)
	}

	var mask []byte

	if req.MaskPath != "" {
		var err error

		mask, err = os.ReadFile(req.MaskPath)
		if err != nil {
			return nil, nil, &request.FieldError{
				Field:  "mask_path",
				Reason: fmt.Sprintf("cannot read %q: %v", req.MaskPath, err),
			}
		}
	}

	return sourceImages, mask, nil
}
