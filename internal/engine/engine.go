// Package engine orchestrates checklist scoring and estimate
// normalization into persisted, cacheable Review records, and owns the
// cache/staleness policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groomkit/groom/internal/checklist"
	"github.com/groomkit/groom/internal/codec"
	"github.com/groomkit/groom/internal/config"
	"github.com/groomkit/groom/internal/estimate"
	"github.com/groomkit/groom/internal/inference"
	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/store"
)

// Decision says which path a review request took.
type Decision int

const (
	// DecisionCached means the stored review was returned unchanged,
	// with no inference call.
	DecisionCached Decision = iota
	// DecisionFresh means a new review was computed and persisted.
	DecisionFresh
)

func (d Decision) String() string {
	if d == DecisionCached {
		return "cached"
	}
	return "fresh"
}

// Options control a single review request.
type Options struct {
	Force bool
	Model string // empty means the configured default
}

// Engine produces and caches reviews.
type Engine struct {
	store     store.Store
	inf       inference.Client
	scorer    *checklist.Scorer
	estimator *estimate.Estimator
	settings  *config.Settings

	now func() time.Time
}

// New creates a review engine. Settings must already be validated.
func New(s store.Store, inf inference.Client, settings *config.Settings) *Engine {
	return &Engine{
		store:     s,
		inf:       inf,
		scorer:    checklist.NewScorer(inf),
		estimator: estimate.NewEstimator(inf),
		settings:  settings,
		now:       time.Now,
	}
}

// decide returns the cache-or-recompute branch for one request. Kept as
// an explicit function so the policy is testable on its own.
func decide(stored *models.Review, force bool) Decision {
	if stored != nil && !force {
		return DecisionCached
	}
	return DecisionFresh
}

// Review returns the stored review for the ticket's key, or computes,
// persists and returns a fresh one. The fresh path runs checklist and
// estimate evaluation concurrently over the same immutable snapshot and
// writes the record only after both complete.
func (e *Engine) Review(ctx context.Context, ticket models.Ticket, opts Options) (*models.Review, Decision, error) {
	model := opts.Model
	if model == "" {
		model = e.settings.Model
	}

	stored, err := e.Get(ctx, ticket.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, 0, err
	}

	if decide(stored, opts.Force) == DecisionCached {
		return stored, DecisionCached, nil
	}

	doc := codec.Serialize(ticket)

	var results []models.ChecklistResult
	var raw models.Estimate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = e.scorer.Evaluate(gctx, doc, e.settings.Checklist, model)
		return err
	})
	g.Go(func() error {
		var err error
		raw, err = e.estimator.Generate(gctx, doc, e.settings.Scale, model)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("review %s: %w", ticket.Key, err)
	}

	score := checklist.Score(results)
	review := &models.Review{
		Key:        ticket.Key,
		Model:      model,
		Score:      score,
		Checklist:  results,
		Estimate:   raw,
		Normalized: estimate.Normalize(raw, score, e.settings.Scale),
		Checksum:   codec.Checksum(ticket, model),
		Ticket:     ticket,
		CreatedAt:  e.now().UTC(),
	}

	if err := e.store.Put(ctx, store.NSReviews, review.Key, review); err != nil {
		return nil, 0, fmt.Errorf("persist review %s: %w", review.Key, err)
	}
	return review, DecisionFresh, nil
}

// Get returns the stored review for a key, or store.ErrNotFound.
func (e *Engine) Get(ctx context.Context, key string) (*models.Review, error) {
	var review models.Review
	if err := e.store.Get(ctx, store.NSReviews, key, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

// Remove deletes the stored review for a key.
func (e *Engine) Remove(ctx context.Context, key string) error {
	return e.store.Remove(ctx, store.NSReviews, key)
}

// Diff compares the stored review's captured snapshot against the
// current ticket. No stored review reads as outdated with no patch.
func (e *Engine) Diff(ctx context.Context, ticket models.Ticket) (*models.ReviewDiff, error) {
	stored, err := e.Get(ctx, ticket.Key)
	if errors.Is(err, store.ErrNotFound) {
		return &models.ReviewDiff{Key: ticket.Key, HasReview: false, Outdated: true}, nil
	}
	if err != nil {
		return nil, err
	}

	patch, changed := codec.Diff(stored.Ticket, ticket)
	return &models.ReviewDiff{
		Key:       ticket.Key,
		HasReview: true,
		Outdated:  changed,
		Patch:     patch,
	}, nil
}

// Status probes the inference backend. Failure here is fatal for any
// review-issuing operation.
func (e *Engine) Status(ctx context.Context) error {
	return e.inf.Liveness(ctx)
}
