// Package orchestrator fans a transaction out to every configured scoring
// provider, collects whatever answered in time, and runs the ensemble
// pipeline (aggregate, overrides, action ladder) to a final decision.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
	"github.com/darthVad3r/SageNet-Sentinel/internal/ensemble"
)

var tracer = otel.Tracer("sentinel-orchestrator")

// EngineVersion is recorded in every decision's metadata.
const EngineVersion = "sentinel-1.0"

// Orchestrator runs the decision pipeline over a fixed provider set.
type Orchestrator struct {
	providers []domain.ScoringProvider
	config    *domain.EnsembleConfig
}

// New creates an orchestrator. The provider slice order is the canonical
// result order; state is keyed by index and source ID, never by arrival.
func New(providers []domain.ScoringProvider, config *domain.EnsembleConfig) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		config:    config,
	}
}

// SourceIDs returns the configured provider IDs in order.
func (o *Orchestrator) SourceIDs() []string {
	ids := make([]string, len(o.providers))
	for i, p := range o.providers {
		ids[i] = p.SourceID()
	}
	return ids
}

// ProviderCount returns the number of configured providers.
func (o *Orchestrator) ProviderCount() int {
	return len(o.providers)
}

// Decide scores the transaction with every provider concurrently and folds
// the results through the ensemble. A provider that errors or times out is
// excluded without cancelling its siblings; cancellation of ctx propagates
// to all outstanding calls. A failed Decide returns no partial decision.
func (o *Orchestrator) Decide(ctx context.Context, tenantID, traceID string, tx *domain.Transaction) (*domain.Decision, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "orchestrator.Decide")
	span.SetAttributes(
		attribute.String("tx.id", tx.ID),
		attribute.Int("providers.configured", len(o.providers)),
	)
	defer span.End()

	if len(o.providers) == 0 {
		return nil, fmt.Errorf("%w: none configured", domain.ErrNoProvidersAvailable)
	}

	if o.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RequestTimeout)
		defer cancel()
	}

	results := make([]*domain.ScoreResult, len(o.providers))
	failures := make([]error, len(o.providers))

	var wg sync.WaitGroup
	for i, p := range o.providers {
		wg.Add(1)
		go func(idx int, provider domain.ScoringProvider) {
			defer wg.Done()

			callCtx := ctx
			if o.config.ProviderTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, o.config.ProviderTimeout)
				defer cancel()
			}

			result, err := provider.Predict(callCtx, tx)
			if err != nil {
				failures[idx] = &domain.ProviderError{SourceID: provider.SourceID(), Err: err}
				return
			}
			results[idx] = result
		}(i, p)
	}
	wg.Wait()

	providersMs := time.Since(start).Milliseconds()

	// The overall deadline elapsing before aggregation is a hard failure:
	// no silent partial decision.
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: deadline elapsed before aggregation", domain.ErrRequestTimeout)
		}
		return nil, err
	}

	scores := make([]domain.ScoreResult, 0, len(results))
	for i, r := range results {
		if r != nil {
			scores = append(scores, *r)
			continue
		}
		// Isolated failure: log and exclude the source.
		slog.Warn("scoring provider excluded",
			"source_id", o.providers[i].SourceID(),
			"tenant_id", tenantID,
			"tx_id", tx.ID,
			"error", failures[i],
		)
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: all %d providers failed", domain.ErrNoProvidersAvailable, len(o.providers))
	}

	decisionStart := time.Now()

	agg, err := ensemble.Aggregate(scores, o.config)
	if err != nil {
		return nil, err
	}

	agg = ensemble.ApplyPolicies(agg, tx, o.config)

	if agg.RecommendedAction == domain.ActionUnset {
		agg.RecommendedAction = ensemble.Resolve(agg)
	}

	span.SetAttributes(
		attribute.Int("providers.responded", len(scores)),
		attribute.String("decision.action", string(agg.RecommendedAction)),
	)

	return &domain.Decision{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		TxID:      tx.ID,
		Timestamp: time.Now().UTC(),
		Result:    agg,
		Scores:    scores,
		Metadata: domain.DecisionMetadata{
			TraceID:            traceID,
			ProvidersQueried:   len(o.providers),
			ProvidersResponded: len(scores),
			ProvidersMs:        providersMs,
			DecisionMs:         time.Since(decisionStart).Milliseconds(),
			TotalMs:            time.Since(start).Milliseconds(),
			EngineVersion:      EngineVersion,
		},
	}, nil
}
