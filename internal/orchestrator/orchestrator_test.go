package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

// fakeProvider is a configurable in-memory scoring provider.
type fakeProvider struct {
	id     string
	result domain.ScoreResult
	err    error
	delay  time.Duration
}

func (f *fakeProvider) SourceID() string { return f.id }

func (f *fakeProvider) Predict(ctx context.Context, tx *domain.Transaction) (*domain.ScoreResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	r.SourceID = f.id
	return &r, nil
}

func testEnsembleConfig() *domain.EnsembleConfig {
	cfg := domain.DefaultConfig().Ensemble
	cfg.ProviderTimeout = 100 * time.Millisecond
	cfg.RequestTimeout = 500 * time.Millisecond
	return &cfg
}

func benignTx() *domain.Transaction {
	return &domain.Transaction{
		ID:                  "tx-100",
		TenantID:            "tenant-001",
		Amount:              900,
		Currency:            "USD",
		IsInternational:     true,
		IsHighRiskMerchant:  true,
		TransactionCount24h: 12,
		Timestamp:           time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC),
	}
}

func TestDecide_NoProvidersConfigured(t *testing.T) {
	o := New(nil, testEnsembleConfig())

	_, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if !errors.Is(err, domain.ErrNoProvidersAvailable) {
		t.Fatalf("expected ErrNoProvidersAvailable, got %v", err)
	}
}

func TestDecide_AllProvidersFail(t *testing.T) {
	providers := []domain.ScoringProvider{
		&fakeProvider{id: "a", err: errors.New("boom")},
		&fakeProvider{id: "b", err: errors.New("also boom")},
	}
	o := New(providers, testEnsembleConfig())

	_, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if !errors.Is(err, domain.ErrNoProvidersAvailable) {
		t.Fatalf("expected ErrNoProvidersAvailable, got %v", err)
	}
}

func TestDecide_FailedProviderIsolated(t *testing.T) {
	providers := []domain.ScoringProvider{
		&fakeProvider{id: "good", result: domain.ScoreResult{Probability: 0.3, Confidence: 0.9}},
		&fakeProvider{id: "bad", err: errors.New("unreachable")},
	}
	o := New(providers, testEnsembleConfig())

	d, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if d.Metadata.ProvidersQueried != 2 || d.Metadata.ProvidersResponded != 1 {
		t.Errorf("expected 2 queried / 1 responded, got %d/%d",
			d.Metadata.ProvidersQueried, d.Metadata.ProvidersResponded)
	}
	// Single-source path: passthrough with agreement by definition.
	if !d.Result.Agreement {
		t.Error("single contributing source must report agreement")
	}
	if d.Result.CombinedProbability != 0.3 {
		t.Errorf("expected passthrough probability 0.3, got %v", d.Result.CombinedProbability)
	}
}

func TestDecide_SlowProviderExcludedByCallTimeout(t *testing.T) {
	providers := []domain.ScoringProvider{
		&fakeProvider{id: "fast", result: domain.ScoreResult{Probability: 0.2, Confidence: 0.8}},
		&fakeProvider{id: "slow", delay: 300 * time.Millisecond,
			result: domain.ScoreResult{Probability: 0.9, Confidence: 0.9}},
	}
	o := New(providers, testEnsembleConfig())

	d, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Metadata.ProvidersResponded != 1 {
		t.Errorf("expected the slow provider to be excluded, responded=%d", d.Metadata.ProvidersResponded)
	}
	if d.Scores[0].SourceID != "fast" {
		t.Errorf("unexpected contributing source %q", d.Scores[0].SourceID)
	}
}

func TestDecide_RequestDeadlineFails(t *testing.T) {
	cfg := testEnsembleConfig()
	cfg.ProviderTimeout = time.Second
	cfg.RequestTimeout = 50 * time.Millisecond

	providers := []domain.ScoringProvider{
		&fakeProvider{id: "slow", delay: 300 * time.Millisecond,
			result: domain.ScoreResult{Probability: 0.5, Confidence: 0.9}},
	}
	o := New(providers, cfg)

	_, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if !errors.Is(err, domain.ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestDecide_ResultOrderIndependentOfCompletion(t *testing.T) {
	// The later-configured provider answers first; contributing scores
	// must still follow the configured order.
	providers := []domain.ScoringProvider{
		&fakeProvider{id: "first", delay: 50 * time.Millisecond,
			result: domain.ScoreResult{Probability: 0.2, Confidence: 0.8, RiskFactors: []string{"f1"}}},
		&fakeProvider{id: "second",
			result: domain.ScoreResult{Probability: 0.25, Confidence: 0.75, RiskFactors: []string{"f2"}}},
	}
	o := New(providers, testEnsembleConfig())

	d, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if d.Scores[0].SourceID != "first" || d.Scores[1].SourceID != "second" {
		t.Errorf("scores not in configured order: %v, %v", d.Scores[0].SourceID, d.Scores[1].SourceID)
	}
	if len(d.Result.RiskFactors) < 2 || d.Result.RiskFactors[0] != "f1" || d.Result.RiskFactors[1] != "f2" {
		t.Errorf("risk factors not in configured-provider order: %v", d.Result.RiskFactors)
	}
}

func TestDecide_ActionAlwaysSet(t *testing.T) {
	providers := []domain.ScoringProvider{
		&fakeProvider{id: "only", result: domain.ScoreResult{Probability: 0.1, Confidence: 0.9}},
	}
	o := New(providers, testEnsembleConfig())

	d, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Result.RecommendedAction == domain.ActionUnset {
		t.Error("decision left with unset action")
	}
}

func TestDecide_EscalatesHighConfidenceFraud(t *testing.T) {
	providers := []domain.ScoringProvider{
		&fakeProvider{id: "a", result: domain.ScoreResult{Probability: 0.95, Confidence: 0.9, IsFraudulent: true}},
		&fakeProvider{id: "b", result: domain.ScoreResult{Probability: 0.97, Confidence: 0.85, IsFraudulent: true}},
	}
	o := New(providers, testEnsembleConfig())

	d, err := o.Decide(context.Background(), "tenant-001", "trace-1", benignTx())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Result.RecommendedAction != domain.ActionDecline {
		t.Errorf("expected DECLINE, got %q", d.Result.RecommendedAction)
	}
	if !d.Result.IsFraudulent {
		t.Error("expected isFraudulent=true")
	}
}
