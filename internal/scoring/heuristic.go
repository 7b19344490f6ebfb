// Package scoring provides the scoring-provider implementations behind the
// ensemble: a CEL-based local heuristic model and a remote hosted model.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

// HeuristicProvider scores transactions with a weighted set of CEL signals.
// Signals are hot-reloadable; evaluation is bounded-parallel.
type HeuristicProvider struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]*compiledSignal
	sourceID   string
	maxWorkers int

	// fraudCutoff is the provider-local classification threshold applied
	// to its own probability, before any ensemble logic.
	fraudCutoff float64
}

// compiledSignal holds a pre-compiled CEL program.
type compiledSignal struct {
	Config  *domain.HeuristicConfig
	Program cel.Program
}

// NewHeuristicProvider creates a heuristic scoring provider.
func NewHeuristicProvider(sourceID string, maxWorkers int) (*HeuristicProvider, error) {
	if sourceID == "" {
		sourceID = "local-heuristic"
	}
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("is_international", cel.BoolType),
		cel.Variable("is_high_risk_merchant", cel.BoolType),
		cel.Variable("tx_count_24h", cel.IntType),
		cel.Variable("hour", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &HeuristicProvider{
		env:         env,
		compiled:    make(map[string]*compiledSignal),
		sourceID:    sourceID,
		maxWorkers:  maxWorkers,
		fraudCutoff: 0.5,
	}, nil
}

// SourceID implements domain.ScoringProvider.
func (p *HeuristicProvider) SourceID() string {
	return p.sourceID
}

// ValidateSignal compiles a signal without mutating the loaded set.
func (p *HeuristicProvider) ValidateSignal(cfg *domain.HeuristicConfig) error {
	if cfg == nil {
		return fmt.Errorf("signal config is required")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, err := p.compileSignal(cfg)
	return err
}

// LoadSignal compiles and loads a signal into the provider.
func (p *HeuristicProvider) LoadSignal(cfg *domain.HeuristicConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	compiled, err := p.compileSignal(cfg)
	if err != nil {
		return err
	}

	p.compiled[cfg.ID] = compiled
	return nil
}

// LoadSignals compiles and loads multiple signals.
func (p *HeuristicProvider) LoadSignals(configs []*domain.HeuristicConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := p.LoadSignal(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadSignals clears all existing signals and loads new ones.
// This enables hot-reloading from the repository.
func (p *HeuristicProvider) ReloadSignals(configs []*domain.HeuristicConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]*compiledSignal)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := p.compileSignal(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	p.compiled = next
	return nil
}

// SignalCount returns the number of loaded signals.
func (p *HeuristicProvider) SignalCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.compiled)
}

// LoadedSignals returns the currently loaded signal configurations.
func (p *HeuristicProvider) LoadedSignals() []*domain.HeuristicConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	configs := make([]*domain.HeuristicConfig, 0, len(p.compiled))
	for _, c := range p.compiled {
		configs = append(configs, c.Config)
	}
	return configs
}

type signalOutcome struct {
	score      float64
	weight     float64
	riskFactor string
	err        error
}

// Predict implements domain.ScoringProvider. The probability is the
// weight-normalized sum of signal scores; confidence reflects how much of
// the signal set evaluated cleanly.
func (p *HeuristicProvider) Predict(ctx context.Context, tx *domain.Transaction) (*domain.ScoreResult, error) {
	start := time.Now()

	p.mu.RLock()
	signals := make([]*compiledSignal, 0, len(p.compiled))
	for _, s := range p.compiled {
		signals = append(signals, s)
	}
	p.mu.RUnlock()

	// Snapshot in signal ID order so risk factors are stable across calls.
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Config.ID < signals[j].Config.ID
	})

	if len(signals) == 0 {
		return nil, &domain.ProviderError{
			SourceID: p.sourceID,
			Err:      fmt.Errorf("no scoring signals loaded"),
		}
	}

	activation := map[string]any{
		"tx": map[string]any{
			"id":           tx.ID,
			"amount":       tx.Amount,
			"currency":     tx.Currency,
			"merchant_id":  tx.MerchantID,
			"tx_count_24h": tx.TransactionCount24h,
		},
		"amount":                tx.Amount,
		"currency":              tx.Currency,
		"is_international":      tx.IsInternational,
		"is_high_risk_merchant": tx.IsHighRiskMerchant,
		"tx_count_24h":          tx.TransactionCount24h,
		"hour":                  tx.HourOfDay(),
	}

	// Bounded parallel evaluation; outcomes are keyed by index so arrival
	// order cannot affect the result.
	outcomes := make([]signalOutcome, len(signals))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.maxWorkers)

	for i, sig := range signals {
		wg.Add(1)
		go func(idx int, s *compiledSignal) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[idx] = evaluateSignal(s, activation)
		}(i, sig)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &domain.ProviderError{SourceID: p.sourceID, Err: err}
	}

	var weightedSum, totalWeight float64
	var evaluated int
	var riskFactors []string

	for _, out := range outcomes {
		if out.err != nil {
			continue
		}
		evaluated++
		weightedSum += out.score * out.weight
		totalWeight += out.weight
		if out.score > 0 && out.riskFactor != "" {
			riskFactors = append(riskFactors, out.riskFactor)
		}
	}

	if evaluated == 0 {
		return nil, &domain.ProviderError{
			SourceID: p.sourceID,
			Err:      fmt.Errorf("all %d signals failed to evaluate", len(signals)),
		}
	}

	probability := 0.0
	if totalWeight > 0 {
		probability = clamp01(weightedSum / totalWeight)
	}
	confidence := float64(evaluated) / float64(len(signals))

	return &domain.ScoreResult{
		SourceID:     p.sourceID,
		Probability:  probability,
		Confidence:   confidence,
		IsFraudulent: probability >= p.fraudCutoff,
		RiskFactors:  riskFactors,
		ProcessMs:    time.Since(start).Milliseconds(),
	}, nil
}

// evaluateSignal runs a single compiled signal.
func evaluateSignal(sig *compiledSignal, activation map[string]any) signalOutcome {
	out := signalOutcome{
		weight:     sig.Config.Weight,
		riskFactor: sig.Config.RiskFactor,
	}
	if out.weight <= 0 {
		out.weight = 1.0
	}

	val, _, err := sig.Program.Eval(activation)
	if err != nil {
		out.err = fmt.Errorf("signal %s: %w", sig.Config.ID, err)
		return out
	}

	out.score = clamp01(toScore(val))
	return out
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Close cleans up the provider.
func (p *HeuristicProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compiled = make(map[string]*compiledSignal)
	return nil
}

func (p *HeuristicProvider) compileSignal(cfg *domain.HeuristicConfig) (*compiledSignal, error) {
	ast, issues := p.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile signal %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("signal %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for signal %s: %w", cfg.ID, err)
	}

	return &compiledSignal{
		Config:  cfg,
		Program: program,
	}, nil
}
