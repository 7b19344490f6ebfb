package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "sentinel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := &domain.Transaction{
			ID:                  "tx-001",
			Amount:              1000.00,
			Currency:            "USD",
			MerchantID:          "merchant-001",
			IsInternational:     true,
			IsHighRiskMerchant:  false,
			TransactionCount24h: 3,
			Timestamp:           time.Now().UTC(),
			CreatedAt:           time.Now().UTC(),
			Metadata:            map[string]any{"source": "api"},
		}

		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, tenantID, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}

		if retrieved.ID != tx.ID {
			t.Errorf("expected ID %s, got %s", tx.ID, retrieved.ID)
		}
		if retrieved.Amount != tx.Amount {
			t.Errorf("expected Amount %.2f, got %.2f", tx.Amount, retrieved.Amount)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if !retrieved.IsInternational {
			t.Error("expected IsInternational to round-trip")
		}
		if retrieved.TransactionCount24h != 3 {
			t.Errorf("expected TransactionCount24h 3, got %d", retrieved.TransactionCount24h)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		// Try to get tx from different tenant
		_, err := repo.GetTransaction(ctx, otherTenant, "tx-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		tx := &domain.Transaction{ID: "tx-test"}

		err := repo.SaveTransaction(ctx, "", tx)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetTransaction(ctx, "", "tx-001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("CountTransactionsSince", func(t *testing.T) {
		tx2 := &domain.Transaction{
			ID:         "tx-002",
			Amount:     500.00,
			Currency:   "USD",
			MerchantID: "merchant-001", // Same merchant as tx-001
			Timestamp:  time.Now().UTC(),
			CreatedAt:  time.Now().UTC(),
		}

		if err := repo.SaveTransaction(ctx, tenantID, tx2); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		since := time.Now().Add(-1 * time.Hour)
		count, err := repo.CountTransactionsSince(ctx, tenantID, "merchant-001", since)
		if err != nil {
			t.Fatalf("CountTransactionsSince failed: %v", err)
		}

		if count != 2 {
			t.Errorf("expected 2 transactions, got %d", count)
		}

		// Window excludes old transactions
		future := time.Now().Add(time.Hour)
		count, err = repo.CountTransactionsSince(ctx, tenantID, "merchant-001", future)
		if err != nil {
			t.Fatalf("CountTransactionsSince failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 transactions after cutoff, got %d", count)
		}
	})

	t.Run("SaveAndGetHeuristicConfig", func(t *testing.T) {
		sig := &domain.HeuristicConfig{
			ID:          "sig-high-amount",
			Name:        "High amount",
			Description: "Flags transactions over the high value mark",
			Version:     "1.0.0",
			Expression:  "amount > 5000.0 ? 1.0 : 0.0",
			Weight:      0.30,
			RiskFactor:  "high_amount",
			Enabled:     true,
		}

		if err := repo.SaveHeuristicConfig(ctx, tenantID, sig); err != nil {
			t.Fatalf("SaveHeuristicConfig failed: %v", err)
		}

		retrieved, err := repo.GetHeuristicConfig(ctx, tenantID, sig.ID)
		if err != nil {
			t.Fatalf("GetHeuristicConfig failed: %v", err)
		}

		if retrieved.Expression != sig.Expression {
			t.Errorf("expected Expression %q, got %q", sig.Expression, retrieved.Expression)
		}
		if retrieved.Weight != sig.Weight {
			t.Errorf("expected Weight %.2f, got %.2f", sig.Weight, retrieved.Weight)
		}

		list, err := repo.ListHeuristicConfigs(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListHeuristicConfigs failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected 1 config, got %d", len(list))
		}
	})

	t.Run("UpsertHeuristicConfig", func(t *testing.T) {
		sig := &domain.HeuristicConfig{
			ID:         "sig-high-amount",
			Name:       "High amount",
			Version:    "1.0.0",
			Expression: "amount > 7500.0 ? 1.0 : 0.0",
			Weight:     0.35,
			RiskFactor: "high_amount",
			Enabled:    true,
		}

		if err := repo.SaveHeuristicConfig(ctx, tenantID, sig); err != nil {
			t.Fatalf("SaveHeuristicConfig upsert failed: %v", err)
		}

		retrieved, err := repo.GetHeuristicConfig(ctx, tenantID, sig.ID)
		if err != nil {
			t.Fatalf("GetHeuristicConfig failed: %v", err)
		}
		if retrieved.Weight != 0.35 {
			t.Errorf("expected updated Weight 0.35, got %.2f", retrieved.Weight)
		}
	})

	t.Run("SaveAndGetDecision", func(t *testing.T) {
		d := &domain.Decision{
			ID:        "dec-001",
			TxID:      "tx-001",
			Timestamp: time.Now().UTC(),
			Result: domain.AggregateResult{
				CombinedProbability: 0.42,
				CombinedConfidence:  0.88,
				Agreement:           true,
				RecommendedAction:   domain.ActionApprove,
				RiskFactors:         []string{"high_amount"},
			},
			Scores: []domain.ScoreResult{
				{SourceID: "heuristic-v1", Probability: 0.42, Confidence: 0.9, RiskFactors: []string{"high_amount"}},
			},
			Metadata: domain.DecisionMetadata{TraceID: "trace-001", ProvidersQueried: 1, ProvidersResponded: 1},
		}

		if err := repo.SaveDecision(ctx, tenantID, d); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		retrieved, err := repo.GetDecision(ctx, tenantID, d.ID)
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}

		if retrieved.ID != d.ID {
			t.Errorf("expected ID %s, got %s", d.ID, retrieved.ID)
		}
		if retrieved.Result.CombinedProbability != d.Result.CombinedProbability {
			t.Errorf("expected probability %.2f, got %.2f", d.Result.CombinedProbability, retrieved.Result.CombinedProbability)
		}
		if retrieved.Result.RecommendedAction != domain.ActionApprove {
			t.Errorf("expected action %s, got %s", domain.ActionApprove, retrieved.Result.RecommendedAction)
		}
		if len(retrieved.Scores) != 1 || retrieved.Scores[0].SourceID != "heuristic-v1" {
			t.Errorf("scores did not round-trip: %+v", retrieved.Scores)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetDecision(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
