//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Sentinel decision engine.
//
// These tests verify the COMPLETE decision pipeline:
//
//	Transaction → Providers (fan-out) → Aggregation → Overrides → Final Action
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. TRANSACTION: A payment with amount, merchant and risk attributes
//
// 2. PROVIDER: A fraud scoring source. Each returns:
//   - Probability: likelihood of fraud (0.0 to 1.0)
//   - Confidence: how sure the provider is (0.0 to 1.0)
//   - IsFraudulent: the provider's own verdict
//
// 3. AGGREGATION: Weighted combination across providers. When providers
//    agree the fraud threshold is 0.5; when they disagree it rises to 0.7
//    and the combined confidence is discounted.
//
// 4. OVERRIDES: Ordered business rules that can rewrite the verdict
//    (small safe transactions approve, high-value forces review,
//    high-confidence fraud declines). Each stamps an audit tag.
//
// 5. DECISION: Final action - "APPROVE", "REVIEW" or "DECLINE"
//
// DEFAULT HEURISTIC SIGNALS (loaded when the database holds none):
//
// | Signal ID               | What It Checks                  | Triggers When       |
// |-------------------------|---------------------------------|---------------------|
// | high-amount             | Transaction amount >= $1,000    | amount >= 1000      |
// | international-high-risk | Cross-border at risky merchant  | both flags set      |
// | velocity-spike          | Many transactions in 24h        | tx_count_24h > 10   |
// | off-hours               | Activity at unusual hours       | hour < 6 or > 22    |
//
// NOTE: Tests pin the transaction timestamp to noon UTC so the off-hours
// signal stays quiet regardless of when the suite runs.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("SENTINEL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// noonUTC returns a fixed daytime timestamp so hour-based signals are stable.
func noonUTC() *time.Time {
	ts := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	return &ts
}

// ============================================================================
// API Request/Response Types (matching Sentinel's API contract)
// ============================================================================

// DecideRequest is the transaction sent to POST /decide
type DecideRequest struct {
	Amount             Amount         `json:"amount"`
	MerchantID         string         `json:"merchantId,omitempty"`
	IsInternational    bool           `json:"isInternational"`
	IsHighRiskMerchant bool           `json:"isHighRiskMerchant"`
	TxCount24h         *int           `json:"transactionCountLast24Hours,omitempty"`
	Timestamp          *time.Time     `json:"timestamp,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// DecideResponse is what POST /decide returns
type DecideResponse struct {
	DecisionID string `json:"decisionId"`
	TxID       string `json:"txId"`
	Result     struct {
		CombinedProbability float64  `json:"combinedProbability"`
		CombinedConfidence  float64  `json:"combinedConfidence"`
		Agreement           bool     `json:"agreement"`
		IsFraudulent        bool     `json:"isFraudulent"`
		RecommendedAction   string   `json:"recommendedAction"`
		RiskFactors         []string `json:"riskFactors"`
		AuditTags           []string `json:"auditTags"`
	} `json:"result"`
	Metadata ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TraceID            string `json:"traceId"`
	ProvidersQueried   int    `json:"providersQueried"`
	ProvidersResponded int    `json:"providersResponded"`
	TotalMs            int64  `json:"totalMs"`
	EngineVersion      string `json:"engineVersion"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func decide(t *testing.T, config TestConfig, req DecideRequest) DecideResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/decide", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result DecideResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func postDecide(t *testing.T, config TestConfig, req DecideRequest, tenantHeader bool) *http.Response {
	t.Helper()

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/decide", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if tenantHeader {
		httpReq.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func intPtr(n int) *int { return &n }

// ============================================================================
// SCENARIO 1: Small Safe Transaction (Approved by override)
// ============================================================================

func TestSmallSafeTransaction_Approved(t *testing.T) {
	/*
	   SCENARIO: A $30 coffee-shop purchase, domestic, low velocity

	   EXPECTED BEHAVIOR:
	   - No heuristic signal fires → combined probability ≈ 0.0
	   - small-transaction-safe-pattern override stamps its tag and
	     forces APPROVE regardless of provider noise

	   FINAL DECISION: "APPROVE"
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 30.00, Currency: "USD"},
		MerchantID: "merchant-coffee-001",
		TxCount24h: intPtr(2),
		Timestamp:  noonUTC(),
	}

	result := decide(t, config, req)

	if result.Result.RecommendedAction != "APPROVE" {
		t.Errorf("Expected APPROVE for small safe transaction, got %s", result.Result.RecommendedAction)
	}

	if result.Result.IsFraudulent {
		t.Error("Small safe transaction should not be flagged as fraudulent")
	}

	hasTag := false
	for _, tag := range result.Result.AuditTags {
		if tag == "Override: small amount at low-risk merchant" {
			hasTag = true
		}
	}
	if !hasTag {
		t.Errorf("Expected small-transaction audit tag, got %v", result.Result.AuditTags)
	}

	t.Logf("✓ Small transaction approved: action=%s, p=%.2f",
		result.Result.RecommendedAction, result.Result.CombinedProbability)
}

// ============================================================================
// SCENARIO 2: High Value Transaction (Forced to review)
// ============================================================================

func TestHighValueTransaction_Review(t *testing.T) {
	/*
	   SCENARIO: A $12,000 purchase at an ordinary merchant

	   EXPECTED BEHAVIOR:
	   - high-amount signal fires at full strength → probability ≈ 0.30
	   - 0.30 is below the fraud threshold, so providers say "not fraud"
	   - BUT the high-value override fires (amount >= $5,000 and p >= 0.3)
	     and forces the action to REVIEW with an audit tag

	   WHY THIS MATTERS:
	   Large transactions get a human in the loop even when the ensemble
	   itself is not alarmed.
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 12000.00, Currency: "USD"},
		MerchantID: "merchant-jeweler-001",
		TxCount24h: intPtr(1),
		Timestamp:  noonUTC(),
	}

	result := decide(t, config, req)

	if result.Result.RecommendedAction != "REVIEW" {
		t.Errorf("Expected REVIEW for high-value transaction, got %s", result.Result.RecommendedAction)
	}

	if result.Result.CombinedProbability <= 0 {
		t.Errorf("Expected positive probability (high-amount signal), got %.2f", result.Result.CombinedProbability)
	}

	t.Logf("✓ High-value transaction reviewed: action=%s, p=%.2f, tags=%v",
		result.Result.RecommendedAction, result.Result.CombinedProbability, result.Result.AuditTags)
}

// ============================================================================
// SCENARIO 3: Threshold Boundary Testing
// ============================================================================

func TestBelowHighValueThreshold_NoReviewOverride(t *testing.T) {
	/*
	   SCENARIO: Transaction of $4,999.99, just below the $5,000 threshold

	   EXPECTED BEHAVIOR:
	   - high-amount signal fires at reduced strength (amount < $5,000)
	   - high-value override does NOT fire (threshold is >= $5,000)
	   - probability stays well below the fraud threshold

	   WHY THIS TEST:
	   Boundary conditions catch off-by-one errors in threshold logic.
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 4999.99, Currency: "USD"},
		MerchantID: "merchant-boundary-001",
		TxCount24h: intPtr(1),
		Timestamp:  noonUTC(),
	}

	result := decide(t, config, req)

	if result.Result.RecommendedAction != "APPROVE" {
		t.Errorf("Expected APPROVE just below high-value threshold, got %s", result.Result.RecommendedAction)
	}

	for _, tag := range result.Result.AuditTags {
		if tag == "Override: high-value transaction requires review" {
			t.Errorf("High-value override fired below threshold: %v", result.Result.AuditTags)
		}
	}

	t.Logf("✓ Boundary test passed: $4,999.99 → action=%s, p=%.2f",
		result.Result.RecommendedAction, result.Result.CombinedProbability)
}

func TestAtHighValueThreshold_Review(t *testing.T) {
	/*
	   SCENARIO: Transaction of exactly $5,000

	   EXPECTED BEHAVIOR:
	   - high-amount signal fires at full strength → probability ≈ 0.30
	   - high-value override fires (amount >= $5,000, p >= 0.3) → REVIEW
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 5000.00, Currency: "USD"},
		MerchantID: "merchant-boundary-002",
		TxCount24h: intPtr(1),
		Timestamp:  noonUTC(),
	}

	result := decide(t, config, req)

	if result.Result.RecommendedAction != "REVIEW" {
		t.Errorf("Expected REVIEW at exactly $5,000, got %s", result.Result.RecommendedAction)
	}

	t.Logf("✓ Boundary test passed: $5,000 exactly → action=%s", result.Result.RecommendedAction)
}

// ============================================================================
// SCENARIO 4: Compound Risk (Multiple signals firing)
// ============================================================================

func TestCompoundRisk_Flagged(t *testing.T) {
	/*
	   SCENARIO: $2,000 international purchase at a high-risk merchant
	   with 25 transactions in the last 24 hours

	   EXPECTED BEHAVIOR:
	   - high-amount fires at reduced strength
	   - international-high-risk fires at full strength
	   - velocity-spike fires at full strength
	   - combined probability ≈ 0.68, above the 0.5 agreement threshold

	   WHY THIS MATTERS:
	   Multiple red flags compound the risk. This is the classic stolen-card
	   pattern: rapid cross-border spend at sketchy merchants.
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:             Amount{Value: 2000.00, Currency: "USD"},
		MerchantID:         "merchant-compound-001",
		IsInternational:    true,
		IsHighRiskMerchant: true,
		TxCount24h:         intPtr(25),
		Timestamp:          noonUTC(),
	}

	result := decide(t, config, req)

	if !result.Result.IsFraudulent {
		t.Errorf("Expected fraudulent verdict for compound risk, got action=%s p=%.2f",
			result.Result.RecommendedAction, result.Result.CombinedProbability)
	}

	if result.Result.RecommendedAction == "APPROVE" {
		t.Errorf("Compound risk must not be approved, got %s", result.Result.RecommendedAction)
	}

	if result.Result.CombinedProbability < 0.5 {
		t.Errorf("Expected probability >= 0.5 for compound risk, got %.2f", result.Result.CombinedProbability)
	}

	if len(result.Result.RiskFactors) == 0 {
		t.Error("Expected risk factors explaining the verdict")
	}

	t.Logf("✓ Compound risk flagged: action=%s, p=%.2f, factors=%v",
		result.Result.RecommendedAction, result.Result.CombinedProbability, result.Result.RiskFactors)
}

// ============================================================================
// SCENARIO 5: Currency Handling
// ============================================================================

func TestDifferentCurrencies_ConsistentScores(t *testing.T) {
	/*
	   SCENARIO: Verify the engine handles different currencies consistently

	   BEHAVIOR:
	   - Current implementation evaluates RAW amounts without FX conversion
	   - The score should be the same regardless of currency
	*/
	config := getTestConfig()

	currencies := []string{"USD", "EUR", "GBP", "JPY"}
	var scores []float64

	for _, currency := range currencies {
		t.Run(currency, func(t *testing.T) {
			req := DecideRequest{
				Amount:     Amount{Value: 12000, Currency: currency},
				MerchantID: "merchant-fx-001",
				TxCount24h: intPtr(1),
				Timestamp:  noonUTC(),
			}

			result := decide(t, config, req)
			scores = append(scores, result.Result.CombinedProbability)

			if result.Result.CombinedProbability <= 0 {
				t.Errorf("Expected positive probability for %s 12000, got %.2f",
					currency, result.Result.CombinedProbability)
			}

			t.Logf("%s: action=%s, p=%.2f", currency,
				result.Result.RecommendedAction, result.Result.CombinedProbability)
		})
	}

	if len(scores) >= 2 {
		for i := 1; i < len(scores); i++ {
			diff := scores[i] - scores[0]
			if diff > 0.01 || diff < -0.01 {
				t.Errorf("Score variance across currencies: %v", scores)
			}
		}
	}
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func TestZeroAmount_Error(t *testing.T) {
	/*
	   SCENARIO: Request with zero amount

	   EXPECTED: HTTP 400 Bad Request (amount must be positive)
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 0, Currency: "USD"},
		MerchantID: "merchant-001",
	}

	resp := postDecide(t, config, req, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero amount, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: zero amount → HTTP %d", resp.StatusCode)
}

func TestInvalidCurrency_Error(t *testing.T) {
	/*
	   SCENARIO: Request with a non ISO-4217 currency string

	   EXPECTED: HTTP 400 Bad Request (currency must be a 3-letter code)
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 100, Currency: "DOLLARS"},
		MerchantID: "merchant-001",
	}

	resp := postDecide(t, config, req, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid currency, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: invalid currency → HTTP %d", resp.StatusCode)
}

func TestNegativeVelocityCount_Error(t *testing.T) {
	/*
	   SCENARIO: Request supplying a negative 24h transaction count

	   EXPECTED: HTTP 400 Bad Request. A missing count is fine (the engine
	   fills it from history), but a supplied count must be non-negative.
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 100, Currency: "USD"},
		MerchantID: "merchant-001",
		TxCount24h: intPtr(-3),
	}

	resp := postDecide(t, config, req, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative velocity count, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: negative count → HTTP %d", resp.StatusCode)
}

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Tenant-ID header

	   EXPECTED: HTTP 400 Bad Request. Tenant ID is validated as a required
	   field, not as authentication.
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 100, Currency: "USD"},
		MerchantID: "merchant-001",
	}

	resp := postDecide(t, config, req, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 400 or 401 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing tenant → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 7: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify response includes all required metadata

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	req := DecideRequest{
		Amount:     Amount{Value: 100, Currency: "USD"},
		MerchantID: "merchant-metadata-001",
		TxCount24h: intPtr(1),
		Timestamp:  noonUTC(),
	}

	result := decide(t, config, req)

	if result.DecisionID == "" {
		t.Error("Missing decisionId")
	}

	if result.TxID == "" {
		t.Error("Missing txId")
	}

	switch result.Result.RecommendedAction {
	case "APPROVE", "REVIEW", "DECLINE":
	default:
		t.Errorf("Invalid action: %s", result.Result.RecommendedAction)
	}

	if result.Result.CombinedProbability < 0 || result.Result.CombinedProbability > 1 {
		t.Errorf("Probability out of range: %.2f (expected 0-1)", result.Result.CombinedProbability)
	}

	if result.Result.CombinedConfidence < 0 || result.Result.CombinedConfidence > 1 {
		t.Errorf("Confidence out of range: %.2f (expected 0-1)", result.Result.CombinedConfidence)
	}

	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}

	if result.Metadata.ProvidersQueried < 1 {
		t.Errorf("Expected at least one provider queried, got %d", result.Metadata.ProvidersQueried)
	}

	if result.Metadata.ProvidersResponded > result.Metadata.ProvidersQueried {
		t.Errorf("Responded (%d) exceeds queried (%d)",
			result.Metadata.ProvidersResponded, result.Metadata.ProvidersQueried)
	}

	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	t.Logf("✓ Metadata complete: decisionId=%s, txId=%s, traceId=%s, totalMs=%d",
		result.DecisionID[:8], result.TxID[:8], result.Metadata.TraceID[:8], result.Metadata.TotalMs)
}
