package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

// RemoteProvider scores transactions against a cloud-hosted model endpoint.
// The wire contract is a POST of the transaction snapshot returning the
// model's probability/confidence pair.
type RemoteProvider struct {
	sourceID string
	endpoint string
	apiKey   string
	client   *http.Client
}

// RemoteOption configures a RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithAPIKey sets the bearer token sent to the model endpoint.
func WithAPIKey(key string) RemoteOption {
	return func(p *RemoteProvider) { p.apiKey = key }
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(p *RemoteProvider) { p.client = c }
}

// NewRemoteProvider creates a provider backed by a hosted scoring endpoint.
func NewRemoteProvider(sourceID, endpoint string, opts ...RemoteOption) *RemoteProvider {
	if sourceID == "" {
		sourceID = "remote-model"
	}
	p := &RemoteProvider{
		sourceID: sourceID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SourceID implements domain.ScoringProvider.
func (p *RemoteProvider) SourceID() string {
	return p.sourceID
}

// scoreRequest is the wire payload sent to the hosted model.
type scoreRequest struct {
	TransactionID       string  `json:"transactionId"`
	Amount              float64 `json:"amount"`
	Currency            string  `json:"currency"`
	IsInternational     bool    `json:"isInternational"`
	IsHighRiskMerchant  bool    `json:"isHighRiskMerchant"`
	TransactionCount24h int     `json:"transactionCountLast24Hours"`
	HourOfDay           int     `json:"hourOfDay"`
}

// scoreResponse is the wire payload returned by the hosted model.
type scoreResponse struct {
	Probability  float64  `json:"probability"`
	Confidence   float64  `json:"confidence"`
	IsFraudulent bool     `json:"isFraudulent"`
	RiskFactors  []string `json:"riskFactors"`
}

// Predict implements domain.ScoringProvider. The request inherits the
// caller's deadline; any transport or decode failure is a ProviderError.
func (p *RemoteProvider) Predict(ctx context.Context, tx *domain.Transaction) (*domain.ScoreResult, error) {
	start := time.Now()

	body, err := json.Marshal(scoreRequest{
		TransactionID:       tx.ID,
		Amount:              tx.Amount,
		Currency:            tx.Currency,
		IsInternational:     tx.IsInternational,
		IsHighRiskMerchant:  tx.IsHighRiskMerchant,
		TransactionCount24h: tx.TransactionCount24h,
		HourOfDay:           tx.HourOfDay(),
	})
	if err != nil {
		return nil, &domain.ProviderError{SourceID: p.sourceID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ProviderError{SourceID: p.sourceID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{SourceID: p.sourceID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.ProviderError{
			SourceID: p.sourceID,
			Err:      fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, msg),
		}
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &domain.ProviderError{
			SourceID: p.sourceID,
			Err:      fmt.Errorf("invalid response body: %w", err),
		}
	}

	if sr.Probability < 0 || sr.Probability > 1 || sr.Confidence < 0 || sr.Confidence > 1 {
		return nil, &domain.ProviderError{
			SourceID: p.sourceID,
			Err: fmt.Errorf("score out of range: probability=%v confidence=%v",
				sr.Probability, sr.Confidence),
		}
	}

	return &domain.ScoreResult{
		SourceID:     p.sourceID,
		Probability:  sr.Probability,
		Confidence:   sr.Confidence,
		IsFraudulent: sr.IsFraudulent,
		RiskFactors:  sr.RiskFactors,
		ProcessMs:    time.Since(start).Milliseconds(),
	}, nil
}
