package domain

import (
	"time"
)

// Transaction is an immutable snapshot of the transaction under evaluation.
// It is created by the caller and read-only to the decision pipeline.
type Transaction struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Merchant context
	MerchantID         string `json:"merchantId,omitempty"`
	IsInternational    bool   `json:"isInternational"`
	IsHighRiskMerchant bool   `json:"isHighRiskMerchant"`

	// Velocity context. Negative means "unknown" and is enriched
	// from the repository before scoring.
	TransactionCount24h int `json:"transactionCountLast24Hours"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HourOfDay returns the transaction's hour in [0,23].
func (t *Transaction) HourOfDay() int {
	return t.Timestamp.Hour()
}

// TransactionRequest is the API request payload for a decision.
type TransactionRequest struct {
	Amount              Amount                 `json:"amount" validate:"required"`
	MerchantID          string                 `json:"merchantId,omitempty"`
	IsInternational     bool                   `json:"isInternational"`
	IsHighRiskMerchant  bool                   `json:"isHighRiskMerchant"`
	TransactionCount24h *int                   `json:"transactionCountLast24Hours,omitempty"`
	Timestamp           *time.Time             `json:"timestamp,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// Amount represents a monetary value.
type Amount struct {
	Value    float64 `json:"value" validate:"required,gte=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction() *Transaction {
	now := time.Now().UTC()
	ts := now
	if r.Timestamp != nil {
		ts = r.Timestamp.UTC()
	}
	count := -1
	if r.TransactionCount24h != nil {
		count = *r.TransactionCount24h
	}
	return &Transaction{
		Amount:              r.Amount.Value,
		Currency:            r.Amount.Currency,
		MerchantID:          r.MerchantID,
		IsInternational:     r.IsInternational,
		IsHighRiskMerchant:  r.IsHighRiskMerchant,
		TransactionCount24h: count,
		Timestamp:           ts,
		CreatedAt:           now,
		Metadata:            r.Metadata,
	}
}
