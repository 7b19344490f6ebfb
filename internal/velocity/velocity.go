// Package velocity tracks per-merchant transaction rates and enriches
// incoming transactions whose 24h count is unknown.
package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
)

const (
	// Window is the rolling velocity window.
	Window = 24 * time.Hour

	// countTTL bounds how stale a cached merchant count may be.
	countTTL = time.Minute
)

// Service resolves 24h transaction counts. Counts come from the audit
// store; recent answers are cached so bursts against the same merchant
// do not hammer the database.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// New creates a velocity service.
func New(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Enrich fills in tx.TransactionCount24h when the caller did not supply
// it. A supplied count (zero or positive) is always trusted as-is.
func (s *Service) Enrich(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tx.TransactionCount24h >= 0 {
		return nil
	}

	if tx.MerchantID == "" {
		// No merchant to window on; treat as first sighting.
		tx.TransactionCount24h = 0
		return nil
	}

	count, err := s.CountLast24Hours(ctx, tenantID, tx.MerchantID, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("velocity enrichment: %w", err)
	}

	tx.TransactionCount24h = int(count)
	return nil
}

// CountLast24Hours returns the merchant's transaction count in the 24h
// window ending at now.
func (s *Service) CountLast24Hours(ctx context.Context, tenantID string, merchantID string, now time.Time) (int64, error) {
	key := cacheKey(merchantID)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, tenantID, key); err == nil && raw != nil {
			if count, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
				return count, nil
			}
		}
	}

	count, err := s.repo.CountTransactionsSince(ctx, tenantID, merchantID, now.Add(-Window))
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, key, []byte(strconv.FormatInt(count, 10)), countTTL); err != nil {
			slog.Warn("failed to cache velocity count",
				"tenant_id", tenantID,
				"merchant_id", merchantID,
				"error", err,
			)
		}
	}

	return count, nil
}

// Record notes one more transaction against the merchant's rolling
// counter and invalidates the cached count.
func (s *Service) Record(ctx context.Context, tenantID string, merchantID string) error {
	if merchantID == "" || s.cache == nil {
		return nil
	}

	if _, err := s.cache.IncrementCounter(ctx, tenantID, counterKey(merchantID), Window); err != nil {
		return err
	}

	return s.cache.Delete(ctx, tenantID, cacheKey(merchantID))
}

func cacheKey(merchantID string) string {
	return "velocity:count:" + merchantID
}

func counterKey(merchantID string) string {
	return "velocity:counter:" + merchantID
}
