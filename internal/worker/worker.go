// Package worker provides async decision processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
	"github.com/darthVad3r/SageNet-Sentinel/internal/orchestrator"
	"github.com/darthVad3r/SageNet-Sentinel/internal/velocity"
)

// Worker consumes transactions from the EventBus and runs them through
// the decision pipeline. It lets external producers feed the engine
// without going through the HTTP surface.
type Worker struct {
	bus          domain.EventBus
	repo         domain.Repository
	orchestrator *orchestrator.Orchestrator
	velocity     *velocity.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, orch *orchestrator.Orchestrator, vel *velocity.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		repo:         repo,
		orchestrator: orch,
		velocity:     vel,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicTransactionReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicTransactionReceived, func(ctx context.Context, msg *domain.Message) error {
		return w.processTransaction(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicTransactionReceived,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processTransaction(ctx, msg.TenantID, msg)
}

// processTransaction runs a transaction through the decision pipeline.
func (w *Worker) processTransaction(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if tx.TenantID != "" {
		tenantID = tx.TenantID
	}
	tx.TenantID = tenantID

	traceID := msg.Metadata["traceId"]
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing transaction",
		"tx_id", tx.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	if w.velocity != nil {
		if err := w.velocity.Enrich(ctx, tenantID, &tx); err != nil {
			slog.Warn("velocity enrichment failed",
				"tx_id", tx.ID,
				"error", err,
			)
			tx.TransactionCount24h = 0
		}
	} else if tx.TransactionCount24h < 0 {
		tx.TransactionCount24h = 0
	}

	decision, err := w.orchestrator.Decide(ctx, tenantID, traceID, &tx)
	if err != nil {
		slog.Error("decision failed",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveDecision(ctx, tenantID, decision); err != nil {
			slog.Error("failed to save decision",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	// Publish result to decision topic
	resultPayload, _ := json.Marshal(decision)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	// Declines also go to the alert topic
	if decision.Result.RecommendedAction == domain.ActionDecline {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	slog.Info("transaction processed",
		"tx_id", tx.ID,
		"tenant_id", tenantID,
		"action", decision.Result.RecommendedAction,
		"probability", decision.Result.CombinedProbability,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
