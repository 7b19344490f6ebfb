package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
	"github.com/darthVad3r/SageNet-Sentinel/internal/orchestrator"
	"github.com/darthVad3r/SageNet-Sentinel/internal/scoring"
	"github.com/darthVad3r/SageNet-Sentinel/internal/velocity"
)

// GlobalTenantID is used for heuristic signals that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	orchestrator *orchestrator.Orchestrator
	heuristics   *scoring.HeuristicProvider
	velocity     *velocity.Service
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, orch *orchestrator.Orchestrator, heuristics *scoring.HeuristicProvider, vel *velocity.Service, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		orchestrator: orch,
		heuristics:   heuristics,
		velocity:     vel,
		version:      version,
	}
}

// Decide handles POST /decide requests.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate required fields
	if req.Amount.Value <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount.value must be positive",
		})
		return
	}
	if len(req.Amount.Currency) != 3 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount.currency must be a 3-letter code",
		})
		return
	}
	if req.TransactionCount24h != nil && *req.TransactionCount24h < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactionCountLast24Hours must be non-negative",
		})
		return
	}

	tx := req.ToTransaction()
	tx.ID = uuid.New().String()
	tx.TenantID = tenantID

	// Save transaction if repository is available
	if h.repo != nil {
		if err := h.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
			// Continue; persisting the audit trail must not block the decision.
		}
	}

	// Fill in a missing 24h count from the audit store
	if h.velocity != nil {
		if err := h.velocity.Enrich(ctx, tenantID, tx); err != nil {
			slog.Warn("velocity enrichment failed", "tx_id", tx.ID, "error", err)
			tx.TransactionCount24h = 0
		}
	} else if tx.TransactionCount24h < 0 {
		tx.TransactionCount24h = 0
	}

	h.publish(ctx, tenantID, domain.TopicTransactionReceived, tx)

	decision, err := h.orchestrator.Decide(ctx, tenantID, traceID, tx)
	if err != nil {
		h.writeDecideError(w, tx.ID, err)
		return
	}

	// Persist the audit record
	if h.repo != nil {
		if err := h.repo.SaveDecision(ctx, tenantID, decision); err != nil {
			slog.Error("failed to save decision", "decision_id", decision.ID, "error", err)
		}
	}

	if h.velocity != nil {
		if err := h.velocity.Record(ctx, tenantID, tx.MerchantID); err != nil {
			slog.Warn("failed to record velocity", "merchant_id", tx.MerchantID, "error", err)
		}
	}

	h.publish(ctx, tenantID, domain.TopicDecision, decision)
	if decision.Result.RecommendedAction == domain.ActionDecline {
		h.publish(ctx, tenantID, domain.TopicAlert, decision)
	}

	writeJSON(w, http.StatusOK, decision.ToResponse())
}

// writeDecideError maps the decision error taxonomy to HTTP statuses.
func (h *Handler) writeDecideError(w http.ResponseWriter, txID string, err error) {
	slog.Error("decision failed", "tx_id", txID, "error", err)

	switch {
	case errors.Is(err, domain.ErrNoProvidersAvailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no scoring providers available",
			"txId":  txID,
		})
	case errors.Is(err, domain.ErrRequestTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error": "decision timed out",
			"txId":  txID,
		})
	case errors.Is(err, domain.ErrInvalidConfiguration):
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "invalid engine configuration",
			"txId":  txID,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "decision failed",
			"txId":  txID,
		})
	}
}

// publish sends an event best-effort; bus failures never fail the request.
func (h *Handler) publish(ctx context.Context, tenantID string, topic string, payload any) {
	if h.bus == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, tenantID, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := h.orchestrator != nil && h.orchestrator.ProviderCount() > 0
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetDecision retrieves a decision audit record by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	decisionID := chi.URLParam(r, "id")

	if decisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	decision, err := h.repo.GetDecision(ctx, tenantID, decisionID)
	if err != nil {
		slog.Error("failed to get decision", "id", decisionID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListHeuristics returns all signals loaded in the heuristic provider.
// Signals are loaded from the database at startup and can be reloaded
// via POST /heuristics/reload.
func (h *Handler) ListHeuristics(w http.ResponseWriter, r *http.Request) {
	if h.heuristics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "heuristic provider not available",
		})
		return
	}

	signals := h.heuristics.LoadedSignals()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"count":   len(signals),
		"source":  "database",
	})
}

// GetHeuristic retrieves a loaded signal by ID.
func (h *Handler) GetHeuristic(w http.ResponseWriter, r *http.Request) {
	signalID := chi.URLParam(r, "id")

	if signalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "signal id is required",
		})
		return
	}

	if h.heuristics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "heuristic provider not available",
		})
		return
	}

	for _, sig := range h.heuristics.LoadedSignals() {
		if sig.ID == signalID {
			writeJSON(w, http.StatusOK, sig)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "signal not found",
	})
}

// CreateHeuristicRequest is the request body for creating a signal.
type CreateHeuristicRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	RiskFactor  string  `json:"riskFactor"`
	Enabled     bool    `json:"enabled"`
}

// CreateHeuristic creates a new signal and saves it to the database.
// Signals are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /heuristics/reload to hot-reload into the provider.
func (h *Handler) CreateHeuristic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.heuristics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "heuristic provider not available",
		})
		return
	}

	var req CreateHeuristicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Weight <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "weight must be positive",
		})
		return
	}

	riskFactor := req.RiskFactor
	if riskFactor == "" {
		riskFactor = req.ID
	}

	signal := &domain.HeuristicConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Weight:      req.Weight,
		RiskFactor:  riskFactor,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if err := h.heuristics.ValidateSignal(signal); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveHeuristicConfig(ctx, GlobalTenantID, signal); err != nil {
			slog.Error("failed to save heuristic signal", "id", signal.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save signal",
			})
			return
		}
	}

	slog.Info("heuristic signal created", "id", signal.ID, "name", signal.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"signal":  signal,
		"message": "Signal created. Call POST /heuristics/reload to apply changes.",
	})
}

// ReloadHeuristics reloads all signals from the database into the provider.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadHeuristics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if h.heuristics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "heuristic provider not available",
		})
		return
	}

	dbSignals, err := h.repo.ListHeuristicConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list signals from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load signals from database",
		})
		return
	}

	if err := h.heuristics.ReloadSignals(dbSignals); err != nil {
		slog.Error("failed to reload signals into provider", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload signals: " + err.Error(),
		})
		return
	}

	slog.Info("heuristic signals reloaded from database", "count", len(dbSignals))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "signals reloaded successfully",
		"count":   len(dbSignals),
	})
}

// Providers returns the configured scoring providers.
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.orchestrator.SourceIDs(),
		"count":     h.orchestrator.ProviderCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
