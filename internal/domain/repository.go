// Package domain defines the core interfaces and types for Sentinel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for audit persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	CountTransactionsSince(ctx context.Context, tenantID string, merchantID string, since time.Time) (int64, error)

	// Heuristic signal configuration operations
	SaveHeuristicConfig(ctx context.Context, tenantID string, cfg *HeuristicConfig) error
	GetHeuristicConfig(ctx context.Context, tenantID string, id string) (*HeuristicConfig, error)
	ListHeuristicConfigs(ctx context.Context, tenantID string) ([]*HeuristicConfig, error)

	// Decision audit records
	SaveDecision(ctx context.Context, tenantID string, d *Decision) error
	GetDecision(ctx context.Context, tenantID string, decisionID string) (*Decision, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
