package repository

// Schema definitions for the Sentinel database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    merchant_id TEXT,
    is_international INTEGER NOT NULL DEFAULT 0,
    is_high_risk_merchant INTEGER NOT NULL DEFAULT 0,
    tx_count_24h INTEGER NOT NULL DEFAULT -1,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(tenant_id, merchant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, timestamp);
`

const schemaHeuristicConfigs = `
CREATE TABLE IF NOT EXISTS heuristic_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    risk_factor TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_heuristic_configs_tenant ON heuristic_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_heuristic_configs_enabled ON heuristic_configs(tenant_id, enabled);
`

// schemaDecisions stores the audit record of every Decide call, including
// the per-provider scores and the override tags that fired.
const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    action TEXT NOT NULL,
    probability REAL NOT NULL,
    confidence REAL NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    result TEXT NOT NULL,
    scores TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_tx ON decisions(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_decisions_action ON decisions(tenant_id, action);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaHeuristicConfigs,
		schemaDecisions,
	}
}
