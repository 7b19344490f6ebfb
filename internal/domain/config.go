package domain

import (
	"fmt"
	"time"
)

// Config holds the complete Sentinel configuration. It is loaded once at
// process start, validated eagerly, and never mutated afterwards, so it is
// shared across concurrent requests without locking.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Ensemble holds the decision-engine thresholds and provider weights.
	Ensemble EnsembleConfig `json:"ensemble"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// EnsembleConfig holds the thresholds governing aggregation, override
// policies, and the action ladder. All thresholds are probabilities or
// confidences in [0,1] except the two amount thresholds (currency units)
// and the business hours (0-23).
type EnsembleConfig struct {
	// Weights maps provider source IDs to aggregation weights.
	// Empty means an equal split across configured providers. Weights
	// need not sum to 1; aggregation normalizes by the contributing sum.
	Weights map[string]float64 `json:"weights,omitempty"`

	// FraudThreshold classifies as fraud when providers agree.
	FraudThreshold float64 `json:"fraudThreshold"`

	// DisagreementThreshold is the stricter bar used when providers
	// disagree, to suppress false positives born of model disagreement.
	DisagreementThreshold float64 `json:"disagreementThreshold"`

	SmallTransactionThreshold     float64 `json:"smallTransactionThreshold"`
	HighValueTransactionThreshold float64 `json:"highValueTransactionThreshold"`

	LowConfidenceThreshold           float64 `json:"lowConfidenceThreshold"`
	MinimumConfidenceForAutoDecision float64 `json:"minimumConfidenceForAutoDecision"`

	BusinessHourStart int `json:"businessHourStart"`
	BusinessHourEnd   int `json:"businessHourEnd"`

	// ProviderTimeout bounds each provider call; RequestTimeout bounds
	// the whole Decide pipeline.
	ProviderTimeout time.Duration `json:"providerTimeout"`
	RequestTimeout  time.Duration `json:"requestTimeout"`
}

// Validate checks all thresholds and, when weights are configured, that
// every provider in sourceIDs has one. Returns ErrInvalidConfiguration
// (wrapped) on the first violation.
func (c *EnsembleConfig) Validate(sourceIDs []string) error {
	unit := map[string]float64{
		"fraudThreshold":                   c.FraudThreshold,
		"disagreementThreshold":            c.DisagreementThreshold,
		"lowConfidenceThreshold":           c.LowConfidenceThreshold,
		"minimumConfidenceForAutoDecision": c.MinimumConfidenceForAutoDecision,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalidConfiguration, name, v)
		}
	}

	if c.SmallTransactionThreshold < 0 {
		return fmt.Errorf("%w: smallTransactionThreshold must be non-negative, got %v",
			ErrInvalidConfiguration, c.SmallTransactionThreshold)
	}
	if c.HighValueTransactionThreshold < 0 {
		return fmt.Errorf("%w: highValueTransactionThreshold must be non-negative, got %v",
			ErrInvalidConfiguration, c.HighValueTransactionThreshold)
	}

	if c.BusinessHourStart < 0 || c.BusinessHourStart > 23 {
		return fmt.Errorf("%w: businessHourStart must be in [0,23], got %d",
			ErrInvalidConfiguration, c.BusinessHourStart)
	}
	if c.BusinessHourEnd < 0 || c.BusinessHourEnd > 23 {
		return fmt.Errorf("%w: businessHourEnd must be in [0,23], got %d",
			ErrInvalidConfiguration, c.BusinessHourEnd)
	}

	if len(c.Weights) > 0 {
		for _, id := range sourceIDs {
			w, ok := c.Weights[id]
			if !ok {
				return fmt.Errorf("%w: no weight configured for provider %q",
					ErrInvalidConfiguration, id)
			}
			if w <= 0 {
				return fmt.Errorf("%w: weight for provider %q must be positive, got %v",
					ErrInvalidConfiguration, id, w)
			}
		}
	}

	return nil
}

// WeightFor returns the aggregation weight for a source. With no explicit
// weights configured, every source gets an equal 1/n split.
func (c *EnsembleConfig) WeightFor(sourceID string, n int) float64 {
	if len(c.Weights) == 0 {
		if n <= 0 {
			n = 1
		}
		return 1.0 / float64(n)
	}
	return c.Weights[sourceID]
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Ensemble: EnsembleConfig{
			FraudThreshold:                   0.5,
			DisagreementThreshold:            0.7,
			SmallTransactionThreshold:        50,
			HighValueTransactionThreshold:    5000,
			LowConfidenceThreshold:           0.3,
			MinimumConfidenceForAutoDecision: 0.4,
			BusinessHourStart:                8,
			BusinessHourEnd:                  20,
			ProviderTimeout:                  2 * time.Second,
			RequestTimeout:                   5 * time.Second,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./sentinel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "sentinel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "sentinel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
