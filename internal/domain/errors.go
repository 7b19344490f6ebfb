package domain

import (
	"errors"
	"fmt"
)

// Decision pipeline failure kinds. Callers distinguish them with errors.Is;
// a failed Decide never returns a partial AggregateResult alongside an error.
var (
	// ErrNoProvidersAvailable means no scoring source produced a result:
	// either none are configured or every call failed. Fatal to the
	// request, never retried inside the pipeline.
	ErrNoProvidersAvailable = errors.New("no scoring providers available")

	// ErrInvalidConfiguration means a threshold is outside its valid range
	// or a configured provider has no weight. Detected at load time.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRequestTimeout means the overall request deadline elapsed before
	// a decision could be made.
	ErrRequestTimeout = errors.New("request timeout")
)

// ProviderError reports a single scoring source failure. It is logged and
// isolated; the provider is excluded from aggregation and siblings keep
// running.
type ProviderError struct {
	SourceID string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.SourceID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
