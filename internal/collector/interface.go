package collector

import (
	"context"
	"time"

	"github.com/newthinker/trailsim/internal/core"
)

// Config holds collector configuration
type Config struct {
	BaseURL    string        // Overrides the provider endpoint, mainly for tests
	Timeout    time.Duration // Per-request timeout
	MaxRetries int           // Retries after the first attempt for transient failures
	BackoffMin time.Duration
	BackoffMax time.Duration
	Dir        string // Data directory for file-backed feeds
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		BackoffMin: 200 * time.Millisecond,
		BackoffMax: 2 * time.Second,
	}
}

// Collector defines the interface for daily market-data sources
type Collector interface {
	// Name returns the unique identifier for this collector
	Name() string

	// FetchHistory returns daily bars dated in [start, end), ordered by date
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)

	// Validate returns core.ErrSymbolNotFound if the source has no data for symbol
	Validate(ctx context.Context, symbol string) error
}
