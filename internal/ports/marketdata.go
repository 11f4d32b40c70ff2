package ports

import (
	"context"

	"exitSentinel/internal/domain"
)

// MarketDataSource defines the interface for a single market data backend.
// Implementations must never fabricate values: a field they cannot supply is
// left nil on the snapshot, and a price they cannot supply is an error.
type MarketDataSource interface {
	// Name identifies the source in logs and availability reports.
	Name() string

	// GetPrice retrieves the current traded price for a symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetSnapshot retrieves the current price plus whatever technical fields
	// (SMA20, volume, volatility) the source can compute. Missing technicals
	// are not an error; a missing price is.
	GetSnapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error)

	// Ping checks connectivity to the source.
	Ping(ctx context.Context) error
}

// MarketDataProvider is the failover-capable view the engine consumes: one
// logical provider that internally tries sources in order.
type MarketDataProvider interface {
	// GetPrice returns the first price any source in the chain can supply,
	// or ErrDataUnavailable when every source failed.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetSnapshot returns the first snapshot any source in the chain can
	// supply, or ErrDataUnavailable when every source failed.
	GetSnapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error)

	// Availability probes every source and reports which are reachable.
	Availability(ctx context.Context) map[string]bool
}
