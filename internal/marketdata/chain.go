package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exitSentinel/internal/domain"
	"exitSentinel/internal/ports"
)

// Chain implements ports.MarketDataProvider over an ordered list of sources.
// The first source that answers wins; a later source is consulted only after
// every earlier one has failed. All-source failure yields a single typed
// ErrDataUnavailable. Results are never cached: every call is a fresh read so
// an exit decision is never made against a stale price.
type Chain struct {
	sources []ports.MarketDataSource
	timeout time.Duration
	logger  ports.Logger
}

// Config holds configuration for the provider chain.
type Config struct {
	Sources []ports.MarketDataSource // Tried in order; at least one required
	Timeout time.Duration            // Per-source call timeout
	Logger  ports.Logger
}

// NewChain creates a provider chain from the given ordered sources.
func NewChain(cfg Config) (*Chain, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for provider chain")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("provider chain requires at least one source: %w", ports.ErrConfigurationError)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Chain{
		sources: cfg.Sources,
		timeout: timeout,
		logger:  cfg.Logger,
	}, nil
}

// GetPrice returns the first price any source can supply.
func (c *Chain) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := c.tryEach(ctx, "GetPrice", symbol, func(callCtx context.Context, src ports.MarketDataSource) error {
		p, err := src.GetPrice(callCtx, symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return 0, err
	}
	return price, nil
}

// GetSnapshot returns the first snapshot any source can supply.
func (c *Chain) GetSnapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error) {
	var snap *domain.MarketSnapshot
	err := c.tryEach(ctx, "GetSnapshot", symbol, func(callCtx context.Context, src ports.MarketDataSource) error {
		s, err := src.GetSnapshot(callCtx, symbol)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// tryEach runs the call against each source in order until one succeeds.
// Each attempt gets its own timeout so a hung primary cannot starve the
// fallback of the caller's remaining deadline.
func (c *Chain) tryEach(ctx context.Context, operation, symbol string, call func(context.Context, ports.MarketDataSource) error) error {
	var failures []string
	for i, src := range c.sources {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := call(callCtx, src)
		cancel()

		if err == nil {
			if i > 0 {
				c.logger.Warn(ctx, "Primary data source failed, served by fallback", map[string]interface{}{
					"operation": operation,
					"symbol":    symbol,
					"source":    src.Name(),
				})
			}
			return nil
		}

		failures = append(failures, fmt.Sprintf("%s: %v", src.Name(), err))
		c.logger.Warn(ctx, "Data source attempt failed", map[string]interface{}{
			"operation": operation,
			"symbol":    symbol,
			"source":    src.Name(),
			"attempt":   i + 1,
			"error":     err.Error(),
		})

		// A dead caller context makes further attempts pointless.
		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("%s for %s exhausted all sources (%s): %w",
		operation, symbol, strings.Join(failures, "; "), ports.ErrDataUnavailable)
	c.logger.Error(ctx, err, "All market data sources failed", map[string]interface{}{
		"operation": operation,
		"symbol":    symbol,
	})
	return err
}

// Availability probes every source and reports which are reachable.
func (c *Chain) Availability(ctx context.Context) map[string]bool {
	result := make(map[string]bool, len(c.sources))
	for _, src := range c.sources {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result[src.Name()] = src.Ping(callCtx) == nil
		cancel()
	}
	return result
}
