package domain

import (
	"fmt"
	"time"
)

// Position represents one open trade submitted for exit evaluation.
// The engine never mutates a position; it is input only.
type Position struct {
	ID         int64        // Unique identifier (usually from DB)
	Symbol     string       // Trading symbol (e.g., "ETHUSDT")
	EntryPrice float64      // Price at which the position was entered
	EntryTime  time.Time    // Timestamp when the position was entered
	Type       PositionType // Direction of the position (BUY, SELL, HOLD)
	Confidence float64      // Confidence of the original entry signal, in [0,1]
	Shares     int          // Number of shares/contracts held
	Status     PositionStatus
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Validate checks the invariants a position must satisfy before evaluation.
func (p *Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("position symbol is empty")
	}
	if p.EntryPrice <= 0 {
		return fmt.Errorf("position %s has non-positive entry price %.4f", p.Symbol, p.EntryPrice)
	}
	if p.EntryTime.IsZero() {
		return fmt.Errorf("position %s has no entry time", p.Symbol)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("position %s has unknown type %q", p.Symbol, p.Type)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("position %s confidence %.4f outside [0,1]", p.Symbol, p.Confidence)
	}
	if p.Shares < 0 {
		return fmt.Errorf("position %s has negative share count %d", p.Symbol, p.Shares)
	}
	return nil
}

// HoldDuration returns how long the position has been open relative to now.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// ReturnPct computes the direction-adjusted percentage return at the given
// price. For SELL positions a falling price is the profitable direction.
func (p *Position) ReturnPct(currentPrice float64) float64 {
	raw := (currentPrice - p.EntryPrice) / p.EntryPrice * 100
	if p.Type == PositionSell {
		return -raw
	}
	return raw
}
