package evaluators

import (
	"context"
	"fmt"

	"exitSentinel/internal/domain"
)

const (
	technicalUrgency    = 3
	technicalConfidence = 0.7

	// Trigger when price breaks 3% through the 20-period SMA against the
	// position's direction.
	breakdownFactor = 0.03
)

// TechnicalBreakdown signals an exit when price has broken through the
// 20-period moving average against the position. It runs only when the
// snapshot carries an SMA; without technical data it skips silently rather
// than failing the batch.
type TechnicalBreakdown struct{}

// NewTechnicalBreakdown creates the technical breakdown evaluator.
func NewTechnicalBreakdown() *TechnicalBreakdown { return &TechnicalBreakdown{} }

// Name returns the evaluator's registration name.
func (e *TechnicalBreakdown) Name() string { return "technical_breakdown" }

// Evaluate checks for a trend breakdown relative to the SMA-20.
func (e *TechnicalBreakdown) Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error) {
	if snap.SMA20 == nil {
		return domain.NoExit("technical data unavailable, skipping"), nil
	}
	sma := *snap.SMA20
	if sma <= 0 {
		return domain.NoExit("invalid SMA value, skipping"), nil
	}

	price := snap.CurrentPrice
	switch pos.Type {
	case domain.PositionBuy:
		threshold := sma * (1 - breakdownFactor)
		if price < threshold {
			return e.breakdownSignal(price, sma, threshold, "below"), nil
		}
	case domain.PositionSell:
		threshold := sma * (1 + breakdownFactor)
		if price > threshold {
			return e.breakdownSignal(price, sma, threshold, "above"), nil
		}
	}

	return domain.NoExit(fmt.Sprintf("price %.4f holding trend vs SMA20 %.4f", price, sma)), nil
}

func (e *TechnicalBreakdown) breakdownSignal(price, sma, threshold float64, direction string) domain.ExitSignal {
	return domain.ExitSignal{
		ShouldExit:           true,
		Reason:               domain.ReasonTechnicalBreakdown,
		Urgency:              technicalUrgency,
		Confidence:           technicalConfidence,
		RecommendedExitPrice: domain.Float64Ptr(price),
		Details:              fmt.Sprintf("price %.4f broke %s SMA20 %.4f (threshold %.4f)", price, direction, sma, threshold),
	}
}
