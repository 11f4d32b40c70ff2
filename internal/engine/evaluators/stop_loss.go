package evaluators

import (
	"context"
	"fmt"

	"exitSentinel/internal/domain"
)

const (
	stopLossUrgency    = 5 // Highest in the system: the hard risk control
	stopLossConfidence = 0.95
)

// StopLoss signals an exit when the direction-adjusted loss magnitude meets
// or exceeds the configured stop. It carries the maximum urgency so it wins
// every priority resolution it participates in.
type StopLoss struct{}

// NewStopLoss creates the stop loss evaluator.
func NewStopLoss() *StopLoss { return &StopLoss{} }

// Name returns the evaluator's registration name.
func (e *StopLoss) Name() string { return "stop_loss" }

// Evaluate checks whether the position's loss has reached the stop threshold.
func (e *StopLoss) Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error) {
	if pos.Type == domain.PositionHold {
		return domain.NoExit("no directional position to stop out"), nil
	}

	returnPct := pos.ReturnPct(snap.CurrentPrice)
	if returnPct > -cfg.StopLossPct {
		return domain.NoExit(fmt.Sprintf("loss %.2f%% within stop %.2f%%", returnPct, cfg.StopLossPct)), nil
	}

	return domain.ExitSignal{
		ShouldExit:           true,
		Reason:               domain.ReasonStopLoss,
		Urgency:              stopLossUrgency,
		Confidence:           stopLossConfidence,
		RecommendedExitPrice: domain.Float64Ptr(snap.CurrentPrice),
		Details:              fmt.Sprintf("loss %.2f%% breached stop loss %.2f%%", returnPct, cfg.StopLossPct),
	}, nil
}
