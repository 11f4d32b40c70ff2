package evaluators

import (
	"context"
	"fmt"

	"exitSentinel/internal/domain"
)

const (
	profitTargetUrgency    = 4
	profitTargetConfidence = 0.85
)

// ProfitTarget signals an exit once the realized return crosses an adaptive
// profit target. The target scales with the entry signal's confidence: a
// high-conviction entry is given more room to run before profit is taken.
type ProfitTarget struct{}

// NewProfitTarget creates the profit target evaluator.
func NewProfitTarget() *ProfitTarget { return &ProfitTarget{} }

// Name returns the evaluator's registration name.
func (e *ProfitTarget) Name() string { return "profit_target" }

// AdaptiveTarget computes the confidence-scaled profit threshold in percent.
// Monotonically increasing in confidence: target spans 0.8x the base at
// confidence 0 up to 1.2x at confidence 1.
func AdaptiveTarget(baseTargetPct, confidence float64) float64 {
	return baseTargetPct * (0.8 + confidence*0.4)
}

// Evaluate checks whether the direction-adjusted return has met the adaptive
// target.
func (e *ProfitTarget) Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error) {
	if pos.Type == domain.PositionHold {
		return domain.NoExit("no directional position to take profit on"), nil
	}

	returnPct := pos.ReturnPct(snap.CurrentPrice)
	target := AdaptiveTarget(cfg.ProfitTargetPct, pos.Confidence)

	if returnPct < target {
		return domain.NoExit(fmt.Sprintf("return %.2f%% below adaptive target %.2f%%", returnPct, target)), nil
	}

	return domain.ExitSignal{
		ShouldExit:           true,
		Reason:               domain.ReasonProfitTarget,
		Urgency:              profitTargetUrgency,
		Confidence:           profitTargetConfidence,
		RecommendedExitPrice: domain.Float64Ptr(snap.CurrentPrice),
		Details:              fmt.Sprintf("return %.2f%% reached adaptive target %.2f%% (base %.2f%%, entry confidence %.2f)", returnPct, target, cfg.ProfitTargetPct, pos.Confidence),
	}, nil
}
