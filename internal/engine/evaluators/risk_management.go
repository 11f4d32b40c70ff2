package evaluators

import (
	"context"
	"fmt"
	"math"
	"time"

	"exitSentinel/internal/domain"
)

const (
	riskUrgency    = 2
	riskConfidence = 0.6

	// Low-conviction positions get this long to prove themselves before the
	// flat-return cutoff applies.
	riskGracePeriod = 2 * time.Hour

	// A position moving less than this in either direction counts as flat.
	riskFlatReturnPct = 0.5
)

// RiskManagement cuts loose low-conviction positions that have gone nowhere.
// A position entered below the confidence threshold that is still flat after
// the grace period is not worth the exposure it ties up.
type RiskManagement struct {
	now func() time.Time
}

// NewRiskManagement creates the risk management evaluator. A nil clock uses
// time.Now.
func NewRiskManagement(now func() time.Time) *RiskManagement {
	if now == nil {
		now = time.Now
	}
	return &RiskManagement{now: now}
}

// Name returns the evaluator's registration name.
func (e *RiskManagement) Name() string { return "risk_management" }

// Evaluate checks whether a low-conviction position has stayed flat past the
// grace period.
func (e *RiskManagement) Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error) {
	if pos.Confidence >= cfg.ConfidenceThreshold {
		return domain.NoExit(fmt.Sprintf("entry confidence %.2f meets threshold %.2f", pos.Confidence, cfg.ConfidenceThreshold)), nil
	}

	held := pos.HoldDuration(e.now())
	if held < riskGracePeriod {
		return domain.NoExit(fmt.Sprintf("within %s grace period (held %s)", riskGracePeriod, held.Round(time.Minute))), nil
	}

	returnPct := pos.ReturnPct(snap.CurrentPrice)
	if math.Abs(returnPct) >= riskFlatReturnPct {
		return domain.NoExit(fmt.Sprintf("position moving (%.2f%%), letting it run", returnPct)), nil
	}

	return domain.ExitSignal{
		ShouldExit:           true,
		Reason:               domain.ReasonRiskManagement,
		Urgency:              riskUrgency,
		Confidence:           riskConfidence,
		RecommendedExitPrice: domain.Float64Ptr(snap.CurrentPrice),
		Details: fmt.Sprintf("low-conviction position (confidence %.2f < %.2f) flat at %.2f%% after %s",
			pos.Confidence, cfg.ConfidenceThreshold, returnPct, held.Round(time.Minute)),
	}, nil
}
