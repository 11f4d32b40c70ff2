package evaluators

import (
	"context"
	"fmt"
	"time"

	"exitSentinel/internal/domain"
)

const (
	timeLimitUrgency = 3

	// Signal confidence starts here at the hold boundary and decays per
	// overstayed hour, modeling decreasing certainty in a stale entry signal.
	timeLimitBaseConfidence  = 0.8
	timeLimitFloorConfidence = 0.3
)

// TimeLimit signals an exit once a position has been held for the configured
// maximum duration (inclusive boundary).
type TimeLimit struct {
	now func() time.Time
}

// NewTimeLimit creates the time limit evaluator. A nil clock uses time.Now.
func NewTimeLimit(now func() time.Time) *TimeLimit {
	if now == nil {
		now = time.Now
	}
	return &TimeLimit{now: now}
}

// Name returns the evaluator's registration name.
func (e *TimeLimit) Name() string { return "time_limit" }

// Evaluate checks whether the hold duration has reached the maximum.
func (e *TimeLimit) Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error) {
	if cfg.MaxHold <= 0 {
		return domain.NoExit("no hold time limit configured"), nil
	}

	held := pos.HoldDuration(e.now())
	if held < cfg.MaxHold {
		return domain.NoExit(fmt.Sprintf("held %s of %s limit", held.Round(time.Minute), cfg.MaxHold)), nil
	}

	overstayHours := (held - cfg.MaxHold).Hours()
	confidence := timeLimitBaseConfidence - cfg.TimeDecayFactor*overstayHours
	if confidence < timeLimitFloorConfidence {
		confidence = timeLimitFloorConfidence
	}

	return domain.ExitSignal{
		ShouldExit:           true,
		Reason:               domain.ReasonTimeLimit,
		Urgency:              timeLimitUrgency,
		Confidence:           confidence,
		RecommendedExitPrice: domain.Float64Ptr(snap.CurrentPrice),
		Details:              fmt.Sprintf("held %s, exceeds limit %s by %.1fh", held.Round(time.Minute), cfg.MaxHold, overstayHours),
	}, nil
}
