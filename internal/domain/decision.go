package domain

import (
	"fmt"
	"time"
)

// EngineConfig holds the thresholds the evaluators work against. It is
// immutable for the duration of one evaluation batch; the engine snapshots it
// atomically before running any evaluator.
type EngineConfig struct {
	ProfitTargetPct     float64       // Base profit target in percent (e.g. 2.8)
	StopLossPct         float64       // Maximum tolerated loss in percent (e.g. 2.0)
	MaxHold             time.Duration // Maximum position hold time (e.g. 18h)
	ConfidenceThreshold float64       // Entry-confidence floor for the risk cutoff
	TimeDecayFactor     float64       // Per-hour confidence decay on overstayed positions
}

// Validate checks the non-negativity invariants on all thresholds.
func (c EngineConfig) Validate() error {
	if c.ProfitTargetPct < 0 {
		return fmt.Errorf("profit target %.4f cannot be negative", c.ProfitTargetPct)
	}
	if c.StopLossPct < 0 {
		return fmt.Errorf("stop loss %.4f cannot be negative", c.StopLossPct)
	}
	if c.MaxHold < 0 {
		return fmt.Errorf("max hold %s cannot be negative", c.MaxHold)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.4f outside [0,1]", c.ConfidenceThreshold)
	}
	if c.TimeDecayFactor < 0 {
		return fmt.Errorf("time decay factor %.4f cannot be negative", c.TimeDecayFactor)
	}
	return nil
}

// DefaultEngineConfig returns the thresholds used when none are configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ProfitTargetPct:     2.8,
		StopLossPct:         2.0,
		MaxHold:             18 * time.Hour,
		ConfidenceThreshold: 0.6,
		TimeDecayFactor:     0.1,
	}
}

// PositionExitDecision is the engine's resolved verdict for one position.
// When Err is non-nil the decision is a conservative hold: missing data is
// never interpreted as an exit trigger.
type PositionExitDecision struct {
	Symbol           string
	ShouldExit       bool
	Reason           ExitReason
	Confidence       float64
	Urgency          int
	CurrentPrice     float64
	ReturnPct        float64
	Details          string
	Source           DataSource
	TriggeredSignals []ExitSignal // Every signal that voted to exit, for audit
	EvaluatedAt      time.Time
	Err              error // Set when evaluation could not complete
}
