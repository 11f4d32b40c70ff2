package domain

// PositionType represents the direction of an open position.
type PositionType string

const (
	PositionBuy  PositionType = "BUY"
	PositionSell PositionType = "SELL"
	PositionHold PositionType = "HOLD"
)

// IsValid reports whether the position type is one of the known directions.
func (t PositionType) IsValid() bool {
	switch t {
	case PositionBuy, PositionSell, PositionHold:
		return true
	}
	return false
}

// DataSource identifies which provider in the chain produced a snapshot.
type DataSource string

const (
	SourcePrimary  DataSource = "PRIMARY"
	SourceFallback DataSource = "FALLBACK"
)

// ExitReason indicates why an exit was (or was not) signalled.
type ExitReason string

const (
	ReasonProfitTarget       ExitReason = "PROFIT_TARGET"
	ReasonStopLoss           ExitReason = "STOP_LOSS"
	ReasonTimeLimit          ExitReason = "TIME_LIMIT"
	ReasonTechnicalBreakdown ExitReason = "TECHNICAL_BREAKDOWN"
	ReasonRiskManagement     ExitReason = "RISK_MANAGEMENT"
	ReasonNoExit             ExitReason = "NO_EXIT"

	// Decision-level reasons produced by the engine, never by an evaluator.
	ReasonStrategyDisabled ExitReason = "EXIT_STRATEGY_DISABLED"
	ReasonNoConditionsMet  ExitReason = "NO_EXIT_CONDITIONS_MET"
)

// EngineState represents the operational state of the exit strategy engine.
type EngineState string

const (
	StateEnabled  EngineState = "ENABLED"
	StateDisabled EngineState = "DISABLED"
	StateSafeMode EngineState = "SAFE_MODE"
)
