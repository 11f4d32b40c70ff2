package domain

// Urgency bounds for exit signals. 5 is acted on first.
const (
	UrgencyMin = 1
	UrgencyMax = 5
)

// ExitSignal is a single evaluator's vote on whether a position should be
// closed. Signals are produced fresh per evaluation and consumed once by the
// engine's resolution step.
type ExitSignal struct {
	ShouldExit           bool
	Reason               ExitReason
	Urgency              int     // 1..5, 5 most urgent
	Confidence           float64 // in [0,1]
	RecommendedExitPrice *float64
	Details              string // Human-readable explanation
}

// NoExit builds the non-triggering signal an evaluator returns when its
// condition is not met or it cannot compute.
func NoExit(details string) ExitSignal {
	return ExitSignal{
		ShouldExit: false,
		Reason:     ReasonNoExit,
		Urgency:    UrgencyMin,
		Confidence: 0,
		Details:    details,
	}
}
