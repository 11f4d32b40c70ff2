package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exitSentinel/internal/domain"
	"exitSentinel/internal/engine/evaluators"
	"exitSentinel/internal/ports"
)

const defaultWorkers = 8

// Evaluator is one independent exit heuristic. Implementations must be pure
// functions of their inputs: no shared mutable state, no I/O. An evaluator
// that cannot compute returns a non-triggering signal, not an error; errors
// and panics are still contained at this boundary and demoted to a NO_EXIT
// vote so one failing heuristic can never suppress the others.
type Evaluator interface {
	// Name returns the evaluator's registration name, used as its safety
	// flag key.
	Name() string

	// Evaluate casts this evaluator's vote for the given position and
	// market snapshot.
	Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error)
}

// Config holds the dependencies and settings for the exit strategy engine.
type Config struct {
	Logger   ports.Logger
	Provider ports.MarketDataProvider
	Engine   domain.EngineConfig

	// Workers bounds batch evaluation concurrency. Defaults to 8.
	Workers int

	// Evaluators overrides the standard evaluator set. Order is the
	// priority registration order used for equal-urgency tie-breaks.
	// Leave nil for the default registration:
	// stop_loss > profit_target > time_limit > technical_breakdown > risk_management.
	Evaluators []Evaluator

	// Now overrides the clock for time-based evaluators. Defaults to time.Now.
	Now func() time.Time
}

// Status is the engine's externally visible state report.
type Status struct {
	State                  domain.EngineState
	Enabled                bool
	SafeMode               bool
	Flags                  map[string]bool
	Config                 domain.EngineConfig
	DataSourceAvailability map[string]bool
}

// Engine orchestrates the exit evaluators for open positions. It owns the
// master state, the per-evaluator safety flags, and the priority resolution
// of competing signals. All flag and state mutation goes through typed
// methods and is safe against in-flight evaluations: every evaluation works
// from one atomic snapshot of (state, flags, config) taken up front.
type Engine struct {
	logger     ports.Logger
	provider   ports.MarketDataProvider
	evaluators []Evaluator
	workers    int
	now        func() time.Time

	mu    sync.RWMutex
	state domain.EngineState
	flags map[string]bool
	cfg   domain.EngineConfig
}

// New creates an exit strategy engine. It starts ENABLED with every
// evaluator's safety flag on.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for exit strategy engine")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("market data provider is required for exit strategy engine")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine thresholds: %w: %w", ports.ErrConfigurationError, err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	evals := cfg.Evaluators
	if evals == nil {
		// Fixed registration order; doubles as the deterministic tie-break
		// for equal-urgency signals.
		evals = []Evaluator{
			evaluators.NewStopLoss(),
			evaluators.NewProfitTarget(),
			evaluators.NewTimeLimit(now),
			evaluators.NewTechnicalBreakdown(),
			evaluators.NewRiskManagement(now),
		}
	}

	flags := make(map[string]bool, len(evals))
	for _, e := range evals {
		if _, dup := flags[e.Name()]; dup {
			return nil, fmt.Errorf("duplicate evaluator name %q: %w", e.Name(), ports.ErrConfigurationError)
		}
		flags[e.Name()] = true
	}

	return &Engine{
		logger:     cfg.Logger,
		provider:   cfg.Provider,
		evaluators: evals,
		workers:    workers,
		now:        now,
		state:      domain.StateEnabled,
		flags:      flags,
		cfg:        cfg.Engine,
	}, nil
}

// --- State transitions ---

// Enable turns the engine on, leaving safe mode if it was active.
func (e *Engine) Enable(ctx context.Context, reason string) {
	e.transition(ctx, domain.StateEnabled, reason)
}

// Disable turns the engine off. Evaluations short-circuit without touching
// market data until Enable is called.
func (e *Engine) Disable(ctx context.Context, reason string) {
	e.transition(ctx, domain.StateDisabled, reason)
}

// EnableSafeMode puts the engine into safe mode: behaviorally identical to
// disabled, but reported distinctly so operators can tell a deliberate
// safety stop from an ordinary shutdown.
func (e *Engine) EnableSafeMode(ctx context.Context, reason string) {
	e.transition(ctx, domain.StateSafeMode, reason)
}

// DisableSafeMode leaves safe mode and re-enables the engine. It has no
// effect when the engine is not in safe mode.
func (e *Engine) DisableSafeMode(ctx context.Context, reason string) {
	e.mu.Lock()
	if e.state != domain.StateSafeMode {
		e.mu.Unlock()
		e.logger.Warn(ctx, "DisableSafeMode ignored, engine not in safe mode", map[string]interface{}{
			"state":  string(e.state),
			"reason": reason,
		})
		return
	}
	e.state = domain.StateEnabled
	e.mu.Unlock()

	e.logger.Info(ctx, "Engine state transition", map[string]interface{}{
		"newState": string(domain.StateEnabled),
		"reason":   reason,
	})
}

func (e *Engine) transition(ctx context.Context, to domain.EngineState, reason string) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()

	e.logger.Info(ctx, "Engine state transition", map[string]interface{}{
		"oldState": string(from),
		"newState": string(to),
		"reason":   reason,
	})
}

// SetSafetyFlag toggles one evaluator's flag. Unknown names are rejected so
// a typo cannot silently leave a risk control running (or stopped).
func (e *Engine) SetSafetyFlag(ctx context.Context, name string, enabled bool, reason string) error {
	e.mu.Lock()
	if _, ok := e.flags[name]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("unknown evaluator %q: %w", name, ports.ErrNotFound)
	}
	e.flags[name] = enabled
	e.mu.Unlock()

	e.logger.Info(ctx, "Safety flag changed", map[string]interface{}{
		"evaluator": name,
		"enabled":   enabled,
		"reason":    reason,
	})
	return nil
}

// Status reports the engine's state, flags, thresholds and current data
// source availability.
func (e *Engine) Status(ctx context.Context) Status {
	state, flags, cfg := e.stateSnapshot()
	return Status{
		State:                  state,
		Enabled:                state == domain.StateEnabled,
		SafeMode:               state == domain.StateSafeMode,
		Flags:                  flags,
		Config:                 cfg,
		DataSourceAvailability: e.provider.Availability(ctx),
	}
}

// stateSnapshot returns an atomic copy of the mutable engine state so an
// evaluation never observes a half-applied flag or threshold change.
func (e *Engine) stateSnapshot() (domain.EngineState, map[string]bool, domain.EngineConfig) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	flags := make(map[string]bool, len(e.flags))
	for k, v := range e.flags {
		flags[k] = v
	}
	return e.state, flags, e.cfg
}

// --- Evaluation ---

// EvaluatePositionExit decides whether the given open position should be
// closed, and why. Data unavailability and internal failures always resolve
// to a hold: the engine never exits on a guess.
func (e *Engine) EvaluatePositionExit(ctx context.Context, pos *domain.Position) *domain.PositionExitDecision {
	decision := &domain.PositionExitDecision{
		Reason:      domain.ReasonNoExit,
		EvaluatedAt: e.now(),
	}
	if pos != nil {
		decision.Symbol = pos.Symbol
	}

	if pos == nil {
		decision.Err = fmt.Errorf("nil position: %w", ports.ErrInvalidPosition)
		decision.Details = "no position supplied"
		return decision
	}
	if err := pos.Validate(); err != nil {
		decision.Err = fmt.Errorf("%w: %w", ports.ErrInvalidPosition, err)
		decision.Details = "position rejected before evaluation"
		e.logger.Warn(ctx, "Rejected invalid position", map[string]interface{}{
			"symbol": pos.Symbol,
			"error":  err.Error(),
		})
		return decision
	}

	state, flags, cfg := e.stateSnapshot()

	// Fast, side-effect-free short-circuit: no data fetch while not ENABLED.
	if state != domain.StateEnabled {
		decision.Reason = domain.ReasonStrategyDisabled
		decision.Details = fmt.Sprintf("exit strategy inactive (state %s)", state)
		return decision
	}

	snap, err := e.provider.GetSnapshot(ctx, pos.Symbol)
	if err != nil {
		decision.Err = err
		decision.Details = "market data unavailable, holding position"
		return decision
	}

	decision.CurrentPrice = snap.CurrentPrice
	decision.ReturnPct = pos.ReturnPct(snap.CurrentPrice)
	decision.Source = snap.Source

	var triggered []domain.ExitSignal
	for _, ev := range e.evaluators {
		if !flags[ev.Name()] {
			continue
		}
		sig := e.runEvaluator(ctx, ev, pos, snap, cfg)
		if sig.ShouldExit {
			triggered = append(triggered, sig)
		}
	}

	if len(triggered) == 0 {
		decision.Reason = domain.ReasonNoConditionsMet
		decision.Details = fmt.Sprintf("no exit conditions met, return %.2f%%", decision.ReturnPct)
		return decision
	}

	primary := resolvePrimary(triggered)
	decision.ShouldExit = true
	decision.Reason = primary.Reason
	decision.Confidence = primary.Confidence
	decision.Urgency = primary.Urgency
	decision.Details = primary.Details
	decision.TriggeredSignals = triggered

	e.logger.Info(ctx, "Exit condition triggered", map[string]interface{}{
		"symbol":    pos.Symbol,
		"reason":    string(primary.Reason),
		"urgency":   primary.Urgency,
		"returnPct": decision.ReturnPct,
		"source":    string(snap.Source),
		"triggered": len(triggered),
	})
	return decision
}

// runEvaluator contains one evaluator's failure: an error return or a panic
// becomes a NO_EXIT vote for that evaluator only.
func (e *Engine) runEvaluator(ctx context.Context, ev Evaluator, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (sig domain.ExitSignal) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, fmt.Errorf("%w: panic: %v", ports.ErrEvaluatorFailure, r),
				"Evaluator panicked, treating as no-exit vote", map[string]interface{}{
					"evaluator": ev.Name(),
					"symbol":    pos.Symbol,
				})
			sig = domain.NoExit(fmt.Sprintf("evaluator %s failed internally", ev.Name()))
		}
	}()

	sig, err := ev.Evaluate(ctx, pos, snap, cfg)
	if err != nil {
		e.logger.Error(ctx, fmt.Errorf("%w: %w", ports.ErrEvaluatorFailure, err),
			"Evaluator failed, treating as no-exit vote", map[string]interface{}{
				"evaluator": ev.Name(),
				"symbol":    pos.Symbol,
			})
		return domain.NoExit(fmt.Sprintf("evaluator %s failed internally", ev.Name()))
	}
	return sig
}

// resolvePrimary picks the authoritative signal: highest urgency wins, with
// equal urgency resolved to the earliest-registered evaluator. The scan keeps
// the first maximum, so registration order is the tie-break.
func resolvePrimary(triggered []domain.ExitSignal) domain.ExitSignal {
	primary := triggered[0]
	for _, sig := range triggered[1:] {
		if sig.Urgency > primary.Urgency {
			primary = sig
		}
	}
	return primary
}

// EvaluateAllPositions evaluates every position independently on a bounded
// worker pool. One position's data failure never affects a sibling's result,
// and results preserve the caller's input order.
func (e *Engine) EvaluateAllPositions(ctx context.Context, positions []*domain.Position) []*domain.PositionExitDecision {
	decisions := make([]*domain.PositionExitDecision, len(positions))
	if len(positions) == 0 {
		return decisions
	}

	workers := e.workers
	if workers > len(positions) {
		workers = len(positions)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				decisions[i] = e.EvaluatePositionExit(ctx, positions[i])
			}
		}()
	}

	for i := range positions {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return decisions
}
