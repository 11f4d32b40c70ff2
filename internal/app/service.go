package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exitSentinel/internal/domain"
	"exitSentinel/internal/engine"
	"exitSentinel/internal/ports"
)

// MonitorService runs the outer evaluation loop: it periodically loads every
// open position from the store, asks the engine whether each should be
// closed, persists the decisions for audit, and marks exited positions
// closed in the store. Actual order routing happens elsewhere; this service
// only decides and records.
type MonitorService struct {
	logger       ports.Logger
	eng          *engine.Engine
	positions    ports.PositionRepository
	decisions    ports.DecisionRepository
	pollInterval time.Duration
}

// Config holds the dependencies for the monitor service.
type Config struct {
	Logger       ports.Logger
	Engine       *engine.Engine
	Positions    ports.PositionRepository
	Decisions    ports.DecisionRepository
	PollInterval time.Duration
}

// NewMonitorService creates a new monitor service instance.
func NewMonitorService(cfg Config) (*MonitorService, error) {
	if cfg.Logger == nil || cfg.Engine == nil || cfg.Positions == nil || cfg.Decisions == nil {
		return nil, fmt.Errorf("missing required dependencies for MonitorService")
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}

	return &MonitorService{
		logger:       cfg.Logger,
		eng:          cfg.Engine,
		positions:    cfg.Positions,
		decisions:    cfg.Decisions,
		pollInterval: pollInterval,
	}, nil
}

// Start begins the monitor loop and blocks until the context is canceled or
// a shutdown signal arrives.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting exit monitor service", map[string]interface{}{
		"pollInterval": s.pollInterval.String(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Evaluate once immediately so a restart doesn't wait out a full tick
	// with stale positions open.
	s.runCycle(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.Background(), "Exit monitor service stopped")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// RunOnce performs a single evaluation cycle. Exposed for one-shot tooling.
func (s *MonitorService) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *MonitorService) runCycle(ctx context.Context) error {
	open, err := s.positions.FindOpen(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load open positions, skipping cycle")
		return err
	}
	if len(open) == 0 {
		s.logger.Debug(ctx, "No open positions to evaluate")
		return nil
	}

	decisions := s.eng.EvaluateAllPositions(ctx, open)
	for i, decision := range decisions {
		s.handleDecision(ctx, open[i], decision)
	}
	return nil
}

// handleDecision persists one decision and updates the position store when
// the engine voted to exit.
func (s *MonitorService) handleDecision(ctx context.Context, pos *domain.Position, decision *domain.PositionExitDecision) {
	if _, err := s.decisions.RecordDecision(ctx, decision); err != nil {
		// The decision itself stands; a broken audit trail must not block it.
		s.logger.Error(ctx, err, "Failed to record exit decision", map[string]interface{}{
			"symbol": decision.Symbol,
		})
	}

	if decision.Err != nil {
		s.logger.Warn(ctx, "Position held: evaluation incomplete", map[string]interface{}{
			"symbol": decision.Symbol,
			"error":  decision.Err.Error(),
		})
		return
	}

	if !decision.ShouldExit {
		s.logger.Debug(ctx, "Position held", map[string]interface{}{
			"symbol":    decision.Symbol,
			"reason":    string(decision.Reason),
			"returnPct": decision.ReturnPct,
		})
		return
	}

	s.logger.Info(ctx, "Exit recommended", map[string]interface{}{
		"symbol":    decision.Symbol,
		"reason":    string(decision.Reason),
		"urgency":   decision.Urgency,
		"returnPct": decision.ReturnPct,
		"price":     decision.CurrentPrice,
		"source":    string(decision.Source),
	})

	if err := s.positions.ClosePosition(ctx, pos.ID, decision.Reason, decision.EvaluatedAt); err != nil {
		s.logger.Error(ctx, err, "Failed to mark position closed", map[string]interface{}{
			"symbol":     pos.Symbol,
			"positionID": pos.ID,
		})
	}
}
