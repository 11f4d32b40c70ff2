package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"exitSentinel/internal/domain"
	"exitSentinel/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockProvider implements ports.MarketDataProvider for testing
type mockProvider struct {
	snapshots     map[string]*domain.MarketSnapshot
	err           error
	snapshotCalls int
	priceCalls    int
}

func (m *mockProvider) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.priceCalls++
	if m.err != nil {
		return 0, m.err
	}
	if snap, ok := m.snapshots[symbol]; ok {
		return snap.CurrentPrice, nil
	}
	return 0, ports.ErrDataUnavailable
}

func (m *mockProvider) GetSnapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error) {
	m.snapshotCalls++
	if m.err != nil {
		return nil, m.err
	}
	if snap, ok := m.snapshots[symbol]; ok {
		return snap, nil
	}
	return nil, ports.ErrDataUnavailable
}

func (m *mockProvider) Availability(ctx context.Context) map[string]bool {
	return map[string]bool{"primary": true, "fallback": true}
}

// stubEvaluator returns a fixed signal, or an error, or panics.
type stubEvaluator struct {
	name   string
	signal domain.ExitSignal
	err    error
	panics bool
}

func (s *stubEvaluator) Name() string { return s.name }

func (s *stubEvaluator) Evaluate(ctx context.Context, pos *domain.Position, snap *domain.MarketSnapshot, cfg domain.EngineConfig) (domain.ExitSignal, error) {
	if s.panics {
		panic("stub evaluator exploded")
	}
	if s.err != nil {
		return domain.ExitSignal{}, s.err
	}
	return s.signal, nil
}

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, provider ports.MarketDataProvider, opts ...func(*Config)) *Engine {
	t.Helper()
	cfg := Config{
		Logger:   &mockLogger{},
		Provider: provider,
		Engine:   domain.DefaultEngineConfig(),
		Now:      func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng
}

func openBuy(symbol string, entryPrice, confidence float64, held time.Duration) *domain.Position {
	return &domain.Position{
		ID:         1,
		Symbol:     symbol,
		EntryPrice: entryPrice,
		EntryTime:  testNow.Add(-held),
		Type:       domain.PositionBuy,
		Confidence: confidence,
		Shares:     10,
		Status:     domain.StatusOpen,
	}
}

func snapFor(symbol string, price float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol:       symbol,
		CurrentPrice: price,
		Source:       domain.SourcePrimary,
		Timestamp:    testNow,
	}
}

func TestNew_Validation(t *testing.T) {
	provider := &mockProvider{}

	_, err := New(Config{Provider: provider, Engine: domain.DefaultEngineConfig()})
	assert.Error(t, err, "missing logger must be rejected")

	_, err = New(Config{Logger: &mockLogger{}, Engine: domain.DefaultEngineConfig()})
	assert.Error(t, err, "missing provider must be rejected")

	bad := domain.DefaultEngineConfig()
	bad.StopLossPct = -1
	_, err = New(Config{Logger: &mockLogger{}, Provider: provider, Engine: bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestMasterOverride_DisabledSkipsDataFetch(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 50.0), // would stop out instantly
	}}
	eng := newTestEngine(t, provider)
	eng.Disable(context.Background(), "maintenance window")

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.False(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonStrategyDisabled, decision.Reason)
	assert.NoError(t, decision.Err)
	assert.Equal(t, 0, provider.snapshotCalls, "disabled engine must never touch market data")
}

func TestSafeMode_BehavesLikeDisabledButReportsDistinctly(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 50.0),
	}}
	eng := newTestEngine(t, provider)
	eng.EnableSafeMode(context.Background(), "anomalous fills detected")

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.False(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonStrategyDisabled, decision.Reason)
	assert.Contains(t, decision.Details, string(domain.StateSafeMode))
	assert.Equal(t, 0, provider.snapshotCalls)

	status := eng.Status(context.Background())
	assert.True(t, status.SafeMode)
	assert.False(t, status.Enabled)
	assert.Equal(t, domain.StateSafeMode, status.State)

	eng.DisableSafeMode(context.Background(), "anomaly resolved")
	status = eng.Status(context.Background())
	assert.True(t, status.Enabled)
	assert.False(t, status.SafeMode)
}

func TestDisableSafeMode_IgnoredWhenNotInSafeMode(t *testing.T) {
	eng := newTestEngine(t, &mockProvider{})
	eng.Disable(context.Background(), "shutdown")
	eng.DisableSafeMode(context.Background(), "should not re-enable")

	status := eng.Status(context.Background())
	assert.Equal(t, domain.StateDisabled, status.State)
}

func TestScenarioA_ProfitTarget(t *testing.T) {
	// Return 3.5% vs adaptive target 2.8*(0.8+0.8*0.4)=3.136%
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 103.5),
	}}
	eng := newTestEngine(t, provider)

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.True(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonProfitTarget, decision.Reason)
	assert.Equal(t, 4, decision.Urgency)
	assert.InDelta(t, 3.5, decision.ReturnPct, 0.0001)
	assert.Equal(t, domain.SourcePrimary, decision.Source)
}

func TestScenarioB_StopLossWinsOverLowerUrgency(t *testing.T) {
	// -2.5% return on a position held past the time limit: both STOP_LOSS
	// (urgency 5) and TIME_LIMIT (urgency 3) trigger; stop loss must win.
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 97.5),
	}}
	eng := newTestEngine(t, provider)

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, 19*time.Hour))
	require.True(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonStopLoss, decision.Reason)
	assert.Equal(t, 5, decision.Urgency)
	assert.Len(t, decision.TriggeredSignals, 2, "both triggered signals kept for audit")
}

func TestScenarioC_TimeLimit(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 100.0),
	}}
	eng := newTestEngine(t, provider)

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, 19*time.Hour))
	require.True(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonTimeLimit, decision.Reason)
	assert.Equal(t, 3, decision.Urgency)
}

func TestScenarioD_Hold(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 100.3),
	}}
	eng := newTestEngine(t, provider)

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.False(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonNoConditionsMet, decision.Reason)
	assert.InDelta(t, 0.3, decision.ReturnPct, 0.0001)
	assert.Empty(t, decision.TriggeredSignals)
}

func TestScenarioE_DataFailureHoldsPosition(t *testing.T) {
	provider := &mockProvider{err: fmt.Errorf("all sources down: %w", ports.ErrDataUnavailable)}
	eng := newTestEngine(t, provider)

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.False(t, decision.ShouldExit)
	require.Error(t, decision.Err)
	assert.ErrorIs(t, decision.Err, ports.ErrDataUnavailable)
}

func TestStopLossPrecedence_ContrivedSimultaneousTrigger(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 100.0),
	}}
	eng := newTestEngine(t, provider, func(cfg *Config) {
		cfg.Evaluators = []Evaluator{
			&stubEvaluator{name: "stop_loss", signal: domain.ExitSignal{
				ShouldExit: true, Reason: domain.ReasonStopLoss, Urgency: 5, Confidence: 0.95,
			}},
			&stubEvaluator{name: "profit_target", signal: domain.ExitSignal{
				ShouldExit: true, Reason: domain.ReasonProfitTarget, Urgency: 4, Confidence: 0.85,
			}},
		}
	})

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	require.True(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonStopLoss, decision.Reason)
	assert.Len(t, decision.TriggeredSignals, 2)
}

func TestEqualUrgencyTieBreak_RegistrationOrderWins(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 100.0),
	}}
	eng := newTestEngine(t, provider, func(cfg *Config) {
		cfg.Evaluators = []Evaluator{
			&stubEvaluator{name: "time_limit", signal: domain.ExitSignal{
				ShouldExit: true, Reason: domain.ReasonTimeLimit, Urgency: 3, Confidence: 0.8,
			}},
			&stubEvaluator{name: "technical_breakdown", signal: domain.ExitSignal{
				ShouldExit: true, Reason: domain.ReasonTechnicalBreakdown, Urgency: 3, Confidence: 0.7,
			}},
		}
	})

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	require.True(t, decision.ShouldExit)
	assert.Equal(t, domain.ReasonTimeLimit, decision.Reason, "earlier registration wins the tie")
}

func TestIdempotence(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 103.5),
	}}
	eng := newTestEngine(t, provider)
	pos := openBuy("ETHUSDT", 100.0, 0.8, time.Hour)

	first := eng.EvaluatePositionExit(context.Background(), pos)
	second := eng.EvaluatePositionExit(context.Background(), pos)
	assert.Equal(t, first, second, "identical inputs must yield identical decisions")
}

func TestIsolation_FailingEvaluatorDoesNotAbortDecision(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 97.5),
	}}
	eng := newTestEngine(t, provider, func(cfg *Config) {
		cfg.Evaluators = []Evaluator{
			&stubEvaluator{name: "stop_loss", signal: domain.ExitSignal{
				ShouldExit: true, Reason: domain.ReasonStopLoss, Urgency: 5, Confidence: 0.95,
			}},
			&stubEvaluator{name: "technical_breakdown", err: errors.New("indicator blew up")},
			&stubEvaluator{name: "risk_management", panics: true},
		}
	})

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	require.True(t, decision.ShouldExit, "remaining evaluators must still produce a decision")
	assert.Equal(t, domain.ReasonStopLoss, decision.Reason)
	assert.NoError(t, decision.Err)
}

func TestSafetyFlag_DisablesSingleEvaluator(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 103.5),
	}}
	eng := newTestEngine(t, provider)

	require.NoError(t, eng.SetSafetyFlag(context.Background(), "profit_target", false, "testing flag"))

	decision := eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.False(t, decision.ShouldExit, "disabled evaluator must not vote")
	assert.Equal(t, domain.ReasonNoConditionsMet, decision.Reason)

	require.NoError(t, eng.SetSafetyFlag(context.Background(), "profit_target", true, "re-enable"))
	decision = eng.EvaluatePositionExit(context.Background(), openBuy("ETHUSDT", 100.0, 0.8, time.Hour))
	assert.True(t, decision.ShouldExit)
}

func TestSetSafetyFlag_UnknownEvaluatorRejected(t *testing.T) {
	eng := newTestEngine(t, &mockProvider{})
	err := eng.SetSafetyFlag(context.Background(), "no_such_evaluator", false, "typo")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestInvalidPosition_RejectedBeforeEvaluation(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 100.0),
	}}
	eng := newTestEngine(t, provider)

	tests := []struct {
		name string
		pos  *domain.Position
	}{
		{"nil position", nil},
		{"non-positive entry price", &domain.Position{
			Symbol: "ETHUSDT", EntryPrice: 0, EntryTime: testNow.Add(-time.Hour),
			Type: domain.PositionBuy, Confidence: 0.8,
		}},
		{"unknown position type", &domain.Position{
			Symbol: "ETHUSDT", EntryPrice: 100, EntryTime: testNow.Add(-time.Hour),
			Type: "SHORT", Confidence: 0.8,
		}},
		{"confidence out of range", &domain.Position{
			Symbol: "ETHUSDT", EntryPrice: 100, EntryTime: testNow.Add(-time.Hour),
			Type: domain.PositionBuy, Confidence: 1.5,
		}},
		{"negative shares", &domain.Position{
			Symbol: "ETHUSDT", EntryPrice: 100, EntryTime: testNow.Add(-time.Hour),
			Type: domain.PositionBuy, Confidence: 0.8, Shares: -1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := provider.snapshotCalls
			decision := eng.EvaluatePositionExit(context.Background(), tt.pos)
			assert.False(t, decision.ShouldExit)
			require.Error(t, decision.Err)
			assert.ErrorIs(t, decision.Err, ports.ErrInvalidPosition)
			assert.Equal(t, before, provider.snapshotCalls, "invalid positions must not trigger a data fetch")
		})
	}
}

func TestEvaluateAllPositions_BulkheadIsolationAndOrder(t *testing.T) {
	provider := &mockProvider{snapshots: map[string]*domain.MarketSnapshot{
		"ETHUSDT": snapFor("ETHUSDT", 103.5),
		"BTCUSDT": snapFor("BTCUSDT", 97.5),
		// SOLUSDT deliberately missing: its lookup fails
	}}
	eng := newTestEngine(t, provider)

	positions := []*domain.Position{
		openBuy("ETHUSDT", 100.0, 0.8, time.Hour),
		{
			ID: 2, Symbol: "SOLUSDT", EntryPrice: 100.0, EntryTime: testNow.Add(-time.Hour),
			Type: domain.PositionBuy, Confidence: 0.8, Shares: 5, Status: domain.StatusOpen,
		},
		{
			ID: 3, Symbol: "BTCUSDT", EntryPrice: 100.0, EntryTime: testNow.Add(-time.Hour),
			Type: domain.PositionBuy, Confidence: 0.8, Shares: 5, Status: domain.StatusOpen,
		},
	}

	decisions := eng.EvaluateAllPositions(context.Background(), positions)
	require.Len(t, decisions, 3)

	// Input order preserved
	assert.Equal(t, "ETHUSDT", decisions[0].Symbol)
	assert.Equal(t, "SOLUSDT", decisions[1].Symbol)
	assert.Equal(t, "BTCUSDT", decisions[2].Symbol)

	assert.True(t, decisions[0].ShouldExit)
	assert.Equal(t, domain.ReasonProfitTarget, decisions[0].Reason)

	// The failed lookup holds its position without affecting siblings
	assert.False(t, decisions[1].ShouldExit)
	assert.ErrorIs(t, decisions[1].Err, ports.ErrDataUnavailable)

	assert.True(t, decisions[2].ShouldExit)
	assert.Equal(t, domain.ReasonStopLoss, decisions[2].Reason)
}

func TestEvaluateAllPositions_Empty(t *testing.T) {
	eng := newTestEngine(t, &mockProvider{})
	decisions := eng.EvaluateAllPositions(context.Background(), nil)
	assert.Empty(t, decisions)
}

func TestStatus_ReportsFlagsAndAvailability(t *testing.T) {
	eng := newTestEngine(t, &mockProvider{})
	require.NoError(t, eng.SetSafetyFlag(context.Background(), "technical_breakdown", false, "noisy indicator"))

	status := eng.Status(context.Background())
	assert.Equal(t, domain.StateEnabled, status.State)
	assert.True(t, status.Enabled)
	assert.True(t, status.Flags["stop_loss"])
	assert.False(t, status.Flags["technical_breakdown"])
	assert.Equal(t, domain.DefaultEngineConfig(), status.Config)
	assert.True(t, status.DataSourceAvailability["primary"])
}
