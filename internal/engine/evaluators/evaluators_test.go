package evaluators

import (
	"context"
	"testing"
	"time"

	"exitSentinel/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() domain.EngineConfig {
	return domain.EngineConfig{
		ProfitTargetPct:     2.8,
		StopLossPct:         2.0,
		MaxHold:             18 * time.Hour,
		ConfidenceThreshold: 0.6,
		TimeDecayFactor:     0.1,
	}
}

func buyPosition(entryPrice, confidence float64, entryTime time.Time) *domain.Position {
	return &domain.Position{
		ID:         1,
		Symbol:     "ETHUSDT",
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
		Type:       domain.PositionBuy,
		Confidence: confidence,
		Shares:     10,
		Status:     domain.StatusOpen,
	}
}

func snapshot(price float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol:       "ETHUSDT",
		CurrentPrice: price,
		Source:       domain.SourcePrimary,
		Timestamp:    time.Now(),
	}
}

func TestAdaptiveTarget_Monotonicity(t *testing.T) {
	low := AdaptiveTarget(2.8, 0.1)
	high := AdaptiveTarget(2.8, 0.9)
	assert.Greater(t, high, low, "higher entry confidence must raise the profit bar")

	// Spot check the scaling formula at confidence 0.8.
	assert.InDelta(t, 3.136, AdaptiveTarget(2.8, 0.8), 0.0001)
}

func TestProfitTarget_Evaluate(t *testing.T) {
	now := time.Now()
	eval := NewProfitTarget()

	tests := []struct {
		name       string
		pos        *domain.Position
		price      float64
		shouldExit bool
	}{
		{
			// Return 3.5% vs adaptive target 3.136%
			name:       "BUY above adaptive target",
			pos:        buyPosition(100.0, 0.8, now.Add(-time.Hour)),
			price:      103.5,
			shouldExit: true,
		},
		{
			// Return 3.0% vs adaptive target 3.136%
			name:       "BUY below adaptive target",
			pos:        buyPosition(100.0, 0.8, now.Add(-time.Hour)),
			price:      103.0,
			shouldExit: false,
		},
		{
			name: "SELL profits on falling price",
			pos: &domain.Position{
				Symbol: "ETHUSDT", EntryPrice: 100.0, EntryTime: now.Add(-time.Hour),
				Type: domain.PositionSell, Confidence: 0.8, Status: domain.StatusOpen,
			},
			price:      96.5,
			shouldExit: true,
		},
		{
			name: "SELL loses on rising price",
			pos: &domain.Position{
				Symbol: "ETHUSDT", EntryPrice: 100.0, EntryTime: now.Add(-time.Hour),
				Type: domain.PositionSell, Confidence: 0.8, Status: domain.StatusOpen,
			},
			price:      103.5,
			shouldExit: false,
		},
		{
			name: "HOLD position never takes profit",
			pos: &domain.Position{
				Symbol: "ETHUSDT", EntryPrice: 100.0, EntryTime: now.Add(-time.Hour),
				Type: domain.PositionHold, Confidence: 0.8, Status: domain.StatusOpen,
			},
			price:      110.0,
			shouldExit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := eval.Evaluate(context.Background(), tt.pos, snapshot(tt.price), testConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.shouldExit, sig.ShouldExit)
			if tt.shouldExit {
				assert.Equal(t, domain.ReasonProfitTarget, sig.Reason)
				assert.Equal(t, 4, sig.Urgency)
				assert.InDelta(t, 0.85, sig.Confidence, 0.0001)
				require.NotNil(t, sig.RecommendedExitPrice)
				assert.Equal(t, tt.price, *sig.RecommendedExitPrice)
			} else {
				assert.Equal(t, domain.ReasonNoExit, sig.Reason)
			}
		})
	}
}

func TestStopLoss_Evaluate(t *testing.T) {
	now := time.Now()
	eval := NewStopLoss()

	tests := []struct {
		name       string
		posType    domain.PositionType
		price      float64
		shouldExit bool
	}{
		{"BUY loss beyond stop", domain.PositionBuy, 97.5, true},
		{"BUY loss exactly at stop", domain.PositionBuy, 98.0, true},
		{"BUY loss within stop", domain.PositionBuy, 98.5, false},
		{"BUY in profit", domain.PositionBuy, 103.0, false},
		{"SELL stopped out by rising price", domain.PositionSell, 102.5, true},
		{"SELL safe on falling price", domain.PositionSell, 97.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := &domain.Position{
				Symbol: "ETHUSDT", EntryPrice: 100.0, EntryTime: now.Add(-time.Hour),
				Type: tt.posType, Confidence: 0.8, Status: domain.StatusOpen,
			}
			sig, err := eval.Evaluate(context.Background(), pos, snapshot(tt.price), testConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.shouldExit, sig.ShouldExit)
			if tt.shouldExit {
				assert.Equal(t, domain.ReasonStopLoss, sig.Reason)
				assert.Equal(t, 5, sig.Urgency)
			}
		})
	}
}

func TestTimeLimit_Evaluate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	eval := NewTimeLimit(func() time.Time { return now })
	cfg := testConfig()

	tests := []struct {
		name       string
		held       time.Duration
		shouldExit bool
	}{
		{"well within limit", time.Hour, false},
		{"just under limit", 18*time.Hour - time.Second, false},
		{"exactly at limit", 18 * time.Hour, true},
		{"past limit", 19 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := buyPosition(100.0, 0.8, now.Add(-tt.held))
			sig, err := eval.Evaluate(context.Background(), pos, snapshot(100.0), cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.shouldExit, sig.ShouldExit)
			if tt.shouldExit {
				assert.Equal(t, domain.ReasonTimeLimit, sig.Reason)
				assert.Equal(t, 3, sig.Urgency)
			}
		})
	}

	t.Run("confidence decays with overstay and floors at 0.3", func(t *testing.T) {
		atLimit, err := eval.Evaluate(context.Background(), buyPosition(100.0, 0.8, now.Add(-18*time.Hour)), snapshot(100.0), cfg)
		require.NoError(t, err)
		overstayed, err := eval.Evaluate(context.Background(), buyPosition(100.0, 0.8, now.Add(-21*time.Hour)), snapshot(100.0), cfg)
		require.NoError(t, err)
		assert.Greater(t, atLimit.Confidence, overstayed.Confidence)
		assert.InDelta(t, 0.8, atLimit.Confidence, 0.0001)
		assert.InDelta(t, 0.5, overstayed.Confidence, 0.0001) // 0.8 - 0.1*3h

		farGone, err := eval.Evaluate(context.Background(), buyPosition(100.0, 0.8, now.Add(-100*time.Hour)), snapshot(100.0), cfg)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, farGone.Confidence, 0.0001)
	})
}

func TestTechnicalBreakdown_Evaluate(t *testing.T) {
	now := time.Now()
	eval := NewTechnicalBreakdown()

	t.Run("skips silently without SMA", func(t *testing.T) {
		sig, err := eval.Evaluate(context.Background(), buyPosition(100.0, 0.8, now), snapshot(90.0), testConfig())
		require.NoError(t, err)
		assert.False(t, sig.ShouldExit)
		assert.Equal(t, domain.ReasonNoExit, sig.Reason)
	})

	tests := []struct {
		name       string
		posType    domain.PositionType
		price      float64
		sma        float64
		shouldExit bool
	}{
		{"BUY breaks 3% below SMA", domain.PositionBuy, 96.0, 100.0, true},
		{"BUY holds just above threshold", domain.PositionBuy, 97.5, 100.0, false},
		{"SELL breaks 3% above SMA", domain.PositionSell, 104.0, 100.0, true},
		{"SELL holds below threshold", domain.PositionSell, 102.0, 100.0, false},
		{"HOLD never breaks down", domain.PositionHold, 90.0, 100.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := &domain.Position{
				Symbol: "ETHUSDT", EntryPrice: 100.0, EntryTime: now.Add(-time.Hour),
				Type: tt.posType, Confidence: 0.8, Status: domain.StatusOpen,
			}
			snap := snapshot(tt.price)
			snap.SMA20 = domain.Float64Ptr(tt.sma)
			sig, err := eval.Evaluate(context.Background(), pos, snap, testConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.shouldExit, sig.ShouldExit)
			if tt.shouldExit {
				assert.Equal(t, domain.ReasonTechnicalBreakdown, sig.Reason)
				assert.Equal(t, 3, sig.Urgency)
			}
		})
	}
}

func TestRiskManagement_Evaluate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	eval := NewRiskManagement(func() time.Time { return now })

	tests := []struct {
		name       string
		confidence float64
		held       time.Duration
		price      float64
		shouldExit bool
	}{
		{"confident position untouched", 0.8, 5 * time.Hour, 100.1, false},
		{"low conviction within grace period", 0.4, time.Hour, 100.1, false},
		{"low conviction flat past grace", 0.4, 3 * time.Hour, 100.1, true},
		{"low conviction but moving up", 0.4, 3 * time.Hour, 101.0, false},
		{"low conviction but moving down", 0.4, 3 * time.Hour, 99.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := buyPosition(100.0, tt.confidence, now.Add(-tt.held))
			sig, err := eval.Evaluate(context.Background(), pos, snapshot(tt.price), testConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.shouldExit, sig.ShouldExit)
			if tt.shouldExit {
				assert.Equal(t, domain.ReasonRiskManagement, sig.Reason)
				assert.Equal(t, 2, sig.Urgency)
			}
		})
	}
}
