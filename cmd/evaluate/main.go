package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"exitSentinel/config"
	"exitSentinel/internal/adapters/binanceclient"
	"exitSentinel/internal/adapters/logger"
	"exitSentinel/internal/adapters/quoteapi"
	"exitSentinel/internal/domain"
	"exitSentinel/internal/engine"
	"exitSentinel/internal/marketdata"
	"exitSentinel/internal/ports"
)

// One-shot evaluation of a hypothetical (or manually tracked) position.
// Useful for checking what the engine would do right now without running the
// monitor daemon or touching the database.
func main() {
	symbol := flag.String("symbol", "ETHUSDT", "trading symbol to evaluate")
	entryPrice := flag.Float64("entry", 0, "entry price of the position (required)")
	posType := flag.String("type", "BUY", "position type: BUY, SELL or HOLD")
	confidence := flag.Float64("confidence", 0.8, "entry signal confidence in [0,1]")
	heldHours := flag.Float64("held", 1, "hours the position has been held")
	shares := flag.Int("shares", 1, "number of shares held")
	flag.Parse()

	if *entryPrice <= 0 {
		log.Fatal("FATAL: -entry is required and must be positive")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)

	primary, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	fallback, err := quoteapi.New(quoteapi.Config{
		BaseURL: cfg.FallbackBaseURL,
		Timeout: cfg.DataTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize fallback quote API client: %v", err)
	}

	chain, err := marketdata.NewChain(marketdata.Config{
		Sources: []ports.MarketDataSource{primary, fallback},
		Timeout: cfg.DataTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data chain: %v", err)
	}

	eng, err := engine.New(engine.Config{
		Logger:   appLogger,
		Provider: chain,
		Engine:   cfg.EngineConfig(),
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize exit strategy engine: %v", err)
	}

	pos := &domain.Position{
		Symbol:     *symbol,
		EntryPrice: *entryPrice,
		EntryTime:  time.Now().Add(-time.Duration(*heldHours * float64(time.Hour))),
		Type:       domain.PositionType(*posType),
		Confidence: *confidence,
		Shares:     *shares,
		Status:     domain.StatusOpen,
	}

	decision := eng.EvaluatePositionExit(context.Background(), pos)
	if decision.Err != nil {
		log.Fatalf("Evaluation incomplete: %v", decision.Err)
	}

	fmt.Printf("Symbol:        %s\n", decision.Symbol)
	fmt.Printf("Should exit:   %v\n", decision.ShouldExit)
	fmt.Printf("Reason:        %s\n", decision.Reason)
	fmt.Printf("Current price: %.4f (source %s)\n", decision.CurrentPrice, decision.Source)
	fmt.Printf("Return:        %.2f%%\n", decision.ReturnPct)
	if decision.ShouldExit {
		fmt.Printf("Urgency:       %d\n", decision.Urgency)
		fmt.Printf("Confidence:    %.2f\n", decision.Confidence)
	}
	fmt.Printf("Details:       %s\n", decision.Details)
	for _, sig := range decision.TriggeredSignals {
		fmt.Printf("  triggered: %s (urgency %d): %s\n", sig.Reason, sig.Urgency, sig.Details)
	}
}
