package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"exitSentinel/config"
	"exitSentinel/internal/adapters/binanceclient"
	"exitSentinel/internal/adapters/logger"
	"exitSentinel/internal/adapters/quoteapi"
	"exitSentinel/internal/adapters/sqlite"
	"exitSentinel/internal/app"
	"exitSentinel/internal/engine"
	"exitSentinel/internal/marketdata"
	"exitSentinel/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Market Data Sources and the Failover Chain
	primary, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	fallback, err := quoteapi.New(quoteapi.Config{
		BaseURL: cfg.FallbackBaseURL,
		Timeout: cfg.DataTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize fallback quote API client")
		log.Fatalf("FATAL: Failed to initialize fallback quote API client: %v", err)
	}

	chain, err := marketdata.NewChain(marketdata.Config{
		Sources: []ports.MarketDataSource{primary, fallback},
		Timeout: cfg.DataTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data chain")
		log.Fatalf("FATAL: Failed to initialize market data chain: %v", err)
	}
	appLogger.Info(context.Background(), "Market data provider chain initialized")

	// 5. Initialize the Exit Strategy Engine
	eng, err := engine.New(engine.Config{
		Logger:   appLogger,
		Provider: chain,
		Engine:   cfg.EngineConfig(),
		Workers:  cfg.Workers,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize exit strategy engine")
		log.Fatalf("FATAL: Failed to initialize exit strategy engine: %v", err)
	}
	appLogger.Info(context.Background(), "Exit strategy engine initialized")

	// 6. Initialize and Start the Monitor Service
	monitor, err := app.NewMonitorService(app.Config{
		Logger:       appLogger,
		Engine:       eng,
		Positions:    repo,
		Decisions:    repo,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize monitor service")
		log.Fatalf("FATAL: Failed to initialize monitor service: %v", err)
	}

	if err := monitor.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Monitor service exited with error")
		log.Fatalf("FATAL: Monitor service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
