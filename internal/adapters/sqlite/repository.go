package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exitSentinel/internal/domain"
	"exitSentinel/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.PositionRepository and ports.DecisionRepository
// interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/exit_sentinel.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		entry_price REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		position_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		shares INTEGER NOT NULL,
		status TEXT NOT NULL,
		exit_reason TEXT DEFAULT NULL,
		exit_time TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS exit_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		should_exit INTEGER NOT NULL,
		reason TEXT NOT NULL,
		confidence REAL NOT NULL,
		urgency INTEGER NOT NULL,
		current_price REAL NOT NULL,
		return_pct REAL NOT NULL,
		details TEXT NOT NULL,
		data_source TEXT NOT NULL,
		triggered_count INTEGER NOT NULL,
		error TEXT DEFAULT NULL,
		evaluated_at TIMESTAMP NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_exit_decisions_symbol_time ON exit_decisions (symbol, evaluated_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Create saves a new position and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (symbol, entry_price, entry_time, position_type, confidence, shares, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.Symbol, pos.EntryPrice, pos.EntryTime, string(pos.Type), pos.Confidence, pos.Shares, string(pos.Status))
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id // Update the domain object with the ID
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "symbol": pos.Symbol})
	return id, nil
}

// ClosePosition marks a position as closed with the reason recorded.
func (r *Repository) ClosePosition(ctx context.Context, id int64, reason domain.ExitReason, closedAt time.Time) error {
	const query = `
	UPDATE positions
	SET status = ?, exit_reason = ?, exit_time = ?
	WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.StatusClosed), string(reason), closedAt, id, string(domain.StatusOpen))
	if err != nil {
		return fmt.Errorf("failed to close position ID %d: %w: %w", id, ports.ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected closing position ID %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("open position ID %d not found for close: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position closed", map[string]interface{}{"positionID": id, "reason": string(reason)})
	return nil
}

// FindOpen retrieves all currently open positions, ordered by entry time.
func (r *Repository) FindOpen(ctx context.Context) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, entry_time, position_type, confidence, shares, status
	FROM positions
	WHERE status = ?
	ORDER BY entry_time ASC`

	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindOpen: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, entry_time, position_type, confidence, shares, status
	FROM positions
	WHERE symbol = ? AND status = ?`

	row := r.db.QueryRowContext(ctx, query, symbol, string(domain.StatusOpen))
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No open position found for symbol", map[string]interface{}{"symbol": symbol})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w", symbol, err)
	}
	return pos, nil
}

// FindByID retrieves a position by its unique ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Position, error) {
	const query = `
	SELECT id, symbol, entry_price, entry_time, position_type, confidence, shares, status
	FROM positions
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Position not found by ID", map[string]interface{}{"positionID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query position by ID %d: %w", id, err)
	}
	return pos, nil
}

// --- DecisionRepository Implementation ---

// RecordDecision saves one resolved decision and returns its assigned ID.
func (r *Repository) RecordDecision(ctx context.Context, d *domain.PositionExitDecision) (int64, error) {
	const query = `
	INSERT INTO exit_decisions (symbol, should_exit, reason, confidence, urgency, current_price,
	                            return_pct, details, data_source, triggered_count, error, evaluated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var errStr sql.NullString
	if d.Err != nil {
		errStr = sql.NullString{String: d.Err.Error(), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		d.Symbol, d.ShouldExit, string(d.Reason), d.Confidence, d.Urgency, d.CurrentPrice,
		d.ReturnPct, d.Details, string(d.Source), len(d.TriggeredSignals), errStr, d.EvaluatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert exit decision for symbol %s: %w", d.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for decision %s: %w", d.Symbol, err)
	}
	r.logger.Debug(ctx, "Exit decision recorded", map[string]interface{}{
		"decisionID": id, "symbol": d.Symbol, "reason": string(d.Reason),
	})
	return id, nil
}

// FindRecentDecisions retrieves the most recent decisions for a symbol, up to
// a limit. An empty symbol matches all symbols.
func (r *Repository) FindRecentDecisions(ctx context.Context, symbol string, limit int) ([]*domain.PositionExitDecision, error) {
	const bySymbol = `
	SELECT symbol, should_exit, reason, confidence, urgency, current_price, return_pct, details, data_source, error, evaluated_at
	FROM exit_decisions
	WHERE symbol = ?
	ORDER BY evaluated_at DESC
	LIMIT ?`
	const all = `
	SELECT symbol, should_exit, reason, confidence, urgency, current_price, return_pct, details, data_source, error, evaluated_at
	FROM exit_decisions
	ORDER BY evaluated_at DESC
	LIMIT ?`

	var rows *sql.Rows
	var err error
	if symbol == "" {
		rows, err = r.db.QueryContext(ctx, all, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, bySymbol, symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query exit decisions for symbol %q: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	decisions := make([]*domain.PositionExitDecision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exit decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decision rows: %w", err)
	}
	return decisions, nil
}

// --- Scan Helpers ---

// scanner abstracts over *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	pos := &domain.Position{}
	var posType, status string
	err := s.Scan(&pos.ID, &pos.Symbol, &pos.EntryPrice, &pos.EntryTime, &posType, &pos.Confidence, &pos.Shares, &status)
	if err != nil {
		return nil, err
	}
	pos.Type = domain.PositionType(posType)
	pos.Status = domain.PositionStatus(status)
	return pos, nil
}

func scanDecision(s scanner) (*domain.PositionExitDecision, error) {
	d := &domain.PositionExitDecision{}
	var reason, source string
	var errStr sql.NullString
	err := s.Scan(&d.Symbol, &d.ShouldExit, &reason, &d.Confidence, &d.Urgency, &d.CurrentPrice,
		&d.ReturnPct, &d.Details, &source, &errStr, &d.EvaluatedAt)
	if err != nil {
		return nil, err
	}
	d.Reason = domain.ExitReason(reason)
	d.Source = domain.DataSource(source)
	if errStr.Valid {
		d.Err = errors.New(errStr.String)
	}
	return d, nil
}
