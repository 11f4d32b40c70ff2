package ports

import (
	"context"
	"time"

	"exitSentinel/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving open
// trading positions. The engine itself only reads positions; writes come from
// the entry side of the system, which is outside this service.
type PositionRepository interface {
	// Create saves a new position and returns its assigned ID.
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	// ClosePosition marks a position as closed with the reason recorded.
	ClosePosition(ctx context.Context, id int64, reason domain.ExitReason, closedAt time.Time) error
	// FindOpen retrieves all currently open positions, ordered by entry time.
	FindOpen(ctx context.Context) ([]*domain.Position, error)
	// FindOpenBySymbol retrieves the open position for a symbol, if any.
	// Returns nil, nil if no open position is found.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// FindByID retrieves a position by its unique ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Position, error)
}

// DecisionRepository defines the interface for the exit-decision audit trail.
type DecisionRepository interface {
	// RecordDecision saves one resolved decision and returns its assigned ID.
	RecordDecision(ctx context.Context, d *domain.PositionExitDecision) (int64, error)
	// FindRecentDecisions retrieves the most recent decisions for a symbol,
	// up to a limit. An empty symbol matches all symbols.
	FindRecentDecisions(ctx context.Context, symbol string, limit int) ([]*domain.PositionExitDecision, error)
}
