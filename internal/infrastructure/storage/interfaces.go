package storage

import (
	"context"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	matcher.Repository
	ObligationRepository
	MatchLogRepository

	// Ping verifies the database is reachable
	Ping(ctx context.Context) error
	Close() error
}

// ObligationRepository handles payable and receivable records
type ObligationRepository interface {
	// CreateObligation inserts an obligation and sets its ID.
	// Status defaults to pending.
	CreateObligation(ctx context.Context, o *matcher.Obligation) error

	// ListObligations returns obligations matching the filters with pagination
	ListObligations(ctx context.Context, filters ObligationFilters) (*ObligationListResult, error)
}

// MatchLogRepository reads the confirmed match audit trail
type MatchLogRepository interface {
	// ListMatchLog returns the most recent confirmations first
	ListMatchLog(ctx context.Context, limit int) ([]matcher.MatchLogEntry, error)
}
