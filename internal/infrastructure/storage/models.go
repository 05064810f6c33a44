package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// Default page sizes
const (
	DefaultListLimit     = 50
	DefaultMatchLogLimit = 50
)

// ObligationFilters defines filters for listing obligations
type ObligationFilters struct {
	Kind   matcher.Kind   // Filter by kind (empty = both)
	Status matcher.Status // Filter by status (empty = all)
	Limit  int            // Max results (0 = default 50)
	Offset int            // Pagination offset
}

// ObligationListResult contains paginated obligation results
type ObligationListResult struct {
	Obligations []matcher.Obligation
	TotalCount  int
	Limit       int
	Offset      int
}

// kindSchema maps an obligation kind to its table
type kindSchema struct {
	table         string
	settledColumn string
}

func schemaFor(kind matcher.Kind) (kindSchema, error) {
	switch kind {
	case matcher.KindPayable:
		return kindSchema{table: "contas_pagar", settledColumn: "data_pagamento"}, nil
	case matcher.KindReceivable:
		return kindSchema{table: "contas_receber", settledColumn: "data_recebimento"}, nil
	default:
		return kindSchema{}, fmt.Errorf("%w: %q", matcher.ErrInvalidKind, kind)
	}
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx rows
type rowScanner interface {
	Scan(dest ...any) error
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(statement.DateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := statement.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func normalizeFilters(f ObligationFilters) ObligationFilters {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
