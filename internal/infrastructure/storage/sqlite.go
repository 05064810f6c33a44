package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// Storage provides SQLite database access for obligations.
// It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Storage{db: db, logger: logger}

	// Run all pending migrations
	if err := runMigrations(context.Background(), db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindPendingObligations returns pending obligations within the amount
// tolerance whose due date lies in [q.From, q.To], in insertion order.
func (s *Storage) FindPendingObligations(ctx context.Context, q matcher.LookupQuery) ([]matcher.Obligation, error) {
	schema, err := schemaFor(q.Kind)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := fmt.Sprintf(`
	SELECT id, descricao, valor_centavos, data_vencimento, %s, status
	FROM %s
	WHERE valor_centavos > ? AND valor_centavos < ?
	  AND data_vencimento BETWEEN ? AND ?
	  AND status = ?
	ORDER BY id
	LIMIT ?
	`, schema.settledColumn, schema.table)

	lower := q.Amount.Sub(q.Tolerance).Shift(2).InexactFloat64()
	upper := q.Amount.Add(q.Tolerance).Shift(2).InexactFloat64()

	rows, err := s.db.QueryContext(ctx, query,
		lower,
		upper,
		q.From.Format(statement.DateLayout),
		q.To.Format(statement.DateLayout),
		matcher.StatusPending,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var obligations []matcher.Obligation
	for rows.Next() {
		o, err := scanObligation(rows, q.Kind)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, *o)
	}

	return obligations, rows.Err()
}

// SettleObligation marks a pending obligation as paid or received
func (s *Storage) SettleObligation(ctx context.Context, kind matcher.Kind, id int64, date time.Time) error {
	schema, err := schemaFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s
	SET status = ?, %s = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND status = ?
	`, schema.table, schema.settledColumn)

	result, err := s.db.ExecContext(ctx, query,
		kind.SettledStatus(),
		date.Format(statement.DateLayout),
		id,
		matcher.StatusPending,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing updated: either missing or no longer pending
	var status string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT status FROM %s WHERE id = ?`, schema.table), id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return matcher.ErrObligationNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: status is %s", matcher.ErrConflict, status)
}

// GetObligation retrieves an obligation by kind and ID
func (s *Storage) GetObligation(ctx context.Context, kind matcher.Kind, id int64) (*matcher.Obligation, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, descricao, valor_centavos, data_vencimento, %s, status
	FROM %s WHERE id = ?
	`, schema.settledColumn, schema.table)

	o, err := scanObligation(s.db.QueryRowContext(ctx, query, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matcher.ErrObligationNotFound
	}
	return o, err
}

// CreateObligation inserts an obligation and sets its ID
func (s *Storage) CreateObligation(ctx context.Context, o *matcher.Obligation) error {
	schema, err := schemaFor(o.Kind)
	if err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = matcher.StatusPending
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (descricao, valor_centavos, data_vencimento, %s, status)
	VALUES (?, ?, ?, ?, ?)
	`, schema.table, schema.settledColumn)

	cents := toCents(o.Amount)
	result, err := s.db.ExecContext(ctx, query,
		o.Description,
		cents,
		nullDate(o.DueDate),
		nullDate(o.SettlementDate),
		o.Status,
	)
	if err != nil {
		return err
	}

	o.ID, err = result.LastInsertId()
	o.Amount = fromCents(cents)
	return err
}

// obligationsUnion presents both pools as one relation tagged by kind
const obligationsUnion = `
	SELECT 'pagar' AS tipo, id, descricao, valor_centavos, data_vencimento,
	       data_pagamento AS data_liquidacao, status
	FROM contas_pagar
	UNION ALL
	SELECT 'receber' AS tipo, id, descricao, valor_centavos, data_vencimento,
	       data_recebimento AS data_liquidacao, status
	FROM contas_receber
`

// ListObligations returns obligations ordered by due date
func (s *Storage) ListObligations(ctx context.Context, filters ObligationFilters) (*ObligationListResult, error) {
	filters = normalizeFilters(filters)

	where := `WHERE (? = '' OR tipo = ?) AND (? = '' OR status = ?)`
	args := []any{filters.Kind, filters.Kind, filters.Status, filters.Status}

	var total int
	countQuery := `SELECT COUNT(*) FROM (` + obligationsUnion + `) ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	listQuery := `
	SELECT tipo, id, descricao, valor_centavos, data_vencimento, data_liquidacao, status
	FROM (` + obligationsUnion + `) ` + where + `
	ORDER BY data_vencimento IS NULL, data_vencimento, tipo, id
	LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, listQuery, append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &ObligationListResult{
		Obligations: []matcher.Obligation{},
		TotalCount:  total,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}
	for rows.Next() {
		var kind string
		var (
			o           matcher.Obligation
			cents       int64
			due, settle sql.NullString
			status      string
		)
		if err := rows.Scan(&kind, &o.ID, &o.Description, &cents, &due, &settle, &status); err != nil {
			return nil, err
		}
		o.Kind = matcher.Kind(kind)
		o.Amount = fromCents(cents)
		o.DueDate = parseNullDate(due)
		o.SettlementDate = parseNullDate(settle)
		o.Status = matcher.Status(status)
		result.Obligations = append(result.Obligations, o)
	}

	return result, rows.Err()
}

// LogMatch records a confirmed match in conciliacao_log
func (s *Storage) LogMatch(ctx context.Context, entry *matcher.MatchLogEntry) error {
	query := `
	INSERT INTO conciliacao_log
	(statement_id, tipo, conta_id, data_transacao, valor_transacao,
	 descricao_transacao, confirmado_por, confirmado_em)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		sql.NullString{String: entry.StatementID, Valid: entry.StatementID != ""},
		entry.Kind,
		entry.ObligationID,
		entry.TransactionDate,
		entry.TransactionAmount.String(),
		entry.TransactionDescription,
		sql.NullString{String: entry.ConfirmedBy, Valid: entry.ConfirmedBy != ""},
		entry.ConfirmedAt,
	)
	if err != nil {
		return err
	}

	entry.ID, err = result.LastInsertId()
	return err
}

// ListMatchLog returns recent confirmations, newest first
func (s *Storage) ListMatchLog(ctx context.Context, limit int) ([]matcher.MatchLogEntry, error) {
	if limit <= 0 {
		limit = DefaultMatchLogLimit
	}

	query := `
	SELECT id, statement_id, tipo, conta_id, data_transacao, valor_transacao,
	       descricao_transacao, confirmado_por, confirmado_em
	FROM conciliacao_log
	ORDER BY confirmado_em DESC, id DESC
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []matcher.MatchLogEntry{}
	for rows.Next() {
		var (
			e                        matcher.MatchLogEntry
			statementID, confirmedBy sql.NullString
			kind, amount             string
		)
		err := rows.Scan(
			&e.ID,
			&statementID,
			&kind,
			&e.ObligationID,
			&e.TransactionDate,
			&amount,
			&e.TransactionDescription,
			&confirmedBy,
			&e.ConfirmedAt,
		)
		if err != nil {
			return nil, err
		}
		e.StatementID = statementID.String
		e.ConfirmedBy = confirmedBy.String
		e.Kind = matcher.Kind(kind)
		e.TransactionAmount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("log entry %d: bad amount %q: %w", e.ID, amount, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// scanObligation reads id, descricao, valor_centavos, data_vencimento,
// settlement date and status
func scanObligation(row rowScanner, kind matcher.Kind) (*matcher.Obligation, error) {
	var (
		o           matcher.Obligation
		cents       int64
		due, settle sql.NullString
		status      string
	)
	if err := row.Scan(&o.ID, &o.Description, &cents, &due, &settle, &status); err != nil {
		return nil, err
	}
	o.Kind = kind
	o.Amount = fromCents(cents)
	o.DueDate = parseNullDate(due)
	o.SettlementDate = parseNullDate(settle)
	o.Status = matcher.Status(status)
	return &o, nil
}
