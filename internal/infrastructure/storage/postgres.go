package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// auditActionMatch is the audit_log action written for confirmed matches
const auditActionMatch = "CONCILIACAO"

// PostgresStorage reads and settles obligations in the financial
// application's PostgreSQL database. The schema (contas_pagar,
// contas_receber, audit_log) is owned by that application; no migrations
// are run here.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Compile-time check that PostgresStorage implements Repository
var _ Repository = (*PostgresStorage)(nil)

// NewPostgresStorage connects to PostgreSQL and verifies the connection
func NewPostgresStorage(ctx context.Context, url string, logger *slog.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	return &PostgresStorage{pool: pool, logger: logger}, nil
}

// Close closes the connection pool
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks that a pooled connection is usable
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindPendingObligations returns pending obligations within the amount
// tolerance whose due date lies in [q.From, q.To].
func (s *PostgresStorage) FindPendingObligations(ctx context.Context, q matcher.LookupQuery) ([]matcher.Obligation, error) {
	schema, err := schemaFor(q.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, COALESCE(descricao, ''), valor::text, data_vencimento::text, %s::text, status
	FROM %s
	WHERE ABS(valor - $1::numeric) < $2::numeric
	  AND data_vencimento BETWEEN $3::date AND $4::date
	  AND status = $5
	ORDER BY id
	LIMIT $6
	`, schema.settledColumn, schema.table)

	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}

	rows, err := s.pool.Query(ctx, query,
		q.Amount.String(),
		q.Tolerance.String(),
		q.From.Format(statement.DateLayout),
		q.To.Format(statement.DateLayout),
		string(matcher.StatusPending),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []matcher.Obligation
	for rows.Next() {
		o, err := scanPgObligation(rows, q.Kind)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, *o)
	}

	return obligations, rows.Err()
}

// SettleObligation marks a pending obligation as paid or received
func (s *PostgresStorage) SettleObligation(ctx context.Context, kind matcher.Kind, id int64, date time.Time) error {
	schema, err := schemaFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s
	SET status = $1, %s = $2::date, updated_at = CURRENT_TIMESTAMP
	WHERE id = $3 AND status = $4
	`, schema.table, schema.settledColumn)

	tag, err := s.pool.Exec(ctx, query,
		string(kind.SettledStatus()),
		date.Format(statement.DateLayout),
		id,
		string(matcher.StatusPending),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT status FROM %s WHERE id = $1`, schema.table), id,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return matcher.ErrObligationNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: status is %s", matcher.ErrConflict, status)
}

// GetObligation retrieves an obligation by kind and ID
func (s *PostgresStorage) GetObligation(ctx context.Context, kind matcher.Kind, id int64) (*matcher.Obligation, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, COALESCE(descricao, ''), valor::text, data_vencimento::text, %s::text, status
	FROM %s WHERE id = $1
	`, schema.settledColumn, schema.table)

	o, err := scanPgObligation(s.pool.QueryRow(ctx, query, id), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, matcher.ErrObligationNotFound
	}
	return o, err
}

// CreateObligation inserts an obligation and sets its ID
func (s *PostgresStorage) CreateObligation(ctx context.Context, o *matcher.Obligation) error {
	schema, err := schemaFor(o.Kind)
	if err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = matcher.StatusPending
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (descricao, valor, data_vencimento, %s, status)
	VALUES ($1, $2::numeric, $3::date, $4::date, $5)
	RETURNING id
	`, schema.table, schema.settledColumn)

	return s.pool.QueryRow(ctx, query,
		o.Description,
		o.Amount.String(),
		pgDate(o.DueDate),
		pgDate(o.SettlementDate),
		string(o.Status),
	).Scan(&o.ID)
}

// ListObligations returns obligations ordered by due date
func (s *PostgresStorage) ListObligations(ctx context.Context, filters ObligationFilters) (*ObligationListResult, error) {
	filters = normalizeFilters(filters)

	union := `
	SELECT 'pagar' AS tipo, id, COALESCE(descricao, '') AS descricao, valor,
	       data_vencimento, data_pagamento AS data_liquidacao, status
	FROM contas_pagar
	UNION ALL
	SELECT 'receber' AS tipo, id, COALESCE(descricao, ''), valor,
	       data_vencimento, data_recebimento, status
	FROM contas_receber`
	where := `WHERE ($1 = '' OR tipo = $1) AND ($2 = '' OR status = $2)`

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM (`+union+`) o `+where,
		string(filters.Kind), string(filters.Status),
	).Scan(&total)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
	SELECT tipo, id, descricao, valor::text, data_vencimento::text, data_liquidacao::text, status
	FROM (`+union+`) o `+where+`
	ORDER BY data_vencimento NULLS LAST, tipo, id
	LIMIT $3 OFFSET $4`,
		string(filters.Kind), string(filters.Status), filters.Limit, filters.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &ObligationListResult{
		Obligations: []matcher.Obligation{},
		TotalCount:  total,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}
	for rows.Next() {
		var (
			kind                string
			o                   matcher.Obligation
			amount              string
			due, settle, status *string
		)
		if err := rows.Scan(&kind, &o.ID, &o.Description, &amount, &due, &settle, &status); err != nil {
			return nil, err
		}
		if err := fillObligation(&o, matcher.Kind(kind), amount, due, settle, status); err != nil {
			return nil, err
		}
		result.Obligations = append(result.Obligations, o)
	}

	return result, rows.Err()
}

// pgMatchLog is the after_data payload stored in audit_log
type pgMatchLog struct {
	StatementID            string    `json:"statement_id,omitempty"`
	Kind                   string    `json:"tipo"`
	ObligationID           int64     `json:"conta_id"`
	TransactionDate        string    `json:"data_transacao"`
	TransactionAmount      string    `json:"valor_transacao"`
	TransactionDescription string    `json:"descricao_transacao"`
	ConfirmedBy            string    `json:"confirmado_por,omitempty"`
	ConfirmedAt            time.Time `json:"confirmado_em"`
}

// LogMatch records a confirmed match in the application's audit_log
func (s *PostgresStorage) LogMatch(ctx context.Context, entry *matcher.MatchLogEntry) error {
	schema, err := schemaFor(entry.Kind)
	if err != nil {
		return err
	}

	after, err := json.Marshal(pgMatchLog{
		StatementID:            entry.StatementID,
		Kind:                   string(entry.Kind),
		ObligationID:           entry.ObligationID,
		TransactionDate:        entry.TransactionDate,
		TransactionAmount:      entry.TransactionAmount.String(),
		TransactionDescription: entry.TransactionDescription,
		ConfirmedBy:            entry.ConfirmedBy,
		ConfirmedAt:            entry.ConfirmedAt,
	})
	if err != nil {
		return err
	}

	return s.pool.QueryRow(ctx, `
	INSERT INTO audit_log (action, entity_type, entity_id, after_data)
	VALUES ($1, $2, $3, $4)
	RETURNING id`,
		auditActionMatch, schema.table, entry.ObligationID, string(after),
	).Scan(&entry.ID)
}

// ListMatchLog returns recent confirmations, newest first
func (s *PostgresStorage) ListMatchLog(ctx context.Context, limit int) ([]matcher.MatchLogEntry, error) {
	if limit <= 0 {
		limit = DefaultMatchLogLimit
	}

	rows, err := s.pool.Query(ctx, `
	SELECT id, after_data::text
	FROM audit_log
	WHERE action = $1
	ORDER BY id DESC
	LIMIT $2`, auditActionMatch, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []matcher.MatchLogEntry{}
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}

		var payload pgMatchLog
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, fmt.Errorf("audit entry %d: %w", id, err)
		}
		amount, err := decimal.NewFromString(payload.TransactionAmount)
		if err != nil {
			return nil, fmt.Errorf("audit entry %d: bad amount: %w", id, err)
		}

		entries = append(entries, matcher.MatchLogEntry{
			ID:                     id,
			StatementID:            payload.StatementID,
			Kind:                   matcher.Kind(payload.Kind),
			ObligationID:           payload.ObligationID,
			TransactionDate:        payload.TransactionDate,
			TransactionAmount:      amount,
			TransactionDescription: payload.TransactionDescription,
			ConfirmedBy:            payload.ConfirmedBy,
			ConfirmedAt:            payload.ConfirmedAt,
		})
	}

	return entries, rows.Err()
}

func scanPgObligation(row rowScanner, kind matcher.Kind) (*matcher.Obligation, error) {
	var (
		o                   matcher.Obligation
		amount              string
		due, settle, status *string
	)
	if err := row.Scan(&o.ID, &o.Description, &amount, &due, &settle, &status); err != nil {
		return nil, err
	}
	if err := fillObligation(&o, kind, amount, due, settle, status); err != nil {
		return nil, err
	}
	return &o, nil
}

func fillObligation(o *matcher.Obligation, kind matcher.Kind, amount string, due, settle, status *string) error {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("%s %d: bad amount %q: %w", kind, o.ID, amount, err)
	}
	o.Kind = kind
	o.Amount = value
	o.DueDate = parsePgDate(due)
	o.SettlementDate = parsePgDate(settle)
	if status != nil {
		o.Status = matcher.Status(*status)
	}
	return nil
}

func parsePgDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := statement.ParseDate(*s)
	if err != nil {
		return nil
	}
	return &t
}

func pgDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(statement.DateLayout)
	return &s
}
