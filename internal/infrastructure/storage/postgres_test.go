package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
)

// pgTestSchema mirrors the tables the financial application owns.
const pgTestSchema = `
CREATE TABLE IF NOT EXISTS contas_pagar (
	id SERIAL PRIMARY KEY,
	descricao TEXT,
	valor NUMERIC(12,2) NOT NULL,
	data_vencimento DATE NOT NULL,
	data_pagamento DATE,
	status VARCHAR(20) DEFAULT 'pendente',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS contas_receber (
	id SERIAL PRIMARY KEY,
	descricao TEXT,
	valor NUMERIC(12,2) NOT NULL,
	data_vencimento DATE NOT NULL,
	data_recebimento DATE,
	status VARCHAR(20) DEFAULT 'pendente',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS audit_log (
	id SERIAL PRIMARY KEY,
	action VARCHAR(50) NOT NULL,
	entity_type VARCHAR(50),
	entity_id INTEGER,
	after_data JSONB,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
TRUNCATE contas_pagar, contas_receber, audit_log RESTART IDENTITY;
`

// newTestPostgres connects to RECONCILE_TEST_POSTGRES_URL, which must point
// at a scratch database: its obligation tables are truncated.
func newTestPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	url := os.Getenv("RECONCILE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("RECONCILE_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStorage(ctx, url, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.pool.Exec(ctx, pgTestSchema)
	require.NoError(t, err)
	return store
}

func TestPostgresStorage_FindAndSettle(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	exact := &matcher.Obligation{Kind: matcher.KindPayable, Description: "Frete SP", Amount: money("1000.00"), DueDate: day("2024-03-01")}
	near := &matcher.Obligation{Kind: matcher.KindPayable, Description: "Pedagio", Amount: money("999.99"), DueDate: day("2024-03-03")}
	far := &matcher.Obligation{Kind: matcher.KindPayable, Description: "Diesel", Amount: money("1000.00"), DueDate: day("2024-03-04")}
	off := &matcher.Obligation{Kind: matcher.KindPayable, Description: "Seguro", Amount: money("1000.01"), DueDate: day("2024-03-01")}
	for _, o := range []*matcher.Obligation{exact, near, far, off} {
		require.NoError(t, store.CreateObligation(ctx, o))
	}

	found, err := store.FindPendingObligations(ctx, lookup(matcher.KindPayable, "1000.00", "2024-02-28", "2024-03-03"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, exact.ID, found[0].ID)
	assert.Equal(t, matcher.KindPayable, found[0].Kind)

	found, err = store.FindPendingObligations(ctx, lookup(matcher.KindPayable, "999.995", "2024-02-28", "2024-03-03"))
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, store.SettleObligation(ctx, matcher.KindPayable, exact.ID, *day("2024-03-02")))

	got, err := store.GetObligation(ctx, matcher.KindPayable, exact.ID)
	require.NoError(t, err)
	assert.Equal(t, matcher.StatusPaid, got.Status)
	require.NotNil(t, got.SettlementDate)
	assert.Equal(t, "2024-03-02", got.SettlementDate.Format("2006-01-02"))

	err = store.SettleObligation(ctx, matcher.KindPayable, exact.ID, *day("2024-03-02"))
	assert.ErrorIs(t, err, matcher.ErrConflict)

	err = store.SettleObligation(ctx, matcher.KindReceivable, 9999, *day("2024-03-02"))
	assert.ErrorIs(t, err, matcher.ErrObligationNotFound)

	_, err = store.GetObligation(ctx, matcher.KindReceivable, 9999)
	assert.ErrorIs(t, err, matcher.ErrObligationNotFound)
}

func TestPostgresStorage_ListAndMatchLog(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	payable := &matcher.Obligation{Kind: matcher.KindPayable, Description: "Frete", Amount: money("100.00"), DueDate: day("2024-03-05")}
	receivable := &matcher.Obligation{Kind: matcher.KindReceivable, Description: "Cliente X", Amount: money("250.50"), DueDate: day("2024-03-01")}
	require.NoError(t, store.CreateObligation(ctx, payable))
	require.NoError(t, store.CreateObligation(ctx, receivable))

	all, err := store.ListObligations(ctx, ObligationFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalCount)
	require.Len(t, all.Obligations, 2)
	assert.Equal(t, matcher.KindReceivable, all.Obligations[0].Kind)

	onlyPayables, err := store.ListObligations(ctx, ObligationFilters{Kind: matcher.KindPayable})
	require.NoError(t, err)
	assert.Equal(t, 1, onlyPayables.TotalCount)

	for _, id := range []int64{payable.ID, receivable.ID} {
		require.NoError(t, store.LogMatch(ctx, &matcher.MatchLogEntry{
			StatementID:       "stmt-1",
			Kind:              matcher.KindPayable,
			ObligationID:      id,
			TransactionDate:   "2024-03-05",
			TransactionAmount: money("100.00"),
			ConfirmedBy:       "tester",
		}))
	}

	entries, err := store.ListMatchLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, receivable.ID, entries[0].ObligationID)
	assert.Equal(t, "stmt-1", entries[0].StatementID)
	assert.True(t, money("100").Equal(entries[0].TransactionAmount))
}
