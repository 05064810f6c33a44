package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/export"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

const statementCSV = "data,valor,descricao\n2024-03-10,1500.00,Frete SP\n2024-03-10,80.00,Pedagio\n2024-03-12,5.00,Tarifa"

func day(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func seededMatcher(t *testing.T) (*matcher.Matcher, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	repo.AddObligation(matcher.Obligation{Kind: matcher.KindPayable, Description: "Frete SP Cliente X", Amount: decimal.RequireFromString("1500"), DueDate: day("2024-03-10")})
	// Two equally scored candidates for the toll line
	repo.AddObligation(matcher.Obligation{Kind: matcher.KindPayable, Description: "Pedagio", Amount: decimal.RequireFromString("80"), DueDate: day("2024-03-11")})
	repo.AddObligation(matcher.Obligation{Kind: matcher.KindPayable, Description: "Pedagio", Amount: decimal.RequireFromString("80"), DueDate: day("2024-03-09")})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return matcher.NewMatcher(matcher.DefaultConfig(), repo, logger), repo
}

func TestRunReconcile_Table(t *testing.T) {
	m, _ := seededMatcher(t)

	var out bytes.Buffer
	err := RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: FormatTable}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Regexp(t, `#1\s+2024-03-10\s+1500.00\s+Frete SP`, text)
	assert.Contains(t, text, "pagar #1")
	assert.Contains(t, text, "(no candidates)")
	assert.Contains(t, text, "Summary: Transactions=3 WithCandidates=2")
	assert.NotContains(t, text, "Confirmed")
}

func TestRunReconcile_JSON(t *testing.T) {
	m, _ := seededMatcher(t)

	var out bytes.Buffer
	require.NoError(t, RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: FormatJSON}, &out))

	var response dto.StatementResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &response))
	assert.NotEmpty(t, response.StatementID)
	require.Len(t, response.Suggestions, 3)
	assert.Equal(t, 90, response.Suggestions[0].Candidates[0].Score)
	assert.Len(t, response.Suggestions[1].Candidates, 2)
}

func TestRunReconcile_XLSXToFile(t *testing.T) {
	m, _ := seededMatcher(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	var out bytes.Buffer
	require.NoError(t, RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: FormatXLSX, Output: path}, &out))
	assert.Empty(t, out.String())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 5, "header + 1 + 2 candidates + 1 empty")
}

func TestRunReconcile_ConfirmMinScore(t *testing.T) {
	m, repo := seededMatcher(t)

	var out bytes.Buffer
	require.NoError(t, RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: FormatTable, ConfirmMinScore: 80}, &out))

	assert.Contains(t, out.String(), "Confirmed 1 match(es)")

	settled, err := repo.GetObligation(context.Background(), matcher.KindPayable, 1)
	require.NoError(t, err)
	assert.Equal(t, matcher.StatusPaid, settled.Status)

	// Tied candidates stay pending
	for _, id := range []int64{2, 3} {
		o, err := repo.GetObligation(context.Background(), matcher.KindPayable, id)
		require.NoError(t, err)
		assert.Equal(t, matcher.StatusPending, o.Status)
	}

	entries, err := repo.ListMatchLog(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cli", entries[0].ConfirmedBy)
}

func TestRunReconcile_InvalidFlags(t *testing.T) {
	m, repo := seededMatcher(t)

	err := RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: "csv"}, io.Discard)
	assert.ErrorContains(t, err, "unknown format")

	err = RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: FormatTable, ConfirmMinScore: 101}, io.Discard)
	assert.Error(t, err)

	assert.Empty(t, repo.FindCalls, "flags are validated before matching")
}

func TestRootCommand_Migrate(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  database_path: "+dbPath+"\nobservability:\n  logging:\n    level: error\n"), 0644))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"migrate", "--config", configPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "schema version 2")
}

func TestRootCommand_ReconcileAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	configPath := filepath.Join(dir, "config.yaml")
	statementPath := filepath.Join(dir, "extrato.csv")
	require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  database_path: "+dbPath+"\nobservability:\n  logging:\n    level: error\n"), 0644))
	require.NoError(t, os.WriteFile(statementPath, []byte(statementCSV), 0644))

	store, err := storage.NewStorage(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, store.CreateObligation(context.Background(), &matcher.Obligation{
		Kind: matcher.KindReceivable, Description: "Frete SP", Amount: decimal.RequireFromString("1500.00"), DueDate: day("2024-03-11"),
	}))
	require.NoError(t, store.Close())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"reconcile", statementPath, "--config", configPath, "--format", "json"})

	require.NoError(t, cmd.Execute())

	var response dto.StatementResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &response))
	require.Len(t, response.Suggestions, 3)
	require.Len(t, response.Suggestions[0].Candidates, 1)
	assert.Equal(t, "receber", response.Suggestions[0].Candidates[0].Kind)
	assert.Equal(t, 80, response.Suggestions[0].Candidates[0].Score)
}

func TestRootCommand_MissingExplicitConfig(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	assert.Error(t, cmd.Execute())
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseOutput(t *testing.T) {
	diskFull := errors.New("no space left on device")
	writeErr := errors.New("write failed")

	assert.NoError(t, closeOutput(failingCloser{}, nil))
	assert.ErrorIs(t, closeOutput(failingCloser{err: diskFull}, nil), diskFull)
	assert.ErrorIs(t, closeOutput(failingCloser{err: diskFull}, writeErr), writeErr, "write error takes precedence")
	assert.ErrorIs(t, closeOutput(failingCloser{}, writeErr), writeErr)
}

func TestRunReconcile_OutputFileIsClosed(t *testing.T) {
	m := matcher.NewMatcher(matcher.DefaultConfig(), storage.NewMockRepository(), nil)
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, RunReconcile(context.Background(), m, statementCSV, &ReconcileFlags{Format: FormatJSON, Output: path}, io.Discard))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var response dto.StatementResponse
	require.NoError(t, json.Unmarshal(data, &response))
	assert.Len(t, response.Suggestions, 3)
}
