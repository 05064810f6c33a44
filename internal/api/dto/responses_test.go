package dto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

func TestNewObligationResponse_ExactAmount(t *testing.T) {
	due := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	resp := NewObligationResponse(matcher.Obligation{
		ID:      7,
		Kind:    matcher.KindPayable,
		Amount:  decimal.RequireFromString("1234567.89"),
		DueDate: &due,
		Status:  matcher.StatusPending,
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount":"1234567.89"`)
	assert.Contains(t, string(data), `"due_date":"2024-03-10"`)
	assert.NotContains(t, string(data), "settlement_date")
}

func TestNewStatementResponse_RoundTripsAmounts(t *testing.T) {
	resp := NewStatementResponse("stmt-1", []matcher.MatchSuggestion{{
		Transaction: statement.Transaction{Date: "2024-03-10", Amount: decimal.RequireFromString("0.30")},
		Candidates: []matcher.MatchCandidate{{
			Obligation: matcher.Obligation{ID: 1, Kind: matcher.KindReceivable, Amount: decimal.RequireFromString("0.30")},
			Score:      50,
		}},
	}})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded StatementResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Suggestions, 1)
	assert.True(t, decimal.RequireFromString("0.3").Equal(decoded.Suggestions[0].Transaction.Amount))
	assert.True(t, decoded.Suggestions[0].Candidates[0].Amount.Equal(decoded.Suggestions[0].Transaction.Amount))
	assert.Equal(t, 50, decoded.Suggestions[0].Candidates[0].Score)
}

func TestNewHealthResponse(t *testing.T) {
	assert.Equal(t, "ok", NewHealthResponse(nil).Database)

	degraded := NewHealthResponse(errors.New("connection refused"))
	assert.Equal(t, "degraded", degraded.Status)
	assert.Equal(t, "unavailable", degraded.Database)
}
