package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// TransactionResponse represents a parsed bank transaction.
// Amounts marshal as exact decimal strings.
type TransactionResponse struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ObligationResponse represents a payable or receivable.
type ObligationResponse struct {
	ID             int64           `json:"id"`
	Kind           string          `json:"kind"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	DueDate        string          `json:"due_date,omitempty"`
	SettlementDate string          `json:"settlement_date,omitempty"`
	Status         string          `json:"status"`
}

// CandidateResponse is an obligation proposed for a transaction.
type CandidateResponse struct {
	ObligationResponse
	Score int `json:"score"`
}

// SuggestionResponse holds the ranked candidates for one transaction.
type SuggestionResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Candidates  []CandidateResponse `json:"candidates"`
}

// StatementResponse is returned after processing a bank statement.
type StatementResponse struct {
	StatementID  string               `json:"statement_id"`
	Transactions int                  `json:"transactions"`
	Suggestions  []SuggestionResponse `json:"suggestions"`
}

// ObligationListResponse is returned when listing obligations.
type ObligationListResponse struct {
	Obligations []ObligationResponse `json:"obligations"`
	TotalCount  int                  `json:"total_count"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// MatchLogEntryResponse represents one confirmed match.
type MatchLogEntryResponse struct {
	ID                     int64           `json:"id"`
	StatementID            string          `json:"statement_id,omitempty"`
	Kind                   string          `json:"kind"`
	ObligationID           int64           `json:"obligation_id"`
	TransactionDate        string          `json:"transaction_date"`
	TransactionAmount      decimal.Decimal `json:"transaction_amount"`
	TransactionDescription string          `json:"transaction_description"`
	ConfirmedBy            string          `json:"confirmed_by,omitempty"`
	ConfirmedAt            string          `json:"confirmed_at"`
}

// MatchLogResponse is returned when listing confirmed matches.
type MatchLogResponse struct {
	Entries []MatchLogEntryResponse `json:"entries"`
	Count   int                     `json:"count"`
}

// NewHealthResponse creates a health response with current timestamp.
// A nil dbErr reports the database as ok.
func NewHealthResponse(dbErr error) HealthResponse {
	resp := HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if dbErr != nil {
		resp.Status = "degraded"
		resp.Database = "unavailable"
	}
	return resp
}

// NewTransactionResponse converts a parsed transaction.
func NewTransactionResponse(tx statement.Transaction) TransactionResponse {
	return TransactionResponse{
		Date:        tx.Date,
		Amount:      tx.Amount,
		Description: tx.Description,
	}
}

// NewObligationResponse converts a domain obligation.
func NewObligationResponse(o matcher.Obligation) ObligationResponse {
	resp := ObligationResponse{
		ID:          o.ID,
		Kind:        string(o.Kind),
		Description: o.Description,
		Amount:      o.Amount,
		Status:      string(o.Status),
	}
	if o.DueDate != nil {
		resp.DueDate = o.DueDate.Format(statement.DateLayout)
	}
	if o.SettlementDate != nil {
		resp.SettlementDate = o.SettlementDate.Format(statement.DateLayout)
	}
	return resp
}

// NewStatementResponse converts match suggestions.
func NewStatementResponse(statementID string, suggestions []matcher.MatchSuggestion) StatementResponse {
	resp := StatementResponse{
		StatementID:  statementID,
		Transactions: len(suggestions),
		Suggestions:  make([]SuggestionResponse, 0, len(suggestions)),
	}

	for _, s := range suggestions {
		sr := SuggestionResponse{
			Transaction: NewTransactionResponse(s.Transaction),
			Candidates:  make([]CandidateResponse, 0, len(s.Candidates)),
		}
		for _, c := range s.Candidates {
			sr.Candidates = append(sr.Candidates, CandidateResponse{
				ObligationResponse: NewObligationResponse(c.Obligation),
				Score:              c.Score,
			})
		}
		resp.Suggestions = append(resp.Suggestions, sr)
	}

	return resp
}

// NewMatchLogResponse converts audit entries.
func NewMatchLogResponse(entries []matcher.MatchLogEntry) MatchLogResponse {
	resp := MatchLogResponse{
		Entries: make([]MatchLogEntryResponse, 0, len(entries)),
		Count:   len(entries),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, MatchLogEntryResponse{
			ID:                     e.ID,
			StatementID:            e.StatementID,
			Kind:                   string(e.Kind),
			ObligationID:           e.ObligationID,
			TransactionDate:        e.TransactionDate,
			TransactionAmount:      e.TransactionAmount,
			TransactionDescription: e.TransactionDescription,
			ConfirmedBy:            e.ConfirmedBy,
			ConfirmedAt:            e.ConfirmedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
