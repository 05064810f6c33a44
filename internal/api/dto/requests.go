package dto

import "github.com/shopspring/decimal"

// TransactionRequest is a bank transaction echoed back by the client.
// Amount accepts a JSON number or string.
type TransactionRequest struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ConfirmMatchRequest is the body of POST /api/conciliacao/confirmar-match.
type ConfirmMatchRequest struct {
	Transaction  TransactionRequest `json:"transaction"`
	ObligationID int64              `json:"obligation_id"`
	Kind         string             `json:"kind"`
	StatementID  string             `json:"statement_id,omitempty"`
}

// CreateObligationRequest is the body of POST /api/obligations.
type CreateObligationRequest struct {
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
}

// ObligationListParams represents query parameters for listing obligations.
type ObligationListParams struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// DefaultObligationListParams returns default values for obligation list params.
func DefaultObligationListParams() ObligationListParams {
	return ObligationListParams{
		Limit:  50,
		Offset: 0,
	}
}
