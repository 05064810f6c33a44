package matcher

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// Config holds matcher configuration
type Config struct {
	AmountTolerance decimal.Decimal // Default: 0.01 (1 centavo), exclusive
	DateWindowDays  int             // Days either side of the transaction date (default: 2)
	CandidateLimit  int             // Max obligations fetched per kind (default: 5)
	MaxSuggestions  int             // Candidates kept per transaction (default: 3)
	MaxTransactions int             // Max lines per statement, 0 = unlimited (default: 1000)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.New(1, -2),
		DateWindowDays:  2,
		CandidateLimit:  5,
		MaxSuggestions:  3,
		MaxTransactions: 1000,
	}
}

// Kind distinguishes payables from receivables
type Kind string

const (
	KindPayable    Kind = "pagar"
	KindReceivable Kind = "receber"
)

// Kinds lists the obligation pools in lookup order.
var Kinds = []Kind{KindPayable, KindReceivable}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPayable || k == KindReceivable
}

// SettledStatus returns the status an obligation of this kind takes once settled.
func (k Kind) SettledStatus() Status {
	if k == KindReceivable {
		return StatusReceived
	}
	return StatusPaid
}

// Status is the lifecycle state of an obligation
type Status string

const (
	StatusPending  Status = "pendente"
	StatusPaid     Status = "paga"
	StatusReceived Status = "recebida"
)

// Obligation is a payable or receivable owned by the accounts subsystem
type Obligation struct {
	ID             int64
	Kind           Kind
	Description    string
	Amount         decimal.Decimal
	DueDate        *time.Time
	SettlementDate *time.Time // payment date for payables, receipt date for receivables
	Status         Status
}

// ReferenceDate is the date compared against a transaction: the due date
// when present, otherwise the settlement date.
func (o Obligation) ReferenceDate() (time.Time, bool) {
	if o.DueDate != nil {
		return *o.DueDate, true
	}
	if o.SettlementDate != nil {
		return *o.SettlementDate, true
	}
	return time.Time{}, false
}

// MatchCandidate is an obligation proposed for a transaction
type MatchCandidate struct {
	Obligation Obligation
	Score      int // 0-100
}

// MatchSuggestion holds the ranked candidates for one transaction
type MatchSuggestion struct {
	Transaction statement.Transaction
	Candidates  []MatchCandidate
}

// MatchLogEntry records a confirmed match
type MatchLogEntry struct {
	ID                     int64
	StatementID            string
	Kind                   Kind
	ObligationID           int64
	TransactionDate        string
	TransactionAmount      decimal.Decimal
	TransactionDescription string
	ConfirmedBy            string
	ConfirmedAt            time.Time
}
