// Package matcher reconciles bank-statement transactions with open
// payables and receivables.
//
// For every transaction the matcher looks up pending obligations whose
// amount is within one centavo and whose due date falls within two days
// of the transaction, scores each one and keeps the best three:
//   - Amount within tolerance: 50 points
//   - Date distance of 0, 1 or 2 days: 30, 20 or 10 points
//   - Shared description words: 5 points each, up to 20
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig(), repo, logger)
//	suggestions, err := m.ProcessStatement(ctx, csvText)
//	for _, s := range suggestions {
//		if len(s.Candidates) > 0 {
//			best := s.Candidates[0]
//			_, err = m.ConfirmMatch(ctx, matcher.Confirmation{
//				Transaction:  s.Transaction,
//				ObligationID: best.Obligation.ID,
//				Kind:         best.Obligation.Kind,
//			})
//		}
//	}
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// LookupQuery selects pending obligations of one kind around a transaction
type LookupQuery struct {
	Kind      Kind
	Amount    decimal.Decimal
	Tolerance decimal.Decimal // exclusive: |amount - Amount| < Tolerance
	From      time.Time       // inclusive due date bounds
	To        time.Time
	Limit     int
}

// Repository is the obligation store the matcher reads and settles.
type Repository interface {
	// FindPendingObligations returns at most q.Limit pending obligations
	// matching the amount tolerance and due date window.
	FindPendingObligations(ctx context.Context, q LookupQuery) ([]Obligation, error)

	// SettleObligation marks a pending obligation as settled on date.
	// Returns ErrObligationNotFound or ErrConflict when nothing was updated.
	SettleObligation(ctx context.Context, kind Kind, id int64, date time.Time) error

	// GetObligation retrieves one obligation.
	GetObligation(ctx context.Context, kind Kind, id int64) (*Obligation, error)

	// LogMatch records a confirmed match.
	LogMatch(ctx context.Context, entry *MatchLogEntry) error
}

// Matcher produces match suggestions and applies confirmations
type Matcher struct {
	config Config
	repo   Repository
	logger *slog.Logger
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config, repo Repository, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		config: config,
		repo:   repo,
		logger: logger,
	}
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// ProcessStatement parses a raw CSV extract and returns one suggestion per
// transaction, in input order.
func (m *Matcher) ProcessStatement(ctx context.Context, raw string) ([]MatchSuggestion, error) {
	return m.Match(ctx, statement.Parse(raw))
}

// Match returns one suggestion per transaction, in input order.
// Any lookup failure fails the whole batch.
func (m *Matcher) Match(ctx context.Context, transactions []statement.Transaction) ([]MatchSuggestion, error) {
	if m.config.MaxTransactions > 0 && len(transactions) > m.config.MaxTransactions {
		return nil, fmt.Errorf("%w: %d lines, limit %d", ErrBatchTooLarge, len(transactions), m.config.MaxTransactions)
	}

	suggestions := make([]MatchSuggestion, 0, len(transactions))
	for i, tx := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		suggestion, err := m.Suggest(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		suggestions = append(suggestions, suggestion)
	}

	m.logger.Debug("statement matched",
		"transactions", len(transactions),
		"with_candidates", countWithCandidates(suggestions))

	return suggestions, nil
}

// Suggest finds and ranks candidates for a single transaction.
// A transaction with an unparsable date or an out-of-range amount gets no
// candidates.
func (m *Matcher) Suggest(ctx context.Context, tx statement.Transaction) (MatchSuggestion, error) {
	suggestion := MatchSuggestion{
		Transaction: tx,
		Candidates:  []MatchCandidate{},
	}

	date, ok := tx.CalendarDate()
	if !ok {
		m.logger.Debug("skipping transaction with invalid date", "date", tx.Date)
		return suggestion, nil
	}
	if !statement.AmountInRange(tx.Amount) {
		m.logger.Debug("skipping transaction with out-of-range amount")
		return suggestion, nil
	}

	var candidates []MatchCandidate
	for _, kind := range Kinds {
		obligations, err := m.repo.FindPendingObligations(ctx, LookupQuery{
			Kind:      kind,
			Amount:    tx.Amount,
			Tolerance: m.config.AmountTolerance,
			From:      date.AddDate(0, 0, -m.config.DateWindowDays),
			To:        date.AddDate(0, 0, m.config.DateWindowDays),
			Limit:     m.config.CandidateLimit,
		})
		if err != nil {
			return suggestion, fmt.Errorf("lookup %s: %w", kind, err)
		}

		for _, o := range obligations {
			candidates = append(candidates, MatchCandidate{
				Obligation: o,
				Score:      Score(tx, o),
			})
		}
	}

	suggestion.Candidates = Rank(candidates, m.config.MaxSuggestions)
	return suggestion, nil
}

// Confirmation identifies the obligation chosen for a transaction
type Confirmation struct {
	Transaction  statement.Transaction
	ObligationID int64
	Kind         Kind
	StatementID  string // optional, correlates with a ProcessStatement call
	ConfirmedBy  string // optional
}

// ConfirmMatch settles the chosen obligation using the transaction date and
// returns its updated state. Obligations that are no longer pending yield
// ErrConflict rather than being settled twice.
func (m *Matcher) ConfirmMatch(ctx context.Context, c Confirmation) (*Obligation, error) {
	if !c.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, c.Kind)
	}

	date, ok := c.Transaction.CalendarDate()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, c.Transaction.Date)
	}
	if !statement.AmountInRange(c.Transaction.Amount) {
		return nil, ErrInvalidAmount
	}

	if err := m.repo.SettleObligation(ctx, c.Kind, c.ObligationID, date); err != nil {
		return nil, fmt.Errorf("settle %s %d: %w", c.Kind, c.ObligationID, err)
	}

	entry := &MatchLogEntry{
		StatementID:            c.StatementID,
		Kind:                   c.Kind,
		ObligationID:           c.ObligationID,
		TransactionDate:        date.Format(statement.DateLayout),
		TransactionAmount:      c.Transaction.Amount,
		TransactionDescription: c.Transaction.Description,
		ConfirmedBy:            c.ConfirmedBy,
		ConfirmedAt:            time.Now().UTC(),
	}
	if err := m.repo.LogMatch(ctx, entry); err != nil {
		m.logger.Warn("failed to record match", "kind", c.Kind, "obligation_id", c.ObligationID, "error", err)
	}

	m.logger.Info("match confirmed",
		"kind", c.Kind,
		"obligation_id", c.ObligationID,
		"date", entry.TransactionDate)

	updated, err := m.repo.GetObligation(ctx, c.Kind, c.ObligationID)
	if err != nil {
		return nil, fmt.Errorf("reload %s %d: %w", c.Kind, c.ObligationID, err)
	}
	return updated, nil
}

func countWithCandidates(suggestions []MatchSuggestion) int {
	n := 0
	for _, s := range suggestions {
		if len(s.Candidates) > 0 {
			n++
		}
	}
	return n
}
