package matcher

import "errors"

var (
	// ErrObligationNotFound is returned when the obligation does not exist.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrConflict is returned when confirming an obligation that is no longer pending.
	ErrConflict = errors.New("obligation is not pending")

	// ErrInvalidKind is returned for a kind other than pagar or receber.
	ErrInvalidKind = errors.New("invalid obligation kind")

	// ErrInvalidDate is returned when a transaction date cannot be parsed on confirmation.
	ErrInvalidDate = errors.New("invalid transaction date")

	// ErrInvalidAmount is returned for amounts outside statement.AmountInRange.
	ErrInvalidAmount = errors.New("invalid transaction amount")

	// ErrBatchTooLarge is returned when a statement exceeds Config.MaxTransactions.
	ErrBatchTooLarge = errors.New("statement has too many transactions")
)
