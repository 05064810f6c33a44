package matcher

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// Score weights
const (
	amountPoints         = 50
	maxDescriptionPoints = 20
	pointsPerSharedToken = 5
	sameDayPoints        = 30
	oneDayPoints         = 20
	twoDayPoints         = 10
	maxScoredDayDistance = 2
)

// scoreTolerance is the exclusive amount difference that earns amountPoints
var scoreTolerance = decimal.New(1, -2)

// Score rates how likely obligation o is the counterpart of tx, from 0 to 100.
// It is the sum of AmountScore, DateScore and DescriptionScore.
func Score(tx statement.Transaction, o Obligation) int {
	return AmountScore(tx.Amount, o.Amount) + DateScore(tx, o) + DescriptionScore(tx.Description, o.Description)
}

// AmountScore is 50 when the amounts differ by less than one centavo.
func AmountScore(txAmount, obligationAmount decimal.Decimal) int {
	if txAmount.Sub(obligationAmount).Abs().LessThan(scoreTolerance) {
		return amountPoints
	}
	return 0
}

// DateScore compares the transaction date with the obligation's reference
// date: 30 for the same day, 20 for one day apart, 10 for two, 0 otherwise.
// Unparsable or missing dates score 0.
func DateScore(tx statement.Transaction, o Obligation) int {
	txDate, ok := tx.CalendarDate()
	if !ok {
		return 0
	}
	ref, ok := o.ReferenceDate()
	if !ok {
		return 0
	}

	switch diff := DaysBetween(txDate, ref); {
	case diff == 0:
		return sameDayPoints
	case diff == 1:
		return oneDayPoints
	case diff <= maxScoredDayDistance:
		return twoDayPoints
	default:
		return 0
	}
}

// DescriptionScore awards 5 points per obligation token that also appears
// in the transaction description, capped at 20. Tokens are lower-cased and
// split on whitespace; repeated obligation tokens count each time.
func DescriptionScore(txDescription, obligationDescription string) int {
	if txDescription == "" || obligationDescription == "" {
		return 0
	}

	txTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(txDescription)) {
		txTokens[tok] = true
	}

	shared := 0
	for _, tok := range strings.Fields(strings.ToLower(obligationDescription)) {
		if txTokens[tok] {
			shared++
		}
	}

	return min(shared*pointsPerSharedToken, maxDescriptionPoints)
}

// DaysBetween returns the absolute number of calendar days between a and b,
// ignoring time of day and location.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
