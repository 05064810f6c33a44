// Package statement parses raw bank-statement extracts into transactions.
//
// Parsing is deliberately lenient: a malformed line never fails the whole
// extract. Non-numeric amounts become zero and missing descriptions become
// empty strings. Dates are kept as written and only interpreted later by
// the matcher.
//
// Example usage:
//
//	txs := statement.Parse("date,valor,descricao\n2024-03-10,1500.00,Frete SP")
//	for _, tx := range txs {
//		fmt.Println(tx.Date, tx.Amount, tx.Description)
//	}
package statement

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// DateLayout is the calendar date format used in extracts and storage.
const DateLayout = "2006-01-02"

// Transaction is a single line of a bank statement
type Transaction struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CalendarDate interprets the raw date. ok is false when the date cannot be parsed.
func (t Transaction) CalendarDate() (time.Time, bool) {
	d, err := ParseDate(t.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Amounts outside these bounds parse as zero. Decimal arithmetic rescales
// by the exponent, so an unbounded exponent stalls every later comparison.
const (
	maxAmountExponent = 15
	minAmountExponent = -8
)

// maxAmount is the exclusive upper bound on an amount's magnitude
var maxAmount = decimal.New(1, maxAmountExponent)

// leadingNumber matches the numeric prefix a lenient float parser accepts
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Parse converts a raw comma-separated extract into transactions.
// The first non-blank line is the header and is always skipped.
func Parse(raw string) []Transaction {
	raw = decodeText(raw)

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	transactions := make([]Transaction, 0, len(lines))
	for i := 1; i < len(lines); i++ {
		transactions = append(transactions, parseLine(lines[i]))
	}
	return transactions
}

func parseLine(line string) Transaction {
	values := strings.Split(line, ",")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}

	tx := Transaction{Amount: decimal.Zero}
	if len(values) > 0 {
		tx.Date = values[0]
	}
	if len(values) > 1 {
		tx.Amount = ParseAmount(values[1])
	}
	if len(values) > 2 {
		tx.Description = values[2]
	}
	return tx
}

// ParseAmount reads the longest numeric prefix of s, returning zero when
// there is none ("12.5abc" is 12.5, "abc" is 0) or when the value is out
// of range (see AmountInRange).
func ParseAmount(s string) decimal.Decimal {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return decimal.Zero
	}
	// A trailing dot ("12.") is accepted by the prefix but not by decimal
	m = strings.Replace(m, ".e", "e", 1)
	m = strings.Replace(m, ".E", "E", 1)
	m = strings.TrimSuffix(m, ".")
	d, err := decimal.NewFromString(m)
	if err != nil || !AmountInRange(d) {
		return decimal.Zero
	}
	return d
}

// AmountInRange reports whether d is a usable money value: magnitude below
// 10^15 and no more than 8 decimal places. The exponent is checked first so
// no arithmetic runs on hostile input.
func AmountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > maxAmountExponent || exp < minAmountExponent {
		return false
	}
	return d.Abs().LessThan(maxAmount)
}

// ParseDate parses an ISO calendar date, also accepting a full timestamp
// whose first ten characters are the date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ') {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// decodeText converts ISO-8859-1 extracts to UTF-8. Valid UTF-8 is returned unchanged.
func decodeText(raw string) string {
	if utf8.ValidString(raw) {
		return raw
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return decoded
}
