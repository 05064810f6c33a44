package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

func date(s string) *time.Time {
	d, err := time.Parse(statement.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAmountScore(t *testing.T) {
	tests := []struct {
		name     string
		tx       string
		o        string
		expected int
	}{
		{"exact", "1500.00", "1500", 50},
		{"just under one centavo", "100.00", "100.009", 50},
		{"exactly one centavo", "100.00", "100.01", 0},
		{"negative side", "100.00", "99.991", 50},
		{"far away", "100", "200", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AmountScore(dec(tt.tx), dec(tt.o)))
		})
	}
}

func TestDateScore(t *testing.T) {
	tests := []struct {
		name     string
		txDate   string
		due      *time.Time
		settled  *time.Time
		expected int
	}{
		{"same day", "2024-03-10", date("2024-03-10"), nil, 30},
		{"one day before", "2024-03-10", date("2024-03-09"), nil, 20},
		{"two days after", "2024-03-10", date("2024-03-12"), nil, 10},
		{"three days", "2024-03-10", date("2024-03-13"), nil, 0},
		{"across month end", "2024-03-01", date("2024-02-29"), nil, 20},
		{"settlement date fallback", "2024-03-10", nil, date("2024-03-10"), 30},
		{"due date wins over settlement", "2024-03-10", date("2024-03-12"), date("2024-03-10"), 10},
		{"no reference date", "2024-03-10", nil, nil, 0},
		{"invalid transaction date", "10/03/2024", date("2024-03-10"), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := statement.Transaction{Date: tt.txDate}
			o := Obligation{DueDate: tt.due, SettlementDate: tt.settled}
			assert.Equal(t, tt.expected, DateScore(tx, o))
		})
	}
}

func TestDescriptionScore(t *testing.T) {
	tests := []struct {
		name     string
		tx       string
		o        string
		expected int
	}{
		{"empty transaction", "", "frete", 0},
		{"empty obligation", "frete", "", 0},
		{"no overlap", "pix recebido", "frete sp", 0},
		{"one shared token", "Frete SP", "frete RJ", 5},
		{"case insensitive", "FRETE SP CLIENTE", "frete sp", 10},
		{"repeated obligation tokens count", "frete", "frete frete frete", 15},
		{"capped at twenty", "a b c d e f", "a b c d e f", 20},
		{"extra whitespace", "  frete\tsp  ", "frete  sp", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DescriptionScore(tt.tx, tt.o))
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	tx := statement.Transaction{Date: "2024-03-10", Amount: dec("1500"), Description: "frete sp cliente x carga"}
	best := Obligation{Amount: dec("1500"), DueDate: date("2024-03-10"), Description: "frete sp cliente x carga"}
	worst := Obligation{Amount: dec("1"), DueDate: date("2025-01-01"), Description: "aluguel"}

	assert.Equal(t, 100, Score(tx, best))
	assert.Equal(t, 0, Score(tx, worst))

	// Deterministic for identical inputs
	for i := 0; i < 10; i++ {
		assert.Equal(t, Score(tx, best), Score(tx, best))
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 12, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))

	// Leap year
	assert.Equal(t, 2, DaysBetween(*date("2024-02-28"), *date("2024-03-01")))
}

func TestRank(t *testing.T) {
	candidates := []MatchCandidate{
		{Obligation: Obligation{ID: 1}, Score: 30},
		{Obligation: Obligation{ID: 2}, Score: 80},
		{Obligation: Obligation{ID: 3}, Score: 80},
		{Obligation: Obligation{ID: 4}, Score: 10},
	}

	ranked := Rank(candidates, 3)
	var ids []int64
	for _, c := range ranked {
		ids = append(ids, c.Obligation.ID)
	}
	assert.Equal(t, []int64{2, 3, 1}, ids, "ties keep discovery order")

	// Input untouched
	assert.Equal(t, int64(1), candidates[0].Obligation.ID)

	assert.Len(t, Rank(candidates, -1), 4)
	assert.Empty(t, Rank(nil, 3))
}

func TestRank_TopThreeOfFive(t *testing.T) {
	var candidates []MatchCandidate
	for i, s := range []int{50, 90, 70, 60, 80} {
		candidates = append(candidates, MatchCandidate{Obligation: Obligation{ID: int64(i + 1)}, Score: s})
	}

	ranked := Rank(candidates, 3)
	assert.Len(t, ranked, 3)
	assert.Equal(t, []int{90, 80, 70}, []int{ranked[0].Score, ranked[1].Score, ranked[2].Score})
}
