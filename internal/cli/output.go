package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/export"
)

// PrintSuggestions prints one block per transaction with its ranked candidates
func PrintSuggestions(w io.Writer, suggestions []matcher.MatchSuggestion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	withCandidates := 0
	for i, s := range suggestions {
		tx := s.Transaction
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n", i+1, tx.Date, tx.Amount.StringFixed(2), tx.Description)
		if len(s.Candidates) == 0 {
			fmt.Fprintln(tw, "\t(no candidates)")
			continue
		}
		withCandidates++
		for _, c := range s.Candidates {
			o := c.Obligation
			due := ""
			if o.DueDate != nil {
				due = o.DueDate.Format(statement.DateLayout)
			}
			fmt.Fprintf(tw, "\t%3d\t%s #%d\t%s\t%s\t%s\n", c.Score, o.Kind, o.ID, o.Amount.StringFixed(2), due, o.Description)
		}
	}

	fmt.Fprintln(tw, strings.Repeat("-", 60))
	fmt.Fprintf(tw, "Summary: Transactions=%d WithCandidates=%d\n", len(suggestions), withCandidates)
}

// PrintConfirmed lists obligations settled by --confirm-min-score
func PrintConfirmed(w io.Writer, confirmed []matcher.Obligation) {
	if len(confirmed) == 0 {
		return
	}
	fmt.Fprintf(w, "\nConfirmed %d match(es):\n", len(confirmed))
	for _, o := range confirmed {
		fmt.Fprintf(w, "  - %s #%d %s -> %s\n", o.Kind, o.ID, o.Amount.StringFixed(2), o.Status)
	}
}

// WriteSuggestionsJSON writes the same document the HTTP API returns
func WriteSuggestionsJSON(w io.Writer, statementID string, suggestions []matcher.MatchSuggestion) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.NewStatementResponse(statementID, suggestions))
}

// WriteSuggestionsXLSX writes the suggestions workbook
func WriteSuggestionsXLSX(w io.Writer, suggestions []matcher.MatchSuggestion) error {
	return export.WriteSuggestions(w, suggestions)
}
