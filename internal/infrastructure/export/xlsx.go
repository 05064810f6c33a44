// Package export renders match suggestions as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
)

// SheetName is the worksheet holding the suggestions
const SheetName = "Conciliacao"

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header is the first row of the suggestions sheet
var Header = []any{
	"Linha", "Data", "Valor", "Descricao",
	"Sugestao", "Tipo", "Conta", "Descricao da conta", "Valor da conta", "Vencimento", "Score",
}

// WriteSuggestions writes one row per candidate, or a single row with empty
// candidate columns for transactions without candidates.
func WriteSuggestions(w io.Writer, suggestions []matcher.MatchSuggestion) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}

	row := 1
	if err := writeRow(sw, row, header); err != nil {
		return err
	}

	for i, s := range suggestions {
		tx := transactionCells(i+1, s.Transaction)
		if len(s.Candidates) == 0 {
			row++
			if err := writeRow(sw, row, tx); err != nil {
				return err
			}
			continue
		}

		for rank, c := range s.Candidates {
			row++
			cells := append(append([]any{}, tx...), candidateCells(rank+1, c)...)
			if err := writeRow(sw, row, cells); err != nil {
				return err
			}
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(sw *excelize.StreamWriter, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func transactionCells(line int, tx statement.Transaction) []any {
	return []any{line, tx.Date, tx.Amount.InexactFloat64(), tx.Description}
}

func candidateCells(rank int, c matcher.MatchCandidate) []any {
	o := c.Obligation
	due := ""
	if o.DueDate != nil {
		due = o.DueDate.Format(statement.DateLayout)
	}
	return []any{rank, string(o.Kind), o.ID, o.Description, o.Amount.InexactFloat64(), due, c.Score}
}
