package ledger

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Header is the column header written to every export
var Header = []string{"Date", "Description", "Amount"}

const sheetName = "Transactions"

// ValidRows returns the rows that satisfy the canonical date and amount formats
func ValidRows(rows []Row) []Row {
	valid := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.Valid() {
			valid = append(valid, row)
		}
	}
	return valid
}

// WriteCSV writes a header and one line per valid row
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range ValidRows(rows) {
		if err := cw.Write([]string{row.Date, row.Description, row.Amount}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the valid rows to a single-sheet workbook. Amounts are
// stored as numbers so spreadsheets can total them.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &[]interface{}{Header[0], Header[1], Header[2]}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range ValidRows(rows) {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return fmt.Errorf("parsing amount %q: %w", row.Amount, err)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		values := []interface{}{row.Date, row.Description, amount.InexactFloat64()}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
