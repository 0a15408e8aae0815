// Package ledger turns loosely formatted extractor output into
// Date, Description, Amount rows ready for accounting imports.
package ledger

import "regexp"

// DateLayout is the canonical output format for transaction dates
const DateLayout = "01/02/2006"

var (
	canonicalDate   = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	canonicalAmount = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// Row is a single normalized transaction
type Row struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"` // signed decimal, no thousands separators
}

// Valid reports whether the row's date and amount are in canonical form
func (r Row) Valid() bool {
	return canonicalDate.MatchString(r.Date) && canonicalAmount.MatchString(r.Amount)
}
