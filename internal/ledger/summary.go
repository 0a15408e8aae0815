package ledger

import "github.com/shopspring/decimal"

// Summary totals a set of rows. Credits are positive amounts, debits negative.
type Summary struct {
	Count   int             `json:"count"`
	Credits decimal.Decimal `json:"credits"`
	Debits  decimal.Decimal `json:"debits"`
	Net     decimal.Decimal `json:"net"`
}

// Summarize totals the valid rows
func Summarize(rows []Row) Summary {
	var s Summary
	for _, row := range ValidRows(rows) {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			continue
		}
		s.Count++
		if amount.IsNegative() {
			s.Debits = s.Debits.Add(amount)
		} else {
			s.Credits = s.Credits.Add(amount)
		}
	}
	s.Net = s.Credits.Add(s.Debits)
	return s
}
