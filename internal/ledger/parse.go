package ledger

import (
	"encoding/csv"
	"errors"
	"strings"
)

// headerTokens mark rows that are repeated headers or model noise. The model
// tends to re-emit a header per page, so these can appear anywhere.
var headerTokens = []string{"date", "description", "amount", "here", "note", "csv"}

// Parse sanitizes csvText and returns the rows it can validate, in the order
// they appear. Rows with fewer than three fields, header echoes and rows
// whose date cannot be normalized are dropped. The first field is the date,
// the last the amount, and everything in between is joined back into the
// description with outer whitespace removed, so an unquoted comma in a
// description survives but cannot be told apart from an extra column.
func Parse(csvText string, defaultYear int) []Row {
	rows := make([]Row, 0)
	for _, record := range tokenize(Sanitize(csvText)) {
		if isEmptyRecord(record) || isHeaderRecord(record) || len(record) < 3 {
			continue
		}

		date := NormalizeDate(record[0], defaultYear)
		if date == "" {
			continue
		}

		rows = append(rows, Row{
			Date:        date,
			Description: strings.TrimSpace(strings.Join(record[1:len(record)-1], ",")),
			Amount:      NormalizeAmount(record[len(record)-1]),
		})
	}
	return rows
}

// tokenize reads text as one CSV document, so quoted fields may span lines.
// A malformed record (such as an unclosed quote) is read again on its own
// line with lazy quoting and reading resumes on the line after it, so one
// stray quote cannot swallow the rest of the document.
func tokenize(text string) [][]string {
	lines := strings.Split(text, "\n")
	records := make([][]string, 0, len(lines))

	for start := 0; start < len(lines); {
		r := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
		r.FieldsPerRecord = -1

		next := len(lines)
		for {
			record, err := r.Read()
			if err == nil {
				records = append(records, record)
				continue
			}

			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				bad := min(max(start, start+parseErr.StartLine-1), len(lines)-1)
				if record, ok := tokenizeLine(lines[bad]); ok {
					records = append(records, record)
				}
				next = bad + 1
			}
			break
		}
		start = next
	}
	return records
}

// tokenizeLine splits a single line, tolerating bare and unclosed quotes
func tokenizeLine(line string) ([]string, bool) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	record, err := r.Read()
	if err != nil {
		return nil, false
	}
	return record, true
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func isHeaderRecord(record []string) bool {
	first := strings.ToLower(strings.TrimSpace(record[0]))
	for _, token := range headerTokens {
		if strings.HasPrefix(first, token) {
			return true
		}
	}
	return false
}
