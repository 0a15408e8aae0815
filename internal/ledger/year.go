package ledger

import (
	"regexp"
	"strconv"
	"time"
)

var yearToken = regexp.MustCompile(`\b20\d{2}\b`)

// DefaultYear returns the first 20xx year found in text, or now's year
// when the text carries none
func DefaultYear(text string, now time.Time) int {
	if match := yearToken.FindString(text); match != "" {
		if year, err := strconv.Atoi(match); err == nil {
			return year
		}
	}
	return now.Year()
}
