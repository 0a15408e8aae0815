package ledger

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// dashes that statements use in place of a slash: en dash, em dash,
// minus sign, figure dash
var dashReplacer = strings.NewReplacer("–", "/", "—", "/", "−", "/", "‒", "/")

// Month-first layouts come before their day-first twins so that ambiguous
// dates such as 03/04/2023 resolve to March 4.
var datedLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006/1/2",
	"2006-1-2",
	"1-2-2006",
	"1-2-06",
	"1.2.2006",
	"1.2.06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"Jan. 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2/Jan/2006",
	"Jan/2/2006",
	"2-Jan-06",
	"January 2006",
	"Jan 2006",
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2-1-06",
	"2.1.2006",
	"2.1.06",
}

var yearlessLayouts = []string{
	"1/2",
	"1-2",
	"1.2",
	"Jan 2",
	"Jan. 2",
	"January 2",
	"2 Jan",
	"2 January",
	"2-Jan",
	"2/Jan",
	"Jan/2",
	"2/1",
	"2-1",
}

// embeddedDate finds a date-looking token inside surrounding text
var embeddedDate = regexp.MustCompile(`(?i)\d{4}[/.-]\d{1,2}[/.-]\d{1,2}` +
	`|\d{1,2}[/.-]\d{1,2}(?:[/.-]\d{2,4})?` +
	`|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?` +
	`|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*(?:\s+\d{4})?`)

var (
	allDigits = regexp.MustCompile(`^\d+$`)
	fullYear  = regexp.MustCompile(`\d{4}`)
	bareYear  = regexp.MustCompile(`^(?:19|20)\d{2}$`)

	// "Sept" is common on statements but Go only knows "Sep"
	septAbbrev = regexp.MustCompile(`(?i)\bsept\b\.?`)
)

// NormalizeDate parses a loosely formatted date into MM/DD/YYYY. Missing
// components are taken from January 1st of defaultYear. It returns "" when
// the value cannot be read as a date.
func NormalizeDate(raw string, defaultYear int) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	value = dashReplacer.Replace(value)
	value = septAbbrev.ReplaceAllString(value, "Sep")

	if bareYear.MatchString(value) {
		return "01/01/" + value
	}
	if t, ok := parseLayouts(value, defaultYear); ok {
		return t.Format(DateLayout)
	}
	if t, ok := parseGeneral(value, defaultYear); ok {
		return t.Format(DateLayout)
	}
	for _, token := range embeddedDate.FindAllString(value, -1) {
		if t, ok := parseLayouts(token, defaultYear); ok {
			return t.Format(DateLayout)
		}
	}
	return ""
}

func parseLayouts(value string, defaultYear int) (time.Time, bool) {
	value = strings.Join(strings.Fields(value), " ")
	for _, layout := range datedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return withYear(t, defaultYear)
		}
	}
	return time.Time{}, false
}

// parseGeneral handles the long tail (weekday prefixes, timestamps, ISO
// variants) with a month-first general purpose parser. Only values carrying
// a four digit year get here; short forms like 02/29 would otherwise be read
// as month/year.
func parseGeneral(value string, defaultYear int) (time.Time, bool) {
	if !fullYear.MatchString(value) || (allDigits.MatchString(value) && len(value) != 8) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(value, time.UTC, dateparse.PreferMonthFirst(true))
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() == 0 {
		return withYear(t, defaultYear)
	}
	return t, true
}

// withYear moves a yearless date into year, rejecting days that do not
// exist there (Feb 29 outside leap years)
func withYear(t time.Time, year int) (time.Time, bool) {
	moved := time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if moved.Month() != t.Month() || moved.Day() != t.Day() {
		return time.Time{}, false
	}
	return moved, true
}
