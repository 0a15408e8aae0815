package ledger

import (
	"regexp"
	"strings"
)

var (
	amountCleaner = strings.NewReplacer(",", "", "$", "")
	parenthesized = regexp.MustCompile(`^\(\$?([\d,.]+)\)$`)
)

// NormalizeAmount converts accounting-style amounts into a signed decimal string.
//
//	(1,234.56) -> -1234.56
//	45.00-     -> -45.00
//	$2,000     -> 2000
//
// It never fails; input it cannot interpret comes back cleaned but otherwise
// untouched, and Row.Valid will reject it.
func NormalizeAmount(raw string) string {
	cleaned := strings.TrimSpace(amountCleaner.Replace(raw))

	if m := parenthesized.FindStringSubmatch(cleaned); m != nil {
		return "-" + m[1]
	}

	if strings.HasSuffix(cleaned, "-") {
		return "-" + strings.TrimSpace(strings.TrimSuffix(cleaned, "-"))
	}

	return cleaned
}
