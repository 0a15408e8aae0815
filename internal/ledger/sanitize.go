package ledger

import (
	"regexp"
	"strings"
)

// fenceLine matches markdown fences such as ```, ```csv or """ on a line of their own
var fenceLine = regexp.MustCompile("^\\s*(?:`{3,}|\"{3,}|'{3,})\\s*(?i:csv)?\\s*$")

var commentaryPrefixes = []string{"here is", "note:"}

// IsBlankLine reports whether line holds only whitespace
func IsBlankLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

// IsFenceLine reports whether line is only code-fence or quote decoration
func IsFenceLine(line string) bool {
	return fenceLine.MatchString(line)
}

// IsCommentaryLine reports whether line is model commentary rather than data
func IsCommentaryLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, prefix := range commentaryPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Sanitize drops blank, fence and commentary lines and keeps everything
// else verbatim and in order
func Sanitize(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if IsBlankLine(line) || IsFenceLine(line) || IsCommentaryLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
