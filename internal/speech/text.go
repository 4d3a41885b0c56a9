package speech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	listMarkerPattern    = regexp.MustCompile(`(?m)^[ \t]*[-*+•][ \t]+`)
	numberedPattern      = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	blockquotePattern    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]*`)
	tableSepPattern      = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*$`)
	tableRowPattern      = regexp.MustCompile(`(?m)^[ \t]*\|.*$`)
	ruleLinePattern      = regexp.MustCompile(`(?m)^[ \t]*[-=_]{3,}[ \t]*$`)
	headingPattern       = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	boldPattern          = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnderPattern     = regexp.MustCompile(`__(.*?)__`)
	italicPattern        = regexp.MustCompile(`\*(.*?)\*`)
	strikePattern        = regexp.MustCompile(`~~(.*?)~~`)
	inlineCodePattern    = regexp.MustCompile("`(.*?)`")
	bracketPattern       = regexp.MustCompile(`[\[\](){}]`)
	blankLinePattern     = regexp.MustCompile(`\n\s*\n`)
	doublePeriodPattern  = regexp.MustCompile(`\.\s*\.`)
	punctBeforeStop      = regexp.MustCompile(`([,:;!?])\s*\.`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	commaSpacingPattern  = regexp.MustCompile(`\s*,\s*([^\d\s]|$)`)
	colonSpacingPattern  = regexp.MustCompile(`\s*:\s*([^\d\s]|$)`)
	semiSpacingPattern   = regexp.MustCompile(`\s*;\s*`)
	bangSpacingPattern   = regexp.MustCompile(`\s*!\s*`)
	questSpacingPattern  = regexp.MustCompile(`\s*\?\s*`)
	periodSpacingPattern = regexp.MustCompile(`\s+\.`)
)

// urgencyKeywords shift local delivery to the slower, deeper alert voice.
var urgencyKeywords = []string{
	"terrain", "glideslope", "emergency", "critical", "warning", "alert",
	"stall", "altitude", "minimum", "pull-up", "go-around", "immediate",
	"dangerous", "unsafe", "failure", "malfunction", "crash", "fatal",
}

// CleanText turns advisory markdown into prose both providers can read aloud.
// Emphasis, headings, list markers, table pipes and brackets are removed while
// their words stay; line breaks become sentence separators and spacing is
// normalized. It is pure.
func CleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	out := stripEmoji(strings.ReplaceAll(text, "\r\n", "\n"))

	out = tableSepPattern.ReplaceAllString(out, "")
	out = tableRowPattern.ReplaceAllStringFunc(out, tableCells)
	out = ruleLinePattern.ReplaceAllString(out, "")
	out = headingPattern.ReplaceAllString(out, "")
	out = listMarkerPattern.ReplaceAllString(out, "")
	out = numberedPattern.ReplaceAllString(out, "")
	out = blockquotePattern.ReplaceAllString(out, "")

	out = boldPattern.ReplaceAllString(out, "$1")
	out = boldUnderPattern.ReplaceAllString(out, "$1")
	out = italicPattern.ReplaceAllString(out, "$1")
	out = strikePattern.ReplaceAllString(out, "$1")
	out = inlineCodePattern.ReplaceAllString(out, "$1")
	out = bracketPattern.ReplaceAllString(out, "")

	out = strings.TrimSpace(out)
	out = blankLinePattern.ReplaceAllString(out, ". ")
	out = strings.ReplaceAll(out, "\n", ". ")

	out = whitespacePattern.ReplaceAllString(out, " ")
	out = collapseStops(out)

	// never split digit groups or clock times: 10,000 and 14:30 stay intact
	out = commaSpacingPattern.ReplaceAllString(out, ", $1")
	out = colonSpacingPattern.ReplaceAllString(out, ": $1")
	out = semiSpacingPattern.ReplaceAllString(out, "; ")
	out = bangSpacingPattern.ReplaceAllString(out, "! ")
	out = questSpacingPattern.ReplaceAllString(out, "? ")
	out = periodSpacingPattern.ReplaceAllString(out, ".")

	out = whitespacePattern.ReplaceAllString(out, " ")
	out = strings.TrimLeft(out, ". ")
	return strings.TrimSpace(out)
}

// tableCells reads a table row as its cells joined by commas; the line break
// after it becomes the sentence separator.
func tableCells(row string) string {
	row = strings.TrimSpace(row)
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")
	cells := make([]string, 0, 4)
	for _, c := range strings.Split(row, "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, ", ")
}

func collapseStops(s string) string {
	for {
		next := punctBeforeStop.ReplaceAllString(s, "$1")
		next = doublePeriodPattern.ReplaceAllString(next, ".")
		if next == s {
			return s
		}
		s = next
	}
}

func stripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F600 && r <= 0x1F64F,
		r >= 0x1F300 && r <= 0x1F5FF,
		r >= 0x1F680 && r <= 0x1F6FF,
		r >= 0x1F1E0 && r <= 0x1F1FF,
		r >= 0x1F900 && r <= 0x1F9FF,
		r >= 0x2600 && r <= 0x26FF,
		r >= 0x2700 && r <= 0x27BF:
		return true
	case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
		return true
	default:
		return false
	}
}

// IsUrgent reports whether text mentions any urgency keyword, ignoring case.
func IsUrgent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SplitSentences breaks cleaned text on . ? and ! and drops empty pieces.
func SplitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '?' || r == '!'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimFunc(p, unicode.IsSpace)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
