// Package policy masks credentials and contact details in text that leaves
// the process through logs or API error bodies.
package policy

import "regexp"

var (
	apiKeyPattern = regexp.MustCompile(`\bsk_[A-Za-z0-9]{16,}\b`)
	bearerPattern = regexp.MustCompile(`(?i)\b(bearer|xi-api-key[:=]?)\s+[A-Za-z0-9._\-]{8,}`)
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// Redact masks API keys, bearer tokens, emails and phone numbers.
func Redact(input string) (redacted string, changed bool) {
	out := input

	// keys first: a long digit run inside a key would otherwise read as a phone number
	next := apiKeyPattern.ReplaceAllString(out, "[REDACTED_KEY]")
	next = bearerPattern.ReplaceAllString(next, "$1 [REDACTED_TOKEN]")
	changed = next != out
	out = next

	next = emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactString is Redact without the changed flag.
func RedactString(input string) string {
	out, _ := Redact(input)
	return out
}
