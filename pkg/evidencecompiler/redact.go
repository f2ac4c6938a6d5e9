package evidencecompiler

import "regexp"

// redactPattern is one pure string-transform rule applied to extracted
// text before it leaves the compiler. The underlying tokens in the
// store are never rewritten; redaction only touches the copy handed to
// a caller.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var defaultRedactPatterns = []redactPattern{
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[redacted-email]"},
	{regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`), "[redacted-ssn]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), "[redacted-card]"},
	{regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[redacted-phone]"},
}

// Redact applies the compiler's default redaction patterns to text and
// returns the scrubbed copy.
func Redact(text string) string {
	redacted := text
	for _, p := range defaultRedactPatterns {
		redacted = p.regex.ReplaceAllString(redacted, p.replacement)
	}
	return redacted
}
