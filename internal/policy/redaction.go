package policy

import (
	"regexp"

	"github.com/antoniostano/guesser/internal/protocol"
)

type redactionRule struct {
	pattern *regexp.Regexp
	marker  string
}

// Cards run before phones so long digit runs are not reported as phone numbers.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// RedactTurn returns a copy of t with PII masked in its content. System
// turns are authored by the service and pass through untouched.
func RedactTurn(t protocol.Turn) (protocol.Turn, bool) {
	if t.Role == protocol.RoleSystem {
		return t, false
	}
	content, changed := RedactPII(t.Content)
	t.Content = content
	return t, changed
}
