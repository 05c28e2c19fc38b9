package policy

import (
	"regexp"
	"strings"
)

// Matcher holds compiled literal text patterns. Policy authors supply
// substrings, not executable patterns: every regex metacharacter is escaped
// at compile time, so a hostile pattern can at worst match itself.
type Matcher struct {
	patterns []string
	res      []*regexp.Regexp
}

func compileMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		re, err := regexp.Compile(regexp.QuoteMeta(p))
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, p)
		m.res = append(m.res, re)
	}
	return m, nil
}

// Match returns the first pattern found in text, or empty string. Matching is
// case-insensitive because patterns are lowercased at normalization.
func (m *Matcher) Match(text string) string {
	if m == nil {
		return ""
	}
	lower := strings.ToLower(text)
	for i, re := range m.res {
		if re.MatchString(lower) {
			return m.patterns[i]
		}
	}
	return ""
}

// Patterns returns the normalized pattern list, for display.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}
