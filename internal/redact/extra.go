package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Redactor scrubs text with the built-in rules plus operator patterns.
type Redactor struct {
	rules []rule
}

// New compiles extra patterns and appends them to the built-in rules.
// Patterns run in name order after the built-ins. Each redacts its first
// capture group, or the whole match when it has none.
func New(extra map[string]string) (*Redactor, error) {
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	rules := append([]rule{}, defaultRules...)
	for _, name := range names {
		expr := extra[name]
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", name, err)
		}
		group := 0
		if re.NumSubexp() > 0 {
			group = 1
		}
		rules = append(rules, rule{
			typ:   PatternType(strings.ToUpper(name)),
			re:    re,
			group: group,
		})
	}
	return &Redactor{rules: rules}, nil
}

// Redact scrubs text with a fresh TokenMap.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return Redact(text, NewTokenMap())
	}
	return redact(text, NewTokenMap(), r.rules)
}
