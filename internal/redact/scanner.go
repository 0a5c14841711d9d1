// Package redact replaces credentials in tool payloads with stable tokens
// before they leave the host.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// PatternType identifies the category of a secret.
type PatternType string

const (
	PatternPrivateKey PatternType = "PRIVATE_KEY"
	PatternAWSKey     PatternType = "AWS_KEY"
	PatternAPIKey     PatternType = "API_KEY"
	PatternBearer     PatternType = "BEARER"
	PatternURLCred    PatternType = "URL_CRED"
	PatternCred       PatternType = "CRED"
)

// Match is a single secret found in text.
type Match struct {
	Type  PatternType
	Value string
	Start int
}

type rule struct {
	typ PatternType
	re  *regexp.Regexp
	// group selects the submatch holding the secret; 0 is the whole match.
	group int
}

// Rules run in order; a span claimed by an earlier rule is not re-matched.
var defaultRules = []rule{
	{PatternPrivateKey, regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), 0},
	{PatternAWSKey, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), 0},
	{PatternAPIKey, regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_\-]{20,}|gh[pousr]_[A-Za-z0-9]{30,}|xox[abpr]-[A-Za-z0-9\-]{10,}|AIza[0-9A-Za-z_\-]{35})`), 0},
	{PatternBearer, regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9._~+/\-]{16,}=*)`), 1},
	{PatternURLCred, regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s:/@]+:([^\s@/]+)@`), 1},
	{PatternCred, regexp.MustCompile(`(?i)\b(?:password|passwd|secret|token|api_key|apikey|access_key)["']?\s*[=:]\s*["']?([^\s"',;]{4,})`), 1},
}

// Scan finds secrets in text and returns them deduplicated and ordered by
// position.
func Scan(text string) []Match {
	return scan(text, defaultRules)
}

func scan(text string, rules []rule) []Match {
	seen := make(map[string]bool)
	var claimed [][2]int
	var matches []Match

	overlaps := func(start, end int) bool {
		for _, c := range claimed {
			if start < c[1] && end > c[0] {
				return true
			}
		}
		return false
	}

	for _, r := range rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*r.group], loc[2*r.group+1]
			if start < 0 || overlaps(start, end) {
				continue
			}
			claimed = append(claimed, [2]int{start, end})
			value := text[start:end]
			if seen[value] {
				continue
			}
			seen[value] = true
			matches = append(matches, Match{Type: r.typ, Value: value, Start: start})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})
	return matches
}

// Redact returns text with every secret replaced by its token in tm.
// Longer values are replaced first so a secret containing another is not
// split.
func Redact(text string, tm *TokenMap) string {
	return redact(text, tm, defaultRules)
}

func redact(text string, tm *TokenMap, rules []rule) string {
	matches := scan(text, rules)
	if len(matches) == 0 {
		return text
	}
	for _, m := range matches {
		tm.Token(m.Type, m.Value)
	}
	result := text
	for _, val := range tm.Values() {
		result = strings.ReplaceAll(result, val, tm.forward[val])
	}
	return result
}
