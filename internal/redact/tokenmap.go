package redact

import (
	"fmt"
	"sort"
)

// TokenMap assigns one token per distinct secret, numbered per type.
// Not goroutine-safe.
type TokenMap struct {
	forward  map[string]string
	counters map[PatternType]int
}

// NewTokenMap creates an empty map.
func NewTokenMap() *TokenMap {
	return &TokenMap{
		forward:  make(map[string]string),
		counters: make(map[PatternType]int),
	}
}

// Token returns the token for value, allocating "<<TYPE_N>>" on first use.
func (tm *TokenMap) Token(typ PatternType, value string) string {
	if tok, ok := tm.forward[value]; ok {
		return tok
	}
	tm.counters[typ]++
	tok := fmt.Sprintf("<<%s_%d>>", typ, tm.counters[typ])
	tm.forward[value] = tok
	return tok
}

// Len returns the number of secrets seen.
func (tm *TokenMap) Len() int {
	return len(tm.forward)
}

// Values returns the secrets, longest first.
func (tm *TokenMap) Values() []string {
	vals := make([]string, 0, len(tm.forward))
	for v := range tm.forward {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		if len(vals[i]) != len(vals[j]) {
			return len(vals[i]) > len(vals[j])
		}
		return vals[i] < vals[j]
	})
	return vals
}
