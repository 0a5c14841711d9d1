// Package restrict limits edits to an allow-list of path globs.
package restrict

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ppiankov/hookwarden/internal/model"
)

// Gate is the name recorded in outcomes.
const Gate = "restrict"

// Check allows req when its literal file_path matches one of patterns.
// An empty pattern list or a missing file_path means no restriction.
// Malformed globs never match.
func Check(req model.ToolCallRequest, patterns []string) model.Outcome {
	if len(patterns) == 0 {
		return model.Outcome{Gate: Gate, Verdict: model.Allow}
	}
	path, ok := req.StringArg("file_path")
	if !ok {
		return model.Outcome{Gate: Gate, Verdict: model.Allow}
	}

	for _, p := range patterns {
		if matched, err := filepath.Match(p, path); err == nil && matched {
			return model.Outcome{Gate: Gate, Verdict: model.Allow}
		}
	}
	return model.Outcome{
		Gate:    Gate,
		Verdict: model.Block,
		Reason:  fmt.Sprintf("%s is outside the allowed paths [%s]", path, strings.Join(patterns, ", ")),
	}
}

// ParsePatterns reads an allow-list from an environment value: a JSON array
// of strings or a comma-separated list. Unparseable input yields nil, which
// means no restriction.
func ParsePatterns(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "[") {
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err != nil {
			return nil
		}
		return compact(list)
	}
	return compact(strings.Split(value, ","))
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
