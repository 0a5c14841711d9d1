// Package pathguard sanitizes candidate file paths and matches them against
// role path patterns.
package pathguard

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Separator is the canonical separator of sanitized paths.
const Separator = "/"

// Sanitize normalizes raw and rejects traversal. It returns false for empty
// input, NUL bytes, or any ".." segment. Backslashes become "/", repeated
// separators collapse and "." segments are dropped. Sanitize is idempotent.
func Sanitize(raw string) (string, bool) {
	if raw == "" || strings.ContainsRune(raw, 0) {
		return "", false
	}

	normalized := strings.ReplaceAll(raw, `\`, Separator)
	absolute := strings.HasPrefix(normalized, Separator)

	segments := strings.Split(normalized, Separator)
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "..":
			return "", false
		case "", ".":
			continue
		default:
			kept = append(kept, seg)
		}
	}

	out := strings.Join(kept, Separator)
	if absolute {
		return Separator + out, true
	}
	if out == "" {
		return ".", true
	}
	return out, true
}

// Matches reports whether path matches pattern.
//
// Pattern forms, checked in order:
//  1. trailing "/": directory prefix: the pattern itself or anything below it
//  2. contains "*": prefix-anchored wildcard, "*" matches any characters
//  3. otherwise: exact match or a directory prefix of path
func Matches(path, pattern string) bool {
	if pattern == "" {
		return false
	}

	if strings.HasSuffix(pattern, Separator) {
		return strings.HasPrefix(path, pattern) || path == strings.TrimSuffix(pattern, Separator)
	}

	if strings.Contains(pattern, "*") {
		re := wildcard(pattern)
		return re != nil && re.MatchString(path)
	}

	return path == pattern || strings.HasPrefix(path, pattern+Separator)
}

// IsForbidden reports whether any pattern matches path.
func IsForbidden(path string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(path, p) {
			return true
		}
	}
	return false
}

// FirstMatch returns the first pattern that matches path.
func FirstMatch(path string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if Matches(path, p) {
			return p, true
		}
	}
	return "", false
}

// Relativize returns path relative to root when path is absolute and inside
// root. Anything else is returned unchanged.
func Relativize(path, root string) string {
	if root == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return path
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

var (
	wildcardMu    sync.Mutex
	wildcardCache = map[string]*regexp.Regexp{}
)

// wildcard compiles pattern to a prefix-anchored regexp.
func wildcard(pattern string) *regexp.Regexp {
	wildcardMu.Lock()
	defer wildcardMu.Unlock()

	if re, ok := wildcardCache[pattern]; ok {
		return re
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	re, err := regexp.Compile("^" + escaped)
	if err != nil {
		re = nil
	}
	wildcardCache[pattern] = re
	return re
}
