package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Filter selects entries for Tail. Empty fields match everything.
type Filter struct {
	SessionID string
	Gate      string
	Decision  string
	Limit     int // keep only the last Limit matches; 0 keeps all
}

// Summary counts decisions among the selected entries.
type Summary struct {
	Total          int    `json:"total"`
	AllowCount     int    `json:"allow_count"`
	WarnCount      int    `json:"warn_count"`
	BlockCount     int    `json:"block_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// TailResult holds the selected entries and their summary.
type TailResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Tail reads the log at path and returns the entries matching filter.
// Malformed lines are skipped.
func Tail(path string, filter Filter) (*TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.matches(entry) {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[len(entries)-filter.Limit:]
	}

	result := &TailResult{Entries: entries}
	for _, e := range entries {
		updateSummary(&result.Summary, e)
	}
	return result, nil
}

func (f Filter) matches(e Entry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Gate != "" && e.Gate != f.Gate {
		return false
	}
	if f.Decision != "" && e.Decision != f.Decision {
		return false
	}
	return true
}

func updateSummary(s *Summary, e Entry) {
	s.Total++
	switch e.Decision {
	case "allow":
		s.AllowCount++
	case "warn":
		s.WarnCount++
	case "block":
		s.BlockCount++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
