package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult reports a chain check. On failure ErrorLine is the 1-based
// line of the first broken link and Lines counts the entries before it.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	HeadHash  string `json:"head_hash,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify walks the log at path and checks that each entry's prev_hash is the
// hash of the line before it, starting from GenesisHash. HeadHash is the hash
// of the last line, which the next Record will chain to.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	want := GenesisHash
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return broken(n, fmt.Sprintf("parse error: %v", err))
		}
		if e.PrevHash != want {
			if n == 0 {
				return broken(n, fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", e.PrevHash))
			}
			return broken(n, fmt.Sprintf("hash mismatch: expected %s, got %s", want, e.PrevHash))
		}
		want = HashLine(line)
		n++
	}
	if err := sc.Err(); err != nil {
		return VerifyResult{Lines: n, Error: fmt.Sprintf("scan: %v", err)}
	}

	res := VerifyResult{Valid: true, Lines: n}
	if n > 0 {
		res.HeadHash = want
	}
	return res
}

func broken(verified int, msg string) VerifyResult {
	return VerifyResult{Lines: verified, Error: msg, ErrorLine: verified + 1}
}
