package audit

// Entry is one gate decision in the hash-chained JSONL audit log.
// Fields are plain strings so json.Marshal output is deterministic and
// the line hash is reproducible.
type Entry struct {
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	Gate      string `json:"gate"`
	Tool      string `json:"tool"`
	Resource  string `json:"resource"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	PrevHash  string `json:"prev_hash"`
}
