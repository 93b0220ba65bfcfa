package audit

// Entry is one line in the hash-chained JSONL session log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp   string `json:"ts"`
	SessionID   string `json:"session_id"`
	Kind        string `json:"kind"`
	Fingerprint string `json:"fingerprint"`
	Success     bool   `json:"success"`
	Tag         string `json:"tag,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PrevHash    string `json:"prev_hash"`
}
