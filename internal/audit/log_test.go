package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordAndVerifyChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	entries := []Entry{
		{SessionID: "s1", Kind: "click", Fingerprint: "sha256:aa", Success: true},
		{SessionID: "s1", Kind: "type", Fingerprint: "sha256:bb", Success: false, Tag: "content_blocked", Reason: "text blocked for security"},
		{SessionID: "s1", Kind: "emergency_stop", Success: true},
	}
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	n, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if n != 3 {
		t.Errorf("verified %d entries, want 3", n)
	}
}

func TestOpenRecoversChainTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")

	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(Entry{SessionID: "s1", Kind: "click", Success: true}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	// Reopen and append; the chain must remain intact.
	l, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(Entry{SessionID: "s1", Kind: "screenshot", Success: true}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	if _, err := Verify(path); err != nil {
		t.Errorf("chain broken after reopen: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Record(Entry{SessionID: "s1", Kind: "click", Success: true})
	l.Record(Entry{SessionID: "s1", Kind: "click", Success: true})
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"success":true`, `"success":false`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(path); err == nil {
		t.Error("expected chain break after tampering")
	}
}
