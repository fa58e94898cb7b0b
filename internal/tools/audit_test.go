package tools

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAuditEmitAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "strata.jsonl")

	a, err := OpenAudit(path)
	if err != nil {
		t.Fatalf("OpenAudit: %v", err)
	}

	records := []AuditRecord{
		{Timestamp: 1, RequestID: "r1", Tool: "remember", OK: true, DurationMs: 3},
		{Timestamp: 2, RequestID: "r2", Tool: "recall", OK: false, Code: "RATE_LIMIT_EXCEEDED", DurationMs: 1},
	}
	for _, rec := range records {
		if err := a.Emit(rec); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var got []AuditRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad JSONL line %q: %v", scanner.Text(), err)
		}
		got = append(got, rec)
	}

	if len(got) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(got))
	}
	if got[0].Tool != "remember" || got[1].Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("records = %+v", got)
	}
}

func TestAuditNilSafe(t *testing.T) {
	var a *AuditLog
	if err := a.Emit(AuditRecord{}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}
