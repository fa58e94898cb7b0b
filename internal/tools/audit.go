package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AuditRecord is one JSONL line describing a dispatched request.
type AuditRecord struct {
	Timestamp  int64  `json:"ts"`
	RequestID  string `json:"request_id"`
	Tool       string `json:"tool"`
	OK         bool   `json:"ok"`
	Code       string `json:"code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// AuditLog appends dispatch records to a JSONL file. Emit failures are the
// caller's to log; they never affect the request being audited.
type AuditLog struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// OpenAudit opens (or creates) the audit file for appending.
func OpenAudit(path string) (*AuditLog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{f: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
}

// Emit appends one record.
func (a *AuditLog) Emit(rec AuditRecord) error {
	if a == nil {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return a.w.Flush()
}

// Close flushes the buffer and closes the file.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w != nil {
		a.w.Flush()
	}
	if a.f != nil {
		err := a.f.Close()
		a.f = nil
		a.w = nil
		return err
	}
	return nil
}
