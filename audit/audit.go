// Package audit persists an append-only, newline-delimited JSON record of
// every policy-relevant action the gateway performs.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess = "success"
	StatusBlocked = "blocked"
	StatusError   = "error"
)

// Entry is one audit record. ID and Timestamp are assigned at write time.
type Entry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	User      string                 `json:"user"`
	Details   map[string]interface{} `json:"details"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
}

type Logger struct {
	mu      sync.Mutex
	path    string
	enabled bool
	now     func() time.Time
}

// New creates the logger and its parent directory. A disabled logger is a
// no-op for both Log and List.
func New(path string, enabled bool) (*Logger, error) {
	l := &Logger{path: path, enabled: enabled, now: time.Now}
	if !enabled {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return l, nil
}

// Log appends one entry as a single JSON line. The full line is written in
// one O_APPEND write so concurrent tool calls never interleave records.
func (l *Logger) Log(entry Entry) error {
	if !l.enabled {
		return nil
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = l.now().UTC()
	if entry.User == "" {
		entry.User = "unknown"
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns the last limit entries in chronological (append) order,
// streaming the file and keeping only a bounded tail. Malformed lines are
// skipped.
func (l *Logger) List(limit int) ([]Entry, error) {
	if !l.enabled || limit <= 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	entries := make([]Entry, 0, limit)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}
