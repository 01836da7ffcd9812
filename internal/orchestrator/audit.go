package orchestrator

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEvent is one line of a session's audit trail: what happened, to
// which project and container, with enough detail to reconstruct a
// timeline without replaying the session itself.
type AuditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	ProjectPath string    `json:"project_path,omitempty"`
	ContainerID string    `json:"container_id,omitempty"`
	ExitCode    int       `json:"exit_code,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Auditor appends AuditEvents to a JSONL log file.
type Auditor struct {
	mu   sync.Mutex
	path string
}

// DefaultAuditLogPath returns ~/.ftl/logs.jsonl.
func DefaultAuditLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ftl", "logs.jsonl"), nil
}

// NewAuditor opens an auditor writing to path, or ~/.ftl/logs.jsonl if
// path is empty.
func NewAuditor(path string) (*Auditor, error) {
	if path == "" {
		var err error
		path, err = DefaultAuditLogPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &Auditor{path: path}, nil
}

// Log appends event to the audit log. Write failures are swallowed —
// a session must never fail because its audit trail couldn't be
// written.
func (a *Auditor) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(append(raw, '\n'))
}

// Tail reads the last n events from the audit log, oldest first. A
// negative or zero n returns all events.
func Tail(path string, n int) ([]AuditEvent, error) {
	if path == "" {
		var err error
		path, err = DefaultAuditLogPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var events []AuditEvent
	decoder := json.NewDecoder(bytes.NewReader(data))
	for {
		var e AuditEvent
		if err := decoder.Decode(&e); err != nil {
			break
		}
		events = append(events, e)
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
