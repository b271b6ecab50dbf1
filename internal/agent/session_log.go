package agent

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionRecord is one line of a session transcript.
type sessionRecord struct {
	TS   string `json:"ts"`
	Type string `json:"type"` // "user", "assistant", "tool_call", "tool_result"

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Content string `json:"content,omitempty"`

	ToolName string `json:"tool_name,omitempty"`
	Args     string `json:"args,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// sessionLogger appends a JSONL transcript of one chat session. Records are
// one JSON object per line so the file stays append-only and streamable.
type sessionLogger struct {
	mu  sync.Mutex
	id  string
	enc *json.Encoder
	f   *os.File
}

// newSessionLogger creates dataDir/sessions/<uuid>.jsonl with permissions
// restricted to the owner, since transcripts can contain market queries and
// tool arguments.
func newSessionLogger(dataDir string) (*sessionLogger, error) {
	if dataDir == "" {
		return nil, errors.New("data dir not configured")
	}
	dir := filepath.Join(dataDir, "sessions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	f, err := os.OpenFile(filepath.Join(dir, id+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &sessionLogger{id: id, enc: json.NewEncoder(f), f: f}, nil
}

// logRecord writes one transcript line. Write failures are dropped so that
// transcript trouble never interferes with the conversation itself.
func (l *sessionLogger) logRecord(rec sessionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enc == nil {
		return
	}
	_ = l.enc.Encode(rec)
}

func (l *sessionLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	_ = l.f.Close()
	l.f = nil
	l.enc = nil
}

func nowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
