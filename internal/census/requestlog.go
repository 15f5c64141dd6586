package census

import (
	"encoding/json"
	"math"
	"os"
	"sync"
	"time"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
)

// Record types as stored in the request log.
const (
	RecordActivate = "activate"
	RecordPing     = "ping"
)

// Record is one accepted phone-home request. The log is the system of record;
// the census database can be rebuilt from it at any time.
type Record struct {
	At      time.Time      `json:"at"`
	Type    string         `json:"type"`
	Remote  string         `json:"remote"`
	Payload map[string]any `json:"payload"`
}

// PingFields extracts the census channel and generation from a ping payload:
// `image` must be a non-empty string and `count` a non-negative integer. The
// live endpoint and the log replay apply the same rules.
func PingFields(payload map[string]any) (channel string, generation int, err error) {
	channel, ok := payload["image"].(string)
	if !ok || channel == "" {
		return "", 0, pherrors.ValidationError("payload field image must be a non-empty string")
	}
	raw, ok := payload["count"].(float64)
	if !ok || raw != math.Trunc(raw) || raw < 0 {
		return "", 0, pherrors.ValidationError("payload field count must be a non-negative integer")
	}
	return channel, int(raw), nil
}

// RequestLog appends records to a JSONL file, one request per line.
type RequestLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenRequestLog opens path for appending, creating it if needed.
func OpenRequestLog(path string) (*RequestLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, pherrors.StorageError("open request log", err)
	}
	return &RequestLog{file: file}, nil
}

// Append writes one record.
func (l *RequestLog) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return pherrors.StorageError("encode request record", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return pherrors.StorageError("append request record", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *RequestLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
