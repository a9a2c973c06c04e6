package vault

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one immutable audit record. Entries are appended to a per-day
// NDJSON stream and never rewritten or reordered.
type Entry struct {
	Timestamp      time.Time         `json:"timestamp"`
	ActionType     string            `json:"action_type"`
	Actor          string            `json:"actor"`
	Target         string            `json:"target,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Result         string            `json:"result,omitempty"`
	ApprovalStatus string            `json:"approval_status,omitempty"`
	ApprovedBy     string            `json:"approved_by,omitempty"`
}

// AuditLog is the single append-only audit sink. One file per UTC calendar
// day; appends are serialized through a mutex so concurrent watcher and
// orchestrator writes never interleave records.
type AuditLog struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// AuditOption customizes an AuditLog during construction.
type AuditOption func(*AuditLog)

// WithAuditClock overrides the clock used for timestamps and day selection.
func WithAuditClock(clock func() time.Time) AuditOption {
	return func(l *AuditLog) {
		l.now = clock
	}
}

// NewAuditLog returns an audit log writing into the given directory
// (normally the vault's Logs area).
func NewAuditLog(dir string, opts ...AuditOption) *AuditLog {
	l := &AuditLog{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes a single record to today's stream. The timestamp is
// populated from the log's clock if unset.
func (l *AuditLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}

	path := l.dayFile(now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: append %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadDay returns all records from one day's stream in write order.
// A missing day file yields an empty slice.
func (l *AuditLog) ReadDay(day time.Time) ([]Entry, error) {
	f, err := os.Open(l.dayFile(day.UTC()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: read day: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("audit: corrupt record: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read day: %w", err)
	}
	return entries, nil
}

// CountActionSince counts records with the given action type across day
// partitions from since (inclusive) through today. Used by the status
// projection for throughput figures.
func (l *AuditLog) CountActionSince(actionType string, since time.Time) (int, error) {
	count := 0
	for day := since.UTC().Truncate(24 * time.Hour); !day.After(l.now().UTC()); day = day.Add(24 * time.Hour) {
		entries, err := l.ReadDay(day)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if e.ActionType == actionType && !e.Timestamp.Before(since) {
				count++
			}
		}
	}
	return count, nil
}

func (l *AuditLog) dayFile(day time.Time) string {
	return filepath.Join(l.dir, day.Format("2006-01-02")+".ndjson")
}
