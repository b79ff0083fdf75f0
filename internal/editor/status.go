package editor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a status entry.
type Level string

// Status levels.
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// StatusEntry is one transient user-facing message.
type StatusEntry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// StatusLog keeps the most recent status messages in a fixed-size ring and
// mirrors them to the logger.
type StatusLog struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []StatusEntry
	next    int
	full    bool
}

// NewStatusLog creates a log holding up to size entries.
func NewStatusLog(size int, logger *slog.Logger) *StatusLog {
	if size <= 0 {
		size = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusLog{logger: logger, entries: make([]StatusEntry, size)}
}

// Infof records an informational message.
func (l *StatusLog) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Info("editor: " + msg)
	l.add(LevelInfo, msg)
}

// Errorf records a failure message.
func (l *StatusLog) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Error("editor: " + msg)
	l.add(LevelError, msg)
}

func (l *StatusLog) add(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = StatusEntry{Time: time.Now().UTC(), Level: level, Message: msg}
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Entries returns the retained entries, oldest first.
func (l *StatusLog) Entries() []StatusEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]StatusEntry(nil), l.entries[:l.next]...)
	}
	out := make([]StatusEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Last returns the most recent entry.
func (l *StatusLog) Last() (StatusEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full && l.next == 0 {
		return StatusEntry{}, false
	}
	i := (l.next - 1 + len(l.entries)) % len(l.entries)
	return l.entries[i], true
}
