// Package logging provides a leveled, categorized logger that keeps a
// bounded in-memory buffer of recent entries (queryable over the API) and
// mirrors everything to stderr.
//
// Components receive a *Logger at construction. The package-level helpers
// write to a default logger and exist for process-wide concerns such as
// panic recovery, where threading an instance through is impractical.
package logging

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel maps a string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

// Category groups entries by subsystem.
type Category string

const (
	CatSystem    Category = "system"
	CatReader    Category = "reader"
	CatScan      Category = "scan"
	CatWebSocket Category = "websocket"
	CatHTTP      Category = "http"
	CatStore     Category = "store"
)

// Entry is one buffered log record.
type Entry struct {
	Time     time.Time      `json:"time"`
	Level    Level          `json:"level"`
	LevelStr string         `json:"levelStr"`
	Category Category       `json:"category"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Logger buffers the most recent entries in a ring.
type Logger struct {
	mu       sync.Mutex
	entries  []Entry
	next     int
	filled   bool
	capacity int
	minLevel Level
	counts   map[Level]int
}

// New creates a Logger keeping at most capacity entries at or above minLevel.
func New(capacity int, minLevel Level) *Logger {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Logger{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		minLevel: minLevel,
		counts:   make(map[Level]int),
	}
}

func (l *Logger) logf(level Level, cat Category, msg string, fields map[string]any) {
	if level < l.minLevel {
		return
	}

	e := Entry{
		Time:     time.Now().UTC(),
		Level:    level,
		LevelStr: level.String(),
		Category: cat,
		Message:  msg,
		Fields:   fields,
	}

	l.mu.Lock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.filled = true
	}
	l.counts[level]++
	l.mu.Unlock()

	if len(fields) > 0 {
		log.Printf("[%s] %s: %s %s", e.LevelStr, cat, msg, formatFields(fields))
	} else {
		log.Printf("[%s] %s: %s", e.LevelStr, cat, msg)
	}
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

func (l *Logger) Debug(cat Category, msg string, fields map[string]any) {
	l.logf(LevelDebug, cat, msg, fields)
}

func (l *Logger) Info(cat Category, msg string, fields map[string]any) {
	l.logf(LevelInfo, cat, msg, fields)
}

func (l *Logger) Warn(cat Category, msg string, fields map[string]any) {
	l.logf(LevelWarn, cat, msg, fields)
}

func (l *Logger) Error(cat Category, msg string, fields map[string]any) {
	l.logf(LevelError, cat, msg, fields)
}

// GetEntries returns up to limit entries, newest first, optionally filtered
// by minimum level and category.
func (l *Logger) GetEntries(limit int, minLevel *Level, category *Category) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.filled {
		size = l.capacity
	}

	out := make([]Entry, 0, limit)
	for i := 0; i < size && len(out) < limit; i++ {
		// Walk backwards from the most recent slot.
		idx := (l.next - 1 - i + l.capacity) % l.capacity
		e := l.entries[idx]
		if minLevel != nil && e.Level < *minLevel {
			continue
		}
		if category != nil && e.Category != *category {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats returns entry counts per level since startup (not per buffer).
func (l *Logger) Stats() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make(map[string]int, len(l.counts))
	for level, n := range l.counts {
		stats[level.String()] = n
	}
	return stats
}

// Clear drops all buffered entries. Level counters are kept.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 0
	l.filled = false
	for i := range l.entries {
		l.entries[i] = Entry{}
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(1000, LevelDebug)
)

// Init replaces the default logger. Call once at startup before anything
// uses the package-level helpers.
func Init(capacity int, minLevel Level) {
	defaultMu.Lock()
	defaultLogger = New(capacity, minLevel)
	defaultMu.Unlock()
}

// Get returns the default logger.
func Get() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func Debug(cat Category, msg string, fields map[string]any) { Get().Debug(cat, msg, fields) }
func Info(cat Category, msg string, fields map[string]any)  { Get().Info(cat, msg, fields) }
func Warn(cat Category, msg string, fields map[string]any)  { Get().Warn(cat, msg, fields) }
func Error(cat Category, msg string, fields map[string]any) { Get().Error(cat, msg, fields) }
