package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScanEvent is one recorded card detection. Immutable once appended except
// for the Processed flag, which is set when resolution of that exact event
// completes.
type ScanEvent struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Timestamp time.Time `json:"timestamp"`
	Processed bool      `json:"processed"`
}

// History is a bounded, most-recent-first record of scans. It is shared
// between the detector loop, concurrent resolver goroutines and API status
// queries, so all access goes through its mutex.
type History struct {
	mu       sync.Mutex
	entries  []ScanEvent
	capacity int
}

// NewHistory creates a history holding at most capacity entries; the oldest
// entry is evicted first.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{
		entries:  make([]ScanEvent, 0, capacity),
		capacity: capacity,
	}
}

// Append records a new unprocessed scan at the head of the history and
// returns it. The returned event's ID is the handle for MarkProcessed:
// concurrent resolvers must update their own entry by identity, never
// whatever currently sits at the head.
func (h *History) Append(uid string, ts time.Time) ScanEvent {
	ev := ScanEvent{
		ID:        uuid.NewString(),
		UID:       uid,
		Timestamp: ts,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]ScanEvent{ev}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
	return ev
}

// MarkProcessed flags the entry with the given ID. Returns false when the
// entry has already been evicted.
func (h *History) MarkProcessed(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		if h.entries[i].ID == id {
			h.entries[i].Processed = true
			return true
		}
	}
	return false
}

// Recent returns up to limit entries, newest first.
func (h *History) Recent(limit int) []ScanEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	out := make([]ScanEvent, limit)
	copy(out, h.entries[:limit])
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
