package persistence

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Direction records which way a journaled message travelled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Entry captures a single session message.
type Entry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Session   string          `json:"session"`
	Direction Direction       `json:"direction"`
	Kind      string          `json:"kind"`
	Ref       string          `json:"ref,omitempty"`
	Result    string          `json:"result,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// JournalQuery filters journal entries. Zero values match everything.
type JournalQuery struct {
	Session   string
	Direction Direction
	Kind      string
	TimeStart time.Time
	TimeEnd   time.Time
	Limit     int
}

func (q JournalQuery) matches(e Entry) bool {
	if q.Session != "" && e.Session != q.Session {
		return false
	}
	if q.Direction != "" && e.Direction != q.Direction {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if !q.TimeStart.IsZero() && e.Timestamp.Before(q.TimeStart) {
		return false
	}
	if !q.TimeEnd.IsZero() && e.Timestamp.After(q.TimeEnd) {
		return false
	}
	return true
}

// Journal records the traffic of an editing session. It never stores the
// structural model itself, only what was exchanged with the watcher.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter JournalQuery) ([]Entry, error)
	Close() error
}

// InMemoryJournal appends entries to a bounded buffer.
type InMemoryJournal struct {
	mu     sync.RWMutex
	buffer []Entry
	limit  int
	nextID int64
}

// NewInMemoryJournal builds a journal keeping at most limit entries.
func NewInMemoryJournal(limit int) *InMemoryJournal {
	if limit <= 0 {
		limit = 2048
	}
	return &InMemoryJournal{
		buffer: make([]Entry, 0, limit),
		limit:  limit,
	}
}

// Record appends the entry, evicting the oldest one when full.
func (j *InMemoryJournal) Record(ctx context.Context, entry Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	entry.ID = j.nextID
	if len(j.buffer) == j.limit {
		j.buffer = j.buffer[1:]
	}
	j.buffer = append(j.buffer, entry)
	return nil
}

// Query returns matching entries oldest first. A positive Limit keeps only the
// most recent matches.
func (j *InMemoryJournal) Query(_ context.Context, filter JournalQuery) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var result []Entry
	for _, entry := range j.buffer {
		if filter.matches(entry) {
			result = append(result, entry)
		}
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result, nil
}

func (j *InMemoryJournal) Close() error { return nil }

// Discard is a journal that drops everything.
type Discard struct{}

func (Discard) Record(context.Context, Entry) error                 { return nil }
func (Discard) Query(context.Context, JournalQuery) ([]Entry, error) { return nil, nil }
func (Discard) Close() error                                        { return nil }
