// Package attempts keeps a bounded, in-memory feed of auto-booking attempts.
package attempts

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/civil"
)

const (
	DefaultSize  = 200
	DefaultLimit = 100
)

type Attempt struct {
	ID         uuid.UUID       `json:"id"`
	JobID      uuid.UUID       `json:"jobId"`
	TargetDate civil.Date      `json:"targetDate"`
	StartTime  civil.TimeOfDay `json:"startTime"`
	EndTime    civil.TimeOfDay `json:"endTime"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Log holds the most recent attempts, newest first.
type Log struct {
	mu      sync.Mutex
	size    int
	entries []Attempt
}

// NewLog keeps at most size entries. A non-positive size means DefaultSize.
func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultSize
	}
	return &Log{size: size}
}

func (l *Log) Size() int { return l.size }

// Add records a. A zero ID or OccurredAt is filled in.
func (l *Log) Add(a Attempt) Attempt {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]Attempt{a}, l.entries...)
	if len(l.entries) > l.size {
		l.entries = l.entries[:l.size]
	}
	return a
}

// List returns up to limit attempts, newest first.
func (l *Log) List(limit int) []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > len(l.entries) {
		limit = len(l.entries)
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]Attempt, limit)
	copy(out, l.entries[:limit])
	return out
}

// ClampLimit bounds a requested feed length to [1, size].
func (l *Log) ClampLimit(limit int) int {
	return max(1, min(limit, l.size))
}
