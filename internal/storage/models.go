package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Ingestion treats it as "already stored", never as a failure.
var ErrDuplicate = errors.New("duplicate record")

// Job is one entry in the durable queue. Delivery is at-least-once: a claimed
// job that is never completed stays "running" until a sweep or restart, and
// handlers must tolerate reprocessing.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// ArticleFilter narrows listing, counting, and search-candidate queries.
// Zero-valued fields are ignored.
type ArticleFilter struct {
	Category string
	Source   string
	From     time.Time
	To       time.Time
}
