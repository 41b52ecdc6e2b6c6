// Package session tracks the process-wide work session: a bounded unit of
// related work whose resulting commits are recorded together. At most one
// session is active at a time.
package session

import (
	"sync"
	"time"

	"devherd/internal/logging"

	"github.com/google/uuid"
)

// Session describes one bounded unit of related work.
type Session struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Branch       string    `json:"branch,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CommitHashes []string  `json:"commit_hashes"`
	Active       bool      `json:"active"`
}

// Tracker holds the singleton active session. It is an explicit value, not
// hidden module state, so tests can construct independent instances.
type Tracker struct {
	mu      sync.Mutex
	current *Session
}

// NewTracker creates a tracker with no active session.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start begins a new session, replacing any active one (sessions do not
// stack).
func (t *Tracker) Start(description, branch string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		logging.Session("Replacing active session %s", t.current.ID)
	}

	t.current = &Session{
		ID:          uuid.NewString(),
		Description: description,
		Branch:      branch,
		StartedAt:   time.Now(),
		Active:      true,
	}
	logging.Session("Started session %s: %s", t.current.ID, description)
	return *t.current
}

// End terminates the active session and returns its final state. Ending
// when no session is active is a no-op, reported via ok=false.
func (t *Tracker) End() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Session{}, false
	}

	ended := *t.current
	ended.Active = false
	ended.CommitHashes = append([]string(nil), t.current.CommitHashes...)
	t.current = nil

	logging.Session("Ended session %s (%d commits)", ended.ID, len(ended.CommitHashes))
	return ended, true
}

// Current returns a snapshot of the active session, if any.
func (t *Tracker) Current() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Session{}, false
	}
	snapshot := *t.current
	snapshot.CommitHashes = append([]string(nil), t.current.CommitHashes...)
	return snapshot, true
}

// RecordCommit appends a commit hash to the active session. Returns false
// when no session is active.
func (t *Tracker) RecordCommit(hash string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return false
	}
	t.current.CommitHashes = append(t.current.CommitHashes, hash)
	logging.SessionDebug("Recorded commit %s in session %s", hash, t.current.ID)
	return true
}
