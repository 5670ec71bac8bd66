// Package optimistic tracks in-flight sends from submit until the
// authoritative record replaces them in the timeline.
package optimistic

import (
	"sync"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

type Entry struct {
	TempID string
	Status Status
	RealID string
}

// Tracker maps provisional ids to their lifecycle and, once known, to the
// server-assigned id. Exactly one real id may ever bind to a temp id.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
	byReal  map[string]string
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*Entry),
		byReal:  make(map[string]string),
	}
}

// Begin mints a provisional id in the sending state. The caller inserts
// the matching timeline item before any network call starts.
func (t *Tracker) Begin() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tempID := uuid.NewString()
	t.entries[tempID] = &Entry{TempID: tempID, Status: StatusSending}
	return tempID
}

// Confirm binds the real id and moves the entry to sent. Late duplicate
// confirmations, or confirmations for an unknown or failed entry, are
// no-ops and report false.
func (t *Tracker) Confirm(tempID, realID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tempID]
	if !ok || e.RealID != "" {
		return false
	}
	e.RealID = realID
	e.Status = StatusSent
	t.byReal[realID] = tempID
	return true
}

// Fail discards the entry entirely. A failed send leaves no trace.
func (t *Tracker) Fail(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tempID]
	if !ok {
		return false
	}
	delete(t.entries, tempID)
	if e.RealID != "" {
		delete(t.byReal, e.RealID)
	}
	return true
}

// Resolve maps a server-assigned id back to its pending temp id, if any.
func (t *Tracker) Resolve(realID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tempID, ok := t.byReal[realID]
	return tempID, ok
}

// Retire removes a reconciled entry once the timeline has swapped it for
// the authoritative record.
func (t *Tracker) Retire(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tempID]
	if !ok {
		return
	}
	delete(t.entries, tempID)
	if e.RealID != "" {
		delete(t.byReal, e.RealID)
	}
}

// Pending reports whether a temp id is still tracked.
func (t *Tracker) Pending(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[tempID]
	return ok
}
