// Package presence derives the counterpart's online state from channel
// membership signals.
package presence

import "sync"

// Tracker watches join/leave signals for one conversation's counterpart;
// churn from any other member id is ignored. State only lives as long as
// the current subscription: a reconnect calls Reset with the channel's
// authoritative member snapshot instead of trusting what was seen before.
type Tracker struct {
	mu            sync.Mutex
	counterpartID string
	online        bool
}

func NewTracker(counterpartID string) *Tracker {
	return &Tracker{counterpartID: counterpartID}
}

func (t *Tracker) OnJoin(memberID string) {
	if memberID != t.counterpartID {
		return
	}
	t.mu.Lock()
	t.online = true
	t.mu.Unlock()
}

func (t *Tracker) OnLeave(memberID string) {
	if memberID != t.counterpartID {
		return
	}
	t.mu.Lock()
	t.online = false
	t.mu.Unlock()
}

// Reset re-derives the state from an authoritative member list.
func (t *Tracker) Reset(members []string) {
	online := false
	for _, id := range members {
		if id == t.counterpartID {
			online = true
			break
		}
	}
	t.mu.Lock()
	t.online = online
	t.mu.Unlock()
}

func (t *Tracker) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}
