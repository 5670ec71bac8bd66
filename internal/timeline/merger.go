// Package timeline maintains the single chronologically ordered view built
// from the two entity streams plus locally injected optimistic entries.
package timeline

import (
	"sort"

	"github.com/dany2315/BailNotarie-sub000/internal/models"
	"github.com/dany2315/BailNotarie-sub000/internal/optimistic"
)

// Merger owns the ordered item slice and the id set used for
// deduplication. Confirmed ids, provisional ids and request ids share one
// id space, which is what makes re-merging a reconciliation echo a no-op.
type Merger struct {
	tracker *optimistic.Tracker
	items   []models.TimelineItem
	seen    map[string]struct{}
}

func NewMerger(tracker *optimistic.Tracker) *Merger {
	return &Merger{
		tracker: tracker,
		seen:    make(map[string]struct{}),
	}
}

// InsertOptimistic places a provisional message in the timeline. The item
// carries the sending state until Confirm or a channel echo resolves it.
func (m *Merger) InsertOptimistic(msg *models.Message) {
	if _, dup := m.seen[msg.ID.String()]; dup {
		return
	}
	m.items = append(m.items, models.MessageItem(msg, models.DeliverySending))
	m.seen[msg.ID.String()] = struct{}{}
	m.resort()
}

// Merge folds incoming messages and requests into the current view.
// Items already present by id are dropped as reconciliation echoes. An
// incoming message whose id matches a pending optimistic binding replaces
// the provisional item in place and retires the tracker entry. Everything
// else appends, then the union is stably re-sorted by creation time.
func (m *Merger) Merge(msgs []models.Message, reqs []models.DocumentRequest) {
	changed := false
	for i := range msgs {
		if m.foldMessage(&msgs[i]) {
			changed = true
		}
	}
	for i := range reqs {
		req := reqs[i]
		if _, dup := m.seen[req.ID]; dup {
			continue
		}
		m.items = append(m.items, models.RequestItem(&req))
		m.seen[req.ID] = struct{}{}
		changed = true
	}
	if changed {
		m.resort()
	}
}

func (m *Merger) foldMessage(msg *models.Message) bool {
	id := msg.ID.String()
	if _, dup := m.seen[id]; dup {
		return false
	}
	if tempID, ok := m.tracker.Resolve(id); ok {
		if idx := m.indexOf(tempID); idx >= 0 {
			m.items[idx] = models.MessageItem(msg, models.DeliveryConfirmed)
			delete(m.seen, tempID)
			m.seen[id] = struct{}{}
			m.tracker.Retire(tempID)
			return true
		}
	}
	// unresolved ids are fresh inserts; a later full reload corrects any
	// duplicate this produces
	m.items = append(m.items, models.MessageItem(msg, models.DeliveryConfirmed))
	m.seen[id] = struct{}{}
	return true
}

// Confirm swaps a provisional item for the authoritative message returned
// directly by the send RPC, before or instead of the channel echo.
func (m *Merger) Confirm(tempID string, msg *models.Message) {
	idx := m.indexOf(tempID)
	if idx < 0 {
		m.Merge([]models.Message{*msg}, nil)
		return
	}
	if _, dup := m.seen[msg.ID.String()]; dup {
		// the echo got here first; drop the provisional leftover
		m.removeAt(idx, tempID)
		return
	}
	m.items[idx] = models.MessageItem(msg, models.DeliveryConfirmed)
	delete(m.seen, tempID)
	m.seen[msg.ID.String()] = struct{}{}
	m.resort()
}

// RemoveMessage deletes by id, provisional or confirmed. Deletions are
// id-removal, never tombstones.
func (m *Merger) RemoveMessage(id string) bool {
	idx := m.indexOf(id)
	if idx < 0 {
		return false
	}
	m.removeAt(idx, id)
	return true
}

// UpsertRequest updates a request in place by id, or inserts it.
func (m *Merger) UpsertRequest(req *models.DocumentRequest) {
	if idx := m.indexOf(req.ID); idx >= 0 {
		m.items[idx] = models.RequestItem(req)
		return
	}
	m.Merge(nil, []models.DocumentRequest{*req})
}

// Items returns a copy of the ordered view.
func (m *Merger) Items() []models.TimelineItem {
	out := make([]models.TimelineItem, len(m.items))
	copy(out, m.items)
	return out
}

func (m *Merger) Len() int { return len(m.items) }

func (m *Merger) indexOf(id string) int {
	for i := range m.items {
		if m.items[i].ID() == id {
			return i
		}
	}
	return -1
}

func (m *Merger) removeAt(idx int, id string) {
	m.items = append(m.items[:idx], m.items[idx+1:]...)
	delete(m.seen, id)
}

func (m *Merger) resort() {
	sort.SliceStable(m.items, func(i, j int) bool {
		return m.items[i].CreatedAt().Before(m.items[j].CreatedAt())
	})
}
