package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dany2315/BailNotarie-sub000/internal/models"
	"github.com/dany2315/BailNotarie-sub000/internal/optimistic"
)

var base = time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

func confirmedMsg(id string, at time.Time) models.Message {
	return models.Message{
		ID:             models.Confirmed(id),
		ConversationID: "conv-1",
		SenderID:       "u1",
		SenderRole:     models.RoleNotaire,
		Content:        "msg " + id,
		CreatedAt:      at,
	}
}

func request(id string, at time.Time) models.DocumentRequest {
	return models.DocumentRequest{
		ID:             id,
		ConversationID: "conv-1",
		CreatedByID:    "u1",
		CreatedByRole:  models.RoleNotaire,
		Title:          "req " + id,
		Status:         models.RequestPending,
		CreatedAt:      at,
	}
}

func TestMergeOrdersByCreatedAt(t *testing.T) {
	m := NewMerger(optimistic.NewTracker())
	m.Merge(
		[]models.Message{confirmedMsg("m2", base.Add(2 * time.Minute)), confirmedMsg("m1", base)},
		[]models.DocumentRequest{request("r1", base.Add(time.Minute))},
	)

	items := m.Items()
	require.Len(t, items, 3)
	require.Equal(t, "m1", items[0].ID())
	require.Equal(t, "r1", items[1].ID())
	require.Equal(t, "m2", items[2].ID())
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].CreatedAt().Before(items[i-1].CreatedAt()))
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	m := NewMerger(optimistic.NewTracker())
	msgs := []models.Message{confirmedMsg("m1", base), confirmedMsg("m2", base.Add(time.Minute))}
	reqs := []models.DocumentRequest{request("r1", base.Add(30 * time.Second))}

	m.Merge(msgs, reqs)
	before := m.Items()
	m.Merge(msgs, reqs)
	require.Equal(t, before, m.Items(), "re-merging known ids must not change order or content")
}

func TestStableSortPreservesInsertionOrderOnTies(t *testing.T) {
	m := NewMerger(optimistic.NewTracker())
	m.Merge([]models.Message{confirmedMsg("m1", base), confirmedMsg("m2", base)}, nil)
	m.Merge([]models.Message{confirmedMsg("m3", base)}, nil)

	items := m.Items()
	require.Equal(t, []string{"m1", "m2", "m3"}, []string{items[0].ID(), items[1].ID(), items[2].ID()})
}

func TestEchoReconciliationReplacesOptimisticItem(t *testing.T) {
	tr := optimistic.NewTracker()
	m := NewMerger(tr)

	tempID := tr.Begin()
	local := confirmedMsg("ignored", base)
	local.ID = models.Provisional(tempID)
	local.SenderID = "me"
	m.InsertOptimistic(&local)
	require.True(t, tr.Confirm(tempID, "m9"))

	echo := confirmedMsg("m9", base)
	echo.SenderID = "me"
	m.Merge([]models.Message{echo}, nil)

	items := m.Items()
	require.Len(t, items, 1, "echo must replace, not duplicate")
	require.Equal(t, "m9", items[0].ID())
	require.Equal(t, models.DeliveryConfirmed, items[0].Delivery)
	require.False(t, tr.Pending(tempID))
}

func TestDirectConfirmThenEchoStaysSingle(t *testing.T) {
	tr := optimistic.NewTracker()
	m := NewMerger(tr)

	tempID := tr.Begin()
	local := confirmedMsg("x", base)
	local.ID = models.Provisional(tempID)
	m.InsertOptimistic(&local)

	confirmed := confirmedMsg("m5", base)
	tr.Confirm(tempID, "m5")
	m.Confirm(tempID, &confirmed)
	tr.Retire(tempID)

	// the channel echo arrives afterwards
	m.Merge([]models.Message{confirmed}, nil)

	require.Equal(t, 1, m.Len())
	require.Equal(t, "m5", m.Items()[0].ID())
}

func TestEchoFasterThanDirectConfirm(t *testing.T) {
	tr := optimistic.NewTracker()
	m := NewMerger(tr)

	tempID := tr.Begin()
	local := confirmedMsg("x", base)
	local.ID = models.Provisional(tempID)
	m.InsertOptimistic(&local)
	tr.Confirm(tempID, "m5")

	echo := confirmedMsg("m5", base)
	m.Merge([]models.Message{echo}, nil)
	// the RPC result lands after the echo already reconciled
	m.Confirm(tempID, &echo)

	require.Equal(t, 1, m.Len())
	require.Equal(t, "m5", m.Items()[0].ID())
}

func TestUnresolvedConfirmedIDIsFreshInsert(t *testing.T) {
	m := NewMerger(optimistic.NewTracker())
	m.Merge([]models.Message{confirmedMsg("m7", base)}, nil)
	require.Equal(t, 1, m.Len())
}

func TestRemoveMessageDeletesOptimisticToo(t *testing.T) {
	tr := optimistic.NewTracker()
	m := NewMerger(tr)

	tempID := tr.Begin()
	local := confirmedMsg("x", base)
	local.ID = models.Provisional(tempID)
	m.InsertOptimistic(&local)

	require.True(t, m.RemoveMessage(tempID))
	require.Equal(t, 0, m.Len())
	require.False(t, m.RemoveMessage(tempID))
}

func TestUpsertRequestUpdatesInPlace(t *testing.T) {
	m := NewMerger(optimistic.NewTracker())
	r := request("r1", base)
	m.Merge(nil, []models.DocumentRequest{r})

	r.Status = models.RequestCompleted
	r.Documents = []models.RequestDocument{{
		Attachment:   models.Attachment{ID: "d1", Label: "bail.pdf"},
		UploadedByID: "u2",
		UploadedAt:   base.Add(time.Hour),
	}}
	m.UpsertRequest(&r)

	items := m.Items()
	require.Len(t, items, 1)
	require.Equal(t, models.RequestCompleted, items[0].Request.Status)
	require.Len(t, items[0].Request.Documents, 1)
}
