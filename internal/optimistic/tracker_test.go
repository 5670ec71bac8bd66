package optimistic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfirmBindsExactlyOnce(t *testing.T) {
	tr := NewTracker()
	tempID := tr.Begin()

	require.True(t, tr.Confirm(tempID, "real-1"))
	require.False(t, tr.Confirm(tempID, "real-2"), "second confirmation must be a no-op")

	got, ok := tr.Resolve("real-1")
	require.True(t, ok)
	require.Equal(t, tempID, got)

	_, ok = tr.Resolve("real-2")
	require.False(t, ok)
}

func TestFailRemovesEntry(t *testing.T) {
	tr := NewTracker()
	tempID := tr.Begin()

	require.True(t, tr.Fail(tempID))
	require.False(t, tr.Pending(tempID))
	require.False(t, tr.Confirm(tempID, "real-1"), "a failed entry cannot be confirmed later")
}

func TestRetireDropsRealMapping(t *testing.T) {
	tr := NewTracker()
	tempID := tr.Begin()
	tr.Confirm(tempID, "real-1")

	tr.Retire(tempID)
	require.False(t, tr.Pending(tempID))
	_, ok := tr.Resolve("real-1")
	require.False(t, ok)
}

func TestConfirmUnknownTempIsNoop(t *testing.T) {
	tr := NewTracker()
	require.False(t, tr.Confirm("nope", "real-1"))
}
