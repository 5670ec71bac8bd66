package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinLeaveTracksCounterpartOnly(t *testing.T) {
	tr := NewTracker("notaire-1")
	require.False(t, tr.Online())

	tr.OnJoin("someone-else")
	require.False(t, tr.Online())

	tr.OnJoin("notaire-1")
	require.True(t, tr.Online())

	tr.OnLeave("someone-else")
	require.True(t, tr.Online())

	tr.OnLeave("notaire-1")
	require.False(t, tr.Online())
}

func TestResetReplacesStaleState(t *testing.T) {
	tr := NewTracker("notaire-1")
	tr.OnJoin("notaire-1")

	// reconnect: snapshot without the counterpart wins over local history
	tr.Reset([]string{"me", "stranger"})
	require.False(t, tr.Online())

	tr.Reset([]string{"me", "notaire-1"})
	require.True(t, tr.Online())
}
