package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNeedsContentOrAttachment(t *testing.T) {
	m := &Message{ID: Confirmed("m1")}
	require.ErrorIs(t, m.Validate(), ErrEmptyMessage)

	m.Content = "bonjour"
	require.NoError(t, m.Validate())

	m.Content = ""
	m.Attachment = &Attachment{ID: "d1", Label: "bail.pdf"}
	require.NoError(t, m.Validate())

	m.Content = "les deux"
	require.NoError(t, m.Validate())
}

func TestIdentityStates(t *testing.T) {
	p := Provisional("tmp-1")
	require.True(t, p.IsProvisional())
	require.Equal(t, "tmp-1", p.String())

	c := Confirmed("m1")
	require.False(t, c.IsProvisional())
	require.False(t, c.IsZero())
	require.True(t, Identity{}.IsZero())
}
