package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dany2315/BailNotarie-sub000/internal/models"
)

func TestDecodeNewMessageConfirmsIdentity(t *testing.T) {
	raw, err := Encode(NameNewMessage, NewMessage{Message: models.Message{
		ID:       models.Confirmed("m1"),
		SenderID: "u1",
		Content:  "bonjour",
	}})
	require.NoError(t, err)

	ev, err := Decode(raw)
	require.NoError(t, err)

	nm, ok := ev.(NewMessage)
	require.True(t, ok)
	require.Equal(t, "m1", nm.Message.ID.String())
	require.False(t, nm.Message.ID.IsProvisional(), "wire ids are always confirmed")
}

func TestDecodeRequestUpdatedWithoutPayloadMeansReload(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"request-updated"}`))
	require.NoError(t, err)

	ru, ok := ev.(RequestUpdated)
	require.True(t, ok)
	require.Nil(t, ru.Request)
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"mystery","data":{}}`))
	require.Error(t, err)
}

func TestDecodeTyping(t *testing.T) {
	raw, err := Encode(NameTyping, Typing{UserID: "u2", IsTyping: true})
	require.NoError(t, err)

	ev, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, Typing{UserID: "u2", IsTyping: true}, ev)
}
