package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/apperr"
	"github.com/dany2315/BailNotarie-sub000/internal/models"
)

func TestFetchTimelineDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/conv-1/timeline", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(TimelineSnapshot{
			Messages:           []models.Message{{ID: models.Confirmed("m1"), SenderID: "u1", Content: "bonjour"}},
			CurrentUserPartyID: "pX",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"}, zap.NewNop().Sugar())
	snap, err := c.FetchTimeline(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, "pX", snap.CurrentUserPartyID)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "m1", snap.Messages[0].ID.String())
}

func TestSendMessageSurfacesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RetryMaxElapsed: 50 * time.Millisecond}, zap.NewNop().Sugar())
	_, err := c.SendMessage(context.Background(), "conv-1", "hello", nil, "")
	require.ErrorIs(t, err, apperr.ErrTransport)
}

func TestDeleteMessageHitsMessageResource(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop().Sugar())
	require.NoError(t, c.DeleteMessage(context.Background(), "m1"))
	require.Equal(t, http.MethodDelete, gotMethod)
	require.Equal(t, "/messages/m1", gotPath)
}
