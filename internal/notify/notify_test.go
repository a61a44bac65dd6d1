package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	events []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, event, _, _ string) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSender) Name() string { return "recording" }

func TestNotifierFiltersEvents(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{"market_resolved"}, slog.Default())

	require.NoError(t, n.Notify(context.Background(), "market_resolved", "Resolved", "ok"))
	require.NoError(t, n.Notify(context.Background(), "market_created", "Created", "filtered"))
	require.NoError(t, n.NotifyAll(context.Background(), "Ops", "bypasses filter"))

	assert.Equal(t, []string{"market_resolved", ""}, rec.events)
}

func TestTelegramSendSurfacesAPIRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ops-chat", r.FormValue("chat_id"))
		assert.Contains(t, r.FormValue("text"), "*Market resolved*")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "ops-chat")
	s.base = srv.URL

	err := s.Send(context.Background(), "market_resolved", "Market resolved", "0xaaa... outcome 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSendOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "ops-chat")
	s.base = srv.URL

	assert.NoError(t, s.Send(context.Background(), "market_resolved", "Market resolved", "done"))
}

func TestDiscordSendBuildsEmbed(t *testing.T) {
	var got struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "resolution_failed", "Settlement reverted", "0xaaa..."))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Settlement reverted", got.Embeds[0].Title)
	assert.Equal(t, colorError, got.Embeds[0].Color)
}
