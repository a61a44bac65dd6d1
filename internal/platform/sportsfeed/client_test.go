package sportsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/courtside/internal/domain"
)

func TestGetGame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/games/nba-2026-001", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "nba-2026-001",
			"league": "nba",
			"home_team": "BOS",
			"away_team": "LAL",
			"home_score": 112,
			"away_score": 104,
			"status": "final"
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	game, err := client.GetGame(context.Background(), "nba-2026-001")
	require.NoError(t, err)
	assert.Equal(t, "nba-2026-001", game.ID)
	assert.Equal(t, 112, game.HomeScore)
	assert.Equal(t, 104, game.AwayScore)
	assert.Equal(t, "final", game.Status)
}

func TestGetGameNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.GetGame(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetGameUpstreamRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.GetGame(context.Background(), "busy")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schedule", r.URL.Path)
		assert.Equal(t, "2026-03-14", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"games": [
			{"id": "g1", "status": "scheduled"},
			{"id": "g2", "status": "in_progress", "home_score": 45, "away_score": 51}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	games, err := client.GetSchedule(context.Background(), mustDate(t, "2026-03-14"))
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "g1", games[0].ID)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestNormalize(t *testing.T) {
	finished := Game{ID: "g1", Status: "Final", HomeScore: 3, AwayScore: 1}
	out := finished.Normalize()
	assert.Equal(t, domain.GameStatusFinished, out.Status)
	assert.Equal(t, domain.WinnerHome, out.Winner)
	assert.Equal(t, 3, out.HomeScore)

	live := Game{ID: "g2", Status: "in_progress", HomeScore: 45, AwayScore: 51}
	out = live.Normalize()
	assert.Equal(t, domain.GameStatusPending, out.Status)
	assert.False(t, out.Finished())

	draw := Game{ID: "g3", Status: "completed", HomeScore: 2, AwayScore: 2}
	assert.Equal(t, domain.WinnerDraw, draw.Normalize().Winner)
}
