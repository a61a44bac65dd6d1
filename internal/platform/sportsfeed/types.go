package sportsfeed

import (
	"strings"
	"time"

	"github.com/oddslab/courtside/internal/domain"
)

// Game is the provider's wire representation of a single game.
type Game struct {
	ID        string    `json:"id"`
	League    string    `json:"league"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
}

// finalStatuses are the provider status strings that mean the game is over
// and its score is settled.
var finalStatuses = map[string]bool{
	"final":     true,
	"completed": true,
	"finished":  true,
	"ft":        true,
}

// Normalize maps the provider's game representation onto the internal
// outcome model. Anything that is not conclusively final is pending; the
// resolver never settles on a live or postponed score.
func (g Game) Normalize() domain.GameOutcome {
	out := domain.GameOutcome{
		GameID:    g.ID,
		Status:    domain.GameStatusPending,
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		Source:    "sportsfeed",
	}
	if finalStatuses[strings.ToLower(g.Status)] {
		out.Status = domain.GameStatusFinished
		out.Winner = domain.DeriveWinner(g.HomeScore, g.AwayScore)
	}
	return out
}

// scheduleResponse is the wire envelope for schedule listings.
type scheduleResponse struct {
	Games []Game `json:"games"`
}

// errorResponse is the provider's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}
