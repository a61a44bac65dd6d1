package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func finished(home, away int) GameOutcome {
	return GameOutcome{
		Status:    GameStatusFinished,
		HomeScore: home,
		AwayScore: away,
		Winner:    DeriveWinner(home, away),
	}
}

func TestMapOutcomeWinnerMode(t *testing.T) {
	tests := []struct {
		name string
		game GameOutcome
		want int
	}{
		{"home win", finished(3, 1), 0},
		{"away win", finished(0, 2), 1},
		{"draw", finished(2, 2), 2},
		{"scoreless draw", finished(0, 0), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := MapOutcome(ModeWinner, 0, tt.game)
			assert.True(t, ok)
			assert.Equal(t, tt.want, idx)
		})
	}
}

func TestMapOutcomeSpreadMode(t *testing.T) {
	// homeScore - awayScore compared against the threshold.
	idx, ok := MapOutcome(ModeSpread, 3.5, finished(28, 24))
	assert.True(t, ok)
	assert.Equal(t, 0, idx, "margin 4 meets threshold 3.5")

	idx, ok = MapOutcome(ModeSpread, 3.5, finished(27, 24))
	assert.True(t, ok)
	assert.Equal(t, 1, idx, "margin 3 is below threshold 3.5")

	idx, ok = MapOutcome(ModeSpread, 4, finished(28, 24))
	assert.True(t, ok)
	assert.Equal(t, 0, idx, "exact threshold counts as meets-or-exceeds")
}

func TestMapOutcomeOverUnderMode(t *testing.T) {
	idx, ok := MapOutcome(ModeOverUnder, 45.5, finished(24, 22))
	assert.True(t, ok)
	assert.Equal(t, 0, idx, "total 46 is over 45.5")

	idx, ok = MapOutcome(ModeOverUnder, 45.5, finished(21, 24))
	assert.True(t, ok)
	assert.Equal(t, 1, idx, "total 45 is under 45.5")
}

func TestMapOutcomeDeterministic(t *testing.T) {
	game := finished(3, 1)
	first, ok := MapOutcome(ModeWinner, 0, game)
	assert.True(t, ok)
	for i := 0; i < 100; i++ {
		idx, ok := MapOutcome(ModeWinner, 0, game)
		assert.True(t, ok)
		assert.Equal(t, first, idx)
	}
}

func TestMapOutcomeNotResolvable(t *testing.T) {
	pending := GameOutcome{Status: GameStatusPending}
	_, ok := MapOutcome(ModeWinner, 0, pending)
	assert.False(t, ok, "unfinished game is not resolvable")

	_, ok = MapOutcome(ResolutionMode("exotic"), 0, finished(1, 0))
	assert.False(t, ok, "unrecognized mode yields no resolution")
}

func TestDeriveWinner(t *testing.T) {
	assert.Equal(t, WinnerHome, DeriveWinner(2, 1))
	assert.Equal(t, WinnerAway, DeriveWinner(1, 2))
	assert.Equal(t, WinnerDraw, DeriveWinner(1, 1))
}
