package domain

// ResolutionMode selects how a finished game maps onto a market's outcome
// indices.
type ResolutionMode string

const (
	// ModeWinner maps {home, away, draw} to outcome indices {0, 1, 2}.
	ModeWinner ResolutionMode = "winner"
	// ModeSpread compares homeScore-awayScore against the market threshold;
	// meets-or-exceeds maps to 0, below to 1.
	ModeSpread ResolutionMode = "spread"
	// ModeOverUnder compares the summed score against the market threshold
	// the same way as ModeSpread.
	ModeOverUnder ResolutionMode = "over_under"
)

// GameStatus is the normalized provider game state.
type GameStatus string

const (
	GameStatusPending  GameStatus = "pending"
	GameStatusFinished GameStatus = "finished"
)

// GameWinner is the normalized side that won a finished game.
type GameWinner string

const (
	WinnerHome GameWinner = "home"
	WinnerAway GameWinner = "away"
	WinnerDraw GameWinner = "draw"
)

// GameOutcome is the canonical outcome record produced by normalizing a
// provider payload. Winner is only meaningful when Status is finished.
type GameOutcome struct {
	GameID    string     `json:"game_id"`
	Status    GameStatus `json:"status"`
	HomeScore int        `json:"home_score"`
	AwayScore int        `json:"away_score"`
	Winner    GameWinner `json:"winner"`
	Source    string     `json:"source"`
}

// Finished reports whether the game has a final result.
func (g GameOutcome) Finished() bool {
	return g.Status == GameStatusFinished
}

// DeriveWinner computes the winner from the scores. Equal scores are a draw.
func DeriveWinner(homeScore, awayScore int) GameWinner {
	switch {
	case homeScore > awayScore:
		return WinnerHome
	case awayScore > homeScore:
		return WinnerAway
	default:
		return WinnerDraw
	}
}

// winnerIndex is the fixed winner-mode index assignment.
var winnerIndex = map[GameWinner]int{
	WinnerHome: 0,
	WinnerAway: 1,
	WinnerDraw: 2,
}

// MapOutcome maps a finished game onto a market outcome index under the given
// mode and threshold. The second return value is false when the game is not
// finished or the mode is not recognized -- both mean "not yet resolvable",
// not an error. The mapping is deterministic: fixed scores and a fixed mode
// always yield the same index.
func MapOutcome(mode ResolutionMode, threshold float64, g GameOutcome) (int, bool) {
	if !g.Finished() {
		return 0, false
	}

	switch mode {
	case ModeWinner:
		idx, ok := winnerIndex[g.Winner]
		return idx, ok
	case ModeSpread:
		if float64(g.HomeScore-g.AwayScore) >= threshold {
			return 0, true
		}
		return 1, true
	case ModeOverUnder:
		if float64(g.HomeScore+g.AwayScore) >= threshold {
			return 0, true
		}
		return 1, true
	default:
		return 0, false
	}
}
