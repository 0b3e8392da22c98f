package models

import "time"

// Color is the side to move or the side a MoveEvaluation belongs to.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Result is the outcome of a game from the imported player's perspective.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Game is immutable after import. Keys: (UserID, Platform, PlatformGameID)
// is unique whenever PlatformGameID is present; otherwise MoveHash
// (a stable 128-bit hash of the canonicalized move list) stands in.
type Game struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	Platform       string    `json:"platform"`
	PlatformGameID string    `json:"platformGameId,omitempty"`
	MoveHash       string    `json:"moveHash"`
	PlayedAt       time.Time `json:"playedAt"`
	PlayerColor    Color     `json:"playerColor"`
	Result         Result    `json:"result"`
	OpeningName    string    `json:"openingName,omitempty"`
	ECO            string    `json:"eco,omitempty"`
	TimeControl    string    `json:"timeControl,omitempty"`
	PlayerRating   *int      `json:"playerRating,omitempty"`
	OpponentRating *int      `json:"opponentRating,omitempty"`
	MoveCount      int       `json:"moveCount"`
	Moves          string    `json:"moves"` // portable notation, space separated SAN
}

// GamePhase is one of the three phases a ply can fall into, per the
// Phase Detector (C5).
type GamePhase string

const (
	PhaseOpening    GamePhase = "opening"
	PhaseMiddlegame GamePhase = "middlegame"
	PhaseEndgame    GamePhase = "endgame"
)

// PhaseWeight is the fixed normalization multiplier map used only when
// comparing CPL *between* phases (original §4.9); never applied to the
// raw phase value itself.
var PhaseWeight = map[GamePhase]float64{
	PhaseOpening:    1.0,
	PhaseMiddlegame: 1.0,
	PhaseEndgame:    0.7,
}

// CastlingHistory tracks, per color, whether that side has castled at
// any prior point in the game — one of the Phase Detector's inputs.
type CastlingHistory struct {
	WhiteCastled bool
	BlackCastled bool
}

func (h CastlingHistory) Castled(c Color) bool {
	if c == White {
		return h.WhiteCastled
	}
	return h.BlackCastled
}
