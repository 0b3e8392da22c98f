package models

import "time"

// PuzzleType distinguishes how severe the source mistake was.
type PuzzleType string

const (
	PuzzleBlunder PuzzleType = "blunder"
	PuzzleMistake PuzzleType = "mistake"
)

// Puzzle is derived and content-addressed: PuzzleKey is a 128-bit hash
// of (FEN before, played SAN), making inserts idempotent (§3, §4.8).
type Puzzle struct {
	ID             int64      `json:"id"`
	PuzzleKey      string     `json:"puzzleKey"`
	FEN            string     `json:"fen"`
	SideToMove     Color      `json:"sideToMove"`
	BestMoveSAN    string     `json:"bestMoveSan"`
	BestMoveUCI    string     `json:"bestMoveUci"`
	PlayedMoveSAN  string     `json:"playedMoveSan"`
	EvalLoss       int        `json:"evalLoss"`
	Phase          GamePhase  `json:"phase"`
	Type           PuzzleType `json:"type"`
	SolutionLine   []string   `json:"solutionLine"` // UCI moves, up to 6 plies
	Themes         []string   `json:"themes"`
	SourceGameID   int64      `json:"sourceGameId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// PuzzleAttempt is append-only per (user, puzzle). Scheduling state
// (EF/Repetition/NextReview) is the SM-2 variant of §4.8.
type PuzzleAttempt struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	PuzzleID     int64     `json:"puzzleId"`
	Correct      bool      `json:"correct"`
	TimeTakenMs  *int      `json:"timeTakenMs,omitempty"`
	AttemptedAt  time.Time `json:"attemptedAt"`
	Repetition   int       `json:"repetition"`
	Easiness     float64   `json:"easiness"`
	NextReview   time.Time `json:"nextReview"`
}

// SchedulingState is the (ef, n) pair the SM-2 module folds forward.
// Zero value is the state of a puzzle never attempted before: ef=2.5,
// n=0 (see puzzles.Schedule's defaulting behavior).
type SchedulingState struct {
	Easiness   float64
	Repetition int
}

// DefaultEasiness is the SM-2 starting easiness factor.
const DefaultEasiness = 2.5

// MinEasiness is the SM-2 floor; easiness never drops below this.
const MinEasiness = 1.3

// Streak is a supplemental table (SPEC_FULL.md) tracking daily puzzle
// practice streaks per user, grounded on original_source's Streak model.
type Streak struct {
	UserID         int64     `json:"userId"`
	CurrentStreak  int       `json:"currentStreak"`
	LongestStreak  int       `json:"longestStreak"`
	LastPracticeAt time.Time `json:"lastPracticeAt"`
}
