package phase

import (
	"testing"

	"chess-backend/internal/models"

	"github.com/notnil/chess"
)

func positionFromFEN(t *testing.T, fen string) *chess.Position {
	t.Helper()
	fenFunc, err := chess.FEN(fen)
	if err != nil {
		t.Fatalf("invalid FEN %q: %v", fen, err)
	}
	game := chess.NewGame(fenFunc)
	return game.Position()
}

func TestDetectStartingPositionIsOpening(t *testing.T) {
	pos := chess.StartingPosition()
	got := Detect(pos, 1, models.CastlingHistory{})
	if got != models.PhaseOpening {
		t.Errorf("expected opening at the starting position, got %v", got)
	}
}

func TestDetectBareKingsIsEndgame(t *testing.T) {
	pos := positionFromFEN(t, "8/8/8/4k3/8/8/4K3/8 w - - 0 1")
	got := Detect(pos, 60, models.CastlingHistory{})
	if got != models.PhaseEndgame {
		t.Errorf("expected endgame with only kings on the board, got %v", got)
	}
}

func TestDetectNoQueensLowMaterialIsEndgame(t *testing.T) {
	// White has a rook and a pawn, Black a bare king; no queens.
	pos := positionFromFEN(t, "4k3/8/8/8/8/8/4P3/4K2R w K - 0 1")
	got := Detect(pos, 40, models.CastlingHistory{})
	if got != models.PhaseEndgame {
		t.Errorf("expected endgame with queens off and low material, got %v", got)
	}
}
