// Package phase implements the Phase Detector (C5): a pure function
// from (position, ply, castling history) to {opening, middlegame,
// endgame}. No I/O, no state beyond its explicit inputs — the caller
// tracks castling history across plies.
package phase

import (
	"chess-backend/internal/models"

	"github.com/notnil/chess"
)

// minorStartSquares are the four squares each side's knights/bishops
// begin the game on; used by rule 5's "developed minor" count.
var minorStartSquares = map[chess.Color]map[chess.Square]bool{
	chess.White: {chess.B1: true, chess.C1: true, chess.F1: true, chess.G1: true},
	chess.Black: {chess.B8: true, chess.C8: true, chess.F8: true, chess.G8: true},
}

// nonPawnValue mirrors §4.5's M = 3(N+B) + 5R + 9Q, summed over both
// colors.
func nonPawnValue(t chess.PieceType) int {
	switch t {
	case chess.Knight, chess.Bishop:
		return 3
	case chess.Rook:
		return 5
	case chess.Queen:
		return 9
	default:
		return 0
	}
}

// Detect applies the §4.5 rule cascade in order; the first matching
// rule wins.
func Detect(pos *chess.Position, ply int, history models.CastlingHistory) models.GamePhase {
	board := pos.Board()

	m := 0
	queenPresent := false
	developedMinors := 0

	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece.Type() == chess.NoPieceType {
			continue
		}
		m += nonPawnValue(piece.Type())
		if piece.Type() == chess.Queen {
			queenPresent = true
		}
		if piece.Type() == chess.Knight || piece.Type() == chess.Bishop {
			if !minorStartSquares[piece.Color()][sq] {
				developedMinors++
			}
		}
	}

	fullMove := ply / 2

	switch {
	case m == 0 || m <= 13:
		return models.PhaseEndgame
	case !queenPresent && m <= 20:
		return models.PhaseEndgame
	case fullMove >= 40 && m <= 24:
		return models.PhaseEndgame
	case fullMove >= 50 && m <= 30:
		return models.PhaseEndgame
	case fullMove <= 15 && m > 26 && developedMinors < 6:
		return models.PhaseOpening
	default:
		return models.PhaseMiddlegame
	}
}
