package classifier

import (
	"fmt"
	"strings"

	"chess-backend/internal/models"

	"github.com/notnil/chess"
)

// PieceValue is the standard material scale used throughout §4.3/§4.7
// ("≥ 3 points" thresholds). The king has no material value.
func PieceValue(t chess.PieceType) int {
	switch t {
	case chess.Pawn:
		return 1
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

// squareGrid maps 0-based (file, rank) coordinates back to a
// chess.Square without depending on a library constructor: it walks
// A1..H8 once at init time and records each square's coordinates,
// matching the contiguous enumeration the rest of this codebase already
// relies on ("for sq := chess.A1; sq <= chess.H8; sq++").
var squareGrid [8][8]chess.Square

func init() {
	for sq := chess.A1; sq <= chess.H8; sq++ {
		squareGrid[int(sq.File())][int(sq.Rank())] = sq
	}
}

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoSquare, false
	}
	return squareGrid[file][rank], true
}

// Attackers returns the squares of every `by`-colored piece that
// attacks `target` on the given position. Sliding/knight/king attacks
// are derived by flipping the side to move and asking notnil/chess for
// legal destinations — an approximation that misses attacks a pinned
// piece makes along its pin line, which is acceptable for the
// tactical-motif heuristics in §4.7 (see DESIGN.md). Pawn attacks are
// computed directly since legal-move generation only reports legal
// pawn captures, not bare attacked squares.
func Attackers(pos *chess.Position, target chess.Square, by chess.Color) []chess.Square {
	var attackers []chess.Square
	board := pos.Board()

	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece.Color() != by || piece.Type() == chess.NoPieceType {
			continue
		}
		if piece.Type() == chess.Pawn && pawnAttacks(sq, by, target) {
			attackers = append(attackers, sq)
		}
	}

	attackers = append(attackers, slidingAndLeaperAttackers(pos, target, by)...)
	return dedupSquares(attackers)
}

func dedupSquares(in []chess.Square) []chess.Square {
	seen := map[chess.Square]bool{}
	var out []chess.Square
	for _, sq := range in {
		if !seen[sq] {
			seen[sq] = true
			out = append(out, sq)
		}
	}
	return out
}

func pawnAttacks(from chess.Square, color chess.Color, target chess.Square) bool {
	df := int(target.File()) - int(from.File())
	dr := int(target.Rank()) - int(from.Rank())
	if df != 1 && df != -1 {
		return false
	}
	if color == chess.White {
		return dr == 1
	}
	return dr == -1
}

// slidingAndLeaperAttackers asks the move generator for legal moves of
// `by` from a copy of the position with the side to move flipped to
// `by`, and reports every non-pawn source square whose destination is
// `target`.
func slidingAndLeaperAttackers(pos *chess.Position, target chess.Square, by chess.Color) []chess.Square {
	game, err := gameWithTurn(pos, by)
	if err != nil {
		return nil
	}
	board := pos.Board()
	var out []chess.Square
	for _, mv := range game.ValidMoves() {
		if mv.S2() != target {
			continue
		}
		piece := board.Piece(mv.S1())
		if piece.Type() == chess.Pawn {
			continue // pawn captures handled separately; forward pushes aren't attacks
		}
		out = append(out, mv.S1())
	}
	return out
}

// gameWithTurn rebuilds a *chess.Game from pos's FEN with the side to
// move forced to `turn`, dropping en passant/castling rights (not
// needed for attack-square queries and not safely invertible).
func gameWithTurn(pos *chess.Position, turn chess.Color) (*chess.Game, error) {
	fen := pos.String()
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return nil, fmt.Errorf("malformed fen: %s", fen)
	}
	side := "w"
	if turn == chess.Black {
		side = "b"
	}
	fields[1] = side
	fields[2] = "-"
	fields[3] = "-"
	rebuilt := strings.Join(fields, " ")

	fenFunc, err := chess.FEN(rebuilt)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(fenFunc), nil
}

// IsAttacked reports whether any `by`-colored piece attacks `target`.
func IsAttacked(pos *chess.Position, target chess.Square, by chess.Color) bool {
	return len(Attackers(pos, target, by)) > 0
}

// KingSquare finds color's king on the board.
func KingSquare(pos *chess.Position, color chess.Color) (chess.Square, bool) {
	board := pos.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p.Color() == color && p.Type() == chess.King {
			return sq, true
		}
	}
	return chess.NoSquare, false
}

// InCheck reports whether color's king is attacked on pos. Derived
// from Attackers rather than any library check-state accessor, so it
// stays correct regardless of how the move used to reach pos was made.
func InCheck(pos *chess.Position, color chess.Color) bool {
	kingSq, ok := KingSquare(pos, color)
	if !ok {
		return false
	}
	return IsAttacked(pos, kingSq, color.Other())
}

// afterMove applies move to a copy of the game rooted at pos and
// returns the resulting game (nil if the move is illegal there), so
// callers can inspect both Position() and Outcome()/Method().
func afterMove(pos *chess.Position, move *chess.Move) *chess.Game {
	fenFunc, err := chess.FEN(pos.String())
	if err != nil {
		return nil
	}
	game := chess.NewGame(fenFunc)
	if err := game.Move(move); err != nil {
		return nil
	}
	return game
}

// isCheckmate reports whether game ended by checkmate against
// sideToMove.
func isCheckmate(game *chess.Game, sideToMove chess.Color) bool {
	outcome := game.Outcome()
	if outcome == chess.NoOutcome || game.Method() != chess.Checkmate {
		return false
	}
	if outcome == chess.WhiteWon {
		return sideToMove == chess.Black
	}
	if outcome == chess.BlackWon {
		return sideToMove == chess.White
	}
	return false
}

// --- §4.7 tactical motif predicates ---
// Each predicate is a pure boolean over (position-before, candidate
// move). "after" is the position resulting from playing the move.

// Fork: after the move, the moving piece attacks >= 2 distinct
// opponent targets each worth >= 3 points, or the opposing king.
func Fork(before *chess.Position, move *chess.Move) bool {
	g := afterMove(before, move)
	if g == nil {
		return false
	}
	after := g.Position()
	mover := before.Board().Piece(move.S1()).Color()
	opponent := mover.Other()

	targets := 0
	board := after.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece.Color() != opponent || piece.Type() == chess.NoPieceType {
			continue
		}
		if piece.Type() != chess.King && PieceValue(piece.Type()) < 3 {
			continue
		}
		for _, attacker := range Attackers(after, sq, mover) {
			if attacker == move.S2() {
				targets++
				break
			}
		}
	}
	return targets >= 2
}

// Pin: after the move, some opponent piece's removal would expose a
// higher-value opponent piece (or king) behind it to the mover's
// attack along the same line.
func Pin(before *chess.Position, move *chess.Move) bool {
	g := afterMove(before, move)
	if g == nil {
		return false
	}
	after := g.Position()
	mover := before.Board().Piece(move.S1()).Color()
	opponent := mover.Other()
	board := after.Board()

	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece.Color() != opponent || piece.Type() == chess.NoPieceType || piece.Type() == chess.King {
			continue
		}
		if !attackedFrom(after, move.S2(), sq, mover) {
			continue
		}
		behind, ok := squareBehind(move.S2(), sq)
		if !ok {
			continue
		}
		behindPiece := board.Piece(behind)
		if behindPiece.Color() != opponent {
			continue
		}
		if behindPiece.Type() == chess.King || PieceValue(behindPiece.Type()) > PieceValue(piece.Type()) {
			return true
		}
	}
	return false
}

func attackedFrom(pos *chess.Position, from, target chess.Square, by chess.Color) bool {
	for _, a := range Attackers(pos, target, by) {
		if a == from {
			return true
		}
	}
	return false
}

// squareBehind returns the square one step further along the ray from
// `from` through `via`, or ok=false if via is not aligned with from or
// the result falls off the board.
func squareBehind(from, via chess.Square) (chess.Square, bool) {
	df := sign(int(via.File()) - int(from.File()))
	dr := sign(int(via.Rank()) - int(from.Rank()))
	if df == 0 && dr == 0 {
		return chess.NoSquare, false
	}
	return squareAt(int(via.File())+df, int(via.Rank())+dr)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Skewer: moving piece is a bishop/rook/queen, the move gives check,
// and continuing along the same ray past the king the first opponent
// piece is worth >= 3 points.
func Skewer(before *chess.Position, move *chess.Move) bool {
	mover := before.Board().Piece(move.S1())
	if mover.Type() != chess.Bishop && mover.Type() != chess.Rook && mover.Type() != chess.Queen {
		return false
	}
	g := afterMove(before, move)
	if g == nil {
		return false
	}
	after := g.Position()
	opponent := mover.Color().Other()
	if !InCheck(after, opponent) {
		return false
	}
	kingSq, ok := KingSquare(after, opponent)
	if !ok {
		return false
	}

	cur, ok := squareBehind(move.S2(), kingSq)
	for ok {
		piece := after.Board().Piece(cur)
		if piece.Type() == chess.NoPieceType {
			cur, ok = squareBehind(kingSq, cur)
			continue
		}
		return piece.Color() == opponent && PieceValue(piece.Type()) >= 3
	}
	return false
}

// DiscoveredAttack: after the move, an opponent piece worth >= 3
// points is attacked by a mover-side piece other than the one that
// moved, and was not attacked by that piece before the move.
func DiscoveredAttack(before *chess.Position, move *chess.Move) bool {
	g := afterMove(before, move)
	if g == nil {
		return false
	}
	after := g.Position()
	mover := before.Board().Piece(move.S1()).Color()
	opponent := mover.Other()

	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := after.Board().Piece(sq)
		if piece.Color() != opponent || PieceValue(piece.Type()) < 3 {
			continue
		}
		for _, attacker := range Attackers(after, sq, mover) {
			if attacker == move.S2() {
				continue // the piece that just moved doesn't count
			}
			if !attackedFrom(before, attacker, sq, mover) {
				return true
			}
		}
	}
	return false
}

// BackRankMate: after the move, the opponent king is mated on its own
// back rank.
func BackRankMate(before *chess.Position, move *chess.Move) bool {
	g := afterMove(before, move)
	if g == nil {
		return false
	}
	mover := before.Board().Piece(move.S1()).Color()
	opponent := mover.Other()
	if !isCheckmate(g, opponent) {
		return false
	}
	kingSq, ok := KingSquare(g.Position(), opponent)
	if !ok {
		return false
	}
	backRank := 0
	if opponent == chess.Black {
		backRank = 7
	}
	return int(kingSq.Rank()) == backRank
}

// Deflection: the move captures a defender, so an opponent piece worth
// >= 3 points that was defended before is now undefended and attacked.
func Deflection(before *chess.Position, move *chess.Move) bool {
	capturedPiece := before.Board().Piece(move.S2())
	if capturedPiece.Type() == chess.NoPieceType {
		return false
	}
	g := afterMove(before, move)
	if g == nil {
		return false
	}
	after := g.Position()
	mover := before.Board().Piece(move.S1()).Color()
	opponent := mover.Other()

	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := before.Board().Piece(sq)
		if piece.Color() != opponent || PieceValue(piece.Type()) < 3 || sq == move.S2() {
			continue
		}
		if !IsAttacked(before, sq, opponent) {
			continue
		}
		afterPiece := after.Board().Piece(sq)
		if afterPiece.Type() == chess.NoPieceType {
			continue
		}
		stillDefended := IsAttacked(after, sq, opponent)
		nowAttacked := IsAttacked(after, sq, mover)
		if !stillDefended && nowAttacked {
			return true
		}
	}
	return false
}

// MotifSet computes every §4.7 predicate for one candidate move,
// returning the subset that holds.
func MotifSet(before *chess.Position, move *chess.Move) []string {
	var motifs []string
	if Fork(before, move) {
		motifs = append(motifs, "fork")
	}
	if Pin(before, move) {
		motifs = append(motifs, "pin")
	}
	if Skewer(before, move) {
		motifs = append(motifs, "skewer")
	}
	if DiscoveredAttack(before, move) {
		motifs = append(motifs, "discovered_attack")
	}
	if BackRankMate(before, move) {
		motifs = append(motifs, "back_rank_mate")
	}
	if Deflection(before, move) {
		motifs = append(motifs, "deflection")
	}
	return motifs
}

// classifySubType implements §4.3's ordered blunder-sub-type chain.
// First match wins.
func classifySubType(in Input) models.BlunderSubType {
	if in.PositionBefore == nil || in.PlayedMove == nil {
		return models.SubTypePositional
	}
	pos := in.PositionBefore
	move := in.PlayedMove
	mover := pos.Board().Piece(move.S1()).Color()

	if hangingPiece(pos, move, mover) {
		return models.SubTypeHangingPiece
	}

	if in.BestMoveLeadsToMateIn > 0 && in.BestMoveLeadsToMateIn <= 4 {
		g := afterMove(pos, move)
		if g == nil || !isCheckmate(g, mover.Other()) {
			return models.SubTypeMissedMate
		}
	}

	if in.EngineBestMove != nil {
		bestMotifs := MotifSet(pos, in.EngineBestMove)
		playedMotifs := map[string]bool{}
		for _, m := range MotifSet(pos, move) {
			playedMotifs[m] = true
		}
		for _, m := range bestMotifs {
			if playedMotifs[m] {
				continue
			}
			switch m {
			case "fork":
				return models.SubTypeMissedFork
			case "pin":
				return models.SubTypeMissedPin
			case "skewer":
				return models.SubTypeMissedSkewer
			case "discovered_attack":
				return models.SubTypeMissedDiscovery
			}
		}
	}

	if in.EngineBestMove != nil {
		bestCaptured := pos.Board().Piece(in.EngineBestMove.S2())
		if bestCaptured.Type() != chess.NoPieceType && PieceValue(bestCaptured.Type()) >= 3 &&
			move.S2() != in.EngineBestMove.S2() {
			return models.SubTypeMissedCapture
		}
	}

	if in.EngineBestMove != nil && BackRankMate(pos, in.EngineBestMove) {
		return models.SubTypeBackRank
	}

	if kingSafetyWorsened(pos, move, mover) {
		return models.SubTypeKingSafety
	}

	if in.Phase == models.PhaseEndgame {
		return models.SubTypeEndgameTechnique
	}

	return models.SubTypePositional
}

// hangingPiece: the square the moved piece now occupies is attacked
// and undefended, or a friendly piece >= 3 points became attacked and
// undefended by this move.
func hangingPiece(pos *chess.Position, move *chess.Move, mover models.Color) bool {
	g := afterMove(pos, move)
	if g == nil {
		return false
	}
	after := g.Position()
	moverColor := chessColor(mover)
	opponent := moverColor.Other()

	if IsAttacked(after, move.S2(), opponent) && !IsAttacked(after, move.S2(), moverColor) {
		return true
	}

	board := after.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece.Color() != moverColor || PieceValue(piece.Type()) < 3 {
			continue
		}
		wasAttacked := IsAttacked(pos, sq, opponent)
		nowAttacked := IsAttacked(after, sq, opponent)
		nowDefended := IsAttacked(after, sq, moverColor)
		if !wasAttacked && nowAttacked && !nowDefended {
			return true
		}
	}
	return false
}

func kingSafetyWorsened(pos *chess.Position, move *chess.Move, mover models.Color) bool {
	g := afterMove(pos, move)
	if g == nil {
		return false
	}
	moverColor := chessColor(mover)
	opponent := moverColor.Other()

	kingSq, ok := KingSquare(pos, moverColor)
	if !ok {
		return false
	}
	before := len(Attackers(pos, kingSq, opponent))

	afterKingSq, ok := KingSquare(g.Position(), moverColor)
	if !ok {
		return false
	}
	afterCount := len(Attackers(g.Position(), afterKingSq, opponent))
	return afterCount > before
}

func chessColor(c models.Color) chess.Color {
	if c == models.White {
		return chess.White
	}
	return chess.Black
}
