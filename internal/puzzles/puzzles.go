// Package puzzles implements the Puzzle Extractor (C8): selects
// MoveEvaluation rows meeting puzzle criteria, computes a multi-move
// solution line via further engine queries, assigns themes, and
// de-duplicates by content address.
package puzzles

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"time"

	"chess-backend/internal/classifier"
	"chess-backend/internal/enginepool"
	"chess-backend/internal/models"
	"chess-backend/pkg/uci"

	"github.com/notnil/chess"
)

// maxSolutionPlies bounds the iterated best-move line (§4.8).
const maxSolutionPlies = 6

// multiPVGapThreshold is the "one good move" constraint (§4.8).
const multiPVGapThreshold = 300

// evalBeforeCeiling rejects trivially won positions (§4.8).
const evalBeforeCeiling = 600

// minEvalLoss is the §3 Puzzle invariant floor.
const minEvalLoss = 100

// Extractor computes puzzles from analyzed games.
type Extractor struct {
	pool  *enginepool.Pool
	depth int
}

func New(pool *enginepool.Pool, depth int) *Extractor {
	return &Extractor{pool: pool, depth: depth}
}

// Candidate bundles everything the extractor needs about one ply to
// decide whether it is a puzzle.
type Candidate struct {
	GameID         int64
	PositionBefore *chess.Position
	PlayedMove     *chess.Move
	PlayedSAN      string
	Quality        models.QualityLabel
	EvalBefore     int
	EvalLoss       int // the ply's cp_loss, already computed by the Move Classifier
	BestMoveUCI    string
	BestMoveSAN    string
	MultiPVGap     int // |variation 1 score - variation 2 score|, 0 if only one variation existed
	OnlyLegalMove  bool
	Phase          models.GamePhase
}

// IsCandidate applies §4.8's filter.
func IsCandidate(c Candidate) bool {
	if c.Quality != models.QualityBlunder && c.Quality != models.QualityMistake {
		return false
	}
	if abs(c.EvalBefore) >= evalBeforeCeiling {
		return false
	}
	if c.BestMoveUCI == "" || c.BestMoveUCI == moveUCI(c.PlayedMove) {
		return false
	}
	if c.OnlyLegalMove {
		return false
	}
	if c.MultiPVGap > 0 && c.MultiPVGap < multiPVGapThreshold {
		return false
	}
	if c.EvalLoss < minEvalLoss {
		return false
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func moveUCI(move *chess.Move) string {
	if move == nil {
		return ""
	}
	u := move.S1().String() + move.S2().String()
	switch move.Promo() {
	case chess.Queen:
		u += "q"
	case chess.Rook:
		u += "r"
	case chess.Bishop:
		u += "b"
	case chess.Knight:
		u += "n"
	}
	return u
}

// Build computes the full Puzzle record for a candidate, including the
// solution line and theme set, or ok=false if it fails the theme
// acceptance rule.
func (e *Extractor) Build(ctx context.Context, c Candidate) (*models.Puzzle, bool, error) {
	solution, err := e.solutionLine(ctx, c.PositionBefore)
	if err != nil {
		return nil, false, err
	}

	themes := e.themes(c, solution)
	if !hasRealTactic(themes) {
		return nil, false, nil
	}

	fen := c.PositionBefore.String()
	puzzleType := models.PuzzleMistake
	if c.Quality == models.QualityBlunder {
		puzzleType = models.PuzzleBlunder
	}

	p := &models.Puzzle{
		PuzzleKey:     Key(fen, c.PlayedSAN),
		FEN:           fen,
		SideToMove:    sideToMove(c.PositionBefore),
		BestMoveSAN:   c.BestMoveSAN,
		BestMoveUCI:   c.BestMoveUCI,
		PlayedMoveSAN: c.PlayedSAN,
		EvalLoss:      c.EvalLoss,
		Phase:         c.Phase,
		Type:          puzzleType,
		SolutionLine:  solution,
		Themes:        themes,
		SourceGameID:  c.GameID,
		CreatedAt:     time.Now(),
	}
	return p, true, nil
}

func sideToMove(pos *chess.Position) models.Color {
	if pos.Turn() == chess.White {
		return models.White
	}
	return models.Black
}

// solutionLine performs iterated best-move analysis from pos, stopping
// at game end or maxSolutionPlies (§4.8).
func (e *Extractor) solutionLine(ctx context.Context, pos *chess.Position) ([]string, error) {
	var line []string
	cur := pos

	for i := 0; i < maxSolutionPlies; i++ {
		var variations []uci.Variation
		err := e.pool.WithEngine(ctx, func(eng *uci.Engine) error {
			vs, err := eng.Analyze(ctx, cur.String(), nil, e.depth, 1)
			variations = vs
			return err
		})
		if err != nil {
			return line, err
		}
		if len(variations) == 0 || len(variations[0].Moves) == 0 {
			break
		}
		best := variations[0].Moves[0]
		line = append(line, best)

		next, ok := advance(cur, best)
		if !ok {
			break
		}
		cur = next
		if next == nil {
			break
		}
	}
	return line, nil
}

// advance applies a UCI move string to pos and returns the resulting
// position, or ok=false if the game ended or the move failed to apply.
func advance(pos *chess.Position, uciMove string) (*chess.Position, bool) {
	fenFunc, err := chess.FEN(pos.String())
	if err != nil {
		return nil, false
	}
	g := chess.NewGame(fenFunc, chess.UseNotation(chess.UCINotation{}))
	if err := g.MoveStr(uciMove); err != nil {
		return nil, false
	}
	if g.Outcome() != chess.NoOutcome {
		return g.Position(), false
	}
	return g.Position(), true
}

// themes computes the §4.7 predicate set for the engine-best move (the
// candidate ply) and along the solution line's even plies (player
// side), plus phase/piece tags, per §4.8.
func (e *Extractor) themes(c Candidate, solution []string) []string {
	set := map[string]bool{}

	bestMove := resolveMove(c.PositionBefore, c.BestMoveUCI)
	if bestMove != nil {
		for _, m := range classifier.MotifSet(c.PositionBefore, bestMove) {
			set[m] = true
		}
		if isCapture(c.PositionBefore, bestMove) {
			captured := c.PositionBefore.Board().Piece(bestMove.S2())
			if classifier.PieceValue(captured.Type()) >= 3 {
				set["winning_capture"] = true
			}
		}
	}

	cur := c.PositionBefore
	for i, uciMove := range solution {
		move := resolveMove(cur, uciMove)
		if move == nil {
			break
		}
		if i%2 == 0 {
			for _, m := range classifier.MotifSet(cur, move) {
				set[m] = true
			}
		}
		next, ok := advance(cur, uciMove)
		if !ok {
			if isMateLine(cur, move) {
				set["mate_in_1"] = true
				set["checkmate_pattern"] = true
			}
			break
		}
		cur = next
	}

	set[string(c.Phase)] = true
	if piece := pieceLetter(c.PositionBefore, bestMove); piece != "" {
		set[strings.ToLower(pieceName(piece))] = true
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func isMateLine(before *chess.Position, move *chess.Move) bool {
	if move == nil {
		return false
	}
	fenFunc, err := chess.FEN(before.String())
	if err != nil {
		return false
	}
	g := chess.NewGame(fenFunc)
	if err := g.Move(move); err != nil {
		return false
	}
	return g.Outcome() != chess.NoOutcome && g.Method() == chess.Checkmate
}

func resolveMove(pos *chess.Position, uciMove string) *chess.Move {
	if uciMove == "" {
		return nil
	}
	fenFunc, err := chess.FEN(pos.String())
	if err != nil {
		return nil
	}
	g := chess.NewGame(fenFunc, chess.UseNotation(chess.UCINotation{}))
	for _, m := range g.ValidMoves() {
		if moveUCI(m) == uciMove {
			return m
		}
	}
	return nil
}

func isCapture(pos *chess.Position, move *chess.Move) bool {
	return pos.Board().Piece(move.S2()).Type() != chess.NoPieceType
}

func pieceLetter(pos *chess.Position, move *chess.Move) string {
	if move == nil {
		return ""
	}
	piece := pos.Board().Piece(move.S1())
	switch piece.Type() {
	case chess.Pawn:
		return "P"
	case chess.Knight:
		return "N"
	case chess.Bishop:
		return "B"
	case chess.Rook:
		return "R"
	case chess.Queen:
		return "Q"
	case chess.King:
		return "K"
	default:
		return ""
	}
}

func pieceName(letter string) string {
	switch letter {
	case "P":
		return "pawn"
	case "N":
		return "knight"
	case "B":
		return "bishop"
	case "R":
		return "rook"
	case "Q":
		return "queen"
	case "K":
		return "king"
	default:
		return ""
	}
}

// hasRealTactic rejects a theme set that is purely positional (§4.8).
func hasRealTactic(themes []string) bool {
	for _, t := range themes {
		switch t {
		case "fork", "pin", "skewer", "discovered_attack", "deflection", "back_rank_mate",
			"mate_in_1", "checkmate_pattern", "winning_capture", "king_activity":
			return true
		}
	}
	return false
}

// Key computes the content-addressed puzzle key: a 128-bit hash of
// (FEN before, played SAN), per §3/§4.8. Grounded on the teacher's
// CacheService.GenerateGameID, which hashes PGN content with the same
// crypto/md5 primitive.
func Key(fen, playedSAN string) string {
	hash := md5.Sum([]byte(fen + "|" + playedSAN))
	return fmt.Sprintf("%x", hash)
}
