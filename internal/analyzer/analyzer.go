// Package analyzer implements the Game Analyzer (C6): it orchestrates
// the Engine Pool, Phase Detector, and Move Classifier over one game's
// move list and produces a GameAnalysis plus one MoveEvaluation per
// ply.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chess-backend/internal/classifier"
	"chess-backend/internal/enginepool"
	"chess-backend/internal/models"
	"chess-backend/internal/phase"
	"chess-backend/pkg/uci"

	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"
)

// PerGameTimeout is the hard wall-clock ceiling on one game's analysis
// (§5).
const PerGameTimeout = 10 * time.Minute

// PerPlyTimeout bounds each engine call; on expiry the ply is written
// degraded rather than failing the whole game (§4.6).
const PerPlyTimeout = 15 * time.Second

// maxRetriesPerPly is how many times a transport failure on one ply is
// retried against a freshly replaced driver before the ply is marked
// degraded (§7).
const maxRetriesPerPly = 2

// Analyzer ties the engine pool to the pure classifier/phase packages.
type Analyzer struct {
	pool *enginepool.Pool
}

func New(pool *enginepool.Pool) *Analyzer {
	return &Analyzer{pool: pool}
}

// Result bundles the GameAnalysis row with its MoveEvaluation rows,
// ready for the caller to persist in one transaction (§4.6 step 7).
type Result struct {
	Analysis *models.GameAnalysis
	Moves    []models.MoveEvaluation
}

// AnalyzeGame runs the full §4.6 algorithm over one game's move list.
func (a *Analyzer) AnalyzeGame(ctx context.Context, game *models.Game, depth int) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, PerGameTimeout)
	defer cancel()

	fenFunc, err := chess.FEN(chess.StartingPosition().String())
	if err != nil {
		return nil, fmt.Errorf("analyzer: bootstrap startpos: %w", err)
	}
	replay := chess.NewGame(fenFunc)

	pgnGame, err := parseMoves(game.Moves)
	if err != nil {
		return nil, fmt.Errorf("analyzer: parse move list: %w", err)
	}
	moveList := pgnGame.Moves()

	var (
		evaluations    []models.MoveEvaluation
		history        models.CastlingHistory
		playerQuality  models.QualityCounts
		playerCPLSum   float64
		playerCPLCount int
		playerAccSum   float64
		playerAccCount int
		phaseSums      = map[models.GamePhase]float64{}
		phaseCounts    = map[models.GamePhase]int{}
	)

	// beforeVariations describes the position the upcoming ply moves
	// from, analyzed with the multiPV that ply needs (2 for a player
	// ply, so variations[1] yields the "one good move" gap; 1
	// otherwise). It is seeded here for ply 0 and afterwards carried
	// forward from the previous iteration's post-move analysis, since
	// that analysis already covers this ply's positionBefore (§4.6) —
	// one engine call per ply, not two.
	bootstrapMultiPV := 1
	if len(moveList) > 0 && game.PlayerColor == models.White {
		bootstrapMultiPV = 2
	}
	beforeVariations, beforeDegraded := a.analyzePly(ctx, replay.Position(), nil, depth, bootstrapMultiPV)

	for ply, move := range moveList {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("analyzer: game timed out after %d/%d plies: %w", ply, len(moveList), ctx.Err())
		default:
		}

		mover := models.White
		if ply%2 == 1 {
			mover = models.Black
		}
		isPlayerPly := mover == game.PlayerColor
		nextMover := models.Black
		if mover == models.Black {
			nextMover = models.White
		}

		positionBefore := replay.Position()
		onlyLegalMove := len(replay.ValidMoves()) == 1

		before := Eval{}
		var engineBestMove *chess.Move
		var bestMateIn int
		var multiPVGap int
		if len(beforeVariations) > 0 {
			before = normalize(beforeVariations[0].Score, positionBefore.Turn())
			engineBestMove = uciToMove(positionBefore, beforeVariations[0].Moves)
			if beforeVariations[0].Score.Mate && beforeVariations[0].Score.MateIn > 0 {
				// UCI counts mate in moves; the classifier counts plies.
				bestMateIn = 2*beforeVariations[0].Score.MateIn - 1
			}
		}
		if len(beforeVariations) > 1 {
			multiPVGap = absInt(scoreCP(beforeVariations[0].Score) - scoreCP(beforeVariations[1].Score))
		}

		if err := replay.Move(move); err != nil {
			return nil, fmt.Errorf("analyzer: illegal move at ply %d: %w", ply+1, err)
		}
		trackCastling(&history, positionBefore, move, mover)

		positionAfter := replay.Position()

		nextMultiPV := 1
		if nextMover == game.PlayerColor {
			nextMultiPV = 2
		}
		afterVariations, afterDegraded := a.analyzePly(ctx, positionAfter, nil, depth, nextMultiPV)

		after := Eval{}
		if len(afterVariations) > 0 {
			after = normalize(afterVariations[0].Score, positionAfter.Turn())
		}

		degraded := beforeDegraded || afterDegraded

		ph := phase.Detect(positionAfter, ply+1, history)

		var out classifier.Output
		if degraded {
			out = classifier.Output{CPLoss: 0, Quality: models.QualityGood}
		} else {
			in := classifier.Input{
				Before:                classifier.Eval{CP: before.CP, Mate: before.Mate},
				After:                 classifier.Eval{CP: after.CP, Mate: after.Mate},
				MoverColor:            mover,
				Phase:                 ph,
				PositionBefore:        positionBefore,
				PlayedMove:            move,
				EngineBestMove:        engineBestMove,
				BestMoveLeadsToMateIn: bestMateIn,
				OnlyLegalMove:         onlyLegalMove,
			}
			out = classifier.Classify(in)
		}

		eval := models.MoveEvaluation{
			Ply:            ply + 1,
			SideToMove:     mover,
			SAN:            move.String(),
			UCI:            moveToUCI(move),
			Piece:          pieceLetter(positionBefore, move),
			CPLoss:         out.CPLoss,
			WeightedCPLoss: out.WeightedCPLoss,
			Phase:          ph,
			Quality:        out.Quality,
			BlunderSubType: out.BlunderSubType,
			EvalBefore:     before.CP,
			EvalAfter:      after.CP,
			MateBefore:     before.Mate,
			MateAfter:      after.Mate,
			MultiPVGap:     multiPVGap,
			OnlyLegalMove:  onlyLegalMove,
			WinProbBefore:  out.WinProbBefore,
			WinProbAfter:   out.WinProbAfter,
			Accuracy:       out.Accuracy,
			Degraded:       degraded,
		}
		if engineBestMove != nil {
			eval.BestMoveSAN = engineBestMove.String()
			eval.BestMoveUCI = moveToUCI(engineBestMove)
		}
		evaluations = append(evaluations, eval)

		if isPlayerPly {
			playerQuality.Add(out.Quality)
			playerCPLSum += float64(out.CPLoss)
			playerCPLCount++
			playerAccSum += out.Accuracy
			playerAccCount++
			phaseSums[ph] += float64(out.CPLoss)
			phaseCounts[ph]++
		}

		beforeVariations, beforeDegraded = afterVariations, afterDegraded
	}

	analysis := &models.GameAnalysis{
		GameID:        game.ID,
		Counts:        playerQuality,
		EngineDepth:   depth,
		AnalyzedAt:    time.Now(),
		PhaseAverages: map[models.GamePhase]models.PhaseAverage{},
	}
	if playerCPLCount > 0 {
		mean := playerCPLSum / float64(playerCPLCount)
		analysis.OverallCPL = &mean
		accMean := playerAccSum / float64(playerAccCount)
		analysis.Accuracy = &accMean
	}
	for ph, sum := range phaseSums {
		analysis.PhaseAverages[ph] = models.PhaseAverage{
			MeanCPLoss: sum / float64(phaseCounts[ph]),
			MoveCount:  phaseCounts[ph],
		}
	}

	return &Result{Analysis: analysis, Moves: evaluations}, nil
}

// analyzePly runs one engine call with the §7 retry policy, returning
// degraded=true if every retry failed (the ply is then written with
// cp_loss=0/quality=Good per §4.6's timeout clause).
func (a *Analyzer) analyzePly(ctx context.Context, pos *chess.Position, uciMoves []string, depth, multiPV int) ([]uci.Variation, bool) {
	var variations []uci.Variation
	var lastErr error

	for attempt := 0; attempt <= maxRetriesPerPly; attempt++ {
		plyCtx, cancel := context.WithTimeout(ctx, PerPlyTimeout)
		err := a.pool.WithEngine(plyCtx, func(eng *uci.Engine) error {
			vs, err := eng.Analyze(plyCtx, pos.String(), nil, depth, multiPV)
			variations = vs
			return err
		})
		cancel()

		if err == nil {
			return variations, false
		}
		lastErr = err

		var te *uci.TransportError
		if !isTransportError(err, &te) || !te.Retryable() {
			break
		}
		logrus.Warnf("analyzer: ply analysis attempt %d/%d failed: %v", attempt+1, maxRetriesPerPly+1, err)
	}

	logrus.Errorf("analyzer: ply degraded after retries: %v", lastErr)
	return nil, true
}

func isTransportError(err error, out **uci.TransportError) bool {
	te, ok := err.(*uci.TransportError)
	if ok {
		*out = te
	}
	return ok
}

// Eval is the white-perspective, mate-normalized evaluation derived
// from one engine Score at the analyzer/classifier boundary (§4.4).
type Eval struct {
	CP   int
	Mate bool
}

// normalize converts a side-to-move-relative engine score to
// white-perspective, clamping mate scores to ±1500 (§4.4, §9).
func normalize(s uci.Score, sideToMove chess.Color) Eval {
	if s.Mate {
		cp := models.MateCentipawnValue
		if s.MateIn < 0 {
			cp = -cp
		}
		if sideToMove == chess.Black {
			cp = -cp
		}
		return Eval{CP: cp, Mate: true}
	}
	cp := s.CP
	if sideToMove == chess.Black {
		cp = -cp
	}
	if cp > models.MateCentipawnValue {
		cp = models.MateCentipawnValue
	}
	if cp < -models.MateCentipawnValue {
		cp = -models.MateCentipawnValue
	}
	return Eval{CP: cp, Mate: false}
}

// scoreCP flattens a side-to-move-relative engine Score to a single
// centipawn number for multi-PV gap comparisons, clamping mate scores
// to the same ±1500 convention as normalize.
func scoreCP(s uci.Score) int {
	if s.Mate {
		if s.MateIn < 0 {
			return -models.MateCentipawnValue
		}
		return models.MateCentipawnValue
	}
	return s.CP
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ReplayGame parses a game's stored move list back into a fresh
// *chess.Game positioned at the start, the same parse path
// AnalyzeGame uses. Callers (e.g. the Job Queue, to reconstruct a
// position for puzzle extraction) replay moves from here rather than
// duplicating the PGN-wrapping logic.
func ReplayGame(moves string) (*chess.Game, error) {
	return parseMoves(moves)
}

func parseMoves(moves string) (*chess.Game, error) {
	pgnStr := algebraicToPGNMovetext(moves)
	pgnFunc, err := chess.PGN(strings.NewReader(pgnStr))
	if err != nil {
		return nil, err
	}
	return chess.NewGame(pgnFunc), nil
}

// algebraicToPGNMovetext wraps a bare space-separated SAN move list
// (models.Game.Moves's storage format) with a minimal PGN result tag
// so the notnil/chess PGN parser accepts it headerless.
func algebraicToPGNMovetext(moves string) string {
	return moves + " *"
}

func moveToUCI(move *chess.Move) string {
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

// uciToMove resolves a UCI move string against a legal position,
// needed because the engine reports moves as raw UCI but the
// classifier wants a *chess.Move to run §4.7 predicates against.
func uciToMove(pos *chess.Position, pv []string) *chess.Move {
	if len(pv) == 0 {
		return nil
	}
	target := pv[0]
	fenFunc, err := chess.FEN(pos.String())
	if err != nil {
		return nil
	}
	g := chess.NewGame(fenFunc, chess.UseNotation(chess.UCINotation{}))
	for _, m := range g.ValidMoves() {
		if moveToUCI(m) == target {
			return m
		}
	}
	return nil
}

func pieceLetter(pos *chess.Position, move *chess.Move) string {
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

func trackCastling(history *models.CastlingHistory, before *chess.Position, move *chess.Move, mover models.Color) {
	piece := before.Board().Piece(move.S1())
	if piece.Type() != chess.King {
		return
	}
	df := int(move.S2().File()) - int(move.S1().File())
	if df != 2 && df != -2 {
		return
	}
	if mover == models.White {
		history.WhiteCastled = true
	} else {
		history.BlackCastled = true
	}
}
