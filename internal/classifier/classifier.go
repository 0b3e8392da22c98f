// Package classifier implements the Move Classifier (C4): a pure
// function with no I/O that maps an engine eval transition plus a
// played/best move pair to a quality label, centipawn loss, and an
// optional blunder sub-type.
package classifier

import (
	"math"

	"chess-backend/internal/models"

	"github.com/notnil/chess"
)

// Eval is a white-perspective, mate-normalized evaluation at one point
// in the game — the shape the Engine Pool boundary hands the classifier
// after §4.4's normalization.
type Eval struct {
	CP   int  // clamped to ±1500; if Mate, |CP| == models.MateCentipawnValue
	Mate bool
}

// Input bundles everything the classifier needs for one ply.
type Input struct {
	Before      Eval
	After       Eval
	MoverColor  models.Color
	Phase       models.GamePhase
	PositionBefore *chess.Position
	PlayedMove     *chess.Move
	EngineBestMove *chess.Move
	BestMoveLeadsToMateIn int // 0 if not mate; plies to mate if best move mates
	OnlyLegalMove bool
}

// Output is everything the classifier derives.
type Output struct {
	CPLoss         int
	WeightedCPLoss float64
	Quality        models.QualityLabel
	BlunderSubType models.BlunderSubType
	WinProbBefore  float64
	WinProbAfter   float64
	Accuracy       float64
}

// Classify runs the full §4.3 pipeline for one ply.
func Classify(in Input) Output {
	cpLoss := CPLoss(in.Before, in.After, in.MoverColor)
	quality := QualityFor(cpLoss)

	if in.OnlyLegalMove {
		// "A ply where the only legal move is played: quality = Best
		// regardless of cp swing" (§8 boundary case).
		quality = models.QualityBest
	}

	wpBefore := WinProbability(in.Before, in.MoverColor)
	wpAfter := WinProbability(in.After, in.MoverColor)
	accuracy := Accuracy(wpBefore, wpAfter)

	out := Output{
		CPLoss:         cpLoss,
		WeightedCPLoss: float64(cpLoss) * models.PhaseWeight[in.Phase],
		Quality:        quality,
		WinProbBefore:  wpBefore,
		WinProbAfter:   wpAfter,
		Accuracy:       accuracy,
	}

	if quality == models.QualityBlunder || quality == models.QualityMistake {
		out.BlunderSubType = classifySubType(in)
	}

	return out
}

// CPLoss implements §4.3's centipawn loss formula. Both evals are
// white-perspective. When both positions are mate-flagged the
// transition is treated as noise (cp_loss = 0) per §4.4.
func CPLoss(before, after Eval, mover models.Color) int {
	if before.Mate && after.Mate {
		return 0
	}
	p := float64(before.CP)
	c := float64(after.CP)

	var loss float64
	if mover == models.White {
		loss = math.Max(0, p-c)
	} else {
		loss = math.Max(0, c-p)
	}

	if loss < 0 {
		loss = 0
	}
	if loss > models.MaxCentipawnLoss {
		loss = models.MaxCentipawnLoss
	}
	return int(loss)
}

// QualityFor maps a clamped cp_loss to a quality label per §4.3's
// threshold table.
func QualityFor(cpLoss int) models.QualityLabel {
	switch {
	case cpLoss == 0:
		return models.QualityBest
	case cpLoss <= 10:
		return models.QualityExcellent
	case cpLoss <= 25:
		return models.QualityGood
	case cpLoss <= 100:
		return models.QualityInaccuracy
	case cpLoss <= 300:
		return models.QualityMistake
	default:
		return models.QualityBlunder
	}
}

// WinProbability implements wp(cp) = 1 / (1 + 10^(-cp/400)) from the
// perspective of the side that just moved; mate scores map to 1 or 0
// depending on the sign of the mate score seen from the mover's side.
func WinProbability(e Eval, mover models.Color) float64 {
	cp := float64(e.CP)
	if mover == models.Black {
		cp = -cp
	}
	if e.Mate {
		if cp > 0 {
			return 1.0
		}
		return 0.0
	}
	return 1.0 / (1.0 + math.Pow(10, -cp/400.0))
}

// Accuracy implements the chess.com-style per-move accuracy formula
// (§4.3), clamped to [0, 100].
func Accuracy(wpBefore, wpAfter float64) float64 {
	delta := (wpBefore - wpAfter) * 100.0
	acc := 103.17*math.Exp(-0.04354*delta) - 3.17
	if acc > 100 {
		acc = 100
	}
	if acc < 0 {
		acc = 0
	}
	return acc
}
