package classifier

import (
	"math"
	"testing"

	"chess-backend/internal/models"
)

func TestQualityFor(t *testing.T) {
	cases := []struct {
		cpLoss int
		want   models.QualityLabel
	}{
		{0, models.QualityBest},
		{1, models.QualityExcellent},
		{10, models.QualityExcellent},
		{11, models.QualityGood},
		{25, models.QualityGood},
		{26, models.QualityInaccuracy},
		{100, models.QualityInaccuracy},
		{101, models.QualityMistake},
		{300, models.QualityMistake},
		{301, models.QualityBlunder},
		{800, models.QualityBlunder},
	}
	for _, tc := range cases {
		if got := QualityFor(tc.cpLoss); got != tc.want {
			t.Errorf("QualityFor(%d) = %v, want %v", tc.cpLoss, got, tc.want)
		}
	}
}

func TestCPLossClampsAndSigns(t *testing.T) {
	// White drops from +300 to -600: loss should clamp to MaxCentipawnLoss.
	loss := CPLoss(Eval{CP: 300}, Eval{CP: -600}, models.White)
	if loss != models.MaxCentipawnLoss {
		t.Errorf("expected clamp to %d, got %d", models.MaxCentipawnLoss, loss)
	}

	// Black improving its own eval never produces a positive loss.
	loss = CPLoss(Eval{CP: -100}, Eval{CP: -300}, models.Black)
	if loss != 0 {
		t.Errorf("expected 0 loss for improving black move, got %d", loss)
	}

	// Mate-to-mate transitions are treated as noise.
	loss = CPLoss(Eval{CP: 1500, Mate: true}, Eval{CP: -1500, Mate: true}, models.White)
	if loss != 0 {
		t.Errorf("expected mate-to-mate loss of 0, got %d", loss)
	}
}

func TestWinProbabilitySymmetry(t *testing.T) {
	wp := WinProbability(Eval{CP: 0}, models.White)
	if math.Abs(wp-0.5) > 1e-9 {
		t.Errorf("expected 0.5 at cp=0, got %v", wp)
	}

	wpWhiteAhead := WinProbability(Eval{CP: 400}, models.White)
	wpBlackBehind := WinProbability(Eval{CP: 400}, models.Black)
	if math.Abs(wpWhiteAhead-(1-wpBlackBehind)) > 1e-9 {
		t.Errorf("expected color-flip symmetry, got %v vs %v", wpWhiteAhead, wpBlackBehind)
	}
}

func TestAccuracyClampedToRange(t *testing.T) {
	acc := Accuracy(0.9, 0.1)
	if acc < 0 || acc > 100 {
		t.Errorf("accuracy out of range: %v", acc)
	}
	if got := Accuracy(0.5, 0.5); math.Abs(got-100) > 1e-6 {
		t.Errorf("zero win-prob delta should score ~100, got %v", got)
	}
}

func TestClassifyOnlyLegalMoveForcesBest(t *testing.T) {
	out := Classify(Input{
		Before:        Eval{CP: 0},
		After:         Eval{CP: -500},
		MoverColor:    models.White,
		Phase:         models.PhaseMiddlegame,
		OnlyLegalMove: true,
	})
	if out.Quality != models.QualityBest {
		t.Errorf("expected QualityBest for forced move, got %v", out.Quality)
	}
}

func TestClassifyAssignsBlunderSubTypeOnlyForBadMoves(t *testing.T) {
	good := Classify(Input{Before: Eval{CP: 0}, After: Eval{CP: -5}, MoverColor: models.White, Phase: models.PhaseMiddlegame})
	if good.BlunderSubType != "" {
		t.Errorf("expected no sub-type for a good move, got %v", good.BlunderSubType)
	}

	blunder := Classify(Input{Before: Eval{CP: 0}, After: Eval{CP: -500}, MoverColor: models.White, Phase: models.PhaseMiddlegame})
	if blunder.Quality != models.QualityBlunder {
		t.Fatalf("expected a blunder classification, got %v", blunder.Quality)
	}
	if blunder.BlunderSubType == "" {
		t.Error("expected a sub-type for a blunder")
	}
}
