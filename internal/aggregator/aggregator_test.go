package aggregator

import (
	"math"
	"testing"

	"chess-backend/internal/models"
)

func TestCplToScoreBounds(t *testing.T) {
	if got := cplToScore(0); math.Abs(got-100) > 1e-9 {
		t.Errorf("cplToScore(0) = %v, want 100", got)
	}
	if got := cplToScore(150); got != 0 {
		t.Errorf("cplToScore(150) = %v, want 0", got)
	}
	if got := cplToScore(300); got != 0 {
		t.Errorf("cplToScore(300) should floor at 0, got %v", got)
	}
	if got := cplToScore(75); math.Abs(got-50) > 1e-9 {
		t.Errorf("cplToScore(75) = %v, want 50 (halfway)", got)
	}
}

func TestComposureScoreFloorsAtZero(t *testing.T) {
	if got := composureScore(0); got != 100 {
		t.Errorf("composureScore(0) = %v, want 100", got)
	}
	if got := composureScore(30); got != 0 {
		t.Errorf("composureScore(30) = %v, want floored 0", got)
	}
}

func TestConsistencyScoreClampsBothEnds(t *testing.T) {
	if got := consistencyScore(-10); got != 100 {
		t.Errorf("consistencyScore(-10) = %v, want clamped 100", got)
	}
	if got := consistencyScore(200); got != 0 {
		t.Errorf("consistencyScore(200) = %v, want clamped 0", got)
	}
}

func TestClamp01(t *testing.T) {
	if got := clamp01(-0.5); got != 0 {
		t.Errorf("clamp01(-0.5) = %v, want 0", got)
	}
	if got := clamp01(1.5); got != 1 {
		t.Errorf("clamp01(1.5) = %v, want 1", got)
	}
	if got := clamp01(0.4); got != 0.4 {
		t.Errorf("clamp01(0.4) = %v, want 0.4", got)
	}
}

func TestMeanOfEmptyMap(t *testing.T) {
	if got := meanOf(map[models.GamePhase]float64{}); got != 0 {
		t.Errorf("meanOf(empty) = %v, want 0", got)
	}
}

func TestMeanOfAveragesValues(t *testing.T) {
	m := map[models.GamePhase]float64{
		models.PhaseOpening:    10,
		models.PhaseMiddlegame: 20,
		models.PhaseEndgame:    30,
	}
	if got := meanOf(m); math.Abs(got-20) > 1e-9 {
		t.Errorf("meanOf = %v, want 20", got)
	}
}
