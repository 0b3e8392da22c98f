package persona

import (
	"testing"

	"chess-backend/internal/models"
)

func fortressVector() *models.MetricVector {
	return &models.MetricVector{
		OverallCPL:  15,
		BlunderRate: 0.2,
		PhaseCPL: map[models.GamePhase]float64{
			models.PhaseOpening:    15,
			models.PhaseMiddlegame: 15,
			models.PhaseEndgame:    15,
		},
		WinRate:         0.55,
		DrawRate:        0.1,
		TacticalHitRate: 0.4,
	}
}

func TestSynthesizeFortressWins(t *testing.T) {
	mv := fortressVector()
	report := Synthesize(mv, &models.Weaknesses{}, &models.Overview{Trend: models.TrendStable})

	if report.Primary != "Fortress" {
		t.Errorf("expected Fortress to be primary for a low-blunder, low-CPL vector, got %s", report.Primary)
	}
	if len(report.PhaseBreakdown) != 3 {
		t.Errorf("expected 3 phase breakdown rows, got %d", len(report.PhaseBreakdown))
	}
	if report.Story == "" {
		t.Error("expected a non-empty story")
	}
}

func TestSynthesizeGrinderWinsOnStrongEndgame(t *testing.T) {
	mv := &models.MetricVector{
		PhaseCPL: map[models.GamePhase]float64{
			models.PhaseOpening:    80,
			models.PhaseMiddlegame: 80,
			models.PhaseEndgame:    5,
		},
		OverallCPL:  60,
		BlunderRate: 10,
	}
	report := Synthesize(mv, &models.Weaknesses{}, &models.Overview{})
	if report.Primary != "Grinder" {
		t.Errorf("expected Grinder to win with a much stronger endgame, got %s", report.Primary)
	}
}

func TestSynthesizeSecondaryNeverEqualsPrimary(t *testing.T) {
	mv := fortressVector()
	report := Synthesize(mv, &models.Weaknesses{}, &models.Overview{})
	// Fortress wins this vector and Chameleon clears the admission bar
	// as secondary; whatever is picked, it must differ from the primary.
	if report.Secondary == report.Primary {
		t.Error("secondary should never equal primary")
	}
}

func TestKryptoniteReflectsTopBlunderSubType(t *testing.T) {
	w := &models.Weaknesses{TopBlunderSubType: models.SubTypeHangingPiece}
	got := kryptonite(w)
	if got == "" {
		t.Error("expected a non-empty kryptonite description")
	}
}

func TestGrowthPathCappedAtFive(t *testing.T) {
	w := &models.Weaknesses{
		TopBlunderSubType:    models.SubTypeHangingPiece,
		WeakestPhase:         models.PhaseEndgame,
		ConvertingAdvantages: 3,
	}
	mv := &models.MetricVector{TimeTroubleBlunders: 2, TacticalHitRate: 0.1}
	path := growthPath(w, mv)
	if len(path) > 5 {
		t.Errorf("expected growth path capped at 5 entries, got %d", len(path))
	}
	if len(path) == 0 {
		t.Error("expected at least one growth path entry")
	}
}
