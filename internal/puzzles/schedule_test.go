package puzzles

import (
	"math"
	"testing"
	"time"

	"chess-backend/internal/models"
)

func TestScheduleFirstCorrectAttemptGetsOneDayInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, state := Schedule(models.SchedulingState{}, true, now)

	wantNext := now.Add(24 * time.Hour)
	if !next.Equal(wantNext) {
		t.Errorf("expected next review %v, got %v", wantNext, next)
	}
	if state.Repetition != 1 {
		t.Errorf("expected repetition 1, got %d", state.Repetition)
	}
}

func TestScheduleSecondCorrectAttemptGetsSixDayInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prior := models.SchedulingState{Easiness: models.DefaultEasiness, Repetition: 1}

	next, state := Schedule(prior, true, now)

	wantNext := now.Add(6 * 24 * time.Hour)
	if !next.Equal(wantNext) {
		t.Errorf("expected next review %v, got %v", wantNext, next)
	}
	if state.Repetition != 2 {
		t.Errorf("expected repetition 2, got %d", state.Repetition)
	}
}

func TestScheduleIncorrectAttemptResetsRepetitionAndInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prior := models.SchedulingState{Easiness: 2.8, Repetition: 5}

	next, state := Schedule(prior, false, now)

	if state.Repetition != 0 {
		t.Errorf("expected repetition reset to 0, got %d", state.Repetition)
	}
	wantNext := now.Add(24 * time.Hour)
	if !next.Equal(wantNext) {
		t.Errorf("expected 1-day interval after a miss, got next=%v", next)
	}
}

func TestScheduleEasinessNeverDropsBelowFloor(t *testing.T) {
	state := models.SchedulingState{Easiness: models.MinEasiness, Repetition: 3}
	now := time.Now()
	for i := 0; i < 10; i++ {
		_, state = Schedule(state, false, now)
	}
	if state.Easiness < models.MinEasiness || math.Abs(state.Easiness-models.MinEasiness) > 1e-9 {
		if state.Easiness < models.MinEasiness {
			t.Errorf("easiness dropped below floor: %v", state.Easiness)
		}
	}
}
