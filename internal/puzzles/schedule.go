package puzzles

import (
	"math"
	"time"

	"chess-backend/internal/models"
)

// Schedule implements spec.md §4.8/§9's isolated SM-2 variant: one pure
// function, the single source of truth for spaced-repetition timing.
// q is fixed at 4 for a correct attempt and 0 for an incorrect one, per
// the spec's exact formula.
func Schedule(prior models.SchedulingState, correct bool, now time.Time) (next time.Time, state models.SchedulingState) {
	ef := prior.Easiness
	if ef == 0 {
		ef = models.DefaultEasiness
	}
	priorN := prior.Repetition

	q := 0.0
	newN := priorN
	if correct {
		q = 4.0
		newN = priorN + 1
	} else {
		q = 0.0
		newN = 0
	}

	ef = ef + 0.1 - 0.02*(5-q)*(5-q) - 0.08*(5-q)
	if ef < models.MinEasiness {
		ef = models.MinEasiness
	}

	// Interval is keyed on the repetition count going INTO this
	// attempt, not the one coming out: the first-ever correct attempt
	// sees priorN=0 and gets a 1-day interval even though it stores
	// repetition=1 for next time (§8 scenario 5).
	intervalN := priorN
	if !correct {
		intervalN = 0
	}
	var intervalDays float64
	switch {
	case intervalN == 0:
		intervalDays = 1
	case intervalN == 1:
		intervalDays = 6
	default:
		intervalDays = math.Floor(6 * math.Pow(ef, float64(intervalN-1)))
	}

	next = now.Add(time.Duration(intervalDays) * 24 * time.Hour)
	state = models.SchedulingState{Easiness: ef, Repetition: newN}
	return next, state
}
