// Package persona implements the Persona & Weakness Synthesizer (C10):
// a fixed lookup table of 12 persona scoring functions over the
// Corpus Aggregator's metric vector, assembled into a structured
// report.
package persona

import (
	"fmt"
	"math"
	"sort"

	"chess-backend/internal/models"
)

// secondaryScoreRatio and secondaryScoreFloor are §4.10's fixed
// secondary-persona admission rule: second place only qualifies if its
// score clears both a relative and an absolute bar against the winner.
const (
	secondaryScoreRatio = 0.5
	secondaryScoreFloor = 5.0
)

// scorer is one persona's fixed scoring function over the metric
// vector. Changing a scorer's formula changes the corpus-wide meaning
// of that persona, so the 12 entries below are a closed set, not a
// template to extend.
type scorer func(mv *models.MetricVector) float64

type personaDef struct {
	name   string
	score  scorer
	signature func(mv *models.MetricVector) []string
}

func phaseCPL(mv *models.MetricVector, phase models.GamePhase) float64 {
	return mv.PhaseCPL[phase]
}

var personas = []personaDef{
	{
		name: "Tactician",
		score: func(mv *models.MetricVector) float64 {
			return mv.TacticalHitRate*60 + mv.Accuracy*0.4
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("puzzle hit rate %.0f%%", mv.TacticalHitRate*100),
				fmt.Sprintf("accuracy %.1f", mv.Accuracy),
			}
		},
	},
	{
		// Fortress rewards low blunder rate, low overall CPL, zero
		// collapses, exactly as named in spec.md §4.10.
		name: "Fortress",
		score: func(mv *models.MetricVector) float64 {
			score := math.Max(0, 100-mv.BlunderRate*10) + math.Max(0, 100-mv.OverallCPL/2)
			if mv.CollapseCount > 0 {
				score -= float64(mv.CollapseCount) * 15
			}
			return score
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("%.1f blunders/100 moves", mv.BlunderRate),
				fmt.Sprintf("overall CPL %.0f", mv.OverallCPL),
				fmt.Sprintf("%d collapses", mv.CollapseCount),
			}
		},
	},
	{
		// Grinder rewards endgame CPL strictly below both earlier
		// phases, exactly as named in spec.md §4.10.
		name: "Grinder",
		score: func(mv *models.MetricVector) float64 {
			opening, middle, endgame := phaseCPL(mv, models.PhaseOpening), phaseCPL(mv, models.PhaseMiddlegame), phaseCPL(mv, models.PhaseEndgame)
			if endgame < opening && endgame < middle {
				return ((opening + middle) / 2) - endgame
			}
			return 0
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("endgame CPL %.0f", phaseCPL(mv, models.PhaseEndgame)),
				fmt.Sprintf("opening CPL %.0f", phaseCPL(mv, models.PhaseOpening)),
			}
		},
	},
	{
		name: "Speedster",
		score: func(mv *models.MetricVector) float64 {
			return math.Max(0, 60-mv.AvgMoveTimeSeconds) + mv.Accuracy*0.3
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{fmt.Sprintf("%.1fs/move average", mv.AvgMoveTimeSeconds)}
		},
	},
	{
		name: "Scientist",
		score: func(mv *models.MetricVector) float64 {
			return math.Max(0, 50-mv.ConsistencyStdDevCPL) + math.Max(0, 50-phaseCPL(mv, models.PhaseOpening))
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("CPL stddev %.1f", mv.ConsistencyStdDevCPL),
				fmt.Sprintf("opening CPL %.0f", phaseCPL(mv, models.PhaseOpening)),
			}
		},
	},
	{
		// Phoenix rewards comeback count and low draw rate, exactly
		// as named in spec.md §4.10.
		name: "Phoenix",
		score: func(mv *models.MetricVector) float64 {
			return float64(mv.ComebackCount)*15 - mv.DrawRate*50
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("%d comebacks", mv.ComebackCount),
				fmt.Sprintf("draw rate %.0f%%", mv.DrawRate*100),
			}
		},
	},
	{
		name: "Assassin",
		score: func(mv *models.MetricVector) float64 {
			return mv.WinRate*60 + mv.TacticalHitRate*40
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("win rate %.0f%%", mv.WinRate*100),
				fmt.Sprintf("puzzle hit rate %.0f%%", mv.TacticalHitRate*100),
			}
		},
	},
	{
		// Chameleon rewards an even spread of CPL across all three
		// phases: no weak phase to exploit.
		name: "Chameleon",
		score: func(mv *models.MetricVector) float64 {
			vals := []float64{phaseCPL(mv, models.PhaseOpening), phaseCPL(mv, models.PhaseMiddlegame), phaseCPL(mv, models.PhaseEndgame)}
			return 100 - stddev(vals)
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{"even phase-to-phase CPL spread"}
		},
	},
	{
		name: "Berserker",
		score: func(mv *models.MetricVector) float64 {
			return math.Min(mv.WinRate*100, mv.BlunderRate*10)
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("win rate %.0f%%", mv.WinRate*100),
				fmt.Sprintf("%.1f blunders/100 moves", mv.BlunderRate),
			}
		},
	},
	{
		name: "Professor",
		score: func(mv *models.MetricVector) float64 {
			return math.Max(0, 100-mv.OverallCPL/2) + mv.Accuracy*0.3 - float64(mv.TimeTroubleBlunders)*5
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("overall CPL %.0f", mv.OverallCPL),
				fmt.Sprintf("%d time-trouble blunders", mv.TimeTroubleBlunders),
			}
		},
	},
	{
		name: "Survivor",
		score: func(mv *models.MetricVector) float64 {
			return float64(mv.ComebackCount)*10 + math.Max(0, 20-float64(mv.TimeTroubleBlunders))
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("%d comebacks", mv.ComebackCount),
				fmt.Sprintf("%d time-trouble blunders", mv.TimeTroubleBlunders),
			}
		},
	},
	{
		name: "Adventurer",
		score: func(mv *models.MetricVector) float64 {
			return mv.TacticalHitRate*30 + mv.BlunderRate*3 + (1-mv.DrawRate)*20
		},
		signature: func(mv *models.MetricVector) []string {
			return []string{
				fmt.Sprintf("draw rate %.0f%%", mv.DrawRate*100),
				fmt.Sprintf("%.1f blunders/100 moves", mv.BlunderRate),
			}
		},
	},
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	sumSq := 0.0
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)))
}

type scored struct {
	def   personaDef
	value float64
}

// Synthesize scores all 12 personas against mv and assembles the
// structured report. weaknesses and overview supply the kryptonite,
// one-thing-to-change, and growth-path material the scorers
// themselves don't carry.
func Synthesize(mv *models.MetricVector, weaknesses *models.Weaknesses, overview *models.Overview) *models.PersonaReport {
	ranked := make([]scored, 0, len(personas))
	for _, p := range personas {
		ranked = append(ranked, scored{def: p, value: p.score(mv)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })

	primary := ranked[0]
	report := &models.PersonaReport{
		Primary:        primary.def.name,
		SignatureStats: primary.def.signature(mv),
	}

	if len(ranked) > 1 {
		second := ranked[1]
		if second.value > secondaryScoreRatio*primary.value && second.value > secondaryScoreFloor {
			report.Secondary = second.def.name
		}
	}

	report.Kryptonite = kryptonite(weaknesses)
	report.OneThingToChange = oneThingToChange(weaknesses, mv)
	report.Story = story(primary.def.name, mv, overview)
	report.PhaseBreakdown = phaseBreakdown(mv)
	report.GrowthPath = growthPath(weaknesses, mv)

	return report
}

func kryptonite(w *models.Weaknesses) string {
	if w == nil {
		return "no clear weakness detected yet — keep playing rated games"
	}
	if w.TopBlunderSubType != "" {
		return fmt.Sprintf("%s blunders recur often enough to be the single biggest point-loser", w.TopBlunderSubType)
	}
	if w.WeakestPhase != "" {
		return fmt.Sprintf("the %s is costing more centipawns than the rest of the game combined", w.WeakestPhase)
	}
	return "no dominant weakness — play is broadly even across phases"
}

func oneThingToChange(w *models.Weaknesses, mv *models.MetricVector) string {
	switch {
	case w != nil && w.TopBlunderSubType != "":
		return fmt.Sprintf("drill positions tagged %s until the pattern stops recurring", w.TopBlunderSubType)
	case w != nil && w.WeakestPhase != "":
		return fmt.Sprintf("spend review time specifically on %s positions", w.WeakestPhase)
	case mv.TimeTroubleBlunders > 0:
		return "budget clock time earlier so late-game blunders under 30 seconds stop happening"
	default:
		return "keep the current training mix; no single lever stands out"
	}
}

func story(primaryName string, mv *models.MetricVector, overview *models.Overview) string {
	trend := "holding steady"
	if overview != nil {
		switch overview.Trend {
		case models.TrendImproving:
			trend = "trending upward"
		case models.TrendDeclining:
			trend = "slipping lately"
		}
	}
	return fmt.Sprintf(
		"A %s at the board: %.0f average centipawn loss across the corpus, %s over the last ten games. "+
			"%d comeback%s and %d collapse%s tell the rest of the story.",
		primaryName, mv.OverallCPL, trend,
		mv.ComebackCount, plural(mv.ComebackCount),
		mv.CollapseCount, plural(mv.CollapseCount),
	)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func phaseBreakdown(mv *models.MetricVector) []models.PhaseBreakdownRow {
	rows := make([]models.PhaseBreakdownRow, 0, 3)
	for _, phase := range []models.GamePhase{models.PhaseOpening, models.PhaseMiddlegame, models.PhaseEndgame} {
		cpl := phaseCPL(mv, phase)
		rows = append(rows, models.PhaseBreakdownRow{
			Phase:      phase,
			MeanCPLoss: cpl,
			Commentary: phaseCommentary(phase, cpl),
		})
	}
	return rows
}

func phaseCommentary(phase models.GamePhase, cpl float64) string {
	switch {
	case cpl < 20:
		return fmt.Sprintf("%s play is sharp, rarely giving anything back", phase)
	case cpl < 50:
		return fmt.Sprintf("%s play is solid with occasional slips", phase)
	case cpl < 100:
		return fmt.Sprintf("%s play loses meaningful ground regularly", phase)
	default:
		return fmt.Sprintf("%s play is the clearest area to invest study time", phase)
	}
}

func growthPath(w *models.Weaknesses, mv *models.MetricVector) []string {
	var path []string
	if w != nil && w.TopBlunderSubType != "" {
		path = append(path, fmt.Sprintf("Review %s-tagged puzzles until the hit rate improves", w.TopBlunderSubType))
	}
	if w != nil && w.WeakestPhase != "" {
		path = append(path, fmt.Sprintf("Study %s theory and typical plans", w.WeakestPhase))
	}
	if mv.TimeTroubleBlunders > 0 {
		path = append(path, "Practice faster time controls to build clock discipline")
	}
	if w != nil && w.ConvertingAdvantages > 0 {
		path = append(path, "Drill converting winning positions — technique, not tactics, is the gap")
	}
	if mv.TacticalHitRate < 0.5 {
		path = append(path, "Work daily tactics puzzles to raise pattern recognition")
	}
	if len(path) == 0 {
		path = append(path, "Keep playing rated games to build a larger analysis sample")
	}
	if len(path) > 5 {
		path = path[:5]
	}
	return path
}
