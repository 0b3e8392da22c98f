// Package aggregator implements the Corpus Aggregator (C9): read-only
// queries over the MoveEvaluation/GameAnalysis corpus, combining SQL
// aggregation (internal/storage) with the fixed derivations §4.9
// specifies on top of the raw numbers.
package aggregator

import (
	"context"
	"fmt"
	"math"

	"chess-backend/internal/models"
	"chess-backend/internal/storage"
)

// Aggregator wraps the storage layer's raw aggregate queries.
type Aggregator struct {
	store *storage.Store
}

func New(store *storage.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Overview implements §4.9's overview query, including the trend
// classification (§8 scenario 6: recent < overall-5 -> improving;
// recent > overall+5 -> declining; else stable).
func (a *Aggregator) Overview(ctx context.Context, userID int64) (*models.Overview, error) {
	raw, err := a.store.Overview(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: overview: %w", err)
	}

	var winRate float64
	if raw.TotalGames > 0 {
		winRate = float64(raw.Wins) / float64(raw.TotalGames)
	}

	trend := models.TrendStable
	if raw.RecentTenMeanCPL < raw.MeanOverallCPL-5 {
		trend = models.TrendImproving
	} else if raw.RecentTenMeanCPL > raw.MeanOverallCPL+5 {
		trend = models.TrendDeclining
	}

	return &models.Overview{
		TotalGames:         raw.TotalGames,
		WinRate:            winRate,
		MeanOverallCPL:     raw.MeanOverallCPL,
		MeanBlundersPer100: raw.MeanBlundersPer100,
		PhaseMeans:         raw.PhaseMeans,
		RecentTenMeanCPL:   raw.RecentTenMeanCPL,
		Trend:              trend,
	}, nil
}

// SkillRadar maps the aggregate corpus onto the six fixed §4.9 axes, a
// monotone 0..100 transform of the relevant underlying aggregate. The
// transform (100 scaled down linearly with cp_loss, floored at 0) is
// the one fixed mapping used for every axis backed by a CPL figure;
// Tactics and Consistency use their own natural 0..100 scales directly.
func (a *Aggregator) SkillRadar(ctx context.Context, userID int64) (models.SkillRadar, error) {
	overview, err := a.store.Overview(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: skill radar overview: %w", err)
	}
	metrics, err := a.store.MetricVectorInputs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: skill radar metrics: %w", err)
	}

	radar := models.SkillRadar{
		models.AxisOpening:     cplToScore(overview.PhaseMeans[models.PhaseOpening]),
		models.AxisMiddlegame:  cplToScore(overview.PhaseMeans[models.PhaseMiddlegame]),
		models.AxisEndgame:     cplToScore(overview.PhaseMeans[models.PhaseEndgame]),
		models.AxisTactics:     clamp01(metrics.TacticalHitRate) * 100,
		models.AxisComposure:   composureScore(metrics.TimeTroubleBlunders),
		models.AxisConsistency: consistencyScore(metrics.ConsistencyStdDev),
	}
	return radar, nil
}

// cplToScore maps a mean centipawn loss to a 0..100 score: 0 cpl -> 100,
// 150+ cpl -> 0, linear between.
func cplToScore(meanCPL float64) float64 {
	score := 100 - (meanCPL/150)*100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func composureScore(timeTroubleBlunders int) float64 {
	score := 100 - float64(timeTroubleBlunders)*5
	if score < 0 {
		return 0
	}
	return score
}

func consistencyScore(stddev float64) float64 {
	score := 100 - stddev
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// phaseWeaknessRatio is the §4.9 threshold: phase CPL > 1.15 * baseline.
const phaseWeaknessRatio = 1.15

// minBlunderSubtypeCount is §4.9's "top blunder sub-type if count >= 3".
const minBlunderSubtypeCount = 3

// Weaknesses implements §4.9's weakness-detection pass.
func (a *Aggregator) Weaknesses(ctx context.Context, userID int64) (*models.Weaknesses, error) {
	inputs, err := a.store.WeaknessInputs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: weaknesses: %w", err)
	}

	w := &models.Weaknesses{ConvertingAdvantages: inputs.ConvertingAdvantages}

	baseline := meanOf(inputs.PhaseCPL)
	var worstPhase models.GamePhase
	var worstRatio float64
	for ph, cpl := range inputs.PhaseCPL {
		if baseline == 0 {
			continue
		}
		ratio := cpl / baseline
		if ratio > phaseWeaknessRatio && ratio > worstRatio {
			worstPhase = ph
			worstRatio = ratio
		}
	}
	if worstPhase != "" {
		w.WeakestPhase = worstPhase
		w.PhaseWeaknessRatio = worstRatio
	}

	var topType models.BlunderSubType
	topCount := 0
	for t, cnt := range inputs.BlunderSubTypeCounts {
		if cnt > topCount {
			topType = t
			topCount = cnt
		}
	}
	if topCount >= minBlunderSubtypeCount {
		w.TopBlunderSubType = topType
		w.TopBlunderSubTypeCnt = topCount
	}

	return w, nil
}

func meanOf(m map[models.GamePhase]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}

// TimePressure implements §4.9's time-pressure slice.
func (a *Aggregator) TimePressure(ctx context.Context, userID int64) (*models.TimePressureSlice, error) {
	slice, err := a.store.TimePressureSlice(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: time pressure: %w", err)
	}
	return slice, nil
}

// PiecePerformance implements §4.9's per-moved-piece averages.
func (a *Aggregator) PiecePerformance(ctx context.Context, userID int64) ([]models.PiecePerformance, error) {
	perf, err := a.store.PiecePerformance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: piece performance: %w", err)
	}
	return perf, nil
}

// PopulationPercentile compares the user's overall_cpl to the
// supplemental population baseline.
func (a *Aggregator) PopulationPercentile(ctx context.Context, userID int64) (*models.PopulationPercentile, error) {
	overview, err := a.store.Overview(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: population percentile overview: %w", err)
	}
	baseline, err := a.store.PopulationBaseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregator: population baseline: %w", err)
	}
	return &models.PopulationPercentile{
		UserOverallCPL:   overview.MeanOverallCPL,
		PopulationMean:   baseline.MeanOverallCPL,
		PopulationMedian: baseline.MedianOverallCPL,
		ComputedAt:       baseline.ComputedAt,
	}, nil
}

// MetricVector assembles the full input the Persona Synthesizer (C10)
// consumes, joining every aggregator query surface into one record.
func (a *Aggregator) MetricVector(ctx context.Context, userID int64) (*models.MetricVector, error) {
	overview, err := a.store.Overview(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: metric vector overview: %w", err)
	}
	extra, err := a.store.MetricVectorInputs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: metric vector extras: %w", err)
	}

	var winRate float64
	if overview.TotalGames > 0 {
		winRate = float64(overview.Wins) / float64(overview.TotalGames)
	}

	accuracy := 100 - math.Min(100, overview.MeanOverallCPL/5)

	return &models.MetricVector{
		OverallCPL:           overview.MeanOverallCPL,
		PhaseCPL:             overview.PhaseMeans,
		BlunderRate:          overview.MeanBlundersPer100,
		DrawRate:             extra.DrawRate,
		WinRate:              winRate,
		ComebackCount:        extra.ComebackCount,
		CollapseCount:        extra.CollapseCount,
		Accuracy:             accuracy,
		ConsistencyStdDevCPL: extra.ConsistencyStdDev,
		TacticalHitRate:      extra.TacticalHitRate,
		AvgMoveTimeSeconds:   extra.AvgMoveTimeSeconds,
		TimeTroubleBlunders:  extra.TimeTroubleBlunders,
	}, nil
}
