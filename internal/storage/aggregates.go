package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chess-backend/internal/models"
)

// RawOverview is the set of scalar aggregates the Corpus Aggregator
// folds into models.Overview.
type RawOverview struct {
	TotalGames         int
	Wins               int
	MeanOverallCPL     float64
	MeanBlundersPer100 float64
	PhaseMeans         map[models.GamePhase]float64
	RecentTenMeanCPL   float64
}

// Overview computes the §4.9 "Overview" query surface directly in SQL.
func (s *Store) Overview(ctx context.Context, userID int64) (*RawOverview, error) {
	out := &RawOverview{PhaseMeans: map[models.GamePhase]float64{}}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(result = 'win'), 0), COALESCE(AVG(a.overall_cpl), 0)
		FROM games g JOIN game_analyses a ON a.game_id = g.id
		WHERE g.user_id = ?`, userID)
	if err := row.Scan(&out.TotalGames, &out.Wins, &out.MeanOverallCPL); err != nil {
		return nil, fmt.Errorf("storage: overview totals: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(me.quality = 'Blunder'), 0) * 100.0 / NULLIF(COUNT(*), 0)
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color`, userID)
	if err := row.Scan(&out.MeanBlundersPer100); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("storage: blunder rate: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pa.phase, AVG(pa.mean_cp_loss)
		FROM phase_averages pa
		JOIN game_analyses a ON a.id = pa.game_analysis_id
		JOIN games g ON g.id = a.game_id
		WHERE g.user_id = ?
		GROUP BY pa.phase`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: phase means: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ph models.GamePhase
		var mean float64
		if err := rows.Scan(&ph, &mean); err != nil {
			return nil, err
		}
		out.PhaseMeans[ph] = mean
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(overall_cpl), 0) FROM (
			SELECT a.overall_cpl FROM game_analyses a
			JOIN games g ON g.id = a.game_id
			WHERE g.user_id = ?
			ORDER BY g.played_at DESC LIMIT 10
		) recent`, userID)
	if err := row.Scan(&out.RecentTenMeanCPL); err != nil {
		return nil, fmt.Errorf("storage: recent mean: %w", err)
	}

	return out, nil
}

// WeaknessInputs bundles the raw counts the Weaknesses detector needs.
type WeaknessInputs struct {
	PhaseCPL             map[models.GamePhase]float64
	BlunderSubTypeCounts map[models.BlunderSubType]int
	ConvertingAdvantages int
}

func (s *Store) WeaknessInputs(ctx context.Context, userID int64) (*WeaknessInputs, error) {
	out := &WeaknessInputs{
		PhaseCPL:             map[models.GamePhase]float64{},
		BlunderSubTypeCounts: map[models.BlunderSubType]int{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pa.phase, AVG(pa.mean_cp_loss)
		FROM phase_averages pa
		JOIN game_analyses a ON a.id = pa.game_analysis_id
		JOIN games g ON g.id = a.game_id
		WHERE g.user_id = ?
		GROUP BY pa.phase`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: weakness phase cpl: %w", err)
	}
	for rows.Next() {
		var ph models.GamePhase
		var mean float64
		if err := rows.Scan(&ph, &mean); err != nil {
			rows.Close()
			return nil, err
		}
		out.PhaseCPL[ph] = mean
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT me.blunder_subtype, COUNT(*)
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color AND me.blunder_subtype IS NOT NULL
		GROUP BY me.blunder_subtype`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: blunder subtype counts: %w", err)
	}
	for rows.Next() {
		var st string
		var cnt int
		if err := rows.Scan(&st, &cnt); err != nil {
			rows.Close()
			return nil, err
		}
		out.BlunderSubTypeCounts[models.BlunderSubType(st)] = cnt
	}
	rows.Close()

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT me.game_id)
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color
			AND (CASE WHEN g.player_color = 'white' THEN me.eval_before ELSE -me.eval_before END) > 200
			AND g.result = 'loss'`, userID)
	if err := row.Scan(&out.ConvertingAdvantages); err != nil {
		return nil, fmt.Errorf("storage: converting advantages: %w", err)
	}

	return out, nil
}

// TimePressureSlice computes §4.9's clock < 30s aggregate.
func (s *Store) TimePressureSlice(ctx context.Context, userID int64) (*models.TimePressureSlice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(me.cp_loss), 0),
			COALESCE(SUM(me.quality = 'Blunder'), 0) * 100.0 / NULLIF(COUNT(*), 0)
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color AND me.clock_seconds < 30`, userID)
	out := &models.TimePressureSlice{}
	if err := row.Scan(&out.MoveCount, &out.MeanCPLoss, &out.BlunderRate); err != nil {
		return nil, fmt.Errorf("storage: time pressure slice: %w", err)
	}
	return out, nil
}

// PiecePerformance computes §4.9's per-moved-piece aggregate.
func (s *Store) PiecePerformance(ctx context.Context, userID int64) ([]models.PiecePerformance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT me.piece, AVG(me.cp_loss), COUNT(*),
			SUM(me.quality = 'Best'), SUM(me.quality = 'Excellent'), SUM(me.quality = 'Good'),
			SUM(me.quality = 'Inaccuracy'), SUM(me.quality = 'Mistake'), SUM(me.quality = 'Blunder')
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color
		GROUP BY me.piece`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: piece performance: %w", err)
	}
	defer rows.Close()

	var out []models.PiecePerformance
	for rows.Next() {
		p := models.PiecePerformance{}
		if err := rows.Scan(&p.Piece, &p.MeanCPLoss, &p.MoveCount,
			&p.Counts.Best, &p.Counts.Excellent, &p.Counts.Good,
			&p.Counts.Inaccuracy, &p.Counts.Mistake, &p.Counts.Blunder); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MetricVectorInputs gathers everything the Persona Synthesizer needs
// beyond what Overview/WeaknessInputs already expose.
type MetricVectorInputs struct {
	DrawRate            float64
	ComebackCount       int
	CollapseCount       int
	ConsistencyStdDev   float64
	TacticalHitRate     float64
	AvgMoveTimeSeconds  float64
	TimeTroubleBlunders int
}

func (s *Store) MetricVectorInputs(ctx context.Context, userID int64) (*MetricVectorInputs, error) {
	out := &MetricVectorInputs{}

	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(result = 'draw'), 0) / NULLIF(COUNT(*), 0) FROM games WHERE user_id = ?`, userID)
	if err := row.Scan(&out.DrawRate); err != nil {
		return nil, fmt.Errorf("storage: draw rate: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT me.game_id)
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color
			AND (CASE WHEN g.player_color = 'white' THEN me.eval_before ELSE -me.eval_before END) < -300
			AND g.result IN ('win', 'draw')`, userID)
	if err := row.Scan(&out.ComebackCount); err != nil {
		return nil, fmt.Errorf("storage: comeback count: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT me.game_id)
		FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color
			AND (CASE WHEN g.player_color = 'white' THEN me.eval_before ELSE -me.eval_before END) > 300
			AND g.result = 'loss'`, userID)
	if err := row.Scan(&out.CollapseCount); err != nil {
		return nil, fmt.Errorf("storage: collapse count: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(STDDEV(a.overall_cpl), 0)
		FROM game_analyses a JOIN games g ON g.id = a.game_id
		WHERE g.user_id = ?`, userID)
	if err := row.Scan(&out.ConsistencyStdDev); err != nil {
		return nil, fmt.Errorf("storage: consistency stddev: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pa.correct), 0) / NULLIF(COUNT(*), 0)
		FROM puzzle_attempts pa
		JOIN puzzles pz ON pz.id = pa.puzzle_id
		WHERE pa.user_id = ?`, userID)
	if err := row.Scan(&out.TacticalHitRate); err != nil {
		return nil, fmt.Errorf("storage: tactical hit rate: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM move_evaluations me
		JOIN games g ON g.id = me.game_id
		WHERE g.user_id = ? AND me.side_to_move = g.player_color
			AND me.clock_seconds < 30 AND me.quality IN ('Mistake', 'Blunder')`, userID)
	if err := row.Scan(&out.TimeTroubleBlunders); err != nil {
		return nil, fmt.Errorf("storage: time trouble blunders: %w", err)
	}

	return out, nil
}

// PopulationBaseline fetches the supplemental population_stats row.
func (s *Store) PopulationBaseline(ctx context.Context) (*models.PopulationStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT computed_at, mean_overall_cpl, median_overall_cpl, mean_blunder_rate, sample_size
		FROM population_stats WHERE id = 1`)
	p := &models.PopulationStats{}
	err := row.Scan(&p.ComputedAt, &p.MeanOverallCPL, &p.MedianOverallCPL, &p.MeanBlunderRate, &p.SampleSize)
	if err == sql.ErrNoRows {
		return &models.PopulationStats{ComputedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: population baseline: %w", err)
	}
	return p, nil
}
