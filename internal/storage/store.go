// Package storage implements Persistence (C11): a relational schema
// for Games, MoveEvaluation, GameAnalysis, Puzzles, PuzzleAttempts,
// OpeningRepertoire, AnalysisJob, accessed through database/sql with
// prepared statements, per spec.md §9's explicit call for explicit
// parameter binding over synthesized query strings.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chess-backend/internal/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// Store wraps a *sql.DB with the repository methods the rest of the
// pipeline needs. All methods take a context so callers can cancel a
// transaction mid-flight (§5: "database connections ... never held
// across engine calls").
type Store struct {
	db *sql.DB
}

// Open connects to dsn and configures the pool per the teacher's
// configs.DatabaseConfig sizing.
func Open(dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	logrus.Info("storage: connected to mysql")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is live, for the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// InsertGame inserts a Game row, returning its assigned ID. A
// duplicate (user, platform, platform_game_id) or (user, move_hash) is
// a Constraint error (§7) swallowed as a no-op: the existing ID is
// returned instead.
func (s *Store) InsertGame(ctx context.Context, g *models.Game) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO games (user_id, platform, platform_game_id, move_hash, played_at,
			player_color, result, opening_name, eco, time_control, player_rating,
			opponent_rating, move_count, moves)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		g.UserID, g.Platform, nullableString(g.PlatformGameID), g.MoveHash, g.PlayedAt,
		g.PlayerColor, g.Result, nullableString(g.OpeningName), nullableString(g.ECO),
		nullableString(g.TimeControl), g.PlayerRating, g.OpponentRating, g.MoveCount, g.Moves)
	if err != nil {
		return 0, fmt.Errorf("storage: insert game: %w", err)
	}
	return res.LastInsertId()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetGame loads one game by ID.
func (s *Store) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, platform, COALESCE(platform_game_id, ''), move_hash, played_at,
			player_color, result, COALESCE(opening_name, ''), COALESCE(eco, ''),
			COALESCE(time_control, ''), player_rating, opponent_rating, move_count, moves
		FROM games WHERE id = ?`, id)

	g := &models.Game{}
	if err := row.Scan(&g.ID, &g.UserID, &g.Platform, &g.PlatformGameID, &g.MoveHash, &g.PlayedAt,
		&g.PlayerColor, &g.Result, &g.OpeningName, &g.ECO, &g.TimeControl,
		&g.PlayerRating, &g.OpponentRating, &g.MoveCount, &g.Moves); err != nil {
		return nil, fmt.Errorf("storage: get game %d: %w", id, err)
	}
	return g, nil
}

// UnanalyzedGames lists a user's games without a GameAnalysis row yet
// (or all game IDs in gameIDs filtered the same way, when non-empty).
func (s *Store) UnanalyzedGames(ctx context.Context, userID int64, gameIDs []int64) ([]int64, error) {
	query := `
		SELECT g.id FROM games g
		LEFT JOIN game_analyses a ON a.game_id = g.id
		WHERE g.user_id = ? AND a.id IS NULL`
	args := []interface{}{userID}
	if len(gameIDs) > 0 {
		placeholders := make([]string, len(gameIDs))
		for i, id := range gameIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " AND g.id IN (" + strings.Join(placeholders, ",") + ")"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: unanalyzed games: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveAnalysis writes a GameAnalysis and its MoveEvaluation rows in one
// transaction (§4.6 step 7, §5 ordering guarantees). If reanalyze is
// true, prior rows for the game are deleted first (§4.6 re-analysis
// policy); otherwise an existing analysis is left untouched and this
// call is a no-op.
func (s *Store) SaveAnalysis(ctx context.Context, gameID int64, result *models.GameAnalysis, moves []models.MoveEvaluation, reanalyze bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM game_analyses WHERE game_id = ?`, gameID).Scan(&existing)
	if err == nil && !reanalyze {
		return nil // idempotent no-op per §4.6
	}
	if err == nil && reanalyze {
		if _, err := tx.ExecContext(ctx, `DELETE FROM move_evaluations WHERE game_id = ?`, gameID); err != nil {
			return fmt.Errorf("storage: delete prior moves: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM game_analyses WHERE game_id = ?`, gameID); err != nil {
			return fmt.Errorf("storage: delete prior analysis: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO game_analyses (game_id, overall_cpl, accuracy, counts_best, counts_excellent,
			counts_good, counts_inaccuracy, counts_mistake, counts_blunder, engine_depth, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gameID, result.OverallCPL, result.Accuracy, result.Counts.Best, result.Counts.Excellent,
		result.Counts.Good, result.Counts.Inaccuracy, result.Counts.Mistake, result.Counts.Blunder,
		result.EngineDepth, result.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("storage: insert game_analysis: %w", err)
	}
	analysisID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for ph, avg := range result.PhaseAverages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO phase_averages (game_analysis_id, phase, mean_cp_loss, move_count)
			VALUES (?, ?, ?, ?)`, analysisID, ph, avg.MeanCPLoss, avg.MoveCount); err != nil {
			return fmt.Errorf("storage: insert phase_average: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO move_evaluations (game_id, ply, side_to_move, san, uci, piece, cp_loss,
			weighted_cp_loss, phase, quality, blunder_subtype, eval_before, eval_after,
			mate_before, mate_after, best_move_san, best_move_uci, win_prob_before,
			win_prob_after, accuracy, clock_seconds, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare move insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range moves {
		if _, err := stmt.ExecContext(ctx, gameID, m.Ply, m.SideToMove, m.SAN, m.UCI, m.Piece,
			m.CPLoss, m.WeightedCPLoss, m.Phase, m.Quality, nullableSubtype(m.BlunderSubType),
			m.EvalBefore, m.EvalAfter, m.MateBefore, m.MateAfter, nullableString(m.BestMoveSAN),
			nullableString(m.BestMoveUCI), m.WinProbBefore, m.WinProbAfter, m.Accuracy,
			m.ClockSeconds, m.Degraded); err != nil {
			return fmt.Errorf("storage: insert move_evaluation ply %d: %w", m.Ply, err)
		}
	}

	return tx.Commit()
}

func nullableSubtype(t models.BlunderSubType) interface{} {
	if t == "" {
		return nil
	}
	return string(t)
}

// InsertPuzzle is idempotent on puzzle_key (§3, §8).
func (s *Store) InsertPuzzle(ctx context.Context, p *models.Puzzle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO puzzles (puzzle_key, fen, side_to_move, best_move_san, best_move_uci,
			played_move_san, eval_loss, phase, type, solution_line, themes, source_game_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`,
		p.PuzzleKey, p.FEN, p.SideToMove, p.BestMoveSAN, p.BestMoveUCI, p.PlayedMoveSAN,
		p.EvalLoss, p.Phase, p.Type, strings.Join(p.SolutionLine, " "), strings.Join(p.Themes, ","),
		nullableInt64(p.SourceGameID), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: insert puzzle: %w", err)
	}
	return nil
}

func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// RecordAttempt inserts a PuzzleAttempt row with SM-2 scheduling state
// already computed by the caller (internal/puzzles.Schedule).
func (s *Store) RecordAttempt(ctx context.Context, a *models.PuzzleAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO puzzle_attempts (user_id, puzzle_id, correct, time_taken_ms, attempted_at,
			repetition, easiness, next_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.PuzzleID, a.Correct, a.TimeTakenMs, a.AttemptedAt, a.Repetition, a.Easiness, a.NextReview)
	if err != nil {
		return fmt.Errorf("storage: record attempt: %w", err)
	}
	return nil
}

// LatestSchedulingState returns the (ef, n) pair from the user's most
// recent attempt on puzzle, or the zero value (defaulted by
// puzzles.Schedule) if never attempted.
func (s *Store) LatestSchedulingState(ctx context.Context, userID, puzzleID int64) (models.SchedulingState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT easiness, repetition FROM puzzle_attempts
		WHERE user_id = ? AND puzzle_id = ?
		ORDER BY attempted_at DESC LIMIT 1`, userID, puzzleID)
	var st models.SchedulingState
	err := row.Scan(&st.Easiness, &st.Repetition)
	if err == sql.ErrNoRows {
		return models.SchedulingState{}, nil
	}
	if err != nil {
		return models.SchedulingState{}, fmt.Errorf("storage: scheduling state: %w", err)
	}
	return st, nil
}

// ReviewQueue returns puzzle IDs due for review for userID.
func (s *Store) ReviewQueue(ctx context.Context, userID int64, now time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT pa.puzzle_id
		FROM puzzle_attempts pa
		INNER JOIN (
			SELECT puzzle_id, MAX(attempted_at) AS latest
			FROM puzzle_attempts WHERE user_id = ? GROUP BY puzzle_id
		) m ON m.puzzle_id = pa.puzzle_id AND m.latest = pa.attempted_at
		WHERE pa.user_id = ? AND pa.next_review <= ?`, userID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("storage: review queue: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertOpeningRepertoire folds one game's result into the (user,
// opening, color) mirror row.
func (s *Store) UpsertOpeningRepertoire(ctx context.Context, userID int64, opening string, color models.Color, result models.Result, cpl float64, playedAt time.Time) error {
	win, draw, loss := 0, 0, 0
	switch result {
	case models.ResultWin:
		win = 1
	case models.ResultDraw:
		draw = 1
	case models.ResultLoss:
		loss = 1
	}
	// average_cpl is reweighted after wins/draws/losses have already
	// been incremented in this same SET clause (MySQL evaluates
	// left-to-right and each assignment sees the prior ones' results),
	// so "wins + draws + losses" here is already the new total and the
	// old total is recovered by subtracting this row's own increment
	// back out rather than adding a further +1.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opening_repertoire (user_id, opening_name, color, wins, draws, losses, average_cpl, last_played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			wins = wins + VALUES(wins),
			draws = draws + VALUES(draws),
			losses = losses + VALUES(losses),
			average_cpl = (average_cpl * (wins + draws + losses - VALUES(wins) - VALUES(draws) - VALUES(losses)) + VALUES(average_cpl)) / (wins + draws + losses),
			last_played_at = GREATEST(last_played_at, VALUES(last_played_at))`,
		userID, opening, color, win, draw, loss, cpl, playedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert opening repertoire: %w", err)
	}
	return nil
}

// --- AnalysisJob persistence (§3: "retained for audit") ---

func (s *Store) InsertJob(ctx context.Context, j *models.AnalysisJob) error {
	snap := j.Snapshot()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, user_id, depth, total_games, games_completed, status,
			error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, j.UserID, j.Depth, snap.TotalGames, snap.GamesCompleted, snap.Status,
		nullableString(snap.Error), snap.CreatedAt, snap.CreatedAt, snap.CompletedAt)
	if err != nil {
		return fmt.Errorf("storage: insert job: %w", err)
	}
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, j *models.AnalysisJob) error {
	snap := j.Snapshot()
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET games_completed = ?, status = ?, error = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		snap.GamesCompleted, snap.Status, nullableString(snap.Error), time.Now(), snap.CompletedAt, snap.ID)
	if err != nil {
		return fmt.Errorf("storage: update job: %w", err)
	}
	return nil
}

// --- Puzzle reads (§6: GET /puzzles, GET /puzzles/global, GET /puzzles/review-queue) ---

// PuzzleFilter narrows a puzzle listing by phase, type, and/or theme;
// zero values mean "no filter on this dimension".
type PuzzleFilter struct {
	Phase  models.GamePhase
	Type   models.PuzzleType
	Theme  string
	Limit  int
}

// ListPuzzles returns puzzles sourced from userID's own games. When
// userID is 0 it lists across the whole corpus (the /puzzles/global
// variant).
func (s *Store) ListPuzzles(ctx context.Context, userID int64, f PuzzleFilter) ([]models.Puzzle, error) {
	query := `
		SELECT p.id, p.puzzle_key, p.fen, p.side_to_move, p.best_move_san, p.best_move_uci,
			p.played_move_san, p.eval_loss, p.phase, p.type, p.solution_line, p.themes,
			COALESCE(p.source_game_id, 0), p.created_at
		FROM puzzles p`
	args := []interface{}{}
	conds := []string{}

	if userID != 0 {
		query += ` JOIN games g ON g.id = p.source_game_id`
		conds = append(conds, "g.user_id = ?")
		args = append(args, userID)
	}
	if f.Phase != "" {
		conds = append(conds, "p.phase = ?")
		args = append(args, f.Phase)
	}
	if f.Type != "" {
		conds = append(conds, "p.type = ?")
		args = append(args, f.Type)
	}
	if f.Theme != "" {
		conds = append(conds, "FIND_IN_SET(?, p.themes) > 0")
		args = append(args, f.Theme)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY p.created_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list puzzles: %w", err)
	}
	defer rows.Close()

	var out []models.Puzzle
	for rows.Next() {
		var p models.Puzzle
		var solutionLine, themes string
		if err := rows.Scan(&p.ID, &p.PuzzleKey, &p.FEN, &p.SideToMove, &p.BestMoveSAN, &p.BestMoveUCI,
			&p.PlayedMoveSAN, &p.EvalLoss, &p.Phase, &p.Type, &solutionLine, &themes,
			&p.SourceGameID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.SolutionLine = splitNonEmpty(solutionLine, " ")
		p.Themes = splitNonEmpty(themes, ",")
		out = append(out, p)
	}
	return out, rows.Err()
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

// GetPuzzle loads one puzzle by ID.
func (s *Store) GetPuzzle(ctx context.Context, id int64) (*models.Puzzle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, puzzle_key, fen, side_to_move, best_move_san, best_move_uci,
			played_move_san, eval_loss, phase, type, solution_line, themes,
			COALESCE(source_game_id, 0), created_at
		FROM puzzles WHERE id = ?`, id)
	var p models.Puzzle
	var solutionLine, themes string
	if err := row.Scan(&p.ID, &p.PuzzleKey, &p.FEN, &p.SideToMove, &p.BestMoveSAN, &p.BestMoveUCI,
		&p.PlayedMoveSAN, &p.EvalLoss, &p.Phase, &p.Type, &solutionLine, &themes,
		&p.SourceGameID, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("storage: get puzzle %d: %w", id, err)
	}
	p.SolutionLine = splitNonEmpty(solutionLine, " ")
	p.Themes = splitNonEmpty(themes, ",")
	return &p, nil
}

// ReviewQueuePuzzles resolves ReviewQueue's puzzle IDs into full rows.
func (s *Store) ReviewQueuePuzzles(ctx context.Context, userID int64, now time.Time) ([]models.Puzzle, error) {
	ids, err := s.ReviewQueue(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	out := make([]models.Puzzle, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPuzzle(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// --- Streak tracking (SPEC_FULL.md supplemental feature) ---

// GetStreak loads a user's streak row, or the zero value if the user
// has never completed a puzzle attempt.
func (s *Store) GetStreak(ctx context.Context, userID int64) (models.Streak, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT current_streak, longest_streak, last_practice_at FROM streaks WHERE user_id = ?`, userID)
	st := models.Streak{UserID: userID}
	err := row.Scan(&st.CurrentStreak, &st.LongestStreak, &st.LastPracticeAt)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("storage: get streak: %w", err)
	}
	return st, nil
}

// RecordPractice folds one puzzle attempt into the user's daily streak:
// consecutive calendar days extend it, a gap resets it to 1, and the
// same day is a no-op repeat.
func (s *Store) RecordPractice(ctx context.Context, userID int64, at time.Time) (models.Streak, error) {
	st, err := s.GetStreak(ctx, userID)
	if err != nil {
		return st, err
	}

	today := at.Truncate(24 * time.Hour)
	last := st.LastPracticeAt.Truncate(24 * time.Hour)

	switch {
	case st.LastPracticeAt.IsZero():
		st.CurrentStreak = 1
	case today.Equal(last):
		// already practiced today; streak unchanged
	case today.Sub(last) == 24*time.Hour:
		st.CurrentStreak++
	default:
		st.CurrentStreak = 1
	}
	if st.CurrentStreak > st.LongestStreak {
		st.LongestStreak = st.CurrentStreak
	}
	st.LastPracticeAt = at

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_practice_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE current_streak = VALUES(current_streak),
			longest_streak = VALUES(longest_streak), last_practice_at = VALUES(last_practice_at)`,
		userID, st.CurrentStreak, st.LongestStreak, st.LastPracticeAt)
	if err != nil {
		return st, fmt.Errorf("storage: record practice: %w", err)
	}
	return st, nil
}

// --- Per-game read for GET /analysis/game/{id} ---

// GameWithMoves bundles a GameAnalysis summary with its MoveEvaluation rows.
type GameWithMoves struct {
	Summary *models.GameAnalysis
	Moves   []models.MoveEvaluation
}

func (s *Store) GetGameAnalysis(ctx context.Context, gameID int64) (*GameWithMoves, error) {
	summary := &models.GameAnalysis{GameID: gameID, PhaseAverages: map[models.GamePhase]models.PhaseAverage{}}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, overall_cpl, accuracy, counts_best, counts_excellent, counts_good,
			counts_inaccuracy, counts_mistake, counts_blunder, engine_depth, analyzed_at
		FROM game_analyses WHERE game_id = ?`, gameID)
	if err := row.Scan(&summary.ID, &summary.OverallCPL, &summary.Accuracy, &summary.Counts.Best,
		&summary.Counts.Excellent, &summary.Counts.Good, &summary.Counts.Inaccuracy,
		&summary.Counts.Mistake, &summary.Counts.Blunder, &summary.EngineDepth, &summary.AnalyzedAt); err != nil {
		return nil, fmt.Errorf("storage: get game analysis %d: %w", gameID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ply, side_to_move, san, uci, piece, cp_loss, weighted_cp_loss, phase, quality,
			COALESCE(blunder_subtype, ''), eval_before, eval_after, mate_before, mate_after,
			COALESCE(best_move_san, ''), COALESCE(best_move_uci, ''), win_prob_before,
			win_prob_after, accuracy, clock_seconds, degraded
		FROM move_evaluations WHERE game_id = ? ORDER BY ply ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("storage: get move evaluations %d: %w", gameID, err)
	}
	defer rows.Close()

	var moves []models.MoveEvaluation
	for rows.Next() {
		m := models.MoveEvaluation{GameID: gameID}
		var subtype string
		if err := rows.Scan(&m.Ply, &m.SideToMove, &m.SAN, &m.UCI, &m.Piece, &m.CPLoss, &m.WeightedCPLoss,
			&m.Phase, &m.Quality, &subtype, &m.EvalBefore, &m.EvalAfter, &m.MateBefore, &m.MateAfter,
			&m.BestMoveSAN, &m.BestMoveUCI, &m.WinProbBefore, &m.WinProbAfter, &m.Accuracy,
			&m.ClockSeconds, &m.Degraded); err != nil {
			return nil, err
		}
		m.BlunderSubType = models.BlunderSubType(subtype)
		moves = append(moves, m)
	}
	summary.PhaseAverages, err = s.phaseAveragesFor(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	return &GameWithMoves{Summary: summary, Moves: moves}, rows.Err()
}

func (s *Store) phaseAveragesFor(ctx context.Context, analysisID int64) (map[models.GamePhase]models.PhaseAverage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phase, mean_cp_loss, move_count FROM phase_averages WHERE game_analysis_id = ?`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("storage: phase averages: %w", err)
	}
	defer rows.Close()

	out := map[models.GamePhase]models.PhaseAverage{}
	for rows.Next() {
		var ph models.GamePhase
		var avg models.PhaseAverage
		if err := rows.Scan(&ph, &avg.MeanCPLoss, &avg.MoveCount); err != nil {
			return nil, err
		}
		out[ph] = avg
	}
	return out, rows.Err()
}
