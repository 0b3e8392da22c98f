// Package jobs implements the Job Queue & Progress Stream (C7): the
// AnalysisJob lifecycle (pending -> processing -> completed/failed)
// and the streaming SSE variant that runs the same pipeline inline.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chess-backend/internal/analyzer"
	"chess-backend/internal/models"
	"chess-backend/internal/puzzles"
	"chess-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"
)

// Manager dispatches AnalysisJob work and keeps the in-memory registry
// the job-status endpoint reads from, mirroring the teacher's
// AnalysisService.activeJobs pattern.
type Manager struct {
	store     *storage.Store
	analyzer  *analyzer.Analyzer
	extractor *puzzles.Extractor

	mu         sync.RWMutex
	activeJobs map[string]*models.AnalysisJob
}

func New(store *storage.Store, az *analyzer.Analyzer, ex *puzzles.Extractor) *Manager {
	return &Manager{
		store:      store,
		analyzer:   az,
		extractor:  ex,
		activeJobs: map[string]*models.AnalysisJob{},
	}
}

// StartJob allocates an AnalysisJob row and dispatches a worker
// goroutine, per §4.11's async path. gameIDs=nil means "all
// unanalyzed". Returns ErrNoUnanalyzedGames, which the handler turns
// into 400, when nothing is left to analyze.
func (m *Manager) StartJob(ctx context.Context, userID int64, gameIDs []int64, depth int) (*models.AnalysisJob, error) {
	ids, err := m.store.UnanalyzedGames(ctx, userID, gameIDs)
	if err != nil {
		return nil, fmt.Errorf("jobs: resolve unanalyzed games: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoUnanalyzedGames
	}

	job := models.NewAnalysisJob(uuid.New().String(), userID, depth, len(ids))
	if err := m.store.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("jobs: insert job: %w", err)
	}

	m.mu.Lock()
	m.activeJobs[job.ID] = job
	m.mu.Unlock()

	go m.runJob(job, ids, depth)

	return job, nil
}

// ErrNoUnanalyzedGames is returned when the requested game set has
// nothing left to analyze (§6: "400 if no unanalyzed games match").
var ErrNoUnanalyzedGames = fmt.Errorf("jobs: no unanalyzed games match the request")

// Lookup returns the in-memory job, if this process dispatched it.
func (m *Manager) Lookup(id string) (*models.AnalysisJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.activeJobs[id]
	return j, ok
}

// runJob is the async worker body. It runs on a background context
// that no caller can cancel; per-game failures are logged and skipped,
// and the job ends completed unless the janitor has already failed it.
func (m *Manager) runJob(job *models.AnalysisJob, gameIDs []int64, depth int) {
	ctx := context.Background()
	job.Start()
	if err := m.store.UpdateJob(ctx, job); err != nil {
		logrus.Errorf("jobs: update job %s to processing: %v", job.ID, err)
	}

	for _, id := range gameIDs {
		m.processOneGame(ctx, job, id, depth)
		job.AdvanceGame()
		if err := m.store.UpdateJob(ctx, job); err != nil {
			logrus.Errorf("jobs: update job %s progress: %v", job.ID, err)
		}
	}

	job.Complete()
	if err := m.store.UpdateJob(ctx, job); err != nil {
		logrus.Errorf("jobs: update job %s to completed: %v", job.ID, err)
	}
}

// processOneGame runs C6 and persists the result for one game. A
// per-game failure is logged and swallowed (§7 Parse kind: "fatal for
// the game ... does not abort the job").
func (m *Manager) processOneGame(ctx context.Context, job *models.AnalysisJob, gameID int64, depth int) {
	game, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		logrus.Errorf("jobs: job %s: load game %d: %v", job.ID, gameID, err)
		return
	}

	result, err := m.analyzer.AnalyzeGame(ctx, game, depth)
	if err != nil {
		logrus.Errorf("jobs: job %s: analyze game %d: %v", job.ID, gameID, err)
		return
	}

	if err := m.store.SaveAnalysis(ctx, gameID, result.Analysis, result.Moves, false); err != nil {
		logrus.Errorf("jobs: job %s: save analysis for game %d: %v", job.ID, gameID, err)
		return
	}

	m.extractPuzzles(ctx, game, result)

	if result.Analysis.OverallCPL != nil && game.OpeningName != "" {
		if err := m.store.UpsertOpeningRepertoire(ctx, game.UserID, game.OpeningName, game.PlayerColor,
			game.Result, *result.Analysis.OverallCPL, game.PlayedAt); err != nil {
			logrus.Warnf("jobs: job %s: opening repertoire update for game %d: %v", job.ID, gameID, err)
		}
	}
}

// extractPuzzles replays the game's move list to recover each
// candidate ply's board position, then runs the Puzzle Extractor
// (C8) over every qualifying MoveEvaluation.
func (m *Manager) extractPuzzles(ctx context.Context, game *models.Game, result *analyzer.Result) {
	if m.extractor == nil {
		return
	}

	replay, err := analyzer.ReplayGame(game.Moves)
	if err != nil {
		logrus.Warnf("jobs: replay game %d for puzzle extraction: %v", game.ID, err)
		return
	}
	moveList := replay.Moves()

	fenFunc, err := chess.FEN(chess.StartingPosition().String())
	if err != nil {
		return
	}
	walker := chess.NewGame(fenFunc)

	for i, move := range moveList {
		if i >= len(result.Moves) {
			break
		}
		eval := result.Moves[i]
		positionBefore := walker.Position()
		if err := walker.Move(move); err != nil {
			logrus.Warnf("jobs: replay desync at ply %d for game %d: %v", i+1, game.ID, err)
			return
		}

		mover := models.White
		if i%2 == 1 {
			mover = models.Black
		}
		if mover != game.PlayerColor {
			continue
		}

		candidate := puzzles.Candidate{
			GameID:         game.ID,
			PositionBefore: positionBefore,
			PlayedMove:     move,
			PlayedSAN:      eval.SAN,
			Quality:        eval.Quality,
			EvalBefore:     eval.EvalBefore,
			EvalLoss:       eval.CPLoss,
			BestMoveUCI:    eval.BestMoveUCI,
			BestMoveSAN:    eval.BestMoveSAN,
			MultiPVGap:     eval.MultiPVGap,
			OnlyLegalMove:  eval.OnlyLegalMove,
			Phase:          eval.Phase,
		}

		if !puzzles.IsCandidate(candidate) {
			continue
		}

		puzzle, ok, err := m.extractor.Build(ctx, candidate)
		if err != nil {
			logrus.Warnf("jobs: puzzle build failed for game %d ply %d: %v", game.ID, i+1, err)
			continue
		}
		if !ok {
			continue
		}
		if err := m.store.InsertPuzzle(ctx, puzzle); err != nil {
			logrus.Warnf("jobs: puzzle insert failed for game %d ply %d: %v", game.ID, i+1, err)
		}
	}
}

// Emit is a callback the streaming handler supplies; returning an
// error (e.g. a broken connection) aborts RunStream early.
type Emit func(models.StreamEvent) error

// RunStream implements §4.11's streaming endpoint: the same pipeline
// as StartJob/runJob, run synchronously against a single subscriber,
// emitting monotone progress events instead of polling a job row.
func (m *Manager) RunStream(ctx context.Context, userID int64, gameIDs []int64, depth int, emit Emit) error {
	ids, err := m.store.UnanalyzedGames(ctx, userID, gameIDs)
	if err != nil {
		return emit(models.StreamEvent{Type: models.EventError, Message: err.Error()})
	}
	if len(ids) == 0 {
		return emit(models.StreamEvent{Type: models.EventError, Message: ErrNoUnanalyzedGames.Error()})
	}

	if err := emit(models.StreamEvent{Type: models.EventStart, Total: len(ids)}); err != nil {
		return err
	}

	completed := 0
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err() // subscriber disconnected: stream simply ends, no further writes
		default:
		}

		game, err := m.store.GetGame(ctx, id)
		if err != nil {
			if err := emit(models.StreamEvent{Type: models.EventGameError, GameID: id, Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		result, err := m.analyzer.AnalyzeGame(ctx, game, depth)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // cancellation: no partial writes, no event
			}
			if err := emit(models.StreamEvent{Type: models.EventGameError, GameID: id, Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		if err := m.store.SaveAnalysis(ctx, id, result.Analysis, result.Moves, false); err != nil {
			if err := emit(models.StreamEvent{Type: models.EventGameError, GameID: id, Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		m.extractPuzzles(ctx, game, result)

		completed++

		if err := emit(models.StreamEvent{
			Type:       models.EventProgress,
			Completed:  completed,
			Total:      len(ids),
			GameID:     id,
			GameLabel:  gameLabel(game),
			OverallCPL: result.Analysis.OverallCPL,
			Blunders:   result.Analysis.Counts.Blunder,
			Mistakes:   result.Analysis.Counts.Mistake,
		}); err != nil {
			return err
		}
	}

	return emit(models.StreamEvent{Type: models.EventComplete, Analyzed: completed})
}

func gameLabel(g *models.Game) string {
	if g.OpeningName != "" {
		return fmt.Sprintf("%s (%s)", g.OpeningName, g.PlayedAt.Format("2006-01-02"))
	}
	return fmt.Sprintf("game %d (%s)", g.ID, g.PlayedAt.Format("2006-01-02"))
}

// JanitorInterval is how often the stale-job sweep runs (§5: "a
// janitor sweep transitions any job older than its per-game timeout ×
// remaining games to failed").
const JanitorInterval = time.Minute

// SweepStale fails any processing job created longer ago than its
// per-game timeout multiplied by its remaining game count.
func (m *Manager) SweepStale(ctx context.Context, now time.Time) {
	m.mu.RLock()
	jobs := make([]*models.AnalysisJob, 0, len(m.activeJobs))
	for _, j := range m.activeJobs {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()

	for _, job := range jobs {
		snap := job.Snapshot()
		if snap.Status != models.JobProcessing {
			continue
		}
		remaining := snap.TotalGames - snap.GamesCompleted
		if remaining <= 0 {
			continue
		}
		deadline := snap.CreatedAt.Add(time.Duration(remaining) * analyzer.PerGameTimeout)
		if now.After(deadline) {
			job.Fail("job exceeded per-game timeout budget and was swept by the janitor")
			if err := m.store.UpdateJob(ctx, job); err != nil {
				logrus.Errorf("jobs: janitor update for job %s: %v", job.ID, err)
			}
		}
	}
}
