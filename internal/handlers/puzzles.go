package handlers

import (
	"net/http"
	"strconv"
	"time"

	"chess-backend/internal/models"
	"chess-backend/internal/puzzles"
	"chess-backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PuzzleHandler exposes the Puzzle Extractor's stored output and the
// spaced-repetition review loop (§4.8, §6).
type PuzzleHandler struct {
	store *storage.Store
}

func NewPuzzleHandler(store *storage.Store) *PuzzleHandler {
	return &PuzzleHandler{store: store}
}

func parsePuzzleFilter(c *gin.Context) storage.PuzzleFilter {
	f := storage.PuzzleFilter{
		Phase: models.GamePhase(c.Query("phase")),
		Type:  models.PuzzleType(c.Query("type")),
		Theme: c.Query("theme"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		f.Limit = limit
	}
	return f
}

// ListPuzzles returns the caller's own puzzles, derived from their games.
// GET /api/puzzles
func (h *PuzzleHandler) ListPuzzles(c *gin.Context) {
	userID := userIDFromContext(c)
	list, err := h.store.ListPuzzles(c.Request.Context(), userID, parsePuzzleFilter(c))
	if err != nil {
		logrus.Errorf("puzzles: list for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list puzzles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": list})
}

// ListGlobalPuzzles returns corpus-wide puzzles regardless of owner.
// GET /api/puzzles/global
func (h *PuzzleHandler) ListGlobalPuzzles(c *gin.Context) {
	list, err := h.store.ListPuzzles(c.Request.Context(), 0, parsePuzzleFilter(c))
	if err != nil {
		logrus.Errorf("puzzles: list global: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list puzzles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": list})
}

// ReviewQueue returns the caller's puzzles due for spaced-repetition
// review (§4.8); the list is not ordered.
// GET /api/puzzles/review-queue
func (h *PuzzleHandler) ReviewQueue(c *gin.Context) {
	userID := userIDFromContext(c)
	list, err := h.store.ReviewQueuePuzzles(c.Request.Context(), userID, time.Now())
	if err != nil {
		logrus.Errorf("puzzles: review queue for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load review queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": list})
}

type attemptRequest struct {
	Correct     bool `json:"correct"`
	TimeTakenMs *int `json:"time_taken_ms"`
}

// RecordAttempt logs a solve attempt, reschedules the puzzle via the
// SM-2 variant, and extends the caller's daily practice streak.
// POST /api/puzzles/:id/attempt
func (h *PuzzleHandler) RecordAttempt(c *gin.Context) {
	puzzleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid puzzle id"})
		return
	}

	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	ctx := c.Request.Context()
	now := time.Now()

	prior, err := h.store.LatestSchedulingState(ctx, userID, puzzleID)
	if err != nil {
		logrus.Errorf("puzzles: load scheduling state for user %d puzzle %d: %v", userID, puzzleID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scheduling state"})
		return
	}

	nextReview, state := puzzles.Schedule(prior, req.Correct, now)

	attempt := &models.PuzzleAttempt{
		UserID:      userID,
		PuzzleID:    puzzleID,
		Correct:     req.Correct,
		TimeTakenMs: req.TimeTakenMs,
		AttemptedAt: now,
		Repetition:  state.Repetition,
		Easiness:    state.Easiness,
		NextReview:  nextReview,
	}
	if err := h.store.RecordAttempt(ctx, attempt); err != nil {
		logrus.Errorf("puzzles: record attempt for user %d puzzle %d: %v", userID, puzzleID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record attempt"})
		return
	}

	streak, err := h.store.RecordPractice(ctx, userID, now)
	if err != nil {
		logrus.Warnf("puzzles: streak update for user %d: %v", userID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"repetition":  state.Repetition,
		"easiness":    state.Easiness,
		"next_review": nextReview,
		"streak":      streak,
	})
}

// GetStreak returns the caller's current practice streak.
// GET /api/puzzles/streak
func (h *PuzzleHandler) GetStreak(c *gin.Context) {
	userID := userIDFromContext(c)
	streak, err := h.store.GetStreak(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("puzzles: get streak for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load streak"})
		return
	}
	c.JSON(http.StatusOK, streak)
}
