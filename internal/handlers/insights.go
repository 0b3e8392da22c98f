package handlers

import (
	"net/http"

	"chess-backend/internal/aggregator"
	"chess-backend/internal/persona"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// InsightsHandler exposes the Corpus Aggregator (C9) and the Persona &
// Weakness Synthesizer (C10) over HTTP (§4.9, §4.10, §6).
type InsightsHandler struct {
	agg *aggregator.Aggregator
}

func NewInsightsHandler(agg *aggregator.Aggregator) *InsightsHandler {
	return &InsightsHandler{agg: agg}
}

// Overview returns §4.9's top-level overview.
// GET /api/insights/overview
func (h *InsightsHandler) Overview(c *gin.Context) {
	userID := userIDFromContext(c)
	overview, err := h.agg.Overview(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("insights: overview for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute overview"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// SkillRadar returns the six fixed skill axes.
// GET /api/insights/skill-radar
func (h *InsightsHandler) SkillRadar(c *gin.Context) {
	userID := userIDFromContext(c)
	radar, err := h.agg.SkillRadar(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("insights: skill radar for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute skill radar"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"radar": radar})
}

// Weaknesses returns the weakest phase and top blunder sub-type.
// GET /api/insights/weaknesses
func (h *InsightsHandler) Weaknesses(c *gin.Context) {
	userID := userIDFromContext(c)
	w, err := h.agg.Weaknesses(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("insights: weaknesses for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute weaknesses"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// TimePressure returns the time-pressure CPL slice.
// GET /api/insights/time-pressure
func (h *InsightsHandler) TimePressure(c *gin.Context) {
	userID := userIDFromContext(c)
	slice, err := h.agg.TimePressure(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("insights: time pressure for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute time pressure"})
		return
	}
	c.JSON(http.StatusOK, slice)
}

// PiecePerformance returns per-moved-piece averages.
// GET /api/insights/piece-performance
func (h *InsightsHandler) PiecePerformance(c *gin.Context) {
	userID := userIDFromContext(c)
	perf, err := h.agg.PiecePerformance(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("insights: piece performance for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute piece performance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pieces": perf})
}

// PopulationPercentile compares the caller against the corpus baseline.
// GET /api/insights/population
func (h *InsightsHandler) PopulationPercentile(c *gin.Context) {
	userID := userIDFromContext(c)
	pct, err := h.agg.PopulationPercentile(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("insights: population percentile for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute population percentile"})
		return
	}
	c.JSON(http.StatusOK, pct)
}

// Persona returns the synthesized persona report (C10), combining the
// metric vector, weaknesses, and overview into one lookup-table match.
// GET /api/insights/persona
func (h *InsightsHandler) Persona(c *gin.Context) {
	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	mv, err := h.agg.MetricVector(ctx, userID)
	if err != nil {
		logrus.Errorf("insights: persona metric vector for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute persona"})
		return
	}
	weaknesses, err := h.agg.Weaknesses(ctx, userID)
	if err != nil {
		logrus.Errorf("insights: persona weaknesses for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute persona"})
		return
	}
	overview, err := h.agg.Overview(ctx, userID)
	if err != nil {
		logrus.Errorf("insights: persona overview for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute persona"})
		return
	}

	report := persona.Synthesize(mv, weaknesses, overview)
	c.JSON(http.StatusOK, report)
}
