package handlers

import (
	"net/http"
	"time"

	"chess-backend/internal/enginepool"
	"chess-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the ambient liveness/readiness/stats endpoints
// (SPEC_FULL.md §H).
type HealthHandler struct {
	store *storage.Store
	pool  *enginepool.Pool
}

func NewHealthHandler(store *storage.Store, pool *enginepool.Pool) *HealthHandler {
	return &HealthHandler{store: store, pool: pool}
}

// Health is a bare liveness probe: the process is up.
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "chess-analysis-backend",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).Seconds(),
	})
}

// Ready checks the dependencies the pipeline needs to make progress:
// the database connection and a non-empty engine pool. The pool check
// reads its configured size; engine liveness is not probed.
// GET /api/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "database: " + err.Error()})
		return
	}
	if h.pool.Size() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "engine pool is empty"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Stats returns basic process/pool metrics and the route surface.
// GET /api/stats
func (h *HealthHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":        "chess-analysis-backend",
		"uptime_seconds": time.Since(startTime).Seconds(),
		"timestamp":      time.Now().UTC(),
		"engine_pool":    gin.H{"size": h.pool.Size(), "in_use": h.pool.InUse()},
		"endpoints": gin.H{
			"analysis_start": "/api/analysis/start",
			"analysis_job":   "/api/analysis/job/:id",
			"analysis_run":   "/api/analysis/run",
			"analysis_game":  "/api/analysis/game/:id",
			"puzzles":        "/api/puzzles",
			"insights":       "/api/insights/overview",
			"health":         "/api/health",
		},
	})
}

var startTime = time.Now()
