package models

import (
	"sync"
	"time"
)

// JobStatus is the AnalysisJob lifecycle state. Terminal states are
// absorbing: once Completed or Failed, a job never transitions again.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// AnalysisJob tracks one POST /analysis/start request. Mutators are
// thread-safe: the HTTP handler reads Snapshot() while the worker
// goroutine calls the setters concurrently.
type AnalysisJob struct {
	mutex sync.RWMutex

	ID              string     `json:"id"`
	UserID          int64      `json:"userId"`
	Depth           int        `json:"depth"`
	TotalGames      int        `json:"totalGames"`
	GamesCompleted  int        `json:"gamesCompleted"`
	Status          JobStatus  `json:"status"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// JobSnapshot is the read-only view returned to API callers.
type JobSnapshot struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status"`
	TotalGames     int        `json:"totalGames"`
	GamesCompleted int        `json:"gamesCompleted"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// NewAnalysisJob creates a pending job for totalGames games.
func NewAnalysisJob(id string, userID int64, depth, totalGames int) *AnalysisJob {
	now := time.Now()
	return &AnalysisJob{
		ID:         id,
		UserID:     userID,
		Depth:      depth,
		TotalGames: totalGames,
		Status:     JobPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Start transitions pending -> processing.
func (j *AnalysisJob) Start() {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.Status = JobProcessing
	j.UpdatedAt = time.Now()
}

// AdvanceGame increments games_completed, preserving the monotonicity
// invariant (games_completed <= total_games).
func (j *AnalysisJob) AdvanceGame() {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.GamesCompleted < j.TotalGames {
		j.GamesCompleted++
	}
	j.UpdatedAt = time.Now()
}

// Complete transitions processing -> completed (terminal).
func (j *AnalysisJob) Complete() {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.Status == JobCompleted || j.Status == JobFailed {
		return
	}
	j.Status = JobCompleted
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail transitions to failed (terminal) with a truncated error message
// (<=500 chars per §7).
func (j *AnalysisJob) Fail(message string) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.Status == JobCompleted || j.Status == JobFailed {
		return
	}
	if len(message) > 500 {
		message = message[:500]
	}
	j.Error = message
	j.Status = JobFailed
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Snapshot returns a consistent read-only copy for API responses.
func (j *AnalysisJob) Snapshot() JobSnapshot {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return JobSnapshot{
		ID:             j.ID,
		Status:         j.Status,
		TotalGames:     j.TotalGames,
		GamesCompleted: j.GamesCompleted,
		Error:          j.Error,
		CreatedAt:      j.CreatedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// StreamEventType enumerates the discriminated-union event types for
// POST /analysis/run, replacing the duck-typed dict events of the
// original source (§9).
type StreamEventType string

const (
	EventStart     StreamEventType = "start"
	EventProgress  StreamEventType = "progress"
	EventGameError StreamEventType = "game_error"
	EventComplete  StreamEventType = "complete"
	EventError     StreamEventType = "error"
)

// StreamEvent is one SSE payload. Only the fields relevant to Type are
// populated; see §4.11 for the exact per-type field list.
type StreamEvent struct {
	Type        StreamEventType `json:"type"`
	Total       int             `json:"total,omitempty"`
	Completed   int             `json:"completed,omitempty"`
	GameID      int64           `json:"gameId,omitempty"`
	GameLabel   string          `json:"gameLabel,omitempty"`
	OverallCPL  *float64        `json:"overallCpl,omitempty"`
	Blunders    int             `json:"blunders,omitempty"`
	Mistakes    int             `json:"mistakes,omitempty"`
	Message     string          `json:"message,omitempty"`
	Analyzed    int             `json:"analyzed,omitempty"`
}
