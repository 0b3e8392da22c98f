package models

import "time"

// Trend classifies recent-form direction relative to career overall_cpl
// (§4.9: improving if recent < overall-5, declining if recent > overall+5).
type Trend string

const (
	TrendImproving  Trend = "improving"
	TrendDeclining  Trend = "declining"
	TrendStable     Trend = "stable"
)

// Overview is the corpus-wide summary for /insights/overview.
type Overview struct {
	TotalGames         int     `json:"totalGames"`
	WinRate            float64 `json:"winRate"`
	MeanOverallCPL     float64 `json:"meanOverallCpl"`
	MeanBlundersPer100 float64 `json:"meanBlundersPer100"`
	PhaseMeans         map[GamePhase]float64 `json:"phaseMeans"`
	RecentTenMeanCPL   float64 `json:"recentTenMeanCpl"`
	Trend              Trend   `json:"trend"`
}

// SkillAxis is one of the six fixed radar axes (§4.9).
type SkillAxis string

const (
	AxisOpening     SkillAxis = "Opening"
	AxisMiddlegame  SkillAxis = "Middlegame"
	AxisEndgame     SkillAxis = "Endgame"
	AxisTactics     SkillAxis = "Tactics"
	AxisComposure   SkillAxis = "Composure"
	AxisConsistency SkillAxis = "Consistency"
)

// SkillRadar maps each axis to a 0..100 score.
type SkillRadar map[SkillAxis]float64

// Weaknesses is the structured output of the weakness-detection pass.
type Weaknesses struct {
	WeakestPhase          GamePhase      `json:"weakestPhase,omitempty"`
	PhaseWeaknessRatio    float64        `json:"phaseWeaknessRatio,omitempty"`
	TopBlunderSubType     BlunderSubType `json:"topBlunderSubType,omitempty"`
	TopBlunderSubTypeCnt  int            `json:"topBlunderSubTypeCount,omitempty"`
	ConvertingAdvantages  int            `json:"convertingAdvantagesCount"`
	TimeControlUnderperf  []string       `json:"timeControlUnderperformance,omitempty"`
}

// TimePressureSlice aggregates moves made with < 30s on the clock.
type TimePressureSlice struct {
	MoveCount      int     `json:"moveCount"`
	MeanCPLoss     float64 `json:"meanCpLoss"`
	BlunderRate    float64 `json:"blunderRate"` // blunders per 100 such moves
}

// PiecePerformance is the per-moved-piece aggregate (§4.9 bullet list).
type PiecePerformance struct {
	Piece       string        `json:"piece"`
	MeanCPLoss  float64       `json:"meanCpLoss"`
	MoveCount   int           `json:"moveCount"`
	Counts      QualityCounts `json:"counts"`
}

// PopulationPercentile places a user's overall_cpl beside the mean and
// median of the supplemental PopulationStats baseline (lower CPL is
// better). No percentile rank is computed.
type PopulationPercentile struct {
	UserOverallCPL   float64   `json:"userOverallCpl"`
	PopulationMean   float64   `json:"populationMean"`
	PopulationMedian float64   `json:"populationMedian"`
	ComputedAt       time.Time `json:"computedAt"`
}

// PhaseBreakdownRow is one row of the persona report's phase-by-phase
// commentary table (§4.10).
type PhaseBreakdownRow struct {
	Phase      GamePhase `json:"phase"`
	MeanCPLoss float64   `json:"meanCpLoss"`
	Commentary string    `json:"commentary"`
}

// PersonaReport is the Persona Synthesizer's (C10) structured output.
type PersonaReport struct {
	Primary          string              `json:"primary"`
	Secondary        string              `json:"secondary,omitempty"`
	SignatureStats   []string            `json:"signatureStats"`
	Kryptonite       string              `json:"kryptonite"`
	OneThingToChange string              `json:"oneThingToChange"`
	Story            string              `json:"story"`
	PhaseBreakdown   []PhaseBreakdownRow `json:"phaseBreakdown"`
	GrowthPath       []string            `json:"growthPath"`
}

// MetricVector is the aggregator-derived input the 12 persona scorers
// consume. Every field except AvgMoveTimeSeconds is derived from an
// aggregator query output; no query fills AvgMoveTimeSeconds, so it
// stays 0.
type MetricVector struct {
	OverallCPL           float64
	PhaseCPL             map[GamePhase]float64
	BlunderRate          float64 // per 100 player moves
	DrawRate             float64
	WinRate              float64
	ComebackCount        int // games recovering from -300cp to a win/draw
	CollapseCount        int // games losing from +300cp
	Accuracy             float64
	ConsistencyStdDevCPL float64
	TacticalHitRate      float64 // fraction of puzzle-candidate positions where player found best move
	AvgMoveTimeSeconds   float64
	TimeTroubleBlunders  int
}
