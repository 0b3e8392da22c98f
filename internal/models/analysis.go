package models

import "time"

// QualityLabel classifies a single ply's centipawn loss per §4.3.
type QualityLabel string

const (
	QualityBest        QualityLabel = "Best"
	QualityExcellent   QualityLabel = "Excellent"
	QualityGood        QualityLabel = "Good"
	QualityInaccuracy  QualityLabel = "Inaccuracy"
	QualityMistake     QualityLabel = "Mistake"
	QualityBlunder     QualityLabel = "Blunder"
)

// BlunderSubType explains *why* a Blunder/Mistake happened, per §4.3's
// ordered predicate chain. Empty string means "not applicable" (the
// quality label was better than Mistake).
type BlunderSubType string

const (
	SubTypeHangingPiece      BlunderSubType = "hanging_piece"
	SubTypeMissedMate        BlunderSubType = "missed_mate"
	SubTypeMissedFork        BlunderSubType = "missed_fork"
	SubTypeMissedPin         BlunderSubType = "missed_pin"
	SubTypeMissedSkewer      BlunderSubType = "missed_skewer"
	SubTypeMissedDiscovery   BlunderSubType = "missed_discovery"
	SubTypeMissedCapture     BlunderSubType = "missed_capture"
	SubTypeBackRank          BlunderSubType = "back_rank"
	SubTypeKingSafety        BlunderSubType = "king_safety"
	SubTypeEndgameTechnique  BlunderSubType = "endgame_technique"
	SubTypePositional        BlunderSubType = "positional"
)

// MateCentipawnValue is the clamp applied to mate-flagged evaluations
// for arithmetic purposes (§4.4, §9 — standardized on ±1500, not the
// source's inconsistent ±10000).
const MateCentipawnValue = 1500

// MaxCentipawnLoss is the clamp ceiling for MoveEvaluation.CPLoss (§3).
const MaxCentipawnLoss = 800

// MoveEvaluation is one row per analyzed ply.
type MoveEvaluation struct {
	ID              int64          `json:"id"`
	GameID          int64          `json:"gameId"`
	Ply             int            `json:"ply"`
	SideToMove      Color          `json:"sideToMove"`
	SAN             string         `json:"san"`
	UCI             string         `json:"uci"`
	Piece           string         `json:"piece"` // single letter: P,N,B,R,Q,K
	CPLoss          int            `json:"cpLoss"`
	WeightedCPLoss  float64        `json:"weightedCpLoss"`
	Phase           GamePhase      `json:"phase"`
	Quality         QualityLabel   `json:"quality"`
	BlunderSubType  BlunderSubType `json:"blunderSubType,omitempty"`
	EvalBefore      int            `json:"evalBefore"`
	EvalAfter       int            `json:"evalAfter"`
	MateBefore      bool           `json:"mateBefore"`
	MateAfter       bool           `json:"mateAfter"`
	BestMoveSAN     string         `json:"bestMoveSan,omitempty"`
	BestMoveUCI     string         `json:"bestMoveUci,omitempty"`
	MultiPVGap      int            `json:"multiPvGap"` // |variation 1 score - variation 2 score| from positionBefore, 0 if only one variation existed
	OnlyLegalMove   bool           `json:"onlyLegalMove,omitempty"`
	WinProbBefore   float64        `json:"winProbBefore"`
	WinProbAfter    float64        `json:"winProbAfter"`
	Accuracy        float64        `json:"accuracy"`
	ClockSeconds    *float64       `json:"clockSeconds,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"`
}

// QualityCounts tallies MoveEvaluation rows by quality label for one
// player's moves in one game.
type QualityCounts struct {
	Best       int `json:"best"`
	Excellent  int `json:"excellent"`
	Good       int `json:"good"`
	Inaccuracy int `json:"inaccuracy"`
	Mistake    int `json:"mistake"`
	Blunder    int `json:"blunder"`
}

func (c *QualityCounts) Add(q QualityLabel) {
	switch q {
	case QualityBest:
		c.Best++
	case QualityExcellent:
		c.Excellent++
	case QualityGood:
		c.Good++
	case QualityInaccuracy:
		c.Inaccuracy++
	case QualityMistake:
		c.Mistake++
	case QualityBlunder:
		c.Blunder++
	}
}

// PhaseAverage is a mean CPL paired with the sample size it is over.
type PhaseAverage struct {
	MeanCPLoss float64 `json:"meanCpLoss"`
	MoveCount  int     `json:"moveCount"`
}

// GameAnalysis is one row per analyzed game, computed over the player's
// own moves only.
type GameAnalysis struct {
	ID            int64                      `json:"id"`
	GameID        int64                      `json:"gameId"`
	OverallCPL    *float64                   `json:"overallCpl"` // null when player made 0 moves
	PhaseAverages map[GamePhase]PhaseAverage `json:"phaseAverages"`
	Counts        QualityCounts              `json:"counts"`
	Accuracy      *float64                   `json:"accuracy"`
	EngineDepth   int                        `json:"engineDepth"`
	AnalyzedAt    time.Time                  `json:"analyzedAt"`
}
