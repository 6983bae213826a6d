package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a training session
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionPaused     SessionStatus = "paused"
)

// Verdict represents a reviewer's judgment of one attempt
type Verdict string

const (
	VerdictPending   Verdict = "pending"
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// TrainingSession aggregates the attempts of one training run. Counters are
// recomputed from attempt rows as verdicts arrive; accuracy counts reviewed
// attempts only.
type TrainingSession struct {
	ID                     uuid.UUID     `json:"id"`
	TotalScenarios         int           `json:"total_scenarios"`
	ScenariosCompleted     int           `json:"scenarios_completed"`
	ScenariosCorrect       int           `json:"scenarios_correct"`
	ScenariosIncorrect     int           `json:"scenarios_incorrect"`
	ScenariosPendingReview int           `json:"scenarios_pending_review"`
	FallbackCount          int           `json:"fallback_count"`
	AccuracyPercentage     float64       `json:"accuracy_percentage"`
	AverageResponseTimeMs  float64       `json:"average_response_time_ms"`
	Status                 SessionStatus `json:"status"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
	CompletedAt            *time.Time    `json:"completed_at,omitempty"`
}

// TrainingAttempt is one scenario run within a session, with the produced
// determination and the reviewer's eventual verdict
type TrainingAttempt struct {
	ID             uuid.UUID   `json:"id"`
	SessionID      uuid.UUID   `json:"session_id"`
	ScenarioID     uuid.UUID   `json:"scenario_id"`
	Obligations    Obligations `json:"obligations"`
	Reasoning      string      `json:"reasoning"`
	Confidence     float64     `json:"confidence"`
	UsedFallback   bool        `json:"used_fallback"`
	ResponseTimeMs int64       `json:"response_time_ms"`
	Verdict        Verdict     `json:"verdict"`
	Feedback       *string     `json:"feedback,omitempty"`
	ReviewedBy     *string     `json:"reviewed_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ReviewedAt     *time.Time  `json:"reviewed_at,omitempty"`
}

// SessionReport is the exportable summary of a session, written to report
// storage on demand
type SessionReport struct {
	Session     *TrainingSession   `json:"session"`
	Attempts    []*TrainingAttempt `json:"attempts"`
	GeneratedAt time.Time          `json:"generated_at"`
}
