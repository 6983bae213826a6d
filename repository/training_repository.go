package repository

import (
	"context"
	"errors"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrainingRepository handles database operations for training sessions and
// their attempts
type TrainingRepository struct {
	db *pgxpool.Pool
}

// NewTrainingRepository creates a new training repository
func NewTrainingRepository(db *pgxpool.Pool) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// CreateSession inserts a new training session
func (r *TrainingRepository) CreateSession(ctx context.Context, session *models.TrainingSession) error {
	query := `
		INSERT INTO training_sessions (id, total_scenarios, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	return r.db.QueryRow(ctx, query, session.ID, session.TotalScenarios, session.Status).
		Scan(&session.CreatedAt, &session.UpdatedAt)
}

// GetSession retrieves a session by ID
func (r *TrainingRepository) GetSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	session := &models.TrainingSession{}
	query := `
		SELECT id, total_scenarios, scenarios_completed, scenarios_correct,
			scenarios_incorrect, scenarios_pending_review, fallback_count,
			accuracy_percentage, average_response_time_ms, status,
			created_at, updated_at, completed_at
		FROM training_sessions
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.TotalScenarios,
		&session.ScenariosCompleted,
		&session.ScenariosCorrect,
		&session.ScenariosIncorrect,
		&session.ScenariosPendingReview,
		&session.FallbackCount,
		&session.AccuracyPercentage,
		&session.AverageResponseTimeMs,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateSessionStatus updates the lifecycle status of a session. Completing a
// session also stamps completed_at.
func (r *TrainingRepository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	query := `
		UPDATE training_sessions
		SET status = $2,
			completed_at = CASE WHEN $2 = 'completed' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// RecomputeStats re-derives session counters from the attempt rows in a single
// statement and returns the refreshed session. Accuracy only counts reviewed
// attempts; pending verdicts do not move it.
func (r *TrainingRepository) RecomputeStats(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	session := &models.TrainingSession{}
	query := `
		UPDATE training_sessions t SET
			scenarios_completed = stats.completed,
			scenarios_correct = stats.correct,
			scenarios_incorrect = stats.incorrect,
			scenarios_pending_review = stats.pending,
			fallback_count = stats.fallbacks,
			accuracy_percentage = CASE
				WHEN stats.correct + stats.incorrect > 0
				THEN stats.correct::float8 * 100 / (stats.correct + stats.incorrect)
				ELSE 0
			END,
			average_response_time_ms = COALESCE(stats.avg_latency, 0),
			updated_at = NOW()
		FROM (
			SELECT
				COUNT(*) AS completed,
				COUNT(*) FILTER (WHERE verdict = 'correct') AS correct,
				COUNT(*) FILTER (WHERE verdict = 'incorrect') AS incorrect,
				COUNT(*) FILTER (WHERE verdict = 'pending') AS pending,
				COUNT(*) FILTER (WHERE used_fallback) AS fallbacks,
				AVG(response_time_ms)::float8 AS avg_latency
			FROM training_attempts
			WHERE session_id = $1
		) AS stats
		WHERE t.id = $1
		RETURNING t.id, t.total_scenarios, t.scenarios_completed, t.scenarios_correct,
			t.scenarios_incorrect, t.scenarios_pending_review, t.fallback_count,
			t.accuracy_percentage, t.average_response_time_ms, t.status,
			t.created_at, t.updated_at, t.completed_at`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.TotalScenarios,
		&session.ScenariosCompleted,
		&session.ScenariosCorrect,
		&session.ScenariosIncorrect,
		&session.ScenariosPendingReview,
		&session.FallbackCount,
		&session.AccuracyPercentage,
		&session.AverageResponseTimeMs,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.CompletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// CreateAttempt inserts a new attempt with a pending verdict
func (r *TrainingRepository) CreateAttempt(ctx context.Context, attempt *models.TrainingAttempt) error {
	query := `
		INSERT INTO training_attempts (
			id, session_id, scenario_id, obligations, reasoning,
			confidence, used_fallback, response_time_ms, verdict
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	return r.db.QueryRow(
		ctx, query,
		attempt.ID,
		attempt.SessionID,
		attempt.ScenarioID,
		attempt.Obligations,
		attempt.Reasoning,
		attempt.Confidence,
		attempt.UsedFallback,
		attempt.ResponseTimeMs,
		attempt.Verdict,
	).Scan(&attempt.CreatedAt)
}

// GetAttempt retrieves the attempt a session made on a scenario, or nil when
// the scenario has not been attempted in that session
func (r *TrainingRepository) GetAttempt(ctx context.Context, sessionID, scenarioID uuid.UUID) (*models.TrainingAttempt, error) {
	attempt := &models.TrainingAttempt{}
	query := `
		SELECT id, session_id, scenario_id, obligations, reasoning,
			confidence, used_fallback, response_time_ms, verdict,
			feedback, reviewed_by, created_at, reviewed_at
		FROM training_attempts
		WHERE session_id = $1 AND scenario_id = $2`

	err := r.db.QueryRow(ctx, query, sessionID, scenarioID).Scan(
		&attempt.ID,
		&attempt.SessionID,
		&attempt.ScenarioID,
		&attempt.Obligations,
		&attempt.Reasoning,
		&attempt.Confidence,
		&attempt.UsedFallback,
		&attempt.ResponseTimeMs,
		&attempt.Verdict,
		&attempt.Feedback,
		&attempt.ReviewedBy,
		&attempt.CreatedAt,
		&attempt.ReviewedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return attempt, nil
}

// ReviewAttempt records a reviewer verdict on a pending attempt. A zero
// RowsAffected means the attempt is missing or already reviewed; the caller
// distinguishes those cases.
func (r *TrainingRepository) ReviewAttempt(ctx context.Context, attemptID uuid.UUID, verdict models.Verdict, feedback, reviewer *string) error {
	query := `
		UPDATE training_attempts
		SET verdict = $2, feedback = $3, reviewed_by = $4, reviewed_at = NOW()
		WHERE id = $1 AND verdict = 'pending'`

	tag, err := r.db.Exec(ctx, query, attemptID, verdict, feedback, reviewer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// ListAttempts returns all attempts for a session in submission order
func (r *TrainingRepository) ListAttempts(ctx context.Context, sessionID uuid.UUID) ([]*models.TrainingAttempt, error) {
	query := `
		SELECT id, session_id, scenario_id, obligations, reasoning,
			confidence, used_fallback, response_time_ms, verdict,
			feedback, reviewed_by, created_at, reviewed_at
		FROM training_attempts
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*models.TrainingAttempt, 0)
	for rows.Next() {
		attempt := &models.TrainingAttempt{}
		err := rows.Scan(
			&attempt.ID,
			&attempt.SessionID,
			&attempt.ScenarioID,
			&attempt.Obligations,
			&attempt.Reasoning,
			&attempt.Confidence,
			&attempt.UsedFallback,
			&attempt.ResponseTimeMs,
			&attempt.Verdict,
			&attempt.Feedback,
			&attempt.ReviewedBy,
			&attempt.CreatedAt,
			&attempt.ReviewedAt,
		)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}
