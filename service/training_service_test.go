package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/StamperDavid/rapid-crm-sub000/models"
	"github.com/StamperDavid/rapid-crm-sub000/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTrainingStore implements SessionStore and ScenarioStore in memory for
// service-level tests
type memoryTrainingStore struct {
	sessions  map[uuid.UUID]*models.TrainingSession
	scenarios []*models.Scenario
	attempts  map[uuid.UUID]*models.TrainingAttempt
}

func newMemoryTrainingStore(scenarios []*models.Scenario) *memoryTrainingStore {
	return &memoryTrainingStore{
		sessions:  make(map[uuid.UUID]*models.TrainingSession),
		scenarios: scenarios,
		attempts:  make(map[uuid.UUID]*models.TrainingAttempt),
	}
}

func (m *memoryTrainingStore) CreateSession(ctx context.Context, session *models.TrainingSession) error {
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	m.sessions[session.ID] = session
	return nil
}

func (m *memoryTrainingStore) GetSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	copied := *session
	return &copied, nil
}

func (m *memoryTrainingStore) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	session, ok := m.sessions[id]
	if !ok {
		return errors.New("no rows in result set")
	}
	session.Status = status
	session.UpdatedAt = time.Now()
	if status == models.SessionCompleted {
		now := time.Now()
		session.CompletedAt = &now
	}
	return nil
}

func (m *memoryTrainingStore) RecomputeStats(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}

	var completed, correct, incorrect, pending, fallbacks int
	var latencySum int64
	for _, attempt := range m.attempts {
		if attempt.SessionID != id {
			continue
		}
		completed++
		latencySum += attempt.ResponseTimeMs
		if attempt.UsedFallback {
			fallbacks++
		}
		switch attempt.Verdict {
		case models.VerdictCorrect:
			correct++
		case models.VerdictIncorrect:
			incorrect++
		default:
			pending++
		}
	}

	session.ScenariosCompleted = completed
	session.ScenariosCorrect = correct
	session.ScenariosIncorrect = incorrect
	session.ScenariosPendingReview = pending
	session.FallbackCount = fallbacks
	if correct+incorrect > 0 {
		session.AccuracyPercentage = float64(correct) * 100 / float64(correct+incorrect)
	} else {
		session.AccuracyPercentage = 0
	}
	if completed > 0 {
		session.AverageResponseTimeMs = float64(latencySum) / float64(completed)
	}
	session.UpdatedAt = time.Now()

	copied := *session
	return &copied, nil
}

func (m *memoryTrainingStore) CreateAttempt(ctx context.Context, attempt *models.TrainingAttempt) error {
	attempt.CreatedAt = time.Now()
	m.attempts[attempt.ID] = attempt
	return nil
}

func (m *memoryTrainingStore) GetAttempt(ctx context.Context, sessionID, scenarioID uuid.UUID) (*models.TrainingAttempt, error) {
	for _, attempt := range m.attempts {
		if attempt.SessionID == sessionID && attempt.ScenarioID == scenarioID {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryTrainingStore) ReviewAttempt(ctx context.Context, attemptID uuid.UUID, verdict models.Verdict, feedback, reviewer *string) error {
	attempt, ok := m.attempts[attemptID]
	if !ok || attempt.Verdict != models.VerdictPending {
		return errors.New("no rows in result set")
	}
	attempt.Verdict = verdict
	attempt.Feedback = feedback
	attempt.ReviewedBy = reviewer
	now := time.Now()
	attempt.ReviewedAt = &now
	return nil
}

func (m *memoryTrainingStore) ListAttempts(ctx context.Context, sessionID uuid.UUID) ([]*models.TrainingAttempt, error) {
	var out []*models.TrainingAttempt
	for _, attempt := range m.attempts {
		if attempt.SessionID == sessionID {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryTrainingStore) UpsertBatch(ctx context.Context, scenarios []*models.Scenario) error {
	m.scenarios = append(m.scenarios, scenarios...)
	return nil
}

func (m *memoryTrainingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Scenario, error) {
	for _, scenario := range m.scenarios {
		if scenario.ID == id {
			return scenario, nil
		}
	}
	return nil, errors.New("no rows in result set")
}

func (m *memoryTrainingStore) NextUntested(ctx context.Context, sessionID uuid.UUID) (*models.Scenario, error) {
	for _, scenario := range m.scenarios {
		attempted := false
		for _, attempt := range m.attempts {
			if attempt.SessionID == sessionID && attempt.ScenarioID == scenario.ID {
				attempted = true
				break
			}
		}
		if !attempted {
			return scenario, nil
		}
	}
	return nil, nil
}

func (m *memoryTrainingStore) Count(ctx context.Context) (int, error) {
	return len(m.scenarios), nil
}

func testScenarioPool(t *testing.T, n int) []*models.Scenario {
	t.Helper()
	generator := NewScenarioGenerator(GeneratorWithKnowledgeBase(DefaultKnowledgeBase()))
	scenarios, err := generator.GenerateAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(scenarios), n)
	return scenarios[:n]
}

func newTestTrainingService(t *testing.T, store *memoryTrainingStore, corrections CorrectionStore) *TrainingService {
	t.Helper()

	determiner := NewDeterminationService(
		DeterminationWithKnowledgeBase(DefaultKnowledgeBase()),
	)

	reports, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return NewTrainingService(
		TrainingWithSessionStore(store),
		TrainingWithScenarioStore(store),
		TrainingWithDeterminer(determiner),
		TrainingWithCorrectionStore(corrections),
		TrainingWithReportStorage(reports),
	)
}

func TestStartSessionDefaultsToPoolSize(t *testing.T) {
	store := newMemoryTrainingStore(testScenarioPool(t, 5))
	svc := newTestTrainingService(t, store, nil)

	result, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Session.TotalScenarios)
	assert.Equal(t, models.SessionInProgress, result.Session.Status)

	capped, err := svc.StartSession(context.Background(), StartSessionRequest{TotalScenarios: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, capped.Session.TotalScenarios)
}

func TestSubmitAttemptRecordsPendingAttempt(t *testing.T) {
	pool := testScenarioPool(t, 3)
	store := newMemoryTrainingStore(pool)
	svc := newTestTrainingService(t, store, nil)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)

	result, err := svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
		SessionID:  session.Session.ID,
		ScenarioID: pool[0].ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.VerdictPending, result.Attempt.Verdict)
	// No reasoning client is wired, so the orchestrator used the fallback
	assert.True(t, result.Attempt.UsedFallback)
	assert.Equal(t, pool[0].Expected, result.Expected)

	refreshed, err := svc.GetSession(context.Background(), GetSessionRequest{SessionID: session.Session.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.Session.ScenariosCompleted)
	assert.Equal(t, 1, refreshed.Session.ScenariosPendingReview)
	assert.Equal(t, 1, refreshed.Session.FallbackCount)
	assert.Zero(t, refreshed.Session.AccuracyPercentage)
}

func TestNextScenarioWalksPoolAndExhausts(t *testing.T) {
	pool := testScenarioPool(t, 2)
	store := newMemoryTrainingStore(pool)
	svc := newTestTrainingService(t, store, nil)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)
	sessionID := session.Session.ID

	for i := 0; i < len(pool); i++ {
		next, err := svc.NextScenario(context.Background(), NextScenarioRequest{SessionID: sessionID})
		require.NoError(t, err)

		_, err = svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
			SessionID:  sessionID,
			ScenarioID: next.Scenario.ID,
		})
		require.NoError(t, err)
	}

	_, err = svc.NextScenario(context.Background(), NextScenarioRequest{SessionID: sessionID})
	assert.ErrorIs(t, err, ErrExhaustedScenarios)
}

func TestNextScenarioRequiresInProgress(t *testing.T) {
	store := newMemoryTrainingStore(testScenarioPool(t, 2))
	svc := newTestTrainingService(t, store, nil)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)

	_, err = svc.PauseSession(context.Background(), session.Session.ID)
	require.NoError(t, err)

	_, err = svc.NextScenario(context.Background(), NextScenarioRequest{SessionID: session.Session.ID})
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestSubmitVerdictRejectsMissingAndRepeatedReviews(t *testing.T) {
	pool := testScenarioPool(t, 2)
	store := newMemoryTrainingStore(pool)
	svc := newTestTrainingService(t, store, nil)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)
	sessionID := session.Session.ID

	// No attempt yet
	_, err = svc.SubmitVerdict(context.Background(), SubmitVerdictRequest{
		SessionID:  sessionID,
		ScenarioID: pool[0].ID,
		IsCorrect:  true,
	})
	assert.ErrorIs(t, err, ErrInvalidVerdict)

	_, err = svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
		SessionID:  sessionID,
		ScenarioID: pool[0].ID,
	})
	require.NoError(t, err)

	result, err := svc.SubmitVerdict(context.Background(), SubmitVerdictRequest{
		SessionID:  sessionID,
		ScenarioID: pool[0].ID,
		IsCorrect:  true,
		Reviewer:   "reviewer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Session.AccuracyPercentage)

	// Second verdict on the same attempt is rejected
	_, err = svc.SubmitVerdict(context.Background(), SubmitVerdictRequest{
		SessionID:  sessionID,
		ScenarioID: pool[0].ID,
		IsCorrect:  false,
	})
	assert.ErrorIs(t, err, ErrInvalidVerdict)
}

func TestSubmitVerdictRecordsCorrectionOnIncorrect(t *testing.T) {
	pool := testScenarioPool(t, 1)
	store := newMemoryTrainingStore(pool)
	corrections := &stubCorrectionStore{}
	svc := newTestTrainingService(t, store, corrections)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
		SessionID:  session.Session.ID,
		ScenarioID: pool[0].ID,
	})
	require.NoError(t, err)

	_, err = svc.SubmitVerdict(context.Background(), SubmitVerdictRequest{
		SessionID:  session.Session.ID,
		ScenarioID: pool[0].ID,
		IsCorrect:  false,
		Feedback:   "Missed the fuel-tax threshold for this fleet",
		Reviewer:   "reviewer@example.com",
	})
	require.NoError(t, err)

	require.Len(t, corrections.recorded, 1)
	correction := corrections.recorded[0]
	assert.Equal(t, pool[0].JurisdictionCode, correction.JurisdictionCode)
	assert.Equal(t, pool[0].CompensationModel, correction.OperationType)
	assert.Equal(t, pool[0].OperationRadius, correction.OperationRadius)
	assert.Equal(t, pool[0].Expected.Obligations, correction.Obligations)
	assert.Equal(t, pool[0].Expected.Reasoning, correction.Reasoning)
	assert.Equal(t, "Missed the fuel-tax threshold for this fleet", correction.ReviewerNotes)
	require.NotNil(t, correction.ScenarioID)
	assert.Equal(t, pool[0].ID, *correction.ScenarioID)
}

func TestSubmitVerdictCorrectRecordsNoCorrection(t *testing.T) {
	pool := testScenarioPool(t, 1)
	store := newMemoryTrainingStore(pool)
	corrections := &stubCorrectionStore{}
	svc := newTestTrainingService(t, store, corrections)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
		SessionID:  session.Session.ID,
		ScenarioID: pool[0].ID,
	})
	require.NoError(t, err)

	_, err = svc.SubmitVerdict(context.Background(), SubmitVerdictRequest{
		SessionID:  session.Session.ID,
		ScenarioID: pool[0].ID,
		IsCorrect:  true,
	})
	require.NoError(t, err)
	assert.Empty(t, corrections.recorded)
}

func TestAccuracyCountsOnlyReviewedAttempts(t *testing.T) {
	pool := testScenarioPool(t, 12)
	store := newMemoryTrainingStore(pool)
	svc := newTestTrainingService(t, store, nil)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)
	sessionID := session.Session.ID

	for _, scenario := range pool {
		_, err = svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
			SessionID:  sessionID,
			ScenarioID: scenario.ID,
		})
		require.NoError(t, err)
	}

	// Review ten of twelve: seven correct, three incorrect, two left pending
	var last *SubmitVerdictResult
	for i := 0; i < 10; i++ {
		last, err = svc.SubmitVerdict(context.Background(), SubmitVerdictRequest{
			SessionID:  sessionID,
			ScenarioID: pool[i].ID,
			IsCorrect:  i < 7,
			Feedback:   fmt.Sprintf("review %d", i),
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 12, last.Session.ScenariosCompleted)
	assert.Equal(t, 7, last.Session.ScenariosCorrect)
	assert.Equal(t, 3, last.Session.ScenariosIncorrect)
	assert.Equal(t, 2, last.Session.ScenariosPendingReview)
	assert.Equal(t, 70.0, last.Session.AccuracyPercentage)
}

func TestSessionLifecycleTransitions(t *testing.T) {
	store := newMemoryTrainingStore(testScenarioPool(t, 1))
	svc := newTestTrainingService(t, store, nil)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)
	id := session.Session.ID

	// Resume only applies to paused sessions
	_, err = svc.ResumeSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	paused, err := svc.PauseSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, paused.Status)

	// Pausing twice is rejected, as is completing from paused
	_, err = svc.PauseSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
	_, err = svc.CompleteSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	resumed, err := svc.ResumeSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, resumed.Status)

	completed, err := svc.CompleteSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	// Completed is terminal
	_, err = svc.ResumeSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
	_, err = svc.CompleteSession(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestExportReportWritesSessionDocument(t *testing.T) {
	pool := testScenarioPool(t, 1)
	store := newMemoryTrainingStore(pool)

	determiner := NewDeterminationService(
		DeterminationWithKnowledgeBase(DefaultKnowledgeBase()),
	)
	reports, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := NewTrainingService(
		TrainingWithSessionStore(store),
		TrainingWithScenarioStore(store),
		TrainingWithDeterminer(determiner),
		TrainingWithReportStorage(reports),
	)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{})
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(context.Background(), SubmitAttemptRequest{
		SessionID:  session.Session.ID,
		ScenarioID: pool[0].ID,
	})
	require.NoError(t, err)

	result, err := svc.ExportReport(context.Background(), ExportReportRequest{
		SessionID: session.Session.ID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.StoragePath)

	file, err := reports.Open(context.Background(), result.StoragePath)
	require.NoError(t, err)
	defer file.Close()

	var report models.SessionReport
	require.NoError(t, json.NewDecoder(file).Decode(&report))
	assert.Equal(t, session.Session.ID, report.Session.ID)
	assert.Len(t, report.Attempts, 1)
	assert.False(t, report.GeneratedAt.IsZero())
}
