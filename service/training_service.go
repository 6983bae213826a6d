package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/StamperDavid/rapid-crm-sub000/models"
	"github.com/StamperDavid/rapid-crm-sub000/storage"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound     = errors.New("training session not found")
	ErrScenarioNotFound    = errors.New("scenario not found")
	ErrExhaustedScenarios  = errors.New("no untested scenarios remain for this session")
	ErrInvalidVerdict      = errors.New("verdict rejected: attempt missing or already reviewed")
	ErrInvalidSessionState = errors.New("operation not allowed in current session state")
)

// SessionStore persists training sessions and their attempts
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.TrainingSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error
	RecomputeStats(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error)
	CreateAttempt(ctx context.Context, attempt *models.TrainingAttempt) error
	GetAttempt(ctx context.Context, sessionID, scenarioID uuid.UUID) (*models.TrainingAttempt, error)
	ReviewAttempt(ctx context.Context, attemptID uuid.UUID, verdict models.Verdict, feedback, reviewer *string) error
	ListAttempts(ctx context.Context, sessionID uuid.UUID) ([]*models.TrainingAttempt, error)
}

// ScenarioStore persists generated scenarios
type ScenarioStore interface {
	UpsertBatch(ctx context.Context, scenarios []*models.Scenario) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Scenario, error)
	NextUntested(ctx context.Context, sessionID uuid.UUID) (*models.Scenario, error)
	Count(ctx context.Context) (int, error)
}

// Determiner is the training manager's view of the determination orchestrator
type Determiner interface {
	Determine(ctx context.Context, req DetermineRequest) (*DetermineResult, error)
}

// TrainingService runs scenarios through the determination orchestrator,
// tracks per-session accuracy and latency, and feeds reviewer verdicts back
// into the correction store
type TrainingService struct {
	sessions    SessionStore
	scenarios   ScenarioStore
	determiner  Determiner
	corrections CorrectionStore
	reports     storage.Storage
}

// TrainingServiceOption is a functional option for TrainingService
type TrainingServiceOption func(*TrainingService)

// TrainingWithSessionStore sets the session store
func TrainingWithSessionStore(store SessionStore) TrainingServiceOption {
	return func(s *TrainingService) {
		s.sessions = store
	}
}

// TrainingWithScenarioStore sets the scenario store
func TrainingWithScenarioStore(store ScenarioStore) TrainingServiceOption {
	return func(s *TrainingService) {
		s.scenarios = store
	}
}

// TrainingWithDeterminer sets the determination orchestrator
func TrainingWithDeterminer(d Determiner) TrainingServiceOption {
	return func(s *TrainingService) {
		s.determiner = d
	}
}

// TrainingWithCorrectionStore sets the correction store
func TrainingWithCorrectionStore(store CorrectionStore) TrainingServiceOption {
	return func(s *TrainingService) {
		s.corrections = store
	}
}

// TrainingWithReportStorage sets the report storage backend
func TrainingWithReportStorage(store storage.Storage) TrainingServiceOption {
	return func(s *TrainingService) {
		s.reports = store
	}
}

// NewTrainingService creates a new training service
func NewTrainingService(opts ...TrainingServiceOption) *TrainingService {
	s := &TrainingService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSessionRequest represents a request to start a training session
type StartSessionRequest struct {
	TotalScenarios int
}

// StartSessionResult represents the result of starting a session
type StartSessionResult struct {
	Session *models.TrainingSession
}

// StartSession creates a new in-progress session. A zero scenario count means
// "run the whole scenario pool".
func (s *TrainingService) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResult, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}

	total := req.TotalScenarios
	if total <= 0 {
		if s.scenarios == nil {
			return nil, errors.New("scenario store not set")
		}
		count, err := s.scenarios.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count scenarios: %w", err)
		}
		total = count
	}

	session := &models.TrainingSession{
		ID:             uuid.New(),
		TotalScenarios: total,
		Status:         models.SessionInProgress,
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &StartSessionResult{Session: session}, nil
}

// GetSessionRequest represents a request to fetch a session
type GetSessionRequest struct {
	SessionID uuid.UUID
}

// GetSessionResult represents the result of fetching a session
type GetSessionResult struct {
	Session *models.TrainingSession
}

// GetSession retrieves a session by ID
func (s *TrainingService) GetSession(ctx context.Context, req GetSessionRequest) (*GetSessionResult, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	return &GetSessionResult{Session: session}, nil
}

// NextScenarioRequest represents a request for the next untested scenario
type NextScenarioRequest struct {
	SessionID uuid.UUID
}

// NextScenarioResult represents the result of drawing a scenario
type NextScenarioResult struct {
	Scenario *models.Scenario
}

// NextScenario draws an as-yet-untested scenario for the session. When the
// pool is exhausted it fails with ErrExhaustedScenarios, which callers treat
// as the normal "session complete" signal.
func (s *TrainingService) NextScenario(ctx context.Context, req NextScenarioRequest) (*NextScenarioResult, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}
	if s.scenarios == nil {
		return nil, errors.New("scenario store not set")
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrInvalidSessionState
	}
	if session.ScenariosCompleted >= session.TotalScenarios {
		return nil, ErrExhaustedScenarios
	}

	scenario, err := s.scenarios.NextUntested(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if scenario == nil {
		return nil, ErrExhaustedScenarios
	}

	return &NextScenarioResult{Scenario: scenario}, nil
}

// SubmitAttemptRequest represents a request to run one scenario
type SubmitAttemptRequest struct {
	SessionID  uuid.UUID
	ScenarioID uuid.UUID
}

// SubmitAttemptResult represents the result of one attempt
type SubmitAttemptResult struct {
	Attempt       *models.TrainingAttempt
	Determination *models.Determination
	Expected      models.ExpectedDetermination
}

// SubmitAttempt runs the scenario through the determination orchestrator,
// records the latency and fallback flag, and stores a pending-review attempt
func (s *TrainingService) SubmitAttempt(ctx context.Context, req SubmitAttemptRequest) (*SubmitAttemptResult, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}
	if s.scenarios == nil {
		return nil, errors.New("scenario store not set")
	}
	if s.determiner == nil {
		return nil, errors.New("determination service not set")
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrInvalidSessionState
	}

	scenario, err := s.scenarios.GetByID(ctx, req.ScenarioID)
	if err != nil {
		return nil, ErrScenarioNotFound
	}

	started := time.Now()
	result, err := s.determiner.Determine(ctx, DetermineRequest{Scenario: scenario})
	if err != nil {
		return nil, err
	}
	latency := time.Since(started).Milliseconds()

	determination := result.Determination
	attempt := &models.TrainingAttempt{
		ID:             uuid.New(),
		SessionID:      req.SessionID,
		ScenarioID:     scenario.ID,
		Obligations:    determination.Obligations,
		Reasoning:      determination.Reasoning,
		Confidence:     determination.Confidence,
		UsedFallback:   determination.UsedFallback,
		ResponseTimeMs: latency,
		Verdict:        models.VerdictPending,
	}

	if err := s.sessions.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	if _, err := s.sessions.RecomputeStats(ctx, req.SessionID); err != nil {
		return nil, err
	}

	return &SubmitAttemptResult{
		Attempt:       attempt,
		Determination: determination,
		Expected:      scenario.Expected,
	}, nil
}

// SubmitVerdictRequest represents a reviewer's judgment of one attempt
type SubmitVerdictRequest struct {
	SessionID  uuid.UUID
	ScenarioID uuid.UUID
	IsCorrect  bool
	Feedback   string
	Reviewer   string
}

// SubmitVerdictResult represents the result of recording a verdict
type SubmitVerdictResult struct {
	Session *models.TrainingSession
}

// SubmitVerdict records a reviewer verdict. A verdict for a missing or
// already-reviewed attempt is rejected and leaves all state unchanged. An
// incorrect verdict with non-empty feedback writes a Correction derived from
// the scenario's expected determination.
func (s *TrainingService) SubmitVerdict(ctx context.Context, req SubmitVerdictRequest) (*SubmitVerdictResult, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}
	if s.scenarios == nil {
		return nil, errors.New("scenario store not set")
	}

	attempt, err := s.sessions.GetAttempt(ctx, req.SessionID, req.ScenarioID)
	if err != nil || attempt == nil {
		return nil, ErrInvalidVerdict
	}
	if attempt.Verdict != models.VerdictPending {
		return nil, ErrInvalidVerdict
	}

	verdict := models.VerdictCorrect
	if !req.IsCorrect {
		verdict = models.VerdictIncorrect
	}

	var feedback, reviewer *string
	if req.Feedback != "" {
		feedback = &req.Feedback
	}
	if req.Reviewer != "" {
		reviewer = &req.Reviewer
	}

	if err := s.sessions.ReviewAttempt(ctx, attempt.ID, verdict, feedback, reviewer); err != nil {
		return nil, err
	}

	if !req.IsCorrect && req.Feedback != "" && s.corrections != nil {
		scenario, err := s.scenarios.GetByID(ctx, req.ScenarioID)
		if err != nil {
			return nil, ErrScenarioNotFound
		}

		sessionID := req.SessionID
		scenarioID := scenario.ID
		correction := &models.Correction{
			ID:               uuid.New(),
			JurisdictionCode: scenario.JurisdictionCode,
			OperationType:    scenario.CompensationModel,
			OperationRadius:  scenario.OperationRadius,
			Obligations:      scenario.Expected.Obligations,
			Reasoning:        scenario.Expected.Reasoning,
			ReviewerNotes:    req.Feedback,
			ScenarioID:       &scenarioID,
			SessionID:        &sessionID,
		}
		if err := s.corrections.Record(ctx, correction); err != nil {
			return nil, fmt.Errorf("failed to record correction: %w", err)
		}
	}

	session, err := s.sessions.RecomputeStats(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &SubmitVerdictResult{Session: session}, nil
}

// PauseSession moves an in-progress session to paused
func (s *TrainingService) PauseSession(ctx context.Context, sessionID uuid.UUID) (*models.TrainingSession, error) {
	return s.transition(ctx, sessionID, models.SessionInProgress, models.SessionPaused)
}

// ResumeSession moves a paused session back to in-progress
func (s *TrainingService) ResumeSession(ctx context.Context, sessionID uuid.UUID) (*models.TrainingSession, error) {
	return s.transition(ctx, sessionID, models.SessionPaused, models.SessionInProgress)
}

// CompleteSession closes an in-progress session; terminal
func (s *TrainingService) CompleteSession(ctx context.Context, sessionID uuid.UUID) (*models.TrainingSession, error) {
	return s.transition(ctx, sessionID, models.SessionInProgress, models.SessionCompleted)
}

func (s *TrainingService) transition(ctx context.Context, sessionID uuid.UUID, from, to models.SessionStatus) (*models.TrainingSession, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != from {
		return nil, ErrInvalidSessionState
	}

	if err := s.sessions.UpdateSessionStatus(ctx, sessionID, to); err != nil {
		return nil, err
	}

	session.Status = to
	if to == models.SessionCompleted {
		now := time.Now()
		session.CompletedAt = &now
	}
	return session, nil
}

// ExportReportRequest represents a request to export a session report
type ExportReportRequest struct {
	SessionID uuid.UUID
}

// ExportReportResult represents the stored report location
type ExportReportResult struct {
	StoragePath string
}

// ExportReport renders the session and its attempts as JSON and saves the
// document through the configured report storage
func (s *TrainingService) ExportReport(ctx context.Context, req ExportReportRequest) (*ExportReportResult, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not set")
	}
	if s.reports == nil {
		return nil, errors.New("report storage not set")
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	attempts, err := s.sessions.ListAttempts(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	report := models.SessionReport{
		Session:     session,
		Attempts:    attempts,
		GeneratedAt: time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	filename := fmt.Sprintf("training_session_%s.json", session.ID)
	path, err := s.reports.Save(ctx, session.ID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	return &ExportReportResult{StoragePath: path}, nil
}
