package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/StamperDavid/rapid-crm-sub000/models"
	"github.com/StamperDavid/rapid-crm-sub000/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TrainingHandler handles HTTP requests for training sessions
type TrainingHandler struct {
	trainingService *service.TrainingService
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(trainingService *service.TrainingService) *TrainingHandler {
	return &TrainingHandler{
		trainingService: trainingService,
	}
}

// StartSessionRequest represents the request body for starting a session
type StartSessionRequest struct {
	TotalScenarios int `json:"total_scenarios"`
}

// StartSession handles POST /api/training/sessions
func (h *TrainingHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.trainingService.StartSession(c.Request.Context(), service.StartSessionRequest{
		TotalScenarios: req.TotalScenarios,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    result.Session,
	})
}

// GetSession handles GET /api/training/sessions/:id
func (h *TrainingHandler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	result, err := h.trainingService.GetSession(c.Request.Context(), service.GetSessionRequest{
		SessionID: id,
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Training session not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Session,
	})
}

// NextScenario handles GET /api/training/sessions/:id/next
func (h *TrainingHandler) NextScenario(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	result, err := h.trainingService.NextScenario(c.Request.Context(), service.NextScenarioRequest{
		SessionID: id,
	})
	if err != nil {
		// An exhausted pool is the normal end of a run, not a failure
		if errors.Is(err, service.ErrExhaustedScenarios) {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"data": gin.H{
					"session_complete": true,
					"scenario":         nil,
				},
			})
			return
		}
		h.sessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"session_complete": false,
			"scenario":         result.Scenario,
		},
	})
}

// SubmitAttemptRequest represents the request body for running one scenario
type SubmitAttemptRequest struct {
	ScenarioID string `json:"scenario_id" binding:"required"`
}

// SubmitAttempt handles POST /api/training/sessions/:id/attempts
func (h *TrainingHandler) SubmitAttempt(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	scenarioID, err := uuid.Parse(req.ScenarioID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SCENARIO_ID",
				"message": "Invalid scenario_id format",
			},
		})
		return
	}

	result, err := h.trainingService.SubmitAttempt(c.Request.Context(), service.SubmitAttemptRequest{
		SessionID:  id,
		ScenarioID: scenarioID,
	})
	if err != nil {
		h.sessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"attempt":  result.Attempt,
			"expected": result.Expected,
		},
	})
}

// SubmitVerdictRequest represents the request body for a reviewer verdict
type SubmitVerdictRequest struct {
	ScenarioID string `json:"scenario_id" binding:"required"`
	IsCorrect  *bool  `json:"is_correct" binding:"required"`
	Feedback   string `json:"feedback"`
	Reviewer   string `json:"reviewer"`
}

// SubmitVerdict handles POST /api/training/sessions/:id/verdicts
func (h *TrainingHandler) SubmitVerdict(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req SubmitVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	scenarioID, err := uuid.Parse(req.ScenarioID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SCENARIO_ID",
				"message": "Invalid scenario_id format",
			},
		})
		return
	}

	result, err := h.trainingService.SubmitVerdict(c.Request.Context(), service.SubmitVerdictRequest{
		SessionID:  id,
		ScenarioID: scenarioID,
		IsCorrect:  *req.IsCorrect,
		Feedback:   req.Feedback,
		Reviewer:   req.Reviewer,
	})
	if err != nil {
		h.sessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Session,
	})
}

// PauseSession handles POST /api/training/sessions/:id/pause
func (h *TrainingHandler) PauseSession(c *gin.Context) {
	h.transition(c, h.trainingService.PauseSession)
}

// ResumeSession handles POST /api/training/sessions/:id/resume
func (h *TrainingHandler) ResumeSession(c *gin.Context) {
	h.transition(c, h.trainingService.ResumeSession)
}

// CompleteSession handles POST /api/training/sessions/:id/complete
func (h *TrainingHandler) CompleteSession(c *gin.Context) {
	h.transition(c, h.trainingService.CompleteSession)
}

// ExportReport handles POST /api/training/sessions/:id/report
func (h *TrainingHandler) ExportReport(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	result, err := h.trainingService.ExportReport(c.Request.Context(), service.ExportReportRequest{
		SessionID: id,
	})
	if err != nil {
		h.sessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"storage_path": result.StoragePath,
		},
	})
}

func (h *TrainingHandler) transition(c *gin.Context, op func(ctx context.Context, sessionID uuid.UUID) (*models.TrainingSession, error)) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := op(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    session,
	})
}

func (h *TrainingHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid session ID format",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TrainingHandler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Training session not found",
			},
		})
	case errors.Is(err, service.ErrScenarioNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SCENARIO_NOT_FOUND",
				"message": "Scenario not found",
			},
		})
	case errors.Is(err, service.ErrInvalidVerdict):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_VERDICT",
				"message": err.Error(),
			},
		})
	case errors.Is(err, service.ErrInvalidSessionState):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATE",
				"message": err.Error(),
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "TRAINING_FAILED",
				"message": err.Error(),
			},
		})
	}
}
