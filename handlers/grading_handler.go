package handlers

import (
	"net/http"

	"github.com/StamperDavid/rapid-crm-sub000/models"
	"github.com/StamperDavid/rapid-crm-sub000/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GradingHandler handles HTTP requests for conversational performance grading
type GradingHandler struct {
	gradingService *service.GradingService
	scenarios      service.ScenarioStore
}

// NewGradingHandler creates a new grading handler
func NewGradingHandler(gradingService *service.GradingService, scenarios service.ScenarioStore) *GradingHandler {
	return &GradingHandler{
		gradingService: gradingService,
		scenarios:      scenarios,
	}
}

// GradeTurn represents one transcript turn in the request body
type GradeTurn struct {
	Speaker string `json:"speaker" binding:"required"`
	Content string `json:"content"`
}

// GradeRequest represents the request body for grading a transcript. The
// scenario comes either from the pool by ID or inline in the request.
type GradeRequest struct {
	ScenarioID            string           `json:"scenario_id"`
	Scenario              *models.Scenario `json:"scenario"`
	Transcript            []GradeTurn      `json:"transcript"`
	ExpectedServices      []string         `json:"expected_services"`
	ActualRecommendations []string         `json:"actual_recommendations"`
}

// Grade handles POST /api/grades
func (h *GradingHandler) Grade(c *gin.Context) {
	var req GradeRequest
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

	scenario := req.Scenario
	if scenario == nil {
		if req.ScenarioID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_REQUEST",
					"message": "Either scenario or scenario_id is required",
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

		scenario, err = h.scenarios.GetByID(c.Request.Context(), scenarioID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SCENARIO_NOT_FOUND",
					"message": "Scenario not found",
				},
			})
			return
		}
	}

	transcript := make([]models.ConversationTurn, 0, len(req.Transcript))
	for _, turn := range req.Transcript {
		transcript = append(transcript, models.ConversationTurn{
			Speaker: models.Speaker(turn.Speaker),
			Content: turn.Content,
		})
	}

	result, err := h.gradingService.Grade(service.GradeRequest{
		Scenario:              scenario,
		Transcript:            transcript,
		ExpectedServices:      req.ExpectedServices,
		ActualRecommendations: req.ActualRecommendations,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "GRADING_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Score,
	})
}
