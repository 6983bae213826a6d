package handlers

import (
	"errors"
	"net/http"

	"github.com/StamperDavid/rapid-crm-sub000/models"
	"github.com/StamperDavid/rapid-crm-sub000/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeterminationHandler handles HTTP requests for regulatory determinations and
// threshold lookups
type DeterminationHandler struct {
	determinationService *service.DeterminationService
	knowledgeBase        *service.KnowledgeBase
}

// NewDeterminationHandler creates a new determination handler
func NewDeterminationHandler(determinationService *service.DeterminationService, knowledgeBase *service.KnowledgeBase) *DeterminationHandler {
	return &DeterminationHandler{
		determinationService: determinationService,
		knowledgeBase:        knowledgeBase,
	}
}

// DetermineRequest represents the request body for an ad hoc determination
type DetermineRequest struct {
	BusinessName      string                  `json:"business_name"`
	JurisdictionCode  string                  `json:"jurisdiction_code" binding:"required"`
	OperationRadius   string                  `json:"operation_radius" binding:"required"`
	CompensationModel string                  `json:"compensation_model" binding:"required"`
	CargoClass        string                  `json:"cargo_class"`
	Fleet             models.FleetComposition `json:"fleet"`
	DriverCount       int                     `json:"driver_count"`
	CDLDriverCount    int                     `json:"cdl_driver_count"`
}

// Determine handles POST /api/determinations
func (h *DeterminationHandler) Determine(c *gin.Context) {
	var req DetermineRequest
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

	cargo := models.CargoGeneralFreight
	if req.CargoClass != "" {
		cargo = models.CargoClass(req.CargoClass)
	}

	scenario := &models.Scenario{
		ID:                uuid.New(),
		BusinessName:      req.BusinessName,
		JurisdictionCode:  req.JurisdictionCode,
		JurisdictionName:  h.knowledgeBase.JurisdictionName(req.JurisdictionCode),
		OperationRadius:   models.OperationRadius(req.OperationRadius),
		CompensationModel: models.CompensationModel(req.CompensationModel),
		CargoClass:        cargo,
		Fleet:             req.Fleet,
		DriverCount:       req.DriverCount,
		CDLDriverCount:    req.CDLDriverCount,
	}

	result, err := h.determinationService.Determine(c.Request.Context(), service.DetermineRequest{
		Scenario: scenario,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnknownJurisdiction) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNKNOWN_JURISDICTION",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DETERMINATION_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Determination,
	})
}

// ListJurisdictions handles GET /api/jurisdictions
func (h *DeterminationHandler) ListJurisdictions(c *gin.Context) {
	codes := h.knowledgeBase.Jurisdictions()

	jurisdictions := make([]gin.H, 0, len(codes))
	for _, code := range codes {
		jurisdictions = append(jurisdictions, gin.H{
			"code": code,
			"name": h.knowledgeBase.JurisdictionName(code),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    jurisdictions,
	})
}

// GetThresholds handles GET /api/jurisdictions/:code/thresholds
func (h *DeterminationHandler) GetThresholds(c *gin.Context) {
	code := c.Param("code")
	radius := models.OperationRadius(c.DefaultQuery("radius", string(models.RadiusInterstate)))
	compensation := models.CompensationModel(c.DefaultQuery("compensation", string(models.CompensationForHire)))

	thresholds, err := h.knowledgeBase.Resolve(code, radius, compensation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNKNOWN_JURISDICTION",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    thresholds,
	})
}
