package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/StamperDavid/rapid-crm-sub000/models"
	"github.com/StamperDavid/rapid-crm-sub000/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeterminationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	knowledgeBase := service.DefaultKnowledgeBase()
	determinationService := service.NewDeterminationService(
		service.DeterminationWithKnowledgeBase(knowledgeBase),
	)
	handler := NewDeterminationHandler(determinationService, knowledgeBase)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/determinations", handler.Determine)
	api.GET("/jurisdictions", handler.ListJurisdictions)
	api.GET("/jurisdictions/:code/thresholds", handler.GetThresholds)
	return r
}

func TestDetermineEndpoint(t *testing.T) {
	r := newDeterminationRouter()

	body := `{
		"business_name": "Ohio Regional Freight",
		"jurisdiction_code": "OH",
		"operation_radius": "interstate",
		"compensation_model": "for-hire",
		"cargo_class": "general_freight",
		"fleet": {"owned_power_units": 3, "leased_power_units": 1, "vehicle_gvwr": 14000},
		"driver_count": 5,
		"cdl_driver_count": 2
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/determinations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Data    models.Determination `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	// No reasoning client is wired, so the deterministic fallback answers
	assert.True(t, resp.Data.UsedFallback)
	assert.True(t, resp.Data.Obligations.IdentifierRequired)
	assert.True(t, resp.Data.Obligations.OperatingAuthorityRequired)
	assert.Equal(t, "US", resp.Data.Thresholds.JurisdictionCode)
}

func TestDetermineEndpointRejectsUnknownJurisdiction(t *testing.T) {
	r := newDeterminationRouter()

	body := `{
		"jurisdiction_code": "ZZ",
		"operation_radius": "interstate",
		"compensation_model": "for-hire"
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/determinations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UNKNOWN_JURISDICTION")
}

func TestDetermineEndpointRejectsMissingFields(t *testing.T) {
	r := newDeterminationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/determinations", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestThresholdsEndpoint(t *testing.T) {
	r := newDeterminationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jurisdictions/TX/thresholds?radius=intrastate&compensation=private", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                      `json:"success"`
		Data    models.ResolvedThresholds `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 26000, resp.Data.GVWRThreshold)
	assert.Equal(t, 16, resp.Data.PassengerThreshold)
	assert.Equal(t, "TX", resp.Data.JurisdictionCode)
}

func TestThresholdsEndpointRejectsUnknownJurisdiction(t *testing.T) {
	r := newDeterminationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jurisdictions/ZZ/thresholds", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UNKNOWN_JURISDICTION")
}

func TestListJurisdictionsEndpoint(t *testing.T) {
	r := newDeterminationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jurisdictions", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 51)
}
