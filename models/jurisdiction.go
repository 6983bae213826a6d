package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OperationRadius represents whether a carrier crosses state lines
type OperationRadius string

const (
	RadiusInterstate OperationRadius = "interstate"
	RadiusIntrastate OperationRadius = "intrastate"
)

// CompensationModel represents how a carrier is paid for transport
type CompensationModel string

const (
	CompensationForHire CompensationModel = "for-hire"
	CompensationPrivate CompensationModel = "private"
)

// ThresholdSource identifies which rule tier produced a resolution
type ThresholdSource string

const (
	SourceOverride ThresholdSource = "jurisdiction-override"
	SourceDefault  ThresholdSource = "default"
)

// RequirementTags represents auxiliary requirement flags for a jurisdiction (e.g. "IFTA", "CARB")
type RequirementTags []string

// Value implements driver.Valuer for JSONB
func (t RequirementTags) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB
func (t *RequirementTags) Scan(value interface{}) error {
	if value == nil {
		*t = make(RequirementTags, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*t = make(RequirementTags, 0)
		return nil
	}

	if len(bytes) == 0 {
		*t = make(RequirementTags, 0)
		return nil
	}

	return json.Unmarshal(bytes, t)
}

// JurisdictionRule represents one tier of registration thresholds for a jurisdiction.
// Default rules carry a single threshold pair. Override rules additionally carry a
// for-hire pair that supersedes the base pair when the carrier operates for hire.
type JurisdictionRule struct {
	ID                        uuid.UUID       `json:"id"`
	Code                      string          `json:"code"`
	Name                      string          `json:"name"`
	GVWRThreshold             int             `json:"gvwr_threshold"`
	PassengerThreshold        int             `json:"passenger_threshold"`
	ForHireGVWRThreshold      *int            `json:"for_hire_gvwr_threshold,omitempty"`
	ForHirePassengerThreshold *int            `json:"for_hire_passenger_threshold,omitempty"`
	RequirementTags           RequirementTags `json:"requirement_tags"`
	Notes                     *string         `json:"notes,omitempty"`
	IsOverride                bool            `json:"is_override"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

// ResolvedThresholds is the outcome of threshold resolution for one
// (jurisdiction, operation radius, compensation model) triple
type ResolvedThresholds struct {
	Source             ThresholdSource `json:"source"`
	GVWRThreshold      int             `json:"gvwr_threshold"`
	PassengerThreshold int             `json:"passenger_threshold"`
	JurisdictionCode   string          `json:"jurisdiction_code"`
}
