package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Obligations holds the six independent registration requirements the engine decides
type Obligations struct {
	IdentifierRequired          bool `json:"identifier_required"`
	OperatingAuthorityRequired  bool `json:"operating_authority_required"`
	HazmatEndorsementRequired   bool `json:"hazmat_endorsement_required"`
	FuelTaxRegistrationRequired bool `json:"fuel_tax_registration_required"`
	StateRegistrationRequired   bool `json:"state_registration_required"`
	DriverQualFilesRequired     bool `json:"driver_qual_files_required"`
}

// Value implements driver.Valuer for JSONB
func (o Obligations) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for JSONB
func (o *Obligations) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Determination is the engine's answer for one scenario. Each invocation
// produces a fresh Determination; they are never mutated after creation.
type Determination struct {
	ID           uuid.UUID          `json:"id"`
	ScenarioID   uuid.UUID          `json:"scenario_id"`
	Obligations  Obligations        `json:"obligations"`
	Reasoning    string             `json:"reasoning"`
	Thresholds   ResolvedThresholds `json:"thresholds"`
	Confidence   float64            `json:"confidence"`
	UsedFallback bool               `json:"used_fallback"`
	RawReply     *string            `json:"raw_reply,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}
