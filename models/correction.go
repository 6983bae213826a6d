package models

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionKey identifies the operating context a correction applies to
type CorrectionKey struct {
	JurisdictionCode string            `json:"jurisdiction_code"`
	OperationType    CompensationModel `json:"operation_type"`
	OperationRadius  OperationRadius   `json:"operation_radius"`
}

// Correction is a human-reviewed override of a past determination's
// obligations. Corrections are append-only; the most recent row for a key
// supersedes older ones at lookup time, and nothing is ever deleted.
type Correction struct {
	ID               uuid.UUID         `json:"id"`
	JurisdictionCode string            `json:"jurisdiction_code"`
	OperationType    CompensationModel `json:"operation_type"`
	OperationRadius  OperationRadius   `json:"operation_radius"`
	Obligations      Obligations       `json:"obligations"`
	Reasoning        string            `json:"reasoning"`
	ReviewerNotes    string            `json:"reviewer_notes"`
	ScenarioID       *uuid.UUID        `json:"scenario_id,omitempty"`
	SessionID        *uuid.UUID        `json:"session_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Key returns the lookup key for this correction
func (c *Correction) Key() CorrectionKey {
	return CorrectionKey{
		JurisdictionCode: c.JurisdictionCode,
		OperationType:    c.OperationType,
		OperationRadius:  c.OperationRadius,
	}
}
