package repository

import (
	"context"
	"errors"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CorrectionRepository handles database operations for reviewed corrections.
// The table is append-only: there are no UPDATE or DELETE statements here, and
// superseding happens purely by recency at lookup time.
type CorrectionRepository struct {
	db *pgxpool.Pool
}

// NewCorrectionRepository creates a new correction repository
func NewCorrectionRepository(db *pgxpool.Pool) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

// Record appends a new correction
func (r *CorrectionRepository) Record(ctx context.Context, correction *models.Correction) error {
	query := `
		INSERT INTO regulatory_corrections (
			id, jurisdiction_code, operation_type, operation_radius,
			obligations, reasoning, reviewer_notes, scenario_id, session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		correction.ID,
		correction.JurisdictionCode,
		correction.OperationType,
		correction.OperationRadius,
		correction.Obligations,
		correction.Reasoning,
		correction.ReviewerNotes,
		correction.ScenarioID,
		correction.SessionID,
	).Scan(&correction.CreatedAt)

	return err
}

// Lookup returns the most recent correction for a key, or nil when the key
// has never been corrected
func (r *CorrectionRepository) Lookup(ctx context.Context, key models.CorrectionKey) (*models.Correction, error) {
	correction := &models.Correction{}
	query := `
		SELECT id, jurisdiction_code, operation_type, operation_radius,
			obligations, reasoning, reviewer_notes, scenario_id, session_id, created_at
		FROM regulatory_corrections
		WHERE jurisdiction_code = $1 AND operation_type = $2 AND operation_radius = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	err := r.db.QueryRow(ctx, query, key.JurisdictionCode, key.OperationType, key.OperationRadius).Scan(
		&correction.ID,
		&correction.JurisdictionCode,
		&correction.OperationType,
		&correction.OperationRadius,
		&correction.Obligations,
		&correction.Reasoning,
		&correction.ReviewerNotes,
		&correction.ScenarioID,
		&correction.SessionID,
		&correction.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return correction, nil
}

// ListByKey returns every correction ever recorded for a key, newest first,
// for audit
func (r *CorrectionRepository) ListByKey(ctx context.Context, key models.CorrectionKey) ([]*models.Correction, error) {
	query := `
		SELECT id, jurisdiction_code, operation_type, operation_radius,
			obligations, reasoning, reviewer_notes, scenario_id, session_id, created_at
		FROM regulatory_corrections
		WHERE jurisdiction_code = $1 AND operation_type = $2 AND operation_radius = $3
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, key.JurisdictionCode, key.OperationType, key.OperationRadius)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	corrections := make([]*models.Correction, 0)
	for rows.Next() {
		correction := &models.Correction{}
		err := rows.Scan(
			&correction.ID,
			&correction.JurisdictionCode,
			&correction.OperationType,
			&correction.OperationRadius,
			&correction.Obligations,
			&correction.Reasoning,
			&correction.ReviewerNotes,
			&correction.ScenarioID,
			&correction.SessionID,
			&correction.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		corrections = append(corrections, correction)
	}

	return corrections, rows.Err()
}
