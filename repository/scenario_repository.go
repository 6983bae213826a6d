package repository

import (
	"context"
	"errors"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScenarioRepository handles database operations for training scenarios
type ScenarioRepository struct {
	db *pgxpool.Pool
}

// NewScenarioRepository creates a new scenario repository
func NewScenarioRepository(db *pgxpool.Pool) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

// UpsertBatch inserts or refreshes a batch of scenarios. Scenario IDs are
// deterministic, so regenerating the pool updates rows in place instead of
// duplicating them.
func (r *ScenarioRepository) UpsertBatch(ctx context.Context, scenarios []*models.Scenario) error {
	query := `
		INSERT INTO training_scenarios (
			id, business_name, jurisdiction_code, jurisdiction_name,
			operation_radius, compensation_model, cargo_class, fleet_band,
			fleet, driver_count, cdl_driver_count, expected_determination
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			jurisdiction_name = EXCLUDED.jurisdiction_name,
			fleet = EXCLUDED.fleet,
			driver_count = EXCLUDED.driver_count,
			cdl_driver_count = EXCLUDED.cdl_driver_count,
			expected_determination = EXCLUDED.expected_determination
		RETURNING created_at`

	for _, scenario := range scenarios {
		err := r.db.QueryRow(
			ctx, query,
			scenario.ID,
			scenario.BusinessName,
			scenario.JurisdictionCode,
			scenario.JurisdictionName,
			scenario.OperationRadius,
			scenario.CompensationModel,
			scenario.CargoClass,
			scenario.FleetBand,
			scenario.Fleet,
			scenario.DriverCount,
			scenario.CDLDriverCount,
			scenario.Expected,
		).Scan(&scenario.CreatedAt)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a scenario by ID
func (r *ScenarioRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Scenario, error) {
	scenario := &models.Scenario{}
	query := `
		SELECT id, business_name, jurisdiction_code, jurisdiction_name,
			operation_radius, compensation_model, cargo_class, fleet_band,
			fleet, driver_count, cdl_driver_count, expected_determination, created_at
		FROM training_scenarios
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&scenario.ID,
		&scenario.BusinessName,
		&scenario.JurisdictionCode,
		&scenario.JurisdictionName,
		&scenario.OperationRadius,
		&scenario.CompensationModel,
		&scenario.CargoClass,
		&scenario.FleetBand,
		&scenario.Fleet,
		&scenario.DriverCount,
		&scenario.CDLDriverCount,
		&scenario.Expected,
		&scenario.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return scenario, nil
}

// NextUntested returns a scenario the session has not attempted yet, or nil
// when the session has worked through the whole pool. Ordering by jurisdiction
// then ID keeps the walk stable across calls.
func (r *ScenarioRepository) NextUntested(ctx context.Context, sessionID uuid.UUID) (*models.Scenario, error) {
	scenario := &models.Scenario{}
	query := `
		SELECT s.id, s.business_name, s.jurisdiction_code, s.jurisdiction_name,
			s.operation_radius, s.compensation_model, s.cargo_class, s.fleet_band,
			s.fleet, s.driver_count, s.cdl_driver_count, s.expected_determination, s.created_at
		FROM training_scenarios s
		WHERE NOT EXISTS (
			SELECT 1 FROM training_attempts a
			WHERE a.scenario_id = s.id AND a.session_id = $1
		)
		ORDER BY s.jurisdiction_code, s.id
		LIMIT 1`

	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&scenario.ID,
		&scenario.BusinessName,
		&scenario.JurisdictionCode,
		&scenario.JurisdictionName,
		&scenario.OperationRadius,
		&scenario.CompensationModel,
		&scenario.CargoClass,
		&scenario.FleetBand,
		&scenario.Fleet,
		&scenario.DriverCount,
		&scenario.CDLDriverCount,
		&scenario.Expected,
		&scenario.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return scenario, nil
}

// Count returns the total number of scenarios in the pool
func (r *ScenarioRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM training_scenarios`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
