package repository

import (
	"context"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// JurisdictionRuleRepository handles database operations for jurisdiction
// threshold rules
type JurisdictionRuleRepository struct {
	db *pgxpool.Pool
}

// NewJurisdictionRuleRepository creates a new jurisdiction rule repository
func NewJurisdictionRuleRepository(db *pgxpool.Pool) *JurisdictionRuleRepository {
	return &JurisdictionRuleRepository{db: db}
}

// Upsert inserts or replaces a rule for a jurisdiction. Defaults and overrides
// for the same code live in separate rows.
func (r *JurisdictionRuleRepository) Upsert(ctx context.Context, rule *models.JurisdictionRule) error {
	query := `
		INSERT INTO jurisdiction_rules (
			code, name, gvwr_threshold, passenger_threshold,
			for_hire_gvwr_threshold, for_hire_passenger_threshold,
			requirement_tags, notes, is_override
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code, is_override) DO UPDATE SET
			name = EXCLUDED.name,
			gvwr_threshold = EXCLUDED.gvwr_threshold,
			passenger_threshold = EXCLUDED.passenger_threshold,
			for_hire_gvwr_threshold = EXCLUDED.for_hire_gvwr_threshold,
			for_hire_passenger_threshold = EXCLUDED.for_hire_passenger_threshold,
			requirement_tags = EXCLUDED.requirement_tags,
			notes = EXCLUDED.notes,
			updated_at = NOW()`

	_, err := r.db.Exec(
		ctx, query,
		rule.Code,
		rule.Name,
		rule.GVWRThreshold,
		rule.PassengerThreshold,
		rule.ForHireGVWRThreshold,
		rule.ForHirePassengerThreshold,
		rule.RequirementTags,
		rule.Notes,
		rule.IsOverride,
	)

	return err
}

// ListAll returns every rule in the table, defaults before overrides so a
// sequential load registers them in the right order
func (r *JurisdictionRuleRepository) ListAll(ctx context.Context) ([]*models.JurisdictionRule, error) {
	query := `
		SELECT code, name, gvwr_threshold, passenger_threshold,
			for_hire_gvwr_threshold, for_hire_passenger_threshold,
			requirement_tags, notes, is_override
		FROM jurisdiction_rules
		ORDER BY is_override ASC, code ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*models.JurisdictionRule, 0)
	for rows.Next() {
		rule := &models.JurisdictionRule{}
		err := rows.Scan(
			&rule.Code,
			&rule.Name,
			&rule.GVWRThreshold,
			&rule.PassengerThreshold,
			&rule.ForHireGVWRThreshold,
			&rule.ForHirePassengerThreshold,
			&rule.RequirementTags,
			&rule.Notes,
			&rule.IsOverride,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}
