package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/StamperDavid/rapid-crm-sub000/models"
)

// ErrUnknownJurisdiction is returned when resolution is asked about a
// jurisdiction code the knowledge base has no rule for
var ErrUnknownJurisdiction = errors.New("unknown jurisdiction code")

// Federal thresholds applied to every interstate operation regardless of
// jurisdiction-level overrides
const (
	federalGVWRThreshold      = 10000
	federalPassengerThreshold = 9
	federalJurisdictionCode   = "US"
)

// Global intrastate fallback used when a jurisdiction has no rule of its own
const (
	intrastateGVWRThreshold      = 26000
	intrastatePassengerThreshold = 16
)

// Fleets of two or more power units, or any unit above this rating, trigger
// fuel-tax registration when operating interstate
const fuelTaxGVWRThreshold = 26000

// KnowledgeBase holds per-jurisdiction registration thresholds and resolves
// the applicable pair for an operating context. Rules are immutable after
// construction, so resolution is safe under concurrent access.
type KnowledgeBase struct {
	defaults  map[string]*models.JurisdictionRule
	overrides map[string]*models.JurisdictionRule
}

// KnowledgeBaseOption is a functional option for KnowledgeBase
type KnowledgeBaseOption func(*KnowledgeBase)

// WithRules loads a rule set; override rules and default rules are indexed
// separately. At most one rule per (code, tier) is kept, last write wins.
func WithRules(rules []*models.JurisdictionRule) KnowledgeBaseOption {
	return func(kb *KnowledgeBase) {
		for _, rule := range rules {
			code := strings.ToUpper(rule.Code)
			if rule.IsOverride {
				kb.overrides[code] = rule
			} else {
				kb.defaults[code] = rule
			}
		}
	}
}

// NewKnowledgeBase creates a knowledge base from the given options
func NewKnowledgeBase(opts ...KnowledgeBaseOption) *KnowledgeBase {
	kb := &KnowledgeBase{
		defaults:  make(map[string]*models.JurisdictionRule),
		overrides: make(map[string]*models.JurisdictionRule),
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// DefaultKnowledgeBase creates a knowledge base seeded with the built-in
// intrastate rules for all 50 states plus DC
func DefaultKnowledgeBase() *KnowledgeBase {
	return NewKnowledgeBase(WithRules(SeedRules()))
}

// Resolve returns the thresholds that apply to one (jurisdiction, radius,
// compensation) triple. Interstate operations always resolve to the federal
// defaults; intrastate operations prefer a jurisdiction override when one
// exists, selecting its for-hire pair for for-hire carriers.
func (kb *KnowledgeBase) Resolve(code string, radius models.OperationRadius, compensation models.CompensationModel) (models.ResolvedThresholds, error) {
	code = strings.ToUpper(code)
	if _, ok := kb.defaults[code]; !ok {
		if _, ok := kb.overrides[code]; !ok {
			return models.ResolvedThresholds{}, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, code)
		}
	}

	if radius == models.RadiusInterstate {
		return models.ResolvedThresholds{
			Source:             models.SourceDefault,
			GVWRThreshold:      federalGVWRThreshold,
			PassengerThreshold: federalPassengerThreshold,
			JurisdictionCode:   federalJurisdictionCode,
		}, nil
	}

	if override, ok := kb.overrides[code]; ok {
		gvwr := override.GVWRThreshold
		passengers := override.PassengerThreshold
		if compensation == models.CompensationForHire {
			if override.ForHireGVWRThreshold != nil {
				gvwr = *override.ForHireGVWRThreshold
			}
			if override.ForHirePassengerThreshold != nil {
				passengers = *override.ForHirePassengerThreshold
			}
		}
		return models.ResolvedThresholds{
			Source:             models.SourceOverride,
			GVWRThreshold:      gvwr,
			PassengerThreshold: passengers,
			JurisdictionCode:   code,
		}, nil
	}

	if rule, ok := kb.defaults[code]; ok {
		return models.ResolvedThresholds{
			Source:             models.SourceDefault,
			GVWRThreshold:      rule.GVWRThreshold,
			PassengerThreshold: rule.PassengerThreshold,
			JurisdictionCode:   code,
		}, nil
	}

	return models.ResolvedThresholds{
		Source:             models.SourceDefault,
		GVWRThreshold:      intrastateGVWRThreshold,
		PassengerThreshold: intrastatePassengerThreshold,
		JurisdictionCode:   code,
	}, nil
}

// Evaluate computes the deterministic ground-truth obligations for a scenario
// using resolved thresholds. GVWR comparison is strict, passenger comparison
// is inclusive.
func (kb *KnowledgeBase) Evaluate(s *models.Scenario) (models.ExpectedDetermination, error) {
	thresholds, err := kb.Resolve(s.JurisdictionCode, s.OperationRadius, s.CompensationModel)
	if err != nil {
		return models.ExpectedDetermination{}, err
	}

	interstate := s.OperationRadius == models.RadiusInterstate
	overGVWR := s.Fleet.VehicleGVWR > thresholds.GVWRThreshold
	overPassengers := thresholds.PassengerThreshold > 0 && s.Fleet.PassengerCapacity >= thresholds.PassengerThreshold
	identifier := overGVWR || overPassengers || s.HaulsHazmat()

	obligations := models.Obligations{
		IdentifierRequired:          identifier,
		OperatingAuthorityRequired:  interstate && s.CompensationModel == models.CompensationForHire,
		HazmatEndorsementRequired:   s.HaulsHazmat(),
		FuelTaxRegistrationRequired: interstate && (s.Fleet.PowerUnits() >= 2 || s.Fleet.VehicleGVWR > fuelTaxGVWRThreshold),
		StateRegistrationRequired:   !interstate,
		DriverQualFilesRequired:     identifier,
	}

	return models.ExpectedDetermination{
		Obligations: obligations,
		Reasoning:   evaluationReasoning(s, thresholds, obligations),
	}, nil
}

func evaluationReasoning(s *models.Scenario, t models.ResolvedThresholds, o models.Obligations) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Applied %s thresholds for %s: GVWR %d lbs, %d passengers.",
		t.Source, t.JurisdictionCode, t.GVWRThreshold, t.PassengerThreshold))
	if o.IdentifierRequired {
		parts = append(parts, fmt.Sprintf("Fleet GVWR %d lbs and capacity %d passengers trigger federal identifier registration.",
			s.Fleet.VehicleGVWR, s.Fleet.PassengerCapacity))
	} else {
		parts = append(parts, "Fleet stays under both thresholds; no identifier required.")
	}
	if o.OperatingAuthorityRequired {
		parts = append(parts, "For-hire interstate transport requires operating authority.")
	}
	if o.HazmatEndorsementRequired {
		parts = append(parts, "Hazardous materials cargo requires a hazmat endorsement.")
	}
	if o.FuelTaxRegistrationRequired {
		parts = append(parts, "Interstate multi-unit operation requires fuel-tax registration.")
	}
	if o.StateRegistrationRequired {
		parts = append(parts, "Intrastate-only operation requires state-level registration.")
	}
	return strings.Join(parts, " ")
}

// Jurisdictions returns the known jurisdiction codes in sorted order
func (kb *KnowledgeBase) Jurisdictions() []string {
	seen := make(map[string]bool, len(kb.defaults))
	for code := range kb.defaults {
		seen[code] = true
	}
	for code := range kb.overrides {
		seen[code] = true
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// JurisdictionName returns the display name for a code, or the code itself
// when no rule carries a name
func (kb *KnowledgeBase) JurisdictionName(code string) string {
	code = strings.ToUpper(code)
	if rule, ok := kb.defaults[code]; ok {
		return rule.Name
	}
	if rule, ok := kb.overrides[code]; ok {
		return rule.Name
	}
	return code
}

// SeedRules returns the built-in intrastate default rules for all 50 states
// plus DC. Override rules are administered separately; they land in the
// jurisdiction_rules table and are loaded on top of these at startup.
func SeedRules() []*models.JurisdictionRule {
	type entry struct {
		code string
		name string
		tags []string
	}
	entries := []entry{
		{"AL", "Alabama", []string{"IFTA"}},
		{"AK", "Alaska", []string{"IFTA"}},
		{"AZ", "Arizona", []string{"IFTA"}},
		{"AR", "Arkansas", []string{"IFTA"}},
		{"CA", "California", []string{"IFTA", "CARB"}},
		{"CO", "Colorado", []string{"IFTA"}},
		{"CT", "Connecticut", []string{"IFTA"}},
		{"DE", "Delaware", []string{"IFTA"}},
		{"FL", "Florida", []string{"IFTA"}},
		{"GA", "Georgia", []string{"IFTA"}},
		{"HI", "Hawaii", nil},
		{"ID", "Idaho", []string{"IFTA"}},
		{"IL", "Illinois", []string{"IFTA"}},
		{"IN", "Indiana", []string{"IFTA"}},
		{"IA", "Iowa", []string{"IFTA"}},
		{"KS", "Kansas", []string{"IFTA"}},
		{"KY", "Kentucky", []string{"IFTA"}},
		{"LA", "Louisiana", []string{"IFTA"}},
		{"ME", "Maine", []string{"IFTA"}},
		{"MD", "Maryland", []string{"IFTA"}},
		{"MA", "Massachusetts", []string{"IFTA"}},
		{"MI", "Michigan", []string{"IFTA"}},
		{"MN", "Minnesota", []string{"IFTA"}},
		{"MS", "Mississippi", []string{"IFTA"}},
		{"MO", "Missouri", []string{"IFTA"}},
		{"MT", "Montana", []string{"IFTA"}},
		{"NE", "Nebraska", []string{"IFTA"}},
		{"NV", "Nevada", []string{"IFTA"}},
		{"NH", "New Hampshire", []string{"IFTA"}},
		{"NJ", "New Jersey", []string{"IFTA"}},
		{"NM", "New Mexico", []string{"IFTA"}},
		{"NY", "New York", []string{"IFTA"}},
		{"NC", "North Carolina", []string{"IFTA"}},
		{"ND", "North Dakota", []string{"IFTA"}},
		{"OH", "Ohio", []string{"IFTA"}},
		{"OK", "Oklahoma", []string{"IFTA"}},
		{"OR", "Oregon", []string{"IFTA"}},
		{"PA", "Pennsylvania", []string{"IFTA"}},
		{"RI", "Rhode Island", []string{"IFTA"}},
		{"SC", "South Carolina", []string{"IFTA"}},
		{"SD", "South Dakota", []string{"IFTA"}},
		{"TN", "Tennessee", []string{"IFTA"}},
		{"TX", "Texas", []string{"IFTA"}},
		{"UT", "Utah", []string{"IFTA"}},
		{"VT", "Vermont", []string{"IFTA"}},
		{"VA", "Virginia", []string{"IFTA"}},
		{"WA", "Washington", []string{"IFTA"}},
		{"WV", "West Virginia", []string{"IFTA"}},
		{"WI", "Wisconsin", []string{"IFTA"}},
		{"WY", "Wyoming", []string{"IFTA"}},
		{"DC", "District of Columbia", []string{"IFTA"}},
	}

	rules := make([]*models.JurisdictionRule, 0, len(entries))
	for _, e := range entries {
		notes := fmt.Sprintf("Intrastate: %d lbs GVWR threshold", intrastateGVWRThreshold)
		rules = append(rules, &models.JurisdictionRule{
			Code:               e.code,
			Name:               e.name,
			GVWRThreshold:      intrastateGVWRThreshold,
			PassengerThreshold: intrastatePassengerThreshold,
			RequirementTags:    models.RequirementTags(e.tags),
			Notes:              &notes,
			IsOverride:         false,
		})
	}
	return rules
}
