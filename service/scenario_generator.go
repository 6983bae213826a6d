package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/google/uuid"
)

// Generation axes. Order is fixed so that GenerateAll is deterministic.
var (
	generationRadii = []models.OperationRadius{
		models.RadiusInterstate,
		models.RadiusIntrastate,
	}
	generationCompensations = []models.CompensationModel{
		models.CompensationForHire,
		models.CompensationPrivate,
	}
	generationCargoClasses = []models.CargoClass{
		models.CargoGeneralFreight,
		models.CargoHazmat,
		models.CargoPassengers,
	}
	generationFleetBands = []models.FleetBand{
		models.FleetSmall,
		models.FleetMedium,
		models.FleetLarge,
	}
)

// fleetProfile fixes the concrete numbers for one fleet band. Small fleets sit
// under every threshold, medium fleets cross the federal tier only, large
// fleets cross every tier.
type fleetProfile struct {
	owned             int
	leased            int
	trailers          int
	gvwr              int
	passengerCapacity int
	drivers           int
	cdlDrivers        int
}

var fleetProfiles = map[models.FleetBand]fleetProfile{
	models.FleetSmall:  {owned: 1, leased: 0, trailers: 0, gvwr: 9000, passengerCapacity: 8, drivers: 1, cdlDrivers: 0},
	models.FleetMedium: {owned: 3, leased: 1, trailers: 4, gvwr: 14000, passengerCapacity: 20, drivers: 5, cdlDrivers: 2},
	models.FleetLarge:  {owned: 12, leased: 3, trailers: 18, gvwr: 33000, passengerCapacity: 44, drivers: 18, cdlDrivers: 15},
}

// ScenarioGenerator produces the full labeled cross product of business
// scenarios over the knowledge base's jurisdictions
type ScenarioGenerator struct {
	kb *KnowledgeBase
}

// ScenarioGeneratorOption is a functional option for ScenarioGenerator
type ScenarioGeneratorOption func(*ScenarioGenerator)

// GeneratorWithKnowledgeBase sets the threshold knowledge base
func GeneratorWithKnowledgeBase(kb *KnowledgeBase) ScenarioGeneratorOption {
	return func(g *ScenarioGenerator) {
		g.kb = kb
	}
}

// NewScenarioGenerator creates a new scenario generator
func NewScenarioGenerator(opts ...ScenarioGeneratorOption) *ScenarioGenerator {
	g := &ScenarioGenerator{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateAll produces the full cross product of jurisdiction, operation
// radius, compensation model, cargo class, and fleet band. Regeneration with
// an unchanged knowledge base reproduces identical scenarios, IDs included.
func (g *ScenarioGenerator) GenerateAll() ([]*models.Scenario, error) {
	if g.kb == nil {
		return nil, errors.New("knowledge base not set")
	}

	jurisdictions := g.kb.Jurisdictions()
	total := len(jurisdictions) * len(generationRadii) * len(generationCompensations) * len(generationCargoClasses) * len(generationFleetBands)
	scenarios := make([]*models.Scenario, 0, total)

	for _, code := range jurisdictions {
		for _, radius := range generationRadii {
			for _, compensation := range generationCompensations {
				for _, cargo := range generationCargoClasses {
					for _, band := range generationFleetBands {
						scenario, err := g.generateOne(code, radius, compensation, cargo, band)
						if err != nil {
							return nil, fmt.Errorf("failed to generate scenario for %s: %w", code, err)
						}
						scenarios = append(scenarios, scenario)
					}
				}
			}
		}
	}

	return scenarios, nil
}

// generateOne builds a single scenario for one axis combination, with ground
// truth computed from the knowledge base rather than the reasoning service
func (g *ScenarioGenerator) generateOne(
	code string,
	radius models.OperationRadius,
	compensation models.CompensationModel,
	cargo models.CargoClass,
	band models.FleetBand,
) (*models.Scenario, error) {
	profile := fleetProfiles[band]

	fleet := models.FleetComposition{
		OwnedPowerUnits:  profile.owned,
		LeasedPowerUnits: profile.leased,
		Trailers:         profile.trailers,
		VehicleGVWR:      profile.gvwr,
	}
	if cargo == models.CargoPassengers {
		fleet.PassengerCapacity = profile.passengerCapacity
	}

	scenario := &models.Scenario{
		ID:                scenarioID(code, radius, compensation, cargo, band),
		BusinessName:      scenarioBusinessName(g.kb.JurisdictionName(code), radius, compensation, cargo, band),
		JurisdictionCode:  code,
		JurisdictionName:  g.kb.JurisdictionName(code),
		OperationRadius:   radius,
		CompensationModel: compensation,
		CargoClass:        cargo,
		FleetBand:         band,
		Fleet:             fleet,
		DriverCount:       profile.drivers,
		CDLDriverCount:    profile.cdlDrivers,
	}

	expected, err := g.kb.Evaluate(scenario)
	if err != nil {
		return nil, err
	}
	scenario.Expected = expected

	return scenario, nil
}

// scenarioID derives a stable identifier from the axis combination
func scenarioID(
	code string,
	radius models.OperationRadius,
	compensation models.CompensationModel,
	cargo models.CargoClass,
	band models.FleetBand,
) uuid.UUID {
	key := strings.Join([]string{
		code,
		string(radius),
		string(compensation),
		string(cargo),
		string(band),
	}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}

func scenarioBusinessName(
	jurisdictionName string,
	radius models.OperationRadius,
	compensation models.CompensationModel,
	cargo models.CargoClass,
	band models.FleetBand,
) string {
	cargoLabels := map[models.CargoClass]string{
		models.CargoGeneralFreight: "Freight",
		models.CargoHazmat:         "Hazmat Transport",
		models.CargoPassengers:     "Passenger Lines",
	}
	bandLabels := map[models.FleetBand]string{
		models.FleetSmall:  "Solo",
		models.FleetMedium: "Regional",
		models.FleetLarge:  "National",
	}
	return fmt.Sprintf("%s %s %s (%s, %s)",
		jurisdictionName, bandLabels[band], cargoLabels[cargo], compensation, radius)
}
