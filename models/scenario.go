package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CargoClass represents the classification of what a carrier hauls
type CargoClass string

const (
	CargoGeneralFreight CargoClass = "general_freight"
	CargoHazmat         CargoClass = "hazardous_materials"
	CargoPassengers     CargoClass = "passengers"
)

// FleetBand buckets fleet sizes for scenario generation
type FleetBand string

const (
	FleetSmall  FleetBand = "small"
	FleetMedium FleetBand = "medium"
	FleetLarge  FleetBand = "large"
)

// FleetComposition describes the vehicles a scenario's business operates
type FleetComposition struct {
	OwnedPowerUnits   int `json:"owned_power_units"`
	LeasedPowerUnits  int `json:"leased_power_units"`
	Trailers          int `json:"trailers"`
	VehicleGVWR       int `json:"vehicle_gvwr"`
	PassengerCapacity int `json:"passenger_capacity"`
}

// PowerUnits returns the total count of powered vehicles in the fleet
func (f FleetComposition) PowerUnits() int {
	return f.OwnedPowerUnits + f.LeasedPowerUnits
}

// Value implements driver.Valuer for JSONB
func (f FleetComposition) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB
func (f *FleetComposition) Scan(value interface{}) error {
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

	return json.Unmarshal(bytes, f)
}

// ExpectedDetermination is the ground-truth answer computed at generation time
type ExpectedDetermination struct {
	Obligations Obligations `json:"obligations"`
	Reasoning   string      `json:"reasoning"`
}

// Value implements driver.Valuer for JSONB
func (e ExpectedDetermination) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB
func (e *ExpectedDetermination) Scan(value interface{}) error {
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

	return json.Unmarshal(bytes, e)
}

// Scenario is a fully specified business-operation description used as engine
// input. Generated scenarios are immutable once created; their IDs are stable
// across regenerations.
type Scenario struct {
	ID                uuid.UUID             `json:"id"`
	BusinessName      string                `json:"business_name"`
	JurisdictionCode  string                `json:"jurisdiction_code"`
	JurisdictionName  string                `json:"jurisdiction_name"`
	OperationRadius   OperationRadius       `json:"operation_radius"`
	CompensationModel CompensationModel     `json:"compensation_model"`
	CargoClass        CargoClass            `json:"cargo_class"`
	FleetBand         FleetBand             `json:"fleet_band"`
	Fleet             FleetComposition      `json:"fleet"`
	DriverCount       int                   `json:"driver_count"`
	CDLDriverCount    int                   `json:"cdl_driver_count"`
	Expected          ExpectedDetermination `json:"expected_determination"`
	CreatedAt         time.Time             `json:"created_at"`
}

// HaulsHazmat reports whether the scenario's cargo triggers hazmat obligations
func (s *Scenario) HaulsHazmat() bool {
	return s.CargoClass == CargoHazmat
}
