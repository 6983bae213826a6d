package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/StamperDavid/rapid-crm-sub000/models"

	"github.com/google/uuid"
)

// ErrUnparseableReply is returned by reply parsing when the reasoning service
// responded but the text carries no structured payload. The orchestrator
// recovers via the deterministic fallback.
var ErrUnparseableReply = errors.New("no structured payload in reasoning reply")

const (
	determinationTemperature = 0.1
	determinationMaxTokens   = 2000
	fallbackConfidence       = 0.5
	defaultParsedConfidence  = 0.85
)

// CorrectionStore is the orchestrator's view of persisted corrections
type CorrectionStore interface {
	Record(ctx context.Context, correction *models.Correction) error
	Lookup(ctx context.Context, key models.CorrectionKey) (*models.Correction, error)
	ListByKey(ctx context.Context, key models.CorrectionKey) ([]*models.Correction, error)
}

// DeterminationService orchestrates one determination: threshold resolution,
// prior-correction lookup, the reasoning call, reply parsing, and the
// deterministic fallback when the service path fails
type DeterminationService struct {
	kb          *KnowledgeBase
	corrections CorrectionStore
	reasoning   ReasoningClient
	timeout     time.Duration
}

// DeterminationServiceOption is a functional option for DeterminationService
type DeterminationServiceOption func(*DeterminationService)

// DeterminationWithKnowledgeBase sets the threshold knowledge base
func DeterminationWithKnowledgeBase(kb *KnowledgeBase) DeterminationServiceOption {
	return func(s *DeterminationService) {
		s.kb = kb
	}
}

// DeterminationWithCorrectionStore sets the correction store
func DeterminationWithCorrectionStore(store CorrectionStore) DeterminationServiceOption {
	return func(s *DeterminationService) {
		s.corrections = store
	}
}

// DeterminationWithReasoningClient sets the reasoning client
func DeterminationWithReasoningClient(client ReasoningClient) DeterminationServiceOption {
	return func(s *DeterminationService) {
		s.reasoning = client
	}
}

// DeterminationWithTimeout sets the per-call reasoning budget
func DeterminationWithTimeout(timeout time.Duration) DeterminationServiceOption {
	return func(s *DeterminationService) {
		s.timeout = timeout
	}
}

// NewDeterminationService creates a new determination service
func NewDeterminationService(opts ...DeterminationServiceOption) *DeterminationService {
	s := &DeterminationService{
		timeout: defaultReasoningTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetermineRequest represents a request to determine obligations for a scenario
type DetermineRequest struct {
	Scenario *models.Scenario
}

// DetermineResult represents the result of a determination
type DetermineResult struct {
	Determination *models.Determination
}

// Determine produces a Determination for one scenario. The only error path is
// an unknown jurisdiction; reasoning failures and unparseable replies are
// absorbed by the fallback, so every well-formed scenario gets an answer.
func (s *DeterminationService) Determine(ctx context.Context, req DetermineRequest) (*DetermineResult, error) {
	if s.kb == nil {
		return nil, errors.New("knowledge base not set")
	}
	if req.Scenario == nil {
		return nil, errors.New("scenario is required")
	}
	scenario := req.Scenario

	thresholds, err := s.kb.Resolve(scenario.JurisdictionCode, scenario.OperationRadius, scenario.CompensationModel)
	if err != nil {
		return nil, err
	}

	var prior *models.Correction
	if s.corrections != nil {
		prior, err = s.corrections.Lookup(ctx, models.CorrectionKey{
			JurisdictionCode: scenario.JurisdictionCode,
			OperationType:    scenario.CompensationModel,
			OperationRadius:  scenario.OperationRadius,
		})
		if err != nil {
			log.Printf("Warning: correction lookup failed for %s: %v", scenario.JurisdictionCode, err)
			prior = nil
		}
	}

	if s.reasoning == nil {
		return &DetermineResult{Determination: s.fallback(scenario, thresholds, nil)}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.reasoning.Complete(callCtx, ReasoningRequest{
		SystemContext: buildSystemContext(thresholds, prior),
		Prompt:        buildAnalysisPrompt(scenario, thresholds),
		Temperature:   determinationTemperature,
		MaxTokens:     determinationMaxTokens,
	})
	if err != nil {
		log.Printf("Warning: reasoning call failed for scenario %s: %v. Using fallback.", scenario.ID, err)
		return &DetermineResult{Determination: s.fallback(scenario, thresholds, nil)}, nil
	}

	determination, err := parseReply(reply, scenario, thresholds)
	if err != nil {
		log.Printf("Warning: %v for scenario %s. Using fallback.", err, scenario.ID)
		return &DetermineResult{Determination: s.fallback(scenario, thresholds, &reply)}, nil
	}

	return &DetermineResult{Determination: determination}, nil
}

// fallback builds the conservative deterministic answer used whenever the
// service path fails. Identifier and driver-qualification obligations are
// assumed required; the rest derive from the scenario's own fields.
func (s *DeterminationService) fallback(scenario *models.Scenario, thresholds models.ResolvedThresholds, raw *string) *models.Determination {
	interstate := scenario.OperationRadius == models.RadiusInterstate

	return &models.Determination{
		ID:         uuid.New(),
		ScenarioID: scenario.ID,
		Obligations: models.Obligations{
			IdentifierRequired:          true,
			OperatingAuthorityRequired:  interstate && scenario.CompensationModel == models.CompensationForHire,
			HazmatEndorsementRequired:   scenario.HaulsHazmat(),
			FuelTaxRegistrationRequired: interstate && scenario.Fleet.PowerUnits() >= 2,
			StateRegistrationRequired:   !interstate,
			DriverQualFilesRequired:     true,
		},
		Reasoning:    "Reasoning service unavailable. Applied conservative fallback rules.",
		Thresholds:   thresholds,
		Confidence:   fallbackConfidence,
		UsedFallback: true,
		RawReply:     raw,
		CreatedAt:    time.Now(),
	}
}

// replyPayload is the structured object expected inside the service reply.
// Missing keys decode to their zero values, which reads as "not required".
type replyPayload struct {
	USDOT             bool    `json:"usdot"`
	DriverQualFiles   bool    `json:"driverQualFiles"`
	MCAuthority       bool    `json:"mcAuthority"`
	Hazmat            bool    `json:"hazmat"`
	IFTA              bool    `json:"ifta"`
	StateRegistration bool    `json:"stateRegistration"`
	Reasoning         string  `json:"reasoning"`
	Confidence        float64 `json:"confidence"`
}

// parseReply extracts the first balanced-brace JSON block from the reply and
// maps it into a Determination
func parseReply(reply string, scenario *models.Scenario, thresholds models.ResolvedThresholds) (*models.Determination, error) {
	block, ok := extractJSONBlock(reply)
	if !ok {
		return nil, ErrUnparseableReply
	}

	var payload replyPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableReply, err)
	}

	reasoning := payload.Reasoning
	if reasoning == "" {
		reasoning = reply
	}

	confidence := payload.Confidence
	if confidence == 0 {
		confidence = defaultParsedConfidence
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.Determination{
		ID:         uuid.New(),
		ScenarioID: scenario.ID,
		Obligations: models.Obligations{
			IdentifierRequired:          payload.USDOT,
			OperatingAuthorityRequired:  payload.MCAuthority,
			HazmatEndorsementRequired:   payload.Hazmat,
			FuelTaxRegistrationRequired: payload.IFTA,
			StateRegistrationRequired:   payload.StateRegistration,
			DriverQualFilesRequired:     payload.DriverQualFiles,
		},
		Reasoning:  reasoning,
		Thresholds: thresholds,
		Confidence: confidence,
		RawReply:   &reply,
		CreatedAt:  time.Now(),
	}, nil
}

// extractJSONBlock returns the first balanced-brace block in the text,
// tolerating braces inside quoted strings
func extractJSONBlock(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// buildSystemContext renders the system prompt: the applicable thresholds plus
// any prior correction for the same operating context
func buildSystemContext(thresholds models.ResolvedThresholds, prior *models.Correction) string {
	prompt := fmt.Sprintf(`You are an expert transportation compliance specialist analyzing regulatory registration requirements.

CORE RULE - ALWAYS FOLLOW:
- For INTERSTATE operations: apply the FEDERAL thresholds
- For INTRASTATE operations: apply the %s thresholds

APPLICABLE THRESHOLDS FOR THIS SCENARIO:
- Source: %s
- Jurisdiction: %s
- GVWR Threshold: %d+ lbs triggers the federal identifier + driver qualification files
- Passenger Threshold: %d+ passengers triggers the federal identifier + driver qualification files

REMEMBER: the GVWR and passenger thresholds determine BOTH:
1. Federal identifier requirement
2. Driver qualification file requirement

Other requirements to analyze:
- Operating Authority: required for interstate for-hire operations
- Fuel-Tax Registration (IFTA): required for qualified motor vehicles crossing state lines
- Hazmat Endorsement: required for transporting hazardous materials
- State Registration: required for intrastate operations

Analyze the scenario and provide a determination with clear reasoning.`,
		sourceLabel(thresholds.Source),
		strings.ToUpper(string(thresholds.Source)),
		thresholds.JurisdictionCode,
		thresholds.GVWRThreshold,
		thresholds.PassengerThreshold,
	)

	if prior != nil {
		prompt += fmt.Sprintf(`

PRIOR KNOWLEDGE from reviewed corrections for similar scenarios:
%s
%s`, prior.Reasoning, prior.ReviewerNotes)
	}

	return prompt
}

func sourceLabel(source models.ThresholdSource) string {
	if source == models.SourceOverride {
		return "JURISDICTION-SPECIFIC"
	}
	return "FEDERAL"
}

// buildAnalysisPrompt renders the scenario facts and the answer contract
func buildAnalysisPrompt(scenario *models.Scenario, thresholds models.ResolvedThresholds) string {
	return fmt.Sprintf(`Analyze this transportation company scenario and determine regulatory requirements:

COMPANY: %s
Location: %s (%s)

OPERATIONS:
- Operation Radius: %s
- Compensation Model: %s
- Cargo: %s
- Power Units: %d (%d owned, %d leased)
- Trailers: %d
- Vehicle GVWR: %d lbs
- Passenger Capacity: %d
- Drivers: %d (%d CDL holders)

Based on the %s thresholds for %s, determine:

1. Federal Identifier: Required? (Apply threshold: %d+ lbs or %d+ passengers)
2. Driver Qualification Files: Required? (Same thresholds as the identifier)
3. Operating Authority: Required?
4. Hazmat Endorsement: Required?
5. Fuel-Tax Registration: Required?
6. State Registration: Required?

Format your response as JSON:
{
  "usdot": true/false,
  "driverQualFiles": true/false,
  "mcAuthority": true/false,
  "hazmat": true/false,
  "ifta": true/false,
  "stateRegistration": true/false,
  "reasoning": "Detailed explanation of each determination",
  "confidence": 0.0-1.0
}`,
		scenario.BusinessName,
		scenario.JurisdictionName,
		scenario.JurisdictionCode,
		scenario.OperationRadius,
		scenario.CompensationModel,
		scenario.CargoClass,
		scenario.Fleet.PowerUnits(),
		scenario.Fleet.OwnedPowerUnits,
		scenario.Fleet.LeasedPowerUnits,
		scenario.Fleet.Trailers,
		scenario.Fleet.VehicleGVWR,
		scenario.Fleet.PassengerCapacity,
		scenario.DriverCount,
		scenario.CDLDriverCount,
		thresholds.Source,
		thresholds.JurisdictionCode,
		thresholds.GVWRThreshold,
		thresholds.PassengerThreshold,
	)
}
