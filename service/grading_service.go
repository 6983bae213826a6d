package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/StamperDavid/rapid-crm-sub000/models"
)

// Category weights for the overall score
const (
	domainKnowledgeWeight     = 0.4
	conversationQualityWeight = 0.3
	regulatoryAccuracyWeight  = 0.3
)

// GradingService scores full conversation transcripts against a fixed rubric.
// It is pure evaluation: it never touches the session, the transcript, or the
// knowledge base.
type GradingService struct{}

// NewGradingService creates a new grading service
func NewGradingService() *GradingService {
	return &GradingService{}
}

// GradeRequest represents a request to grade one transcript
type GradeRequest struct {
	Scenario              *models.Scenario
	Transcript            []models.ConversationTurn
	ExpectedServices      []string
	ActualRecommendations []string
}

// GradeResult represents the rubric outcome
type GradeResult struct {
	Score *models.PerformanceScore
}

// Grade evaluates the transcript against twelve sub-criteria in three
// categories and derives the overall score, letter grade, and itemized
// strengths, weaknesses, and recommendations
func (g *GradingService) Grade(req GradeRequest) (*GradeResult, error) {
	if req.Scenario == nil {
		return nil, errors.New("scenario is required")
	}

	scenario := req.Scenario
	transcript := req.Transcript

	domain := models.DomainKnowledgeScores{
		CorrectServiceIdentification:  evaluateServiceIdentification(req.ExpectedServices, req.ActualRecommendations),
		ProperRegulationExplanation:   evaluateRegulationExplanation(transcript, scenario),
		AccurateRequirementAssessment: evaluateRequirementAssessment(transcript, scenario),
		ComplianceGuidanceQuality:     evaluateComplianceGuidance(transcript),
	}
	conversation := models.ConversationQualityScores{
		InformationGatheringEfficiency: evaluateInformationGathering(transcript),
		ClientCommunicationClarity:     evaluateCommunicationClarity(transcript),
		QuestionRelevance:              evaluateQuestionRelevance(transcript),
		ResponseCompleteness:           evaluateResponseCompleteness(transcript),
	}
	regulatory := models.RegulatoryAccuracyScores{
		LegalRequirementAccuracy: evaluateLegalAccuracy(transcript, scenario),
		ExemptionIdentification:  evaluateExemptionIdentification(transcript, scenario),
		RiskAssessmentAccuracy:   evaluateRiskAssessment(transcript, scenario),
		DocumentationGuidance:    evaluateDocumentationGuidance(transcript),
	}

	gradedErrors := identifyGradedErrors(req.ExpectedServices, req.ActualRecommendations)

	domainScore := categoryScore(
		domain.CorrectServiceIdentification,
		domain.ProperRegulationExplanation,
		domain.AccurateRequirementAssessment,
		domain.ComplianceGuidanceQuality,
	)
	conversationScore := categoryScore(
		conversation.InformationGatheringEfficiency,
		conversation.ClientCommunicationClarity,
		conversation.QuestionRelevance,
		conversation.ResponseCompleteness,
	)
	regulatoryScore := categoryScore(
		regulatory.LegalRequirementAccuracy,
		regulatory.ExemptionIdentification,
		regulatory.RiskAssessmentAccuracy,
		regulatory.DocumentationGuidance,
	)

	overall := domainScore*domainKnowledgeWeight +
		conversationScore*conversationQualityWeight +
		regulatoryScore*regulatoryAccuracyWeight
	for _, e := range gradedErrors {
		overall -= e.Severity.PenaltyPoints()
	}
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	score := &models.PerformanceScore{
		OverallScore:        overall,
		Grade:               GradeLetter(overall),
		DomainKnowledge:     domain,
		ConversationQuality: conversation,
		RegulatoryAccuracy:  regulatory,
		Errors:              gradedErrors,
		Strengths:           identifyStrengths(domain, conversation, regulatory),
		Weaknesses:          identifyWeaknesses(domain, conversation, regulatory, gradedErrors),
		Recommendations:     generateRecommendations(domain, conversation, regulatory, gradedErrors),
	}

	return &GradeResult{Score: score}, nil
}

// GradeLetter maps an overall score onto the fixed letter-grade cutoffs
func GradeLetter(score float64) string {
	switch {
	case score >= 97:
		return "A+"
	case score >= 93:
		return "A"
	case score >= 90:
		return "A-"
	case score >= 87:
		return "B+"
	case score >= 83:
		return "B"
	case score >= 80:
		return "B-"
	case score >= 77:
		return "C+"
	case score >= 73:
		return "C"
	case score >= 70:
		return "C-"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func categoryScore(scores ...float64) float64 {
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// agentMessages returns the lowercased agent-side turns
func agentMessages(transcript []models.ConversationTurn) []string {
	var out []string
	for _, turn := range transcript {
		if turn.Speaker == models.SpeakerAgent {
			out = append(out, strings.ToLower(turn.Content))
		}
	}
	return out
}

// clientMessages returns the lowercased client-side turns
func clientMessages(transcript []models.ConversationTurn) []string {
	var out []string
	for _, turn := range transcript {
		if turn.Speaker == models.SpeakerClient {
			out = append(out, strings.ToLower(turn.Content))
		}
	}
	return out
}

func anyMessageContains(msgs []string, keywords ...string) bool {
	for _, msg := range msgs {
		for _, kw := range keywords {
			if strings.Contains(msg, kw) {
				return true
			}
		}
	}
	return false
}

// evaluateServiceIdentification compares expected against recommended service
// lists. Each wrong recommendation costs 10 points.
func evaluateServiceIdentification(expected, actual []string) float64 {
	if len(actual) == 0 {
		return 0
	}

	correct := 0
	for _, service := range expected {
		for _, rec := range actual {
			if strings.Contains(strings.ToLower(rec), strings.ToLower(service)) {
				correct++
				break
			}
		}
	}

	incorrect := 0
	for _, rec := range actual {
		matched := false
		for _, service := range expected {
			if strings.Contains(strings.ToLower(rec), strings.ToLower(service)) {
				matched = true
				break
			}
		}
		if !matched {
			incorrect++
		}
	}

	accuracy := 100.0
	if len(expected) > 0 {
		accuracy = float64(correct) / float64(len(expected)) * 100
	}

	score := accuracy - float64(incorrect)*10
	if score < 0 {
		score = 0
	}
	return score
}

// evaluateRegulationExplanation awards 25 points for each obligation the
// agent explained that the scenario calls for
func evaluateRegulationExplanation(transcript []models.ConversationTurn, scenario *models.Scenario) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	score := 0.0
	if anyMessageContains(msgs, "usdot") && anyMessageContains(msgs, "registration", "number") {
		score += 25
	}
	forHireProperty := scenario.CompensationModel == models.CompensationForHire && scenario.CargoClass != models.CargoPassengers
	if forHireProperty {
		if anyMessageContains(msgs, "mc", "operating authority") && anyMessageContains(msgs, "authority", "permit") {
			score += 25
		}
	}
	if scenario.OperationRadius == models.RadiusInterstate {
		if anyMessageContains(msgs, "ifta") && anyMessageContains(msgs, "fuel", "tax") {
			score += 25
		}
	}
	if scenario.HaulsHazmat() {
		if anyMessageContains(msgs, "hazmat", "hazardous") && anyMessageContains(msgs, "endorsement", "placard") {
			score += 25
		}
	}
	return score
}

// evaluateRequirementAssessment checks that the agent probed the facts the
// thresholds turn on
func evaluateRequirementAssessment(transcript []models.ConversationTurn, scenario *models.Scenario) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	score := 0.0
	if anyMessageContains(msgs, "weight", "gvwr", "26,000") {
		score += 20
	}
	if scenario.OperationRadius == models.RadiusInterstate {
		if anyMessageContains(msgs, "interstate", "across state") {
			score += 20
		}
	}
	if anyMessageContains(msgs, "cargo", "freight", "commodities") {
		score += 20
	}
	if scenario.CompensationModel == models.CompensationForHire {
		if anyMessageContains(msgs, "compensation", "payment", "money") {
			score += 20
		}
	}
	if scenario.HaulsHazmat() {
		if anyMessageContains(msgs, "hazardous", "hazmat") {
			score += 20
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// evaluateComplianceGuidance awards 25 points for each guidance dimension
// covered: timelines, cost, documentation, ongoing compliance
func evaluateComplianceGuidance(transcript []models.ConversationTurn) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	score := 0.0
	if anyMessageContains(msgs, "timeline", "days", "process") {
		score += 25
	}
	if anyMessageContains(msgs, "cost", "fee", "price") {
		score += 25
	}
	if anyMessageContains(msgs, "document", "paperwork", "form") {
		score += 25
	}
	if anyMessageContains(msgs, "maintain", "renewal", "annual") {
		score += 25
	}
	return score
}

// evaluateInformationGathering blends questioning efficiency (optimal around
// eight questions) with coverage of the key operational facts
func evaluateInformationGathering(transcript []models.ConversationTurn) float64 {
	agent := agentMessages(transcript)
	if len(agent) == 0 {
		return 0
	}

	questions := 0
	for _, msg := range agent {
		if strings.Contains(msg, "?") {
			questions++
		}
	}
	efficiency := float64(questions) / 8 * 100
	if efficiency > 100 {
		efficiency = 100
	}

	client := clientMessages(transcript)
	conversationText := strings.Join(client, " ")
	keyInfo := []string{
		"business name", "operation type", "vehicles", "interstate",
		"compensation", "cargo", "weight", "hazmat",
	}
	informationScore := 0.0
	for _, info := range keyInfo {
		if strings.Contains(conversationText, info) {
			informationScore += 12.5
		}
	}

	return (efficiency + informationScore) / 2
}

// evaluateCommunicationClarity rewards appropriately sized, filler-free,
// empathetic agent turns
func evaluateCommunicationClarity(transcript []models.ConversationTurn) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	score := 0.0
	for _, msg := range msgs {
		if len(msg) > 20 && len(msg) < 200 {
			score += 10
		}
		if !strings.Contains(msg, "um") && !strings.Contains(msg, "uh") {
			score += 10
		}
		if strings.Contains(msg, "i understand") || strings.Contains(msg, "let me help") {
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// evaluateQuestionRelevance scores the share of agent questions that probe
// operationally relevant facts
func evaluateQuestionRelevance(transcript []models.ConversationTurn) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	questions := 0
	relevant := 0
	relevantTopics := []string{
		"business", "operation", "vehicle", "interstate",
		"cargo", "weight", "hazmat", "compensation",
	}
	for _, msg := range msgs {
		if !strings.Contains(msg, "?") {
			continue
		}
		questions++
		for _, topic := range relevantTopics {
			if strings.Contains(msg, topic) {
				relevant++
				break
			}
		}
	}

	if questions == 0 {
		return 0
	}
	return float64(relevant) / float64(questions) * 100
}

// evaluateResponseCompleteness rewards substantial answers that explain
// themselves and point at next steps
func evaluateResponseCompleteness(transcript []models.ConversationTurn) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	score := 0.0
	for _, msg := range msgs {
		if len(msg) > 50 {
			score += 15
		}
		if strings.Contains(msg, "because") || strings.Contains(msg, "due to") {
			score += 10
		}
		if strings.Contains(msg, "next step") || strings.Contains(msg, "also") {
			score += 10
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// evaluateLegalAccuracy starts at 100 and deducts for statements that
// contradict the scenario's expected obligations
func evaluateLegalAccuracy(transcript []models.ConversationTurn, scenario *models.Scenario) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	expected := scenario.Expected.Obligations
	score := 100.0
	for _, msg := range msgs {
		if strings.Contains(msg, "no usdot required") && expected.IdentifierRequired {
			score -= 20
		}
		if strings.Contains(msg, "no mc required") && expected.OperatingAuthorityRequired {
			score -= 20
		}
		if strings.Contains(msg, "no ifta required") && expected.FuelTaxRegistrationRequired {
			score -= 15
		}
		if strings.Contains(msg, "no hazmat required") && expected.HazmatEndorsementRequired {
			score -= 15
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// evaluateExemptionIdentification checks that the private-carriage exemption
// was surfaced for private carriers; scenarios with nothing to exempt score
// full marks
func evaluateExemptionIdentification(transcript []models.ConversationTurn, scenario *models.Scenario) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	if scenario.CompensationModel == models.CompensationPrivate {
		if anyMessageContains(msgs, "exempt", "exception") {
			return 100
		}
		return 0
	}
	return 100
}

// evaluateRiskAssessment checks that hazmat and interstate exposure were
// called out when present; scenarios with neither risk factor score full
// marks
func evaluateRiskAssessment(transcript []models.ConversationTurn, scenario *models.Scenario) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	hazmat := scenario.HaulsHazmat()
	interstate := scenario.OperationRadius == models.RadiusInterstate
	if !hazmat && !interstate {
		return 100
	}

	score := 0.0
	perFactor := 100.0
	if hazmat && interstate {
		perFactor = 50
	}
	if hazmat && anyMessageContains(msgs, "risk", "danger", "safety") {
		score += perFactor
	}
	if interstate && anyMessageContains(msgs, "multiple states", "cross border", "state lines") {
		score += perFactor
	}
	return score
}

// evaluateDocumentationGuidance awards 25 points per concrete document the
// agent named
func evaluateDocumentationGuidance(transcript []models.ConversationTurn) float64 {
	msgs := agentMessages(transcript)
	if len(msgs) == 0 {
		return 0
	}

	score := 0.0
	docs := []string{"insurance", "ein", "business license", "operating authority"}
	for _, doc := range docs {
		if anyMessageContains(msgs, doc) {
			score += 25
		}
	}
	return score
}

// identifyGradedErrors itemizes missed and spurious recommendations
func identifyGradedErrors(expected, actual []string) []models.GradedError {
	var out []models.GradedError

	for _, service := range expected {
		found := false
		for _, rec := range actual {
			if strings.Contains(strings.ToLower(rec), strings.ToLower(service)) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, models.GradedError{
				Type:        "knowledge_gap",
				Description: fmt.Sprintf("Failed to recommend %s", service),
				Severity:    models.SeverityHigh,
			})
		}
	}

	for _, rec := range actual {
		matched := false
		for _, service := range expected {
			if strings.Contains(strings.ToLower(rec), strings.ToLower(service)) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, models.GradedError{
				Type:        "regulatory_error",
				Description: fmt.Sprintf("Incorrectly recommended %s", rec),
				Severity:    models.SeverityMedium,
			})
		}
	}

	return out
}

func identifyStrengths(domain models.DomainKnowledgeScores, conversation models.ConversationQualityScores, regulatory models.RegulatoryAccuracyScores) []string {
	var strengths []string
	if domain.CorrectServiceIdentification >= 90 {
		strengths = append(strengths, "Excellent service identification accuracy")
	}
	if conversation.ClientCommunicationClarity >= 90 {
		strengths = append(strengths, "Clear and professional communication")
	}
	if regulatory.LegalRequirementAccuracy >= 90 {
		strengths = append(strengths, "Strong regulatory knowledge")
	}
	if conversation.InformationGatheringEfficiency >= 90 {
		strengths = append(strengths, "Efficient information gathering")
	}
	return strengths
}

func identifyWeaknesses(domain models.DomainKnowledgeScores, conversation models.ConversationQualityScores, regulatory models.RegulatoryAccuracyScores, gradedErrors []models.GradedError) []string {
	var weaknesses []string
	if domain.CorrectServiceIdentification < 70 {
		weaknesses = append(weaknesses, "Service identification needs improvement")
	}
	if conversation.ClientCommunicationClarity < 70 {
		weaknesses = append(weaknesses, "Communication clarity could be better")
	}
	if regulatory.LegalRequirementAccuracy < 70 {
		weaknesses = append(weaknesses, "Regulatory knowledge gaps identified")
	}
	if conversation.InformationGatheringEfficiency < 70 {
		weaknesses = append(weaknesses, "Information gathering process needs refinement")
	}
	for _, e := range gradedErrors {
		if e.Severity == models.SeverityCritical || e.Severity == models.SeverityHigh {
			weaknesses = append(weaknesses, e.Description)
		}
	}
	return weaknesses
}

func generateRecommendations(domain models.DomainKnowledgeScores, conversation models.ConversationQualityScores, regulatory models.RegulatoryAccuracyScores, gradedErrors []models.GradedError) []string {
	var recommendations []string
	if domain.CorrectServiceIdentification < 80 {
		recommendations = append(recommendations, "Review the registration requirements matrix")
	}
	if conversation.ClientCommunicationClarity < 80 {
		recommendations = append(recommendations, "Practice clear, concise explanations")
	}
	if regulatory.LegalRequirementAccuracy < 80 {
		recommendations = append(recommendations, "Study federal regulations and exemptions")
	}
	if conversation.InformationGatheringEfficiency < 80 {
		recommendations = append(recommendations, "Develop a systematic questioning approach")
	}
	if len(gradedErrors) > 0 {
		recommendations = append(recommendations, "Review the itemized errors with a trainer")
	}
	return recommendations
}
