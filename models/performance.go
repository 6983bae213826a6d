package models

// Speaker identifies who produced a transcript turn
type Speaker string

const (
	SpeakerClient Speaker = "client"
	SpeakerAgent  Speaker = "agent"
)

// ConversationTurn is one message in a graded transcript
type ConversationTurn struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
}

// ErrorSeverity classifies a graded error by impact
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
)

// PenaltyPoints returns the score deduction for one error of this severity
func (s ErrorSeverity) PenaltyPoints() float64 {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 10
	case SeverityLow:
		return 5
	default:
		return 0
	}
}

// GradedError is one itemized problem found during transcript evaluation
type GradedError struct {
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Severity    ErrorSeverity `json:"severity"`
}

// DomainKnowledgeScores holds the four domain-knowledge sub-criteria, each 0-100
type DomainKnowledgeScores struct {
	CorrectServiceIdentification  float64 `json:"correct_service_identification"`
	ProperRegulationExplanation   float64 `json:"proper_regulation_explanation"`
	AccurateRequirementAssessment float64 `json:"accurate_requirement_assessment"`
	ComplianceGuidanceQuality     float64 `json:"compliance_guidance_quality"`
}

// ConversationQualityScores holds the four conversation-quality sub-criteria, each 0-100
type ConversationQualityScores struct {
	InformationGatheringEfficiency float64 `json:"information_gathering_efficiency"`
	ClientCommunicationClarity     float64 `json:"client_communication_clarity"`
	QuestionRelevance              float64 `json:"question_relevance"`
	ResponseCompleteness           float64 `json:"response_completeness"`
}

// RegulatoryAccuracyScores holds the four regulatory-accuracy sub-criteria, each 0-100
type RegulatoryAccuracyScores struct {
	LegalRequirementAccuracy float64 `json:"legal_requirement_accuracy"`
	ExemptionIdentification  float64 `json:"exemption_identification"`
	RiskAssessmentAccuracy   float64 `json:"risk_assessment_accuracy"`
	DocumentationGuidance    float64 `json:"documentation_guidance"`
}

// PerformanceScore is the full rubric outcome for one transcript evaluation
type PerformanceScore struct {
	OverallScore        float64                   `json:"overall_score"`
	Grade               string                    `json:"grade"`
	DomainKnowledge     DomainKnowledgeScores     `json:"domain_knowledge"`
	ConversationQuality ConversationQualityScores `json:"conversation_quality"`
	RegulatoryAccuracy  RegulatoryAccuracyScores  `json:"regulatory_accuracy"`
	Errors              []GradedError             `json:"errors"`
	Strengths           []string                  `json:"strengths"`
	Weaknesses          []string                  `json:"weaknesses"`
	Recommendations     []string                  `json:"recommendations"`
}
