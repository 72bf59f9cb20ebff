package models

// RiskLevel is the overall risk assigned to a report
type RiskLevel string

const (
	RiskSafe      RiskLevel = "SAFE"
	RiskCaution   RiskLevel = "CAUTION"
	RiskDangerous RiskLevel = "DANGEROUS"
)

// Valid reports whether the level is one of the three known values
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskSafe, RiskCaution, RiskDangerous:
		return true
	}
	return false
}

func (l RiskLevel) rank() int {
	switch l {
	case RiskSafe:
		return 0
	case RiskCaution:
		return 1
	default:
		return 2
	}
}

// Stricter returns whichever of the two levels routes more conservatively
func (l RiskLevel) Stricter(other RiskLevel) RiskLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// Severity grades an individual flagged section
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// FlaggedSection is a quoted passage the judge considers problematic
type FlaggedSection struct {
	Quote             string   `json:"quote"`
	IssueType         string   `json:"issue_type"`
	Severity          Severity `json:"severity"`
	Rationale         string   `json:"rationale"`
	SuggestedRevision string   `json:"suggested_revision"`
}

// ConstitutionalViolation names a principle the judge found violated
type ConstitutionalViolation struct {
	Principle            string `json:"principle"`
	ViolationDescription string `json:"violation_description"`
	EvidenceQuote        string `json:"evidence_quote"`
}

// ModeSpecificConcerns holds journey-mode specific remarks from the judge
type ModeSpecificConcerns struct {
	MedicalRegime *string `json:"medical_regime"`
	Preventive    *string `json:"preventive"`
}

// RiskVerdict is the structured output of the external harm judge.
// The JSON layout is consumed by the review dashboards and must stay stable.
type RiskVerdict struct {
	RiskLevel                RiskLevel                 `json:"risk_level"`
	OverallAssessment        string                    `json:"overall_assessment"`
	FlaggedSections          []FlaggedSection          `json:"flagged_sections"`
	ConstitutionalViolations []ConstitutionalViolation `json:"constitutional_violations"`
	RequiresHumanReview      bool                      `json:"requires_human_review"`
	AutoSafeDelivery         bool                      `json:"auto_safe_delivery"`
	ReviewerGuidance         string                    `json:"reviewer_guidance"`
	ModeSpecificConcerns     ModeSpecificConcerns      `json:"mode_specific_concerns"`

	DetectorModel      string      `json:"detector_model,omitempty"`
	AnalysisTimestamp  string      `json:"analysis_timestamp,omitempty"`
	SessionMode        JourneyMode `json:"session_mode,omitempty"`
	Error              string      `json:"error,omitempty"`
	LocallyDerivedRisk RiskLevel   `json:"locally_derived_risk,omitempty"`
	VerdictConsistent  *bool       `json:"verdict_consistent,omitempty"`
}

// IsFallback reports whether the verdict was produced without a usable judge response
func (v *RiskVerdict) IsFallback() bool {
	return v.Error != ""
}
