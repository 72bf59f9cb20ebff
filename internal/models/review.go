package models

import (
	"errors"
	"time"
)

// ReviewStatus is the lifecycle state of a ReviewRecord
type ReviewStatus string

const (
	ReviewStatusPending           ReviewStatus = "pending"
	ReviewStatusApproved          ReviewStatus = "approved"
	ReviewStatusRejected          ReviewStatus = "rejected"
	ReviewStatusRevisionRequested ReviewStatus = "revision_requested"
)

// Decision is a human reviewer's verdict on a pending report
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionRevise  Decision = "revise"
)

var (
	// ErrInvalidTransition is returned when a decision is applied to a terminal status
	ErrInvalidTransition = errors.New("review is not pending")
	// ErrUnknownDecision is returned for decisions outside approve/reject/revise
	ErrUnknownDecision = errors.New("invalid decision")
)

var decisionTargets = map[Decision]ReviewStatus{
	DecisionApprove: ReviewStatusApproved,
	DecisionReject:  ReviewStatusRejected,
	DecisionRevise:  ReviewStatusRevisionRequested,
}

// ParseDecision validates a raw decision string
func ParseDecision(s string) (Decision, error) {
	d := Decision(s)
	if _, ok := decisionTargets[d]; !ok {
		return "", ErrUnknownDecision
	}
	return d, nil
}

// IsTerminal reports whether no further transitions are allowed
func (s ReviewStatus) IsTerminal() bool {
	return s != ReviewStatusPending
}

// Apply returns the status reached by applying d.
// Only pending reviews accept a decision.
func (s ReviewStatus) Apply(d Decision) (ReviewStatus, error) {
	target, ok := decisionTargets[d]
	if !ok {
		return s, ErrUnknownDecision
	}
	if s.IsTerminal() {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// JourneyMode classifies the user's health context
type JourneyMode string

const (
	JourneyModePreventive JourneyMode = "preventive"
	JourneyModeMedical    JourneyMode = "medical"
)

// Description returns the de-identified phrase used in reviewer summaries
func (m JourneyMode) Description() string {
	switch m {
	case JourneyModePreventive:
		return "exploring metabolic health prevention"
	case JourneyModeMedical:
		return "managing diabetes with medication"
	default:
		return "health journey"
	}
}

// Fragment is a single user narrative fragment captured during a session
type Fragment struct {
	Text      string         `json:"text" validate:"maxbytes"`
	Category  string         `json:"category,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// SessionMetadata carries coarse session facts forwarded to the harm judge
type SessionMetadata struct {
	TurnCount int    `json:"turn_count" validate:"gte=0"`
	Phase     string `json:"phase" validate:"max=64"`
}

// ReviewRecord tracks a generated report from submission to delivery
type ReviewRecord struct {
	ID                  int64          `json:"id" db:"id"`
	ReportID            string         `json:"report_id" db:"report_id"`
	SessionID           string         `json:"session_id" db:"session_id"`
	UserID              uint           `json:"user_id" db:"user_id"`
	ReportContent       string         `json:"report_content" db:"report_content"`
	GenerationMetadata  map[string]any `json:"generation_metadata" db:"generation_metadata"`
	Verdict             RiskVerdict    `json:"llm_analysis" db:"llm_analysis"`
	RiskLevel           RiskLevel      `json:"risk_level" db:"risk_level"`
	FlaggedCount        int            `json:"flagged_sections_count" db:"flagged_sections_count"`
	JourneyMode         JourneyMode    `json:"mode" db:"mode"`
	JourneySummary      string         `json:"user_journey_summary" db:"user_journey_summary"`
	KeyThemes           []string       `json:"key_themes" db:"key_themes"`
	Status              ReviewStatus   `json:"status" db:"status"`
	RequiresHumanReview bool           `json:"requires_human_review" db:"requires_human_review"`
	AutoSafeDelivery    bool           `json:"auto_safe_delivery" db:"auto_safe_delivery"`
	AdminBypass         bool           `json:"admin_bypass" db:"admin_bypass"`
	ReviewerID          *uint          `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewedAt          *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewerNotes       *string        `json:"reviewer_notes,omitempty" db:"reviewer_notes"`
	ReviewerDecision    *Decision      `json:"reviewer_decision,omitempty" db:"reviewer_decision"`
	DeliveredAt         *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	DeliveryMethod      *string        `json:"delivery_method,omitempty" db:"delivery_method"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// PendingReviewSummary is the de-identified view shown in the reviewer queue
type PendingReviewSummary struct {
	ReportID            string      `json:"report_id"`
	CreatedAt           time.Time   `json:"created_at"`
	RiskLevel           RiskLevel   `json:"risk_level"`
	FlaggedCount        int         `json:"flagged_sections_count"`
	JourneyMode         JourneyMode `json:"mode"`
	KeyThemes           []string    `json:"key_themes"`
	JourneySummary      string      `json:"user_journey_summary"`
	RequiresHumanReview bool        `json:"requires_human_review"`
	Verdict             RiskVerdict `json:"llm_analysis"`
}

// Summary strips identifying fields for the reviewer queue
func (r *ReviewRecord) Summary() PendingReviewSummary {
	return PendingReviewSummary{
		ReportID:            r.ReportID,
		CreatedAt:           r.CreatedAt,
		RiskLevel:           r.RiskLevel,
		FlaggedCount:        r.FlaggedCount,
		JourneyMode:         r.JourneyMode,
		KeyThemes:           r.KeyThemes,
		JourneySummary:      r.JourneySummary,
		RequiresHumanReview: r.RequiresHumanReview,
		Verdict:             r.Verdict,
	}
}

// ReviewStats aggregates the review queue by status
type ReviewStats struct {
	Pending           int     `json:"pending"`
	Approved          int     `json:"approved"`
	Rejected          int     `json:"rejected"`
	RevisionRequested int     `json:"revision_requested"`
	AutoApproved      int     `json:"auto_approved"`
	Total             int     `json:"total"`
	AutoApprovalRate  float64 `json:"auto_approval_rate"`
}

// ComputeRate fills Total and AutoApprovalRate from the status counts
func (s *ReviewStats) ComputeRate() {
	s.Total = s.Pending + s.Approved + s.Rejected + s.RevisionRequested
	denominator := s.Approved
	if denominator < 1 {
		denominator = 1
	}
	s.AutoApprovalRate = float64(s.AutoApproved) / float64(denominator)
}
