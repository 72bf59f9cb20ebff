package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"narrative-safety/internal/models"
)

const (
	PipelineStatusDelivered     = "delivered"
	PipelineStatusPendingReview = "pending_review"

	DeliveryMethodDashboard = "dashboard"

	deliveredMessage = "Your health report is ready on your dashboard"
	pendingMessage   = "Your health report will be reviewed and emailed within 24 hours"
	pendingEstimate  = "24 hours"
)

// ReportSubmission is a generated report handed to the safety pipeline
type ReportSubmission struct {
	SessionID          string                 `json:"session_id" validate:"required,max=128"`
	ReportContent      string                 `json:"report_content" validate:"required,maxbytes"`
	GenerationMetadata map[string]any         `json:"generation_metadata"`
	Fragments          []models.Fragment      `json:"fragments" validate:"max=500,dive"`
	SessionMetadata    models.SessionMetadata `json:"session_metadata"`

	UserID   uint   `json:"-"`
	UserRole string `json:"-"`
}

// PipelineResult is what the caller learns about a processed report
type PipelineResult struct {
	Status            string               `json:"status"`
	Message           string               `json:"message"`
	ReviewID          string               `json:"review_id"`
	DeliveryMethod    string               `json:"delivery_method,omitempty"`
	EstimatedDelivery string               `json:"estimated_delivery,omitempty"`
	Receipt           *models.Receipt      `json:"-"`
	Review            *models.ReviewRecord `json:"-"`
}

// ReportPipeline runs rule validation, harm judging and review routing for one report
type ReportPipeline struct {
	validator *ConstitutionalValidator
	queue     *ReviewQueueService
}

// NewReportPipeline creates a report pipeline
func NewReportPipeline(validator *ConstitutionalValidator, queue *ReviewQueueService) *ReportPipeline {
	return &ReportPipeline{validator: validator, queue: queue}
}

// Process validates and routes a report. The journey mode is always derived from the fragments.
// Only a failure to store the review is returned as an error; rule violations and judge
// failures surface as a pending review.
func (p *ReportPipeline) Process(ctx context.Context, sub ReportSubmission) (*PipelineResult, error) {
	receipt := p.validator.ValidateStorySynthesis(ctx, sub.ReportContent, sub.Fragments)

	metadata := make(map[string]any, len(sub.GenerationMetadata)+1)
	for k, v := range sub.GenerationMetadata {
		metadata[k] = v
	}
	metadata["constitutional_receipt_id"] = receipt.ReceiptID

	review, err := p.queue.SubmitForReview(ctx, SubmitReviewInput{
		SessionID:          sub.SessionID,
		UserID:             sub.UserID,
		UserRole:           sub.UserRole,
		ReportContent:      sub.ReportContent + ValidationFooter(receipt),
		GenerationMetadata: metadata,
		Mode:               DetectJourneyMode(sub.Fragments),
		Fragments:          sub.Fragments,
		SessionMetadata:    sub.SessionMetadata,
	})
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{
		ReviewID: review.ReportID,
		Receipt:  receipt,
		Review:   review,
	}

	if review.Status != models.ReviewStatusApproved {
		result.Status = PipelineStatusPendingReview
		result.Message = pendingMessage
		result.EstimatedDelivery = pendingEstimate
		return result, nil
	}

	// The approved record is committed; delivery can be retried
	delivered, err := p.queue.MarkDelivered(ctx, review.ReportID, DeliveryMethodDashboard)
	if err != nil {
		slog.Error("Failed to mark auto-approved report delivered", "report_id", review.ReportID, "error", err)
	} else {
		result.Review = delivered
	}

	result.Status = PipelineStatusDelivered
	result.Message = deliveredMessage
	result.DeliveryMethod = DeliveryMethodDashboard
	return result, nil
}

// Decide records a reviewer decision and delivers the report when it is approved
func (p *ReportPipeline) Decide(ctx context.Context, reportID string, reviewerID uint, decision, notes string) (*models.ReviewRecord, error) {
	review, err := p.queue.SubmitReviewerDecision(ctx, reportID, reviewerID, decision, notes)
	if err != nil {
		return nil, err
	}
	if review.Status != models.ReviewStatusApproved {
		return review, nil
	}

	delivered, err := p.queue.MarkDelivered(ctx, reportID, DeliveryMethodDashboard)
	if err != nil {
		// The decision itself is committed; delivery can be retried
		slog.Error("Failed to deliver approved report", "report_id", reportID, "error", err)
		return review, nil
	}
	return delivered, nil
}

// DetectJourneyMode classifies a session as medical when any fragment mentions medication or insulin
func DetectJourneyMode(fragments []models.Fragment) models.JourneyMode {
	for _, f := range fragments {
		text := strings.ToLower(f.Text + " " + f.Category)
		if strings.Contains(text, "medication") || strings.Contains(text, "insulin") {
			return models.JourneyModeMedical
		}
	}
	return models.JourneyModePreventive
}

// ValidationFooter renders the receipt block appended to delivered reports
func ValidationFooter(r *models.Receipt) string {
	var b strings.Builder
	b.WriteString("\n<div class=\"constitutional-validation\">\n")
	b.WriteString("<div><strong>Constitutional Validation</strong></div>\n")
	fmt.Fprintf(&b, "<div>Receipt ID: %s</div>\n", html.EscapeString(r.ReceiptID))
	fmt.Fprintf(&b, "<div>Status: %s</div>\n", html.EscapeString(string(r.ValidationResult)))
	fmt.Fprintf(&b, "<div>Principles: %d in harmony, %d requiring attention</div>\n", len(r.Harmonies), len(r.Violations))
	fmt.Fprintf(&b, "<div>Validated at: %s</div>\n", html.EscapeString(r.Timestamp))
	b.WriteString("</div>\n")
	return b.String()
}
