package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"narrative-safety/internal/metrics"
	"narrative-safety/internal/models"
	"narrative-safety/internal/repository"
)

const (
	RoleAdmin = "admin"

	DefaultPendingPageSize = 50
	MaxPendingPageSize     = 200

	adminBypassNote = "Admin bypass: auto-approved"
	autoSafeNote    = "Harm judge: SAFE (no human review required)"

	maxThemeFragments = 20
	maxThemes         = 5
)

var (
	ErrReviewNotFound   = errors.New("review not found")
	ErrInvalidState     = errors.New("review is not pending")
	ErrInvalidDecision  = errors.New("invalid decision: must be approve, reject or revise")
	ErrNotDeliverable   = errors.New("review is not approved or already delivered")
	ErrMissingSessionID = errors.New("session id is required")
)

// ReviewStore persists review records
type ReviewStore interface {
	Create(ctx context.Context, review *models.ReviewRecord) error
	GetByReportID(ctx context.Context, reportID string) (*models.ReviewRecord, error)
	ListByStatus(ctx context.Context, status models.ReviewStatus, limit int) ([]models.ReviewRecord, error)
	ApplyDecision(ctx context.Context, reportID string, d repository.ReviewDecision) (*models.ReviewRecord, error)
	MarkDelivered(ctx context.Context, reportID, method string, at time.Time) (*models.ReviewRecord, error)
	Stats(ctx context.Context) (models.ReviewStats, error)
}

// Alerter notifies reviewers about reports that need immediate attention
type Alerter interface {
	DangerousReport(ctx context.Context, review *models.ReviewRecord) error
}

// Scanner produces a risk verdict for a report
type Scanner interface {
	Scan(ctx context.Context, reportContent string, mode models.JourneyMode, fragments []models.Fragment, sessionMetadata map[string]any) models.RiskVerdict
}

// SubmitReviewInput is everything needed to queue a generated report
type SubmitReviewInput struct {
	SessionID          string
	UserID             uint
	UserRole           string
	ReportContent      string
	GenerationMetadata map[string]any
	Mode               models.JourneyMode
	Fragments          []models.Fragment
	SessionMetadata    models.SessionMetadata
}

// ReviewQueueService routes generated reports between automatic delivery and human review
type ReviewQueueService struct {
	store   ReviewStore
	judge   Scanner
	alerter Alerter
	metrics *metrics.Pipeline
	now     func() time.Time
}

// NewReviewQueueService creates a review queue. alerter and m may be nil.
func NewReviewQueueService(store ReviewStore, judge Scanner, alerter Alerter, m *metrics.Pipeline) *ReviewQueueService {
	return &ReviewQueueService{
		store:   store,
		judge:   judge,
		alerter: alerter,
		metrics: m,
		now:     time.Now,
	}
}

// SubmitForReview scans the report, decides its initial status and persists it
func (s *ReviewQueueService) SubmitForReview(ctx context.Context, in SubmitReviewInput) (*models.ReviewRecord, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, ErrMissingSessionID
	}

	phase := in.SessionMetadata.Phase
	if phase == "" {
		phase = "unknown"
	}

	verdict := s.judge.Scan(ctx, in.ReportContent, in.Mode, in.Fragments, map[string]any{
		"mode":       string(in.Mode),
		"turn_count": in.SessionMetadata.TurnCount,
		"phase":      phase,
	})

	reportID, err := newReportID()
	if err != nil {
		return nil, err
	}

	review := &models.ReviewRecord{
		ReportID:            reportID,
		SessionID:           in.SessionID,
		UserID:              in.UserID,
		ReportContent:       in.ReportContent,
		GenerationMetadata:  in.GenerationMetadata,
		Verdict:             verdict,
		RiskLevel:           verdict.RiskLevel,
		FlaggedCount:        len(verdict.FlaggedSections),
		JourneyMode:         in.Mode,
		JourneySummary:      JourneySummary(in.Mode, in.SessionMetadata.TurnCount, phase),
		KeyThemes:           ExtractKeyThemes(in.Fragments),
		RequiresHumanReview: verdict.RequiresHumanReview,
		AutoSafeDelivery:    verdict.AutoSafeDelivery,
		AdminBypass:         in.UserRole == RoleAdmin,
		CreatedAt:           s.now().UTC(),
	}

	switch {
	case review.AdminBypass:
		review.Status = models.ReviewStatusApproved
		review.ReviewerNotes = stringPtr(adminBypassNote)
	case verdict.AutoSafeDelivery && !verdict.RequiresHumanReview:
		review.Status = models.ReviewStatusApproved
		review.ReviewerNotes = stringPtr(autoSafeNote)
	default:
		review.Status = models.ReviewStatusPending
	}

	if err := s.store.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to persist review: %w", err)
	}

	s.metrics.ObserveSubmission(string(review.RiskLevel), string(review.Status))
	slog.Info("Report submitted for review",
		"report_id", review.ReportID,
		"risk_level", review.RiskLevel,
		"status", review.Status,
		"admin_bypass", review.AdminBypass,
		"flagged_sections", review.FlaggedCount,
	)

	if review.RiskLevel == models.RiskDangerous {
		s.alertDangerous(ctx, review)
	}

	return review, nil
}

func (s *ReviewQueueService) alertDangerous(ctx context.Context, review *models.ReviewRecord) {
	if s.alerter == nil {
		return
	}
	err := s.alerter.DangerousReport(ctx, review)
	s.metrics.ObserveAlert("dangerous_report", err)
	if err != nil {
		slog.Error("Failed to send dangerous report alert", "report_id", review.ReportID, "error", err)
	}
}

// SubmitReviewerDecision applies a human decision to a pending review.
// An unknown report is reported before a decided one, and both before a bad decision value.
func (s *ReviewQueueService) SubmitReviewerDecision(ctx context.Context, reportID string, reviewerID uint, decision, notes string) (*models.ReviewRecord, error) {
	existing, err := s.store.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if existing.Status.IsTerminal() {
		return nil, ErrInvalidState
	}

	d, err := models.ParseDecision(decision)
	if err != nil {
		return nil, ErrInvalidDecision
	}
	target, err := existing.Status.Apply(d)
	if err != nil {
		return nil, ErrInvalidDecision
	}

	// ApplyDecision only updates a review that is still pending, so a concurrent decision loses here

	review, err := s.store.ApplyDecision(ctx, reportID, repository.ReviewDecision{
		Status:     target,
		ReviewerID: reviewerID,
		Decision:   d,
		Notes:      notes,
		ReviewedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.metrics.ObserveDecision(string(d))
	slog.Info("Reviewer decision recorded",
		"report_id", reportID,
		"reviewer_id", reviewerID,
		"decision", d,
		"status", review.Status,
	)

	return review, nil
}

// MarkDelivered records that an approved report reached the user
func (s *ReviewQueueService) MarkDelivered(ctx context.Context, reportID, method string) (*models.ReviewRecord, error) {
	review, err := s.store.MarkDelivered(ctx, reportID, method, s.now().UTC())
	if err != nil {
		return nil, mapStoreError(err)
	}
	return review, nil
}

// ListPending returns pending reviews newest first
func (s *ReviewQueueService) ListPending(ctx context.Context, limit int) ([]models.ReviewRecord, error) {
	if limit <= 0 {
		limit = DefaultPendingPageSize
	}
	if limit > MaxPendingPageSize {
		limit = MaxPendingPageSize
	}

	reviews, err := s.store.ListByStatus(ctx, models.ReviewStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	return reviews, nil
}

// GetReview fetches a review by report id
func (s *ReviewQueueService) GetReview(ctx context.Context, reportID string) (*models.ReviewRecord, error) {
	review, err := s.store.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return review, nil
}

// Stats aggregates the queue by status
func (s *ReviewQueueService) Stats(ctx context.Context) (models.ReviewStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get review stats: %w", err)
	}
	return stats, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrReviewNotFound):
		return ErrReviewNotFound
	case errors.Is(err, repository.ErrReviewNotPending):
		return ErrInvalidState
	case errors.Is(err, repository.ErrReviewNotDeliverable):
		return ErrNotDeliverable
	default:
		return err
	}
}

// JourneySummary builds the de-identified one-line summary shown to reviewers
func JourneySummary(mode models.JourneyMode, turnCount int, phase string) string {
	return fmt.Sprintf("User %s over %d conversation turns (Phase: %s)", mode.Description(), turnCount, phase)
}

var themeVocabulary = []struct {
	theme    string
	keywords []string
}{
	{"medication adherence", []string{"insulin", "metformin", "medication", "dose", "prescription", "pill"}},
	{"lifestyle change", []string{"exercise", "diet", "sleep", "stress", "habit", "routine"}},
	{"clinical monitoring", []string{"blood sugar", "glucose", "a1c", "test", "doctor", "lab"}},
	{"technology use", []string{"app", "wearable", "tracker", "device", "monitor", "phone"}},
	{"emotional wellbeing", []string{"anxious", "worried", "frustrated", "overwhelmed", "hopeful", "scared"}},
}

// ExtractKeyThemes tags fragments with coarse theme buckets.
// Only the first 20 fragments are sampled and at most 5 themes are returned, in vocabulary order.
func ExtractKeyThemes(fragments []models.Fragment) []string {
	if len(fragments) > maxThemeFragments {
		fragments = fragments[:maxThemeFragments]
	}

	found := make(map[string]bool)
	for _, f := range fragments {
		text := strings.ToLower(f.Text)
		for _, bucket := range themeVocabulary {
			if found[bucket.theme] {
				continue
			}
			for _, kw := range bucket.keywords {
				if strings.Contains(text, kw) {
					found[bucket.theme] = true
					break
				}
			}
		}
		if len(found) >= maxThemes {
			break
		}
	}

	themes := make([]string, 0, len(found))
	for _, bucket := range themeVocabulary {
		if found[bucket.theme] && len(themes) < maxThemes {
			themes = append(themes, bucket.theme)
		}
	}
	return themes
}

// newReportID returns "RPT_" followed by 32 random hex characters
func newReportID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate report id: %w", err)
	}
	return "RPT_" + hex.EncodeToString(b), nil
}

func stringPtr(s string) *string {
	return &s
}
