package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"narrative-safety/internal/models"

	"github.com/lib/pq"
)

var (
	ErrReviewNotFound       = errors.New("review not found")
	ErrReviewNotPending     = errors.New("review already decided")
	ErrReviewNotDeliverable = errors.New("review is not approved or already delivered")
	ErrReviewExists         = errors.New("review already exists")
)

// ReviewDecision is the set of fields stamped when a reviewer decides
type ReviewDecision struct {
	Status     models.ReviewStatus
	ReviewerID uint
	Decision   models.Decision
	Notes      string
	ReviewedAt time.Time
}

// ReviewRepository handles report review database operations
type ReviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `
	id, report_id, session_id, user_id, report_content, generation_metadata, llm_analysis,
	risk_level, flagged_sections_count, mode, user_journey_summary, key_themes, status,
	requires_human_review, auto_safe_delivery, admin_bypass, reviewer_id, reviewed_at,
	reviewer_notes, reviewer_decision, delivered_at, delivery_method, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*models.ReviewRecord, error) {
	var (
		review     models.ReviewRecord
		metadata   []byte
		analysis   []byte
		reviewerID sql.NullInt64
		decision   sql.NullString
	)

	err := row.Scan(
		&review.ID,
		&review.ReportID,
		&review.SessionID,
		&review.UserID,
		&review.ReportContent,
		&metadata,
		&analysis,
		&review.RiskLevel,
		&review.FlaggedCount,
		&review.JourneyMode,
		&review.JourneySummary,
		pq.Array(&review.KeyThemes),
		&review.Status,
		&review.RequiresHumanReview,
		&review.AutoSafeDelivery,
		&review.AdminBypass,
		&reviewerID,
		&review.ReviewedAt,
		&review.ReviewerNotes,
		&decision,
		&review.DeliveredAt,
		&review.DeliveryMethod,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &review.GenerationMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode generation metadata: %w", err)
		}
	}
	if err := json.Unmarshal(analysis, &review.Verdict); err != nil {
		return nil, fmt.Errorf("failed to decode llm analysis: %w", err)
	}
	if reviewerID.Valid {
		id := uint(reviewerID.Int64)
		review.ReviewerID = &id
	}
	if decision.Valid {
		d := models.Decision(decision.String)
		review.ReviewerDecision = &d
	}
	if review.KeyThemes == nil {
		review.KeyThemes = []string{}
	}

	return &review, nil
}

// Create inserts a new review record
func (r *ReviewRepository) Create(ctx context.Context, review *models.ReviewRecord) error {
	metadata, err := json.Marshal(review.GenerationMetadata)
	if err != nil {
		return fmt.Errorf("failed to encode generation metadata: %w", err)
	}
	if review.GenerationMetadata == nil {
		metadata = []byte("{}")
	}
	analysis, err := json.Marshal(review.Verdict)
	if err != nil {
		return fmt.Errorf("failed to encode llm analysis: %w", err)
	}

	query := `
		INSERT INTO report_reviews (
			report_id, session_id, user_id, report_content, generation_metadata, llm_analysis,
			risk_level, flagged_sections_count, mode, user_journey_summary, key_themes, status,
			requires_human_review, auto_safe_delivery, admin_bypass, reviewer_notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`

	now := time.Now().UTC()
	if !review.CreatedAt.IsZero() {
		now = review.CreatedAt
	}
	err = r.db.QueryRowContext(ctx, query,
		review.ReportID,
		review.SessionID,
		review.UserID,
		review.ReportContent,
		metadata,
		analysis,
		review.RiskLevel,
		review.FlaggedCount,
		review.JourneyMode,
		review.JourneySummary,
		pq.Array(review.KeyThemes),
		review.Status,
		review.RequiresHumanReview,
		review.AutoSafeDelivery,
		review.AdminBypass,
		review.ReviewerNotes,
		now,
		now,
	).Scan(&review.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrReviewExists
	}
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	review.CreatedAt = now
	review.UpdatedAt = now
	return nil
}

// GetByReportID retrieves a review by its public report id
func (r *ReviewRepository) GetByReportID(ctx context.Context, reportID string) (*models.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + ` FROM report_reviews WHERE report_id = $1`

	review, err := scanReview(r.db.QueryRowContext(ctx, query, reportID))
	if err == sql.ErrNoRows {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// ListByStatus returns reviews in the given status, newest first
func (r *ReviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus, limit int) ([]models.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + `
		FROM report_reviews
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.ReviewRecord
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return reviews, nil
}

// ApplyDecision records a reviewer decision on a pending review.
// The update is conditional on the pending status so only one concurrent decision can win.
func (r *ReviewRepository) ApplyDecision(ctx context.Context, reportID string, d ReviewDecision) (*models.ReviewRecord, error) {
	query := `
		UPDATE report_reviews
		SET status = $2, reviewer_id = $3, reviewer_decision = $4, reviewer_notes = $5,
		    reviewed_at = $6, updated_at = $6
		WHERE report_id = $1 AND status = 'pending'
		RETURNING ` + reviewColumns

	review, err := scanReview(r.db.QueryRowContext(ctx, query,
		reportID, d.Status, d.ReviewerID, d.Decision, d.Notes, d.ReviewedAt))
	if err == sql.ErrNoRows {
		return nil, r.missingOrDecided(ctx, reportID, ErrReviewNotPending)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply review decision: %w", err)
	}
	return review, nil
}

// MarkDelivered stamps delivery details on an approved, undelivered review
func (r *ReviewRepository) MarkDelivered(ctx context.Context, reportID, method string, at time.Time) (*models.ReviewRecord, error) {
	query := `
		UPDATE report_reviews
		SET delivered_at = $2, delivery_method = $3, updated_at = $2
		WHERE report_id = $1 AND status = 'approved' AND delivered_at IS NULL
		RETURNING ` + reviewColumns

	review, err := scanReview(r.db.QueryRowContext(ctx, query, reportID, at, method))
	if err == sql.ErrNoRows {
		return nil, r.missingOrDecided(ctx, reportID, ErrReviewNotDeliverable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark review delivered: %w", err)
	}
	return review, nil
}

func (r *ReviewRepository) missingOrDecided(ctx context.Context, reportID string, conflict error) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM report_reviews WHERE report_id = $1)`, reportID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check review: %w", err)
	}
	if !exists {
		return ErrReviewNotFound
	}
	return conflict
}

// Stats aggregates review counts by status
func (r *ReviewRepository) Stats(ctx context.Context) (models.ReviewStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'revision_requested'),
			COUNT(*) FILTER (WHERE status = 'approved' AND reviewer_id IS NULL)
		FROM report_reviews
	`

	var stats models.ReviewStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending,
		&stats.Approved,
		&stats.Rejected,
		&stats.RevisionRequested,
		&stats.AutoApproved,
	)
	if err != nil {
		return stats, fmt.Errorf("failed to get review stats: %w", err)
	}

	stats.ComputeRate()
	return stats, nil
}
