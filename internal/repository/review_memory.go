package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"narrative-safety/internal/models"
)

// MemoryReviewRepository is an in-process review store for tests and
// single-node deployments without PostgreSQL.
type MemoryReviewRepository struct {
	mu      sync.Mutex
	nextID  int64
	reviews map[string]*models.ReviewRecord
}

// NewMemoryReviewRepository creates an empty in-memory review store
func NewMemoryReviewRepository() *MemoryReviewRepository {
	return &MemoryReviewRepository{reviews: make(map[string]*models.ReviewRecord)}
}

func cloneReview(r *models.ReviewRecord) *models.ReviewRecord {
	c := *r
	c.KeyThemes = append([]string{}, r.KeyThemes...)
	return &c
}

// Create stores a new review and assigns its id
func (m *MemoryReviewRepository) Create(_ context.Context, review *models.ReviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reviews[review.ReportID]; ok {
		return ErrReviewExists
	}

	m.nextID++
	review.ID = m.nextID
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	review.UpdatedAt = review.CreatedAt
	m.reviews[review.ReportID] = cloneReview(review)
	return nil
}

// GetByReportID returns a copy of the stored review
func (m *MemoryReviewRepository) GetByReportID(_ context.Context, reportID string) (*models.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[reportID]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return cloneReview(review), nil
}

// ListByStatus returns reviews in status, newest first
func (m *MemoryReviewRepository) ListByStatus(_ context.Context, status models.ReviewStatus, limit int) ([]models.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ReviewRecord
	for _, r := range m.reviews {
		if r.Status == status {
			out = append(out, *cloneReview(r))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ApplyDecision stamps a decision on a pending review
func (m *MemoryReviewRepository) ApplyDecision(_ context.Context, reportID string, d ReviewDecision) (*models.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[reportID]
	if !ok {
		return nil, ErrReviewNotFound
	}
	if review.Status != models.ReviewStatusPending {
		return nil, ErrReviewNotPending
	}

	reviewerID := d.ReviewerID
	decision := d.Decision
	notes := d.Notes
	reviewedAt := d.ReviewedAt

	review.Status = d.Status
	review.ReviewerID = &reviewerID
	review.ReviewerDecision = &decision
	review.ReviewerNotes = &notes
	review.ReviewedAt = &reviewedAt
	review.UpdatedAt = reviewedAt

	return cloneReview(review), nil
}

// MarkDelivered stamps delivery details on an approved, undelivered review
func (m *MemoryReviewRepository) MarkDelivered(_ context.Context, reportID, method string, at time.Time) (*models.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[reportID]
	if !ok {
		return nil, ErrReviewNotFound
	}
	if review.Status != models.ReviewStatusApproved || review.DeliveredAt != nil {
		return nil, ErrReviewNotDeliverable
	}

	review.DeliveredAt = &at
	review.DeliveryMethod = &method
	review.UpdatedAt = at

	return cloneReview(review), nil
}

// Stats aggregates review counts by status
func (m *MemoryReviewRepository) Stats(_ context.Context) (models.ReviewStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats models.ReviewStats
	for _, r := range m.reviews {
		switch r.Status {
		case models.ReviewStatusPending:
			stats.Pending++
		case models.ReviewStatusApproved:
			stats.Approved++
			if r.ReviewerID == nil {
				stats.AutoApproved++
			}
		case models.ReviewStatusRejected:
			stats.Rejected++
		case models.ReviewStatusRevisionRequested:
			stats.RevisionRequested++
		}
	}

	stats.ComputeRate()
	return stats, nil
}
