package repository

import (
	"context"
	"sync"
	"time"

	"narrative-safety/internal/models"
)

// MemoryAuditRepository keeps audit entries in process. Entries are lost on
// restart; use it only where the review store is in memory too.
type MemoryAuditRepository struct {
	mu     sync.Mutex
	nextID uint
	logs   []models.AuditLog
}

// NewMemoryAuditRepository creates an empty in-memory audit log
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// Create appends an entry and assigns its id
func (m *MemoryAuditRepository) Create(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	log.ID = m.nextID
	log.CreatedAt = time.Now().UTC()
	m.logs = append(m.logs, *log)
	return nil
}

// List returns matching entries newest first
func (m *MemoryAuditRepository) List(_ context.Context, filter AuditFilter) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AuditLog
	skipped := 0
	for i := len(m.logs) - 1; i >= 0; i-- {
		log := m.logs[i]
		if filter.UserID != nil && (log.UserID == nil || *log.UserID != *filter.UserID) {
			continue
		}
		if filter.Action != "" && log.Action != filter.Action {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		out = append(out, log)
	}
	return out, nil
}
