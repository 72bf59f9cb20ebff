package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"narrative-safety/internal/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilter narrows an audit log listing
type AuditFilter struct {
	UserID *uint
	Action string
	Limit  int
	Offset int
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (user_id, user_email, action, resource, details, ip_address, user_agent, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	log.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		query,
		log.UserID,
		log.UserEmail,
		log.Action,
		log.Resource,
		log.Details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.CreatedAt,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// List retrieves audit logs newest first
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error) {
	query := `
		SELECT id, user_id, user_email, action, resource, COALESCE(details, ''),
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), created_at
		FROM audit_logs
		WHERE ($1::BIGINT IS NULL OR user_id = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	var userID any
	if filter.UserID != nil {
		userID = int64(*filter.UserID)
	}

	rows, err := r.db.QueryContext(ctx, query, userID, filter.Action, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			log    models.AuditLog
			userID sql.NullInt64
			email  sql.NullString
		)
		if err := rows.Scan(
			&log.ID,
			&userID,
			&email,
			&log.Action,
			&log.Resource,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if userID.Valid {
			id := uint(userID.Int64)
			log.UserID = &id
		}
		if email.Valid {
			log.UserEmail = &email.String
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return logs, nil
}
