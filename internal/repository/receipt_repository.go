package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"narrative-safety/internal/models"

	"github.com/lib/pq"
)

// ReceiptRepository persists constitutional receipts in PostgreSQL.
// Rows are write-once; a drain only stamps exported_at so the table
// stays a complete audit history while List and Len see the live log.
type ReceiptRepository struct {
	db *sql.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `
	seq, receipt_id, receipt_timestamp, content_type, content_hash, validation_result,
	harmonies, violations, summary, context, COALESCE(signature, ''), COALESCE(key_id, '')`

func scanReceipt(row rowScanner) (models.Receipt, error) {
	var (
		receipt    models.Receipt
		seq        int64
		harmonies  []byte
		violations []byte
		ctxJSON    []byte
	)

	err := row.Scan(
		&seq,
		&receipt.ReceiptID,
		&receipt.Timestamp,
		&receipt.ContentType,
		&receipt.ContentHash,
		&receipt.ValidationResult,
		&harmonies,
		&violations,
		&receipt.Summary,
		&ctxJSON,
		&receipt.Signature,
		&receipt.KeyID,
	)
	if err != nil {
		return receipt, err
	}

	if err := json.Unmarshal(harmonies, &receipt.Harmonies); err != nil {
		return receipt, fmt.Errorf("failed to decode harmonies: %w", err)
	}
	if err := json.Unmarshal(violations, &receipt.Violations); err != nil {
		return receipt, fmt.Errorf("failed to decode violations: %w", err)
	}
	if err := json.Unmarshal(ctxJSON, &receipt.Context); err != nil {
		return receipt, fmt.Errorf("failed to decode receipt context: %w", err)
	}

	return receipt, nil
}

// Append inserts a receipt at the end of the log
func (r *ReceiptRepository) Append(ctx context.Context, receipt *models.Receipt) error {
	harmonies, err := marshalResults(receipt.Harmonies)
	if err != nil {
		return err
	}
	violations, err := marshalResults(receipt.Violations)
	if err != nil {
		return err
	}
	receiptContext := []byte("{}")
	if receipt.Context != nil {
		if receiptContext, err = json.Marshal(receipt.Context); err != nil {
			return fmt.Errorf("failed to encode receipt context: %w", err)
		}
	}

	query := `
		INSERT INTO constitutional_receipts (
			receipt_id, receipt_timestamp, content_type, content_hash, validation_result,
			harmonies, violations, summary, context, signature, key_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''))
	`

	_, err = r.db.ExecContext(ctx, query,
		receipt.ReceiptID,
		receipt.Timestamp,
		receipt.ContentType,
		receipt.ContentHash,
		receipt.ValidationResult,
		harmonies,
		violations,
		receipt.Summary,
		receiptContext,
		receipt.Signature,
		receipt.KeyID,
	)
	if err != nil {
		return fmt.Errorf("failed to append receipt: %w", err)
	}

	return nil
}

func marshalResults(results []models.PrincipleResult) ([]byte, error) {
	if results == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode principle results: %w", err)
	}
	return b, nil
}

// List returns unexported receipts in append order, optionally filtered by content type
func (r *ReceiptRepository) List(ctx context.Context, contentType string) ([]models.Receipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM constitutional_receipts
		WHERE exported_at IS NULL AND ($1 = '' OR content_type = $1)
		ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	return collectReceipts(rows)
}

// Len returns the number of unexported receipts
func (r *ReceiptRepository) Len(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM constitutional_receipts WHERE exported_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count receipts: %w", err)
	}
	return n, nil
}

// Drain marks every unexported receipt as exported and returns them in append order
func (r *ReceiptRepository) Drain(ctx context.Context) ([]models.Receipt, error) {
	query := `
		WITH drained AS (
			UPDATE constitutional_receipts
			SET exported_at = CURRENT_TIMESTAMP
			WHERE exported_at IS NULL
			RETURNING *
		)
		SELECT ` + receiptColumns + ` FROM drained ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to drain receipts: %w", err)
	}
	defer rows.Close()

	return collectReceipts(rows)
}

func collectReceipts(rows *sql.Rows) ([]models.Receipt, error) {
	receipts := []models.Receipt{}
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return receipts, nil
}

// Restore clears the export mark on previously drained receipts
func (r *ReceiptRepository) Restore(ctx context.Context, receipts []models.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	ids := make([]string, len(receipts))
	for i, rc := range receipts {
		ids[i] = rc.ReceiptID
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE constitutional_receipts SET exported_at = NULL WHERE receipt_id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to restore receipts: %w", err)
	}
	return nil
}
