// Package archive writes exported constitutional receipts to durable storage.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"narrative-safety/internal/models"
)

// Sink stores one export document under a name and reports where it went
type Sink interface {
	Name() string
	Write(ctx context.Context, name string, data []byte) (location string, err error)
}

// FileName returns the export document name for t
func FileName(t time.Time) string {
	return fmt.Sprintf("constitutional_receipts_%s.json", t.Format("20060102_150405"))
}

// Encode renders an export as indented JSON
func Encode(export models.ReceiptExport) ([]byte, error) {
	if export.Receipts == nil {
		export.Receipts = []models.Receipt{}
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt export: %w", err)
	}
	return data, nil
}
