package models

import (
	"slices"
	"time"
)

// ValidationResult is the aggregate outcome of a constitutional validation
type ValidationResult string

const (
	ValidationPassed ValidationResult = "PASSED"
	ValidationFailed ValidationResult = "FAILED"
)

// PrincipleStatus marks a single principle outcome on a receipt
type PrincipleStatus string

const (
	PrincipleHarmony   PrincipleStatus = "harmony"
	PrincipleViolation PrincipleStatus = "violation"
)

// PrincipleResult records one principle's verdict on the validated content
type PrincipleResult struct {
	Principle   string          `json:"principle"`
	Status      PrincipleStatus `json:"status"`
	Explanation string          `json:"explanation"`
}

// Receipt is the immutable audit record of one validation run
type Receipt struct {
	ReceiptID        string            `json:"receipt_id" db:"receipt_id"`
	Timestamp        string            `json:"timestamp" db:"timestamp"`
	ContentType      string            `json:"content_type" db:"content_type"`
	ContentHash      string            `json:"content_hash" db:"content_hash"`
	ValidationResult ValidationResult  `json:"validation_result" db:"validation_result"`
	Harmonies        []PrincipleResult `json:"harmonies" db:"harmonies"`
	Violations       []PrincipleResult `json:"violations" db:"violations"`
	Summary          string            `json:"summary" db:"summary"`
	Context          map[string]any    `json:"context" db:"context"`
	Signature        string            `json:"signature,omitempty" db:"signature"`
	KeyID            string            `json:"key_id,omitempty" db:"key_id"`
}

// Passed reports whether every principle was in harmony
func (r *Receipt) Passed() bool {
	return r.ValidationResult == ValidationPassed
}

// Clone returns a copy of r that shares no slices or maps with it
func (r *Receipt) Clone() Receipt {
	c := *r
	c.Harmonies = slices.Clone(r.Harmonies)
	c.Violations = slices.Clone(r.Violations)
	if r.Context != nil {
		c.Context = cloneValue(r.Context).(map[string]any)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// ReceiptExport is the document written when the receipt log is archived
type ReceiptExport struct {
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Receipts   []Receipt `json:"receipts"`
}
