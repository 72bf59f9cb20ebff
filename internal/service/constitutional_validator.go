package service

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"narrative-safety/internal/metrics"
	"narrative-safety/internal/models"
	"narrative-safety/internal/principles"
)

const (
	// ReceiptTimestampLayout is the UTC layout stamped on receipts and hashed into their ids
	ReceiptTimestampLayout = "2006-01-02T15:04:05.000000"

	receiptIDPrefix      = "CONST_"
	receiptPrefixRunes   = 100
	receiptIDHexChars    = 12
	ContentTypeSynthesis = "story_synthesis"
	ContentTypeAdvice    = "recommendation"
)

// ReceiptSigner produces a detached signature over a canonical receipt body
type ReceiptSigner interface {
	Sign(ctx context.Context, payload []byte) (signature string, keyID string, err error)
}

// ConstitutionalValidator runs every principle against content and records a receipt
type ConstitutionalValidator struct {
	log     ReceiptLog
	signer  ReceiptSigner
	metrics *metrics.Pipeline
	now     func() time.Time
}

// ValidatorOption configures a ConstitutionalValidator
type ValidatorOption func(*ConstitutionalValidator)

// WithReceiptSigner signs every receipt before it is logged
func WithReceiptSigner(s ReceiptSigner) ValidatorOption {
	return func(v *ConstitutionalValidator) { v.signer = s }
}

// WithValidatorMetrics records validation counters
func WithValidatorMetrics(m *metrics.Pipeline) ValidatorOption {
	return func(v *ConstitutionalValidator) { v.metrics = m }
}

// WithValidatorClock overrides the time source used for receipt timestamps
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *ConstitutionalValidator) { v.now = now }
}

// NewConstitutionalValidator creates a validator writing to log
func NewConstitutionalValidator(log ReceiptLog, opts ...ValidatorOption) *ConstitutionalValidator {
	v := &ConstitutionalValidator{
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ReceiptID derives the receipt identifier from the first 100 characters
// of content and the receipt timestamp.
func ReceiptID(content, timestamp string) string {
	prefix := content
	if runes := []rune(content); len(runes) > receiptPrefixRunes {
		prefix = string(runes[:receiptPrefixRunes])
	}
	sum := md5.Sum([]byte(prefix + timestamp))
	return receiptIDPrefix + strings.ToUpper(hex.EncodeToString(sum[:]))[:receiptIDHexChars]
}

// ContentHash returns the hex SHA-256 digest of content
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Validate checks content against all principles and appends the resulting receipt.
// A failing principle is a normal outcome; the receipt is returned even when logging fails.
func (v *ConstitutionalValidator) Validate(ctx context.Context, content, contentType string, meta map[string]any) *models.Receipt {
	timestamp := v.now().UTC().Format(ReceiptTimestampLayout)

	receipt := &models.Receipt{
		ReceiptID:   ReceiptID(content, timestamp),
		Timestamp:   timestamp,
		ContentType: contentType,
		ContentHash: ContentHash(content),
		Harmonies:   []models.PrincipleResult{},
		Violations:  []models.PrincipleResult{},
		Context:     meta,
	}
	if receipt.Context == nil {
		receipt.Context = map[string]any{}
	}

	var violated []string
	for _, kind := range principles.All() {
		outcome := kind.Check(content)
		result := models.PrincipleResult{
			Principle:   kind.Name(),
			Explanation: outcome.Explanation,
		}
		if outcome.Passed {
			result.Status = models.PrincipleHarmony
			receipt.Harmonies = append(receipt.Harmonies, result)
			continue
		}
		result.Status = models.PrincipleViolation
		receipt.Violations = append(receipt.Violations, result)
		violated = append(violated, kind.Name())
	}

	if len(violated) == 0 {
		receipt.ValidationResult = models.ValidationPassed
		receipt.Summary = fmt.Sprintf("Constitutional validation PASSED. All %d principles in harmony.", len(receipt.Harmonies))
	} else {
		receipt.ValidationResult = models.ValidationFailed
		receipt.Summary = fmt.Sprintf("Constitutional validation FAILED. Violations: %s", strings.Join(violated, ", "))
	}

	v.sign(ctx, receipt)

	if err := v.log.Append(ctx, receipt); err != nil {
		slog.Error("Failed to append constitutional receipt", "receipt_id", receipt.ReceiptID, "error", err)
		v.metrics.ReceiptLogError()
	}
	v.metrics.ObserveValidation(string(receipt.ValidationResult), contentType, violated)

	if receipt.ValidationResult == models.ValidationFailed {
		slog.Warn("Constitutional validation failed",
			"receipt_id", receipt.ReceiptID,
			"content_type", contentType,
			"violations", violated,
		)
	}

	return receipt
}

// CanonicalReceiptBody is the byte form that receipt signatures cover
func CanonicalReceiptBody(r *models.Receipt) ([]byte, error) {
	unsigned := *r
	unsigned.Signature = ""
	unsigned.KeyID = ""
	return json.Marshal(unsigned)
}

func (v *ConstitutionalValidator) sign(ctx context.Context, receipt *models.Receipt) {
	if v.signer == nil {
		return
	}
	body, err := CanonicalReceiptBody(receipt)
	if err != nil {
		slog.Error("Failed to encode receipt for signing", "receipt_id", receipt.ReceiptID, "error", err)
		return
	}
	sig, keyID, err := v.signer.Sign(ctx, body)
	if err != nil {
		slog.Error("Failed to sign receipt", "receipt_id", receipt.ReceiptID, "error", err)
		return
	}
	receipt.Signature = sig
	receipt.KeyID = keyID
}

// ValidateStorySynthesis validates a narrative synthesis built from user fragments
func (v *ConstitutionalValidator) ValidateStorySynthesis(ctx context.Context, synthesis string, fragments []models.Fragment) *models.Receipt {
	return v.Validate(ctx, synthesis, ContentTypeSynthesis, map[string]any{
		"fragment_count":   len(fragments),
		"synthesis_length": len(synthesis),
		"validation_type":  ContentTypeSynthesis,
	})
}

// ValidateRecommendation validates a single coaching recommendation
func (v *ConstitutionalValidator) ValidateRecommendation(ctx context.Context, recommendation string, userContext map[string]any) *models.Receipt {
	if userContext == nil {
		userContext = map[string]any{}
	}
	return v.Validate(ctx, recommendation, ContentTypeAdvice, map[string]any{
		"user_context":    userContext,
		"validation_type": ContentTypeAdvice,
	})
}

// AuditTrail returns logged receipts in append order, optionally filtered by content type
func (v *ConstitutionalValidator) AuditTrail(ctx context.Context, contentType string) ([]models.Receipt, error) {
	receipts, err := v.log.List(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}
