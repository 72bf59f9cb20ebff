package service

import (
	"context"
	"sync"

	"narrative-safety/internal/models"
)

// ReceiptLog is the append-only store behind the constitutional validator
type ReceiptLog interface {
	Append(ctx context.Context, receipt *models.Receipt) error
	// List returns receipts in append order; an empty contentType matches all
	List(ctx context.Context, contentType string) ([]models.Receipt, error)
	Len(ctx context.Context) (int, error)
	// Drain returns every receipt appended since the last drain and releases them
	Drain(ctx context.Context) ([]models.Receipt, error)
}

// MemoryReceiptLog keeps receipts in process memory
type MemoryReceiptLog struct {
	mu       sync.RWMutex
	receipts []models.Receipt
}

// NewMemoryReceiptLog creates an empty in-memory receipt log
func NewMemoryReceiptLog() *MemoryReceiptLog {
	return &MemoryReceiptLog{}
}

// Append adds a receipt to the end of the log
func (l *MemoryReceiptLog) Append(_ context.Context, receipt *models.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts = append(l.receipts, receipt.Clone())
	return nil
}

// List returns copies of the logged receipts
func (l *MemoryReceiptLog) List(_ context.Context, contentType string) ([]models.Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Receipt, 0, len(l.receipts))
	for i := range l.receipts {
		if contentType == "" || l.receipts[i].ContentType == contentType {
			out = append(out, l.receipts[i].Clone())
		}
	}
	return out, nil
}

// Len returns the number of receipts currently held
func (l *MemoryReceiptLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.receipts), nil
}

// Drain hands over all receipts and resets the log
func (l *MemoryReceiptLog) Drain(_ context.Context) ([]models.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.receipts
	l.receipts = nil
	if out == nil {
		out = []models.Receipt{}
	}
	return out, nil
}

// Restore puts drained receipts back at the head of the log
func (l *MemoryReceiptLog) Restore(_ context.Context, receipts []models.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	restored := make([]models.Receipt, 0, len(receipts)+len(l.receipts))
	for i := range receipts {
		restored = append(restored, receipts[i].Clone())
	}
	l.receipts = append(restored, l.receipts...)
	return nil
}
