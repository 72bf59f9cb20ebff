package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"narrative-safety/internal/archive"
	"narrative-safety/internal/metrics"
	"narrative-safety/internal/models"

	"golang.org/x/sync/errgroup"
)

// ErrNoArchiveSinks is returned when an export is requested without any destination
var ErrNoArchiveSinks = errors.New("no receipt archive configured")

type receiptRestorer interface {
	Restore(ctx context.Context, receipts []models.Receipt) error
}

// ExportOptions controls a single export run
type ExportOptions struct {
	// Reset drains the log so the next export only contains newer receipts
	Reset bool
	// SkipEmpty returns without writing anything when there are no receipts
	SkipEmpty bool
}

// ExportResult describes a finished export
type ExportResult struct {
	FileName  string            `json:"file_name"`
	Count     int               `json:"count"`
	Locations map[string]string `json:"locations"`
	Skipped   bool              `json:"skipped,omitempty"`
}

// ReceiptExportService archives the receipt log to every configured sink
type ReceiptExportService struct {
	log     ReceiptLog
	sinks   []archive.Sink
	metrics *metrics.Pipeline
	now     func() time.Time

	// serializes exports so two drains never interleave
	mu sync.Mutex
}

// NewReceiptExportService creates an export service
func NewReceiptExportService(log ReceiptLog, sinks []archive.Sink, m *metrics.Pipeline) *ReceiptExportService {
	return &ReceiptExportService{log: log, sinks: sinks, metrics: m, now: time.Now}
}

// Export writes the current receipts as one JSON document to all sinks concurrently.
// With Reset, drained receipts are put back when any sink fails.
func (s *ReceiptExportService) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	if len(s.sinks) == 0 {
		return nil, ErrNoArchiveSinks
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		receipts []models.Receipt
		err      error
	)
	if opts.Reset {
		receipts, err = s.log.Drain(ctx)
	} else {
		receipts, err = s.log.List(ctx, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt log: %w", err)
	}

	exportedAt := s.now().UTC()
	result := &ExportResult{
		FileName:  archive.FileName(exportedAt),
		Count:     len(receipts),
		Locations: make(map[string]string, len(s.sinks)),
	}
	if opts.SkipEmpty && len(receipts) == 0 {
		result.Skipped = true
		return result, nil
	}

	data, err := archive.Encode(models.ReceiptExport{
		ExportedAt: exportedAt,
		Count:      len(receipts),
		Receipts:   receipts,
	})
	if err != nil {
		s.restore(ctx, opts, receipts)
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range s.sinks {
		g.Go(func() error {
			location, err := sink.Write(gctx, result.FileName, data)
			s.metrics.ObserveExport(sink.Name(), err)
			if err != nil {
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			mu.Lock()
			result.Locations[sink.Name()] = location
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.restore(ctx, opts, receipts)
		return nil, fmt.Errorf("failed to export receipts: %w", err)
	}

	slog.Info("Constitutional receipts exported",
		"file", result.FileName,
		"count", result.Count,
		"reset", opts.Reset,
		"locations", result.Locations,
	)
	return result, nil
}

func (s *ReceiptExportService) restore(ctx context.Context, opts ExportOptions, receipts []models.Receipt) {
	if !opts.Reset || len(receipts) == 0 {
		return
	}
	r, ok := s.log.(receiptRestorer)
	if !ok {
		slog.Error("Drained receipts could not be restored after a failed export", "count", len(receipts))
		return
	}
	// The caller's context may already be cancelled
	if err := r.Restore(context.WithoutCancel(ctx), receipts); err != nil {
		slog.Error("Failed to restore drained receipts", "count", len(receipts), "error", err)
	}
}
