package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"narrative-safety/internal/config"
	"narrative-safety/internal/models"
	"narrative-safety/internal/service"
)

// PendingLister returns the newest part of the review queue
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]models.ReviewRecord, error)
}

// DigestSender delivers the pending review summary
type DigestSender interface {
	SendPendingDigest(ctx context.Context, items []models.PendingReviewSummary) error
}

// ReceiptExporter writes the receipt log to the archive sinks
type ReceiptExporter interface {
	Export(ctx context.Context, opts service.ExportOptions) (*service.ExportResult, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	queue    PendingLister
	digest   DigestSender
	exporter ReceiptExporter
	config   *config.SchedulerConfig
	receipts *config.ReceiptsConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler. digest and exporter may be nil to
// disable the corresponding task.
func NewScheduler(
	queue PendingLister,
	digest DigestSender,
	exporter ReceiptExporter,
	cfg *config.SchedulerConfig,
	receipts *config.ReceiptsConfig,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queue:    queue,
		digest:   digest,
		exporter: exporter,
		config:   cfg,
		receipts: receipts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() error {
	digestOn := s.config.EnablePendingDigest && s.digest != nil
	exportOn := s.config.EnableReceiptExport && s.exporter != nil && s.receipts.ExportInterval > 0

	slog.Info("Starting scheduler",
		"pending_digest_enabled", digestOn,
		"receipt_export_enabled", exportOn)

	if digestOn {
		sched, err := ParseCron(s.config.PendingDigestCron)
		if err != nil {
			return fmt.Errorf("pending digest: %w", err)
		}
		s.run("pending_digest", sched.Next, s.sendPendingDigest)
	}

	if exportOn {
		interval := s.receipts.ExportInterval
		s.runInterval("receipt_export", interval, s.exportReceipts)
	}

	slog.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	s.cancel()
	s.wg.Wait()
}

// run executes task each time next() comes due
func (s *Scheduler) run(taskName string, next func(time.Time) time.Time, task func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			now := time.Now()
			at := next(now)
			slog.Info("Next task scheduled", "task", taskName, "next_run", at.Format("2006-01-02 15:04:05"))

			timer := time.NewTimer(at.Sub(now))
			select {
			case <-timer.C:
				slog.Info("Running scheduled task", "task", taskName)
				task(s.ctx)
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

// runInterval executes task immediately and then on every tick
func (s *Scheduler) runInterval(taskName string, interval time.Duration, task func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("Starting interval task", "task", taskName, "interval", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		task(s.ctx)
		for {
			select {
			case <-ticker.C:
				task(s.ctx)
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) sendPendingDigest(ctx context.Context) {
	pending, err := s.queue.ListPending(ctx, service.MaxPendingPageSize)
	if err != nil {
		slog.Error("Failed to list pending reviews", "error", err)
		return
	}
	if len(pending) == 0 {
		slog.Info("No pending reviews, digest skipped")
		return
	}

	items := make([]models.PendingReviewSummary, 0, len(pending))
	for i := range pending {
		items = append(items, pending[i].Summary())
	}

	if err := s.digest.SendPendingDigest(ctx, items); err != nil {
		slog.Error("Failed to send pending digest", "error", err)
		return
	}
	slog.Info("Pending digest sent", "items_count", len(items))
}

func (s *Scheduler) exportReceipts(ctx context.Context) {
	result, err := s.exporter.Export(ctx, service.ExportOptions{
		Reset:     s.receipts.ExportReset,
		SkipEmpty: true,
	})
	if err != nil {
		slog.Error("Scheduled receipt export failed", "error", err)
		return
	}
	if result.Skipped {
		slog.Debug("Receipt log empty, export skipped")
		return
	}
	slog.Info("Scheduled receipt export completed", "file", result.FileName, "count", result.Count)
}

// Schedule is a parsed five-field cron expression. Supported forms are
// "*/n * * * *", "m */n * * *", "m h * * *" and "m h * * d".
type Schedule struct {
	MinuteInterval int
	HourInterval   int
	Minute         int
	Hour           int
	Weekday        *time.Weekday
}

// ParseCron parses the subset of cron syntax the scheduler understands
func ParseCron(cronExpr string) (Schedule, error) {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return Schedule{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		return Schedule{MinuteInterval: interval}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return Schedule{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return Schedule{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		return Schedule{HourInterval: interval, Minute: minute}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return Schedule{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	sched := Schedule{Minute: minute, Hour: hour}
	if parts[4] != "*" {
		weekday, err := strconv.Atoi(parts[4])
		if err != nil || weekday < 0 || weekday > 6 {
			return Schedule{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
		}
		wd := time.Weekday(weekday)
		sched.Weekday = &wd
	}
	return sched, nil
}

// Next returns the first run time strictly after from
func (c Schedule) Next(from time.Time) time.Time {
	switch {
	case c.MinuteInterval > 0:
		next := from.Truncate(time.Minute).Add(time.Minute)
		for next.Minute()%c.MinuteInterval != 0 {
			next = next.Add(time.Minute)
		}
		return next
	case c.HourInterval > 0:
		next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), c.Minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.Add(time.Hour)
		}
		for next.Hour()%c.HourInterval != 0 {
			next = next.Add(time.Hour)
		}
		return next
	case c.Weekday != nil:
		next := time.Date(from.Year(), from.Month(), from.Day(), c.Hour, c.Minute, 0, 0, from.Location())
		daysUntil := int(*c.Weekday - from.Weekday())
		if daysUntil < 0 {
			daysUntil += 7
		}
		next = next.AddDate(0, 0, daysUntil)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default:
		next := time.Date(from.Year(), from.Month(), from.Day(), c.Hour, c.Minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}
