package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"narrative-safety/internal/config"
	"narrative-safety/internal/models"
	"narrative-safety/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		want    Schedule
		wantErr bool
	}{
		{expr: "*/15 * * * *", want: Schedule{MinuteInterval: 15}},
		{expr: "30 */6 * * *", want: Schedule{HourInterval: 6, Minute: 30}},
		{expr: "0 8 * * *", want: Schedule{Hour: 8}},
		{expr: "0 8 * *", wantErr: true},
		{expr: "*/0 * * * *", wantErr: true},
		{expr: "60 8 * * *", wantErr: true},
		{expr: "0 24 * * *", wantErr: true},
		{expr: "0 8 * * 7", wantErr: true},
		{expr: "x 8 * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	weekly, err := ParseCron("0 9 * * 1")
	require.NoError(t, err)
	require.NotNil(t, weekly.Weekday)
	assert.Equal(t, time.Monday, *weekly.Weekday)
}

func TestScheduleNext(t *testing.T) {
	// Wednesday
	from := time.Date(2025, 6, 4, 10, 7, 30, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/15 * * * *", time.Date(2025, 6, 4, 10, 15, 0, 0, time.UTC)},
		{"5 */4 * * *", time.Date(2025, 6, 4, 12, 5, 0, 0, time.UTC)},
		{"0 8 * * *", time.Date(2025, 6, 5, 8, 0, 0, 0, time.UTC)},
		{"30 10 * * *", time.Date(2025, 6, 4, 10, 30, 0, 0, time.UTC)},
		{"0 9 * * 1", time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)},
		{"0 9 * * 3", time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)},
		{"0 11 * * 3", time.Date(2025, 6, 4, 11, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sched, err := ParseCron(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sched.Next(from))
		})
	}
}

func TestScheduleNextIsStrictlyAfter(t *testing.T) {
	sched, err := ParseCron("0 8 * * *")
	require.NoError(t, err)
	at := time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, at.AddDate(0, 0, 1), sched.Next(at))
}

type fakeQueue struct {
	pending []models.ReviewRecord
	err     error
	limit   int
}

func (q *fakeQueue) ListPending(_ context.Context, limit int) ([]models.ReviewRecord, error) {
	q.limit = limit
	return q.pending, q.err
}

type fakeDigest struct {
	items []models.PendingReviewSummary
	calls int
}

func (d *fakeDigest) SendPendingDigest(_ context.Context, items []models.PendingReviewSummary) error {
	d.calls++
	d.items = items
	return nil
}

type fakeExporter struct {
	mu    sync.Mutex
	opts  []service.ExportOptions
	calls chan struct{}
}

func (e *fakeExporter) Export(_ context.Context, opts service.ExportOptions) (*service.ExportResult, error) {
	e.mu.Lock()
	e.opts = append(e.opts, opts)
	e.mu.Unlock()
	select {
	case e.calls <- struct{}{}:
	default:
	}
	return &service.ExportResult{Skipped: true}, nil
}

func TestSendPendingDigest(t *testing.T) {
	queue := &fakeQueue{pending: []models.ReviewRecord{
		{ReportID: "RPT_1", SessionID: "s1", ReportContent: "text", RiskLevel: models.RiskCaution},
		{ReportID: "RPT_2", SessionID: "s2", ReportContent: "text", RiskLevel: models.RiskDangerous},
	}}
	digest := &fakeDigest{}
	s := NewScheduler(queue, digest, nil, &config.SchedulerConfig{}, &config.ReceiptsConfig{})

	s.sendPendingDigest(context.Background())

	assert.Equal(t, service.MaxPendingPageSize, queue.limit)
	require.Len(t, digest.items, 2)
	assert.Equal(t, "RPT_2", digest.items[1].ReportID)
	assert.Equal(t, models.RiskDangerous, digest.items[1].RiskLevel)
}

func TestSendPendingDigestSkipsEmptyAndErrors(t *testing.T) {
	digest := &fakeDigest{}

	s := NewScheduler(&fakeQueue{}, digest, nil, &config.SchedulerConfig{}, &config.ReceiptsConfig{})
	s.sendPendingDigest(context.Background())

	s = NewScheduler(&fakeQueue{err: errors.New("db down")}, digest, nil, &config.SchedulerConfig{}, &config.ReceiptsConfig{})
	s.sendPendingDigest(context.Background())

	assert.Zero(t, digest.calls)
}

func TestStartRejectsBadCron(t *testing.T) {
	s := NewScheduler(&fakeQueue{}, &fakeDigest{}, nil,
		&config.SchedulerConfig{EnablePendingDigest: true, PendingDigestCron: "daily"},
		&config.ReceiptsConfig{})
	assert.Error(t, s.Start())
	s.Stop()
}

func TestStartRunsExportImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	exporter := &fakeExporter{calls: make(chan struct{}, 1)}
	s := NewScheduler(&fakeQueue{}, &fakeDigest{}, exporter,
		&config.SchedulerConfig{
			EnablePendingDigest: true,
			PendingDigestCron:   "0 8 * * *",
			EnableReceiptExport: true,
		},
		&config.ReceiptsConfig{ExportInterval: time.Hour, ExportReset: true})

	require.NoError(t, s.Start())

	select {
	case <-exporter.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("export did not run on start")
	}
	s.Stop()

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.NotEmpty(t, exporter.opts)
	assert.Equal(t, service.ExportOptions{Reset: true, SkipEmpty: true}, exporter.opts[0])
}
