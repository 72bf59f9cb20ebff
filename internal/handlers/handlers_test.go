package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"narrative-safety/internal/archive"
	"narrative-safety/internal/handlers"
	"narrative-safety/internal/middleware"
	"narrative-safety/internal/models"
	"narrative-safety/internal/repository"
	"narrative-safety/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedScanner struct {
	verdict models.RiskVerdict
}

func (s fixedScanner) Scan(context.Context, string, models.JourneyMode, []models.Fragment, map[string]any) models.RiskVerdict {
	return s.verdict
}

var (
	safe    = models.RiskVerdict{RiskLevel: models.RiskSafe, AutoSafeDelivery: true}
	caution = models.RiskVerdict{
		RiskLevel:           models.RiskCaution,
		RequiresHumanReview: true,
		FlaggedSections:     []models.FlaggedSection{{Quote: "fast for two days", Severity: models.SeverityMedium}},
	}
)

type app struct {
	reports  *handlers.ReportHandler
	reviews  *handlers.ReviewHandler
	receipts *handlers.ReceiptHandler
	queue    *service.ReviewQueueService
}

func newApp(t *testing.T, verdict models.RiskVerdict, sinks ...archive.Sink) *app {
	t.Helper()
	log := service.NewMemoryReceiptLog()
	validator := service.NewConstitutionalValidator(log)
	queue := service.NewReviewQueueService(repository.NewMemoryReviewRepository(), fixedScanner{verdict}, nil, nil)
	pipeline := service.NewReportPipeline(validator, queue)

	var exporter *service.ReceiptExportService
	if len(sinks) > 0 {
		exporter = service.NewReceiptExportService(log, sinks, nil)
	}

	return &app{
		reports:  handlers.NewReportHandler(pipeline),
		reviews:  handlers.NewReviewHandler(queue, pipeline, 0),
		receipts: handlers.NewReceiptHandler(validator, exporter),
		queue:    queue,
	}
}

func asUser(r *http.Request, id uint, roles ...string) *http.Request {
	return r.WithContext(middleware.WithPrincipal(r.Context(), models.Principal{UserID: id, Roles: roles}))
}

func submit(t *testing.T, a *app, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body)), 42, "user")
	rec := httptest.NewRecorder()
	a.reports.SubmitReport(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

const validReport = `{"session_id":"sess-1","report_content":"<p>Keep walking after dinner.</p>","fragments":[{"text":"I walk daily"}]}`

func TestSubmitReportDeliversSafe(t *testing.T) {
	a := newApp(t, safe)

	rec := submit(t, a, validReport)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.PipelineResult
	decodeBody(t, rec, &result)
	assert.Equal(t, service.PipelineStatusDelivered, result.Status)
	assert.Equal(t, service.DeliveryMethodDashboard, result.DeliveryMethod)
	assert.True(t, strings.HasPrefix(result.ReviewID, "RPT_"))
}

func TestSubmitReportQueuesCaution(t *testing.T) {
	a := newApp(t, caution)

	rec := submit(t, a, validReport)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var result service.PipelineResult
	decodeBody(t, rec, &result)
	assert.Equal(t, service.PipelineStatusPendingReview, result.Status)
	assert.Equal(t, "24 hours", result.EstimatedDelivery)
}

func TestSubmitReportValidation(t *testing.T) {
	a := newApp(t, safe)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"session_id":`, handlers.ErrMsgInvalidRequestBody},
		{"trailing data", validReport + `{}`, handlers.ErrMsgInvalidRequestBody},
		{"missing session", `{"report_content":"text"}`, "session_id is required"},
		{"blank session", `{"session_id":"  ","report_content":"text"}`, "session_id is required"},
		{"missing content", `{"session_id":"s"}`, "report_content is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := submit(t, a, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestSubmitReportIgnoresClientMode(t *testing.T) {
	a := newApp(t, caution)
	body := `{"session_id":"sess-2","report_content":"<p>Keep going.</p>","mode":"preventive","fragments":[{"text":"my insulin doses changed"}]}`

	rec := submit(t, a, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var result service.PipelineResult
	decodeBody(t, rec, &result)
	review, err := a.queue.GetReview(context.Background(), result.ReviewID)
	require.NoError(t, err)
	assert.Equal(t, models.JourneyModeMedical, review.JourneyMode)
}

func TestSubmitReportRequiresPrincipal(t *testing.T) {
	a := newApp(t, safe)
	rec := httptest.NewRecorder()
	a.reports.SubmitReport(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(validReport)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSubmissionBypassesReview(t *testing.T) {
	a := newApp(t, caution)
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(validReport)), 1, "admin")
	rec := httptest.NewRecorder()
	a.reports.SubmitReport(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.PipelineResult
	decodeBody(t, rec, &result)
	review, err := a.queue.GetReview(context.Background(), result.ReviewID)
	require.NoError(t, err)
	assert.True(t, review.AdminBypass)
}

func pendingReportID(t *testing.T, a *app) string {
	t.Helper()
	rec := submit(t, a, validReport)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var result service.PipelineResult
	decodeBody(t, rec, &result)
	return result.ReviewID
}

func decide(a *app, reportID, body string) *httptest.ResponseRecorder {
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/admin/reviews/"+reportID+"/decision", strings.NewReader(body)), 7, "reviewer")
	req.SetPathValue("id", reportID)
	rec := httptest.NewRecorder()
	a.reviews.Decide(rec, req)
	return rec
}

func TestDecideStatusMapping(t *testing.T) {
	a := newApp(t, caution)
	id := pendingReportID(t, a)

	rec := decide(a, "RPT_missing", `{"decision":"approve"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = decide(a, "RPT_missing", `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = decide(a, id, `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = decide(a, id, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = decide(a, id, `{"decision":"approve","notes":"fine"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var review models.ReviewRecord
	decodeBody(t, rec, &review)
	assert.Equal(t, models.ReviewStatusApproved, review.Status)
	require.NotNil(t, review.ReviewerID)
	assert.Equal(t, uint(7), *review.ReviewerID)
	assert.NotNil(t, review.DeliveredAt)

	rec = decide(a, id, `{"decision":"reject"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = decide(a, id, `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListPendingAndGetReview(t *testing.T) {
	a := newApp(t, caution)
	first := pendingReportID(t, a)
	pendingReportID(t, a)

	rec := httptest.NewRecorder()
	a.reviews.ListPending(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews/pending?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw []map[string]any
	decodeBody(t, rec, &raw)
	require.Len(t, raw, 1)
	assert.NotContains(t, raw[0], "report_content")
	assert.NotContains(t, raw[0], "user_id")
	assert.NotContains(t, raw[0], "session_id")

	rec = httptest.NewRecorder()
	a.reviews.ListPending(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews/pending?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews/"+first, nil)
	req.SetPathValue("id", first)
	rec = httptest.NewRecorder()
	a.reviews.GetReview(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var review models.ReviewRecord
	decodeBody(t, rec, &review)
	assert.Equal(t, "sess-1", review.SessionID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews/nope", nil)
	req.SetPathValue("id", "nope")
	rec = httptest.NewRecorder()
	a.reviews.GetReview(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPendingEmptyIsArray(t *testing.T) {
	a := newApp(t, safe)
	rec := httptest.NewRecorder()
	a.reviews.ListPending(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestStats(t *testing.T) {
	a := newApp(t, caution)
	id := pendingReportID(t, a)
	pendingReportID(t, a)
	require.Equal(t, http.StatusOK, decide(a, id, `{"decision":"reject"}`).Code)

	rec := httptest.NewRecorder()
	a.reviews.Stats(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.ReviewStats
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Rejected)
}

type memSink struct {
	err   error
	files map[string][]byte
}

func (s *memSink) Name() string { return "memory" }

func (s *memSink) Write(_ context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[name] = data
	return "mem://" + name, nil
}

func TestReceiptsListAndExport(t *testing.T) {
	sink := &memSink{}
	a := newApp(t, safe, sink)
	submit(t, a, validReport)
	submit(t, a, validReport)

	rec := httptest.NewRecorder()
	a.receipts.ListReceipts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/receipts?content_type=story_synthesis", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var receipts []models.Receipt
	decodeBody(t, rec, &receipts)
	assert.Len(t, receipts, 2)

	rec = httptest.NewRecorder()
	a.receipts.ExportReceipts(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/receipts/export?reset=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var result service.ExportResult
	decodeBody(t, rec, &result)
	assert.Equal(t, 2, result.Count)
	assert.Len(t, sink.files, 1)

	rec = httptest.NewRecorder()
	a.receipts.ListReceipts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/receipts", nil))
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = httptest.NewRecorder()
	a.receipts.ExportReceipts(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/receipts/export?reset=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportWithoutSinks(t *testing.T) {
	a := newApp(t, safe)
	rec := httptest.NewRecorder()
	a.receipts.ExportReceipts(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportSinkFailure(t *testing.T) {
	a := newApp(t, safe, &memSink{err: errors.New("bucket gone")})
	submit(t, a, validReport)

	rec := httptest.NewRecorder()
	a.receipts.ExportReceipts(rec, httptest.NewRequest(http.MethodPost, "/?reset=true", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuditLogs(t *testing.T) {
	repo := repository.NewMemoryAuditRepository()
	uid := uint(5)
	require.NoError(t, repo.Create(context.Background(), &models.AuditLog{UserID: &uid, Action: handlers.AuditActionReviewDecide, Resource: "reviews/RPT_1"}))
	require.NoError(t, repo.Create(context.Background(), &models.AuditLog{Action: handlers.AuditActionReportSubmit, Resource: "reports"}))

	h := handlers.NewAuditHandler(repo)

	rec := httptest.NewRecorder()
	h.ListAuditLogs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs?user_id=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Logs []models.AuditLog `json:"logs"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "reviews/RPT_1", body.Logs[0].Resource)

	rec = httptest.NewRecorder()
	h.ListAuditLogs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs?user_id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type downDB struct{}

func (downDB) HealthCheck(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.NewHealthHandler("1.0.0", nil).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handlers.NewHealthHandler("1.0.0", downDB{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
