package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Pipeline {
	t.Helper()
	return New(prometheus.NewRegistry())
}

func TestObserveValidation(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveValidation("FAILED", "recommendation", []string{"Ahimsa", "Satya"})
	m.ObserveValidation("PASSED", "recommendation", nil)

	if got := testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("FAILED", "recommendation")); got != 1 {
		t.Errorf("failed validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PrincipleViolationsTotal.WithLabelValues("Satya")); got != 1 {
		t.Errorf("Satya violations = %v, want 1", got)
	}
}

func TestObserveJudge(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveJudge(2*time.Second, false, true)
	m.ObserveJudge(time.Second, true, false)

	if got := testutil.ToFloat64(m.JudgeCallsTotal.WithLabelValues("fallback")); got != 1 {
		t.Errorf("fallback calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JudgeInconsistentTotal); got != 1 {
		t.Errorf("inconsistent verdicts = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.JudgeDurationSeconds); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestObserveExportAndAlert(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveExport("file", nil)
	m.ObserveExport("gcs", errors.New("bucket missing"))
	m.ObserveAlert("dangerous_report", nil)

	if got := testutil.ToFloat64(m.ReceiptExportsTotal.WithLabelValues("gcs", "error")); got != 1 {
		t.Errorf("gcs errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues("dangerous_report", "sent")); got != 1 {
		t.Errorf("alerts sent = %v, want 1", got)
	}
}

func TestNilPipelineIsNoop(t *testing.T) {
	var m *Pipeline
	m.ObserveValidation("PASSED", "x", nil)
	m.ObserveJudge(time.Second, true, false)
	m.ObserveSubmission("SAFE", "approved")
	m.ObserveDecision("approve")
	m.ObserveExport("file", nil)
	m.ReceiptLogError()
	m.ObserveAlert("x", nil)
}
