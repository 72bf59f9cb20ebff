// Package metrics exposes Prometheus instrumentation for the safety pipeline.
//
// All recording methods are safe on a nil *Pipeline so components can run
// without metrics in tests and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "narrative_safety"

// Pipeline holds the counters and histograms recorded by the services
type Pipeline struct {
	// Labels: result (PASSED, FAILED), content_type
	ValidationsTotal *prometheus.CounterVec

	// Labels: principle
	PrincipleViolationsTotal *prometheus.CounterVec

	// Labels: outcome (ok, fallback)
	JudgeCallsTotal *prometheus.CounterVec

	// Labels: outcome (ok, fallback)
	JudgeDurationSeconds *prometheus.HistogramVec

	// Counts verdicts whose self-reported routing disagreed with their flags
	JudgeInconsistentTotal prometheus.Counter

	// Labels: risk_level, status
	SubmissionsTotal *prometheus.CounterVec

	// Labels: decision
	DecisionsTotal *prometheus.CounterVec

	// Labels: backend, outcome
	ReceiptExportsTotal *prometheus.CounterVec

	ReceiptLogErrorsTotal prometheus.Counter
	AlertsTotal           *prometheus.CounterVec
}

// New registers the pipeline metrics with reg
func New(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)

	return &Pipeline{
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "constitutional",
				Name:      "validations_total",
				Help:      "Constitutional validations by result and content type",
			},
			[]string{"result", "content_type"},
		),
		PrincipleViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "constitutional",
				Name:      "principle_violations_total",
				Help:      "Principle violations by principle",
			},
			[]string{"principle"},
		),
		JudgeCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "judge",
				Name:      "calls_total",
				Help:      "Harm judge scans by outcome",
			},
			[]string{"outcome"},
		),
		JudgeDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "judge",
				Name:      "duration_seconds",
				Help:      "Harm judge round-trip duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		JudgeInconsistentTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "judge",
				Name:      "inconsistent_verdicts_total",
				Help:      "Verdicts whose routing fields disagreed with their flagged sections",
			},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "review",
				Name:      "submissions_total",
				Help:      "Reports submitted for review by risk level and initial status",
			},
			[]string{"risk_level", "status"},
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "review",
				Name:      "decisions_total",
				Help:      "Human reviewer decisions",
			},
			[]string{"decision"},
		),
		ReceiptExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receipts",
				Name:      "exports_total",
				Help:      "Receipt archive exports by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		ReceiptLogErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receipts",
				Name:      "log_errors_total",
				Help:      "Receipts that could not be appended to the receipt log",
			},
		),
		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "sent_total",
				Help:      "Alerts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
}

func outcomeLabel(fallback bool) string {
	if fallback {
		return "fallback"
	}
	return "ok"
}

// ObserveValidation records a constitutional validation and its violated principles
func (p *Pipeline) ObserveValidation(result, contentType string, violated []string) {
	if p == nil {
		return
	}
	p.ValidationsTotal.WithLabelValues(result, contentType).Inc()
	for _, name := range violated {
		p.PrincipleViolationsTotal.WithLabelValues(name).Inc()
	}
}

// ObserveJudge records one harm judge scan
func (p *Pipeline) ObserveJudge(d time.Duration, fallback, consistent bool) {
	if p == nil {
		return
	}
	label := outcomeLabel(fallback)
	p.JudgeCallsTotal.WithLabelValues(label).Inc()
	p.JudgeDurationSeconds.WithLabelValues(label).Observe(d.Seconds())
	if !consistent {
		p.JudgeInconsistentTotal.Inc()
	}
}

// ObserveSubmission records the routing outcome of a new review
func (p *Pipeline) ObserveSubmission(riskLevel, status string) {
	if p == nil {
		return
	}
	p.SubmissionsTotal.WithLabelValues(riskLevel, status).Inc()
}

// ObserveDecision records a human reviewer decision
func (p *Pipeline) ObserveDecision(decision string) {
	if p == nil {
		return
	}
	p.DecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveExport records a receipt archive export
func (p *Pipeline) ObserveExport(backend string, err error) {
	if p == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.ReceiptExportsTotal.WithLabelValues(backend, outcome).Inc()
}

// ReceiptLogError records a failed receipt append
func (p *Pipeline) ReceiptLogError() {
	if p == nil {
		return
	}
	p.ReceiptLogErrorsTotal.Inc()
}

// ObserveAlert records an alert attempt
func (p *Pipeline) ObserveAlert(kind string, err error) {
	if p == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "error"
	}
	p.AlertsTotal.WithLabelValues(kind, outcome).Inc()
}
