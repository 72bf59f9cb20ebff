package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"narrative-safety/internal/llm"
	"narrative-safety/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	prompts []string
	params  []llm.GenerationParams
}

func (f *fakeLLM) Model() string { return "fake-judge" }

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, params)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

const safeVerdictJSON = `{
  "risk_level": "SAFE",
  "overall_assessment": "Supportive and within scope",
  "flagged_sections": [],
  "constitutional_violations": [],
  "requires_human_review": false,
  "auto_safe_delivery": true,
  "reviewer_guidance": "",
  "mode_specific_concerns": {"medical_regime": null, "preventive": null}
}`

const dangerousVerdictJSON = `{
  "risk_level": "DANGEROUS",
  "overall_assessment": "Advises stopping insulin",
  "flagged_sections": [
    {"quote": "stop taking insulin", "issue_type": "Medical harm", "severity": "CRITICAL",
     "rationale": "Direct harm", "suggested_revision": "Talk with your doctor"}
  ],
  "constitutional_violations": [
    {"principle": "Ahimsa", "violation_description": "Medication advice", "evidence_quote": "stop taking insulin"}
  ],
  "requires_human_review": true,
  "auto_safe_delivery": false,
  "reviewer_guidance": "Check medication statements",
  "mode_specific_concerns": {"medical_regime": "Insulin advice", "preventive": null}
}`

func assertFallback(t *testing.T, v models.RiskVerdict) {
	t.Helper()
	assert.Equal(t, models.RiskCaution, v.RiskLevel)
	assert.True(t, v.RequiresHumanReview)
	assert.False(t, v.AutoSafeDelivery)
	assert.NotEmpty(t, v.Error)
	assert.Empty(t, v.FlaggedSections)
	assert.NotNil(t, v.FlaggedSections)
}

func TestScanSafeVerdict(t *testing.T) {
	client := &fakeLLM{reply: safeVerdictJSON}
	judge := NewHarmJudge(client, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "<p>Nice work this week.</p>", models.JourneyModePreventive, nil, nil)

	assert.Equal(t, models.RiskSafe, v.RiskLevel)
	assert.True(t, v.AutoSafeDelivery)
	assert.False(t, v.RequiresHumanReview)
	assert.Equal(t, "fake-judge", v.DetectorModel)
	assert.Equal(t, models.JourneyModePreventive, v.SessionMode)
	assert.Equal(t, models.RiskSafe, v.LocallyDerivedRisk)
	require.NotNil(t, v.VerdictConsistent)
	assert.True(t, *v.VerdictConsistent)
	assert.NotEmpty(t, v.AnalysisTimestamp)

	require.Len(t, client.params, 1)
	assert.InDelta(t, 0.3, *client.params[0].Temperature, 0.0001)
	assert.Equal(t, 2000, *client.params[0].MaxTokens)
}

func TestScanDangerousVerdict(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{reply: "```json\n" + dangerousVerdictJSON + "\n```"}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "stop taking insulin", models.JourneyModeMedical, nil, nil)

	assert.Equal(t, models.RiskDangerous, v.RiskLevel)
	assert.True(t, v.RequiresHumanReview)
	assert.False(t, v.AutoSafeDelivery)
	require.Len(t, v.FlaggedSections, 1)
	assert.Equal(t, models.SeverityCritical, v.FlaggedSections[0].Severity)
	require.NotNil(t, v.ModeSpecificConcerns.MedicalRegime)
	assert.Equal(t, "Insulin advice", *v.ModeSpecificConcerns.MedicalRegime)
	assert.Nil(t, v.ModeSpecificConcerns.Preventive)
}

func TestScanMalformedOutputFallsBack(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{reply: "I think this report is mostly fine."}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assertFallback(t, v)
	assert.True(t, strings.HasPrefix(v.OverallAssessment, "Unable to parse LLM analysis - requires human review"))
	assert.Equal(t, "LLM analysis failed - manual review required", v.ReviewerGuidance)
}

func TestScanTruncatedJSONFallsBack(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{reply: `{"risk_level": "SAFE", "flagged_sections": [`}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assertFallback(t, v)
}

func TestScanUnknownRiskLevelFallsBack(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{reply: `{"risk_level": "FINE", "auto_safe_delivery": true}`}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assertFallback(t, v)
	assert.Contains(t, v.OverallAssessment, "FINE")
}

func TestScanTransportErrorFallsBack(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{err: errors.New("connection refused")}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModeMedical, nil, nil)

	assertFallback(t, v)
	assert.Equal(t, "Harm detection error: connection refused", v.OverallAssessment)
	assert.Equal(t, "Error during analysis - manual review required", v.ReviewerGuidance)
	assert.Equal(t, models.JourneyModeMedical, v.SessionMode)
}

func TestScanTimeoutFallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	judge := NewHarmJudge(&fakeLLM{block: true}, HarmJudgeConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assertFallback(t, v)
	assert.Contains(t, v.OverallAssessment, context.DeadlineExceeded.Error())
}

func TestScanDisabledJudgeFallsBack(t *testing.T) {
	judge := NewHarmJudge(nil, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assertFallback(t, v)
	assert.Equal(t, "disabled", v.DetectorModel)
}

func TestScanReconcilesOptimisticJudge(t *testing.T) {
	// Judge claims SAFE but flags two HIGH sections
	reply := `{
	  "risk_level": "SAFE",
	  "flagged_sections": [
	    {"quote": "a", "issue_type": "Scope", "severity": "HIGH", "rationale": "r", "suggested_revision": "s"},
	    {"quote": "b", "issue_type": "Scope", "severity": "high", "rationale": "r", "suggested_revision": "s"}
	  ],
	  "requires_human_review": false,
	  "auto_safe_delivery": true
	}`
	judge := NewHarmJudge(&fakeLLM{reply: reply}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assert.Equal(t, models.RiskDangerous, v.RiskLevel)
	assert.Equal(t, models.RiskDangerous, v.LocallyDerivedRisk)
	assert.False(t, v.AutoSafeDelivery)
	assert.True(t, v.RequiresHumanReview)
	require.NotNil(t, v.VerdictConsistent)
	assert.False(t, *v.VerdictConsistent)
}

func TestScanKeepsStricterJudge(t *testing.T) {
	reply := `{"risk_level": "CAUTION", "flagged_sections": [], "requires_human_review": true, "auto_safe_delivery": false}`
	judge := NewHarmJudge(&fakeLLM{reply: reply}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assert.Equal(t, models.RiskCaution, v.RiskLevel)
	assert.Equal(t, models.RiskSafe, v.LocallyDerivedRisk)
	assert.False(t, v.AutoSafeDelivery)
}

func TestScanSafeLevelButJudgeRequestsReview(t *testing.T) {
	reply := `{"risk_level": "SAFE", "flagged_sections": [], "requires_human_review": true, "auto_safe_delivery": true}`
	judge := NewHarmJudge(&fakeLLM{reply: reply}, HarmJudgeConfig{})

	v := judge.Scan(context.Background(), "report", models.JourneyModePreventive, nil, nil)

	assert.False(t, v.AutoSafeDelivery)
	assert.True(t, v.RequiresHumanReview)
}

func TestBuildPrompt(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{}, HarmJudgeConfig{ExcerptChars: 20})
	fragments := make([]models.Fragment, 8)
	for i := range fragments {
		fragments[i] = models.Fragment{Text: "fragment-" + string(rune('a'+i))}
	}

	prompt, err := judge.BuildPrompt("<h1>Title</h1><p>"+strings.Repeat("x", 100)+"</p>",
		models.JourneyModeMedical, fragments, map[string]any{"turn_count": 12, "phase": "closing"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Title\n\n"+strings.Repeat("x", 13)+"\n\n## USER CONTEXT")
	assert.Contains(t, prompt, "Journey Mode: medical")
	assert.Contains(t, prompt, "fragment-e")
	assert.NotContains(t, prompt, "fragment-f")
	assert.Contains(t, prompt, `Session Metadata: {"phase":"closing","turn_count":12}`)
	assert.Contains(t, prompt, "### 6. BIAS & FAIRNESS (Aparigraha)")
	assert.NotContains(t, prompt, "<h1>")
}

func TestBuildPromptWithoutFragments(t *testing.T) {
	judge := NewHarmJudge(&fakeLLM{}, HarmJudgeConfig{})

	prompt, err := judge.BuildPrompt("text", models.JourneyModePreventive, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Key User Statements: None")
	assert.Contains(t, prompt, "Session Metadata: {}")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "Here:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! {"a":{"b":2}} Hope that helps`, `{"a":{"b":2}}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.raw))
		})
	}
}

func TestDeriveRiskLevel(t *testing.T) {
	flag := func(s models.Severity) models.FlaggedSection { return models.FlaggedSection{Severity: s} }
	tests := []struct {
		name  string
		flags []models.FlaggedSection
		want  models.RiskLevel
	}{
		{"none", nil, models.RiskSafe},
		{"two low", []models.FlaggedSection{flag("LOW"), flag("LOW")}, models.RiskSafe},
		{"three low", []models.FlaggedSection{flag("LOW"), flag("LOW"), flag("LOW")}, models.RiskCaution},
		{"one medium", []models.FlaggedSection{flag("MEDIUM")}, models.RiskCaution},
		{"one high", []models.FlaggedSection{flag("HIGH")}, models.RiskCaution},
		{"two high", []models.FlaggedSection{flag("HIGH"), flag("HIGH")}, models.RiskDangerous},
		{"critical", []models.FlaggedSection{flag("LOW"), flag("CRITICAL")}, models.RiskDangerous},
		{"unknown severity", []models.FlaggedSection{flag("SEVERE")}, models.RiskCaution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveRiskLevel(tt.flags))
		})
	}
}
