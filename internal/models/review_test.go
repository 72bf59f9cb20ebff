package models

import (
	"errors"
	"testing"
)

func TestReviewStatusApply(t *testing.T) {
	tests := []struct {
		name     string
		from     ReviewStatus
		decision Decision
		want     ReviewStatus
		wantErr  error
	}{
		{"approve pending", ReviewStatusPending, DecisionApprove, ReviewStatusApproved, nil},
		{"reject pending", ReviewStatusPending, DecisionReject, ReviewStatusRejected, nil},
		{"revise pending", ReviewStatusPending, DecisionRevise, ReviewStatusRevisionRequested, nil},
		{"approve approved", ReviewStatusApproved, DecisionApprove, ReviewStatusApproved, ErrInvalidTransition},
		{"reject rejected", ReviewStatusRejected, DecisionReject, ReviewStatusRejected, ErrInvalidTransition},
		{"approve revision", ReviewStatusRevisionRequested, DecisionApprove, ReviewStatusRevisionRequested, ErrInvalidTransition},
		{"unknown decision", ReviewStatusPending, Decision("escalate"), ReviewStatusPending, ErrUnknownDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Apply(tt.decision)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Apply() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	for _, raw := range []string{"approve", "reject", "revise"} {
		if _, err := ParseDecision(raw); err != nil {
			t.Errorf("ParseDecision(%q) unexpected error: %v", raw, err)
		}
	}
	for _, raw := range []string{"", "APPROVE", "delete"} {
		if _, err := ParseDecision(raw); !errors.Is(err, ErrUnknownDecision) {
			t.Errorf("ParseDecision(%q) error = %v, want ErrUnknownDecision", raw, err)
		}
	}
}

func TestReviewStatsComputeRate(t *testing.T) {
	stats := ReviewStats{Pending: 2, Approved: 4, Rejected: 1, AutoApproved: 3}
	stats.ComputeRate()
	if stats.Total != 7 {
		t.Errorf("Total = %d, want 7", stats.Total)
	}
	if stats.AutoApprovalRate != 0.75 {
		t.Errorf("AutoApprovalRate = %v, want 0.75", stats.AutoApprovalRate)
	}

	empty := ReviewStats{}
	empty.ComputeRate()
	if empty.AutoApprovalRate != 0 {
		t.Errorf("AutoApprovalRate on empty stats = %v, want 0", empty.AutoApprovalRate)
	}
}

func TestRiskLevelStricter(t *testing.T) {
	if got := RiskSafe.Stricter(RiskCaution); got != RiskCaution {
		t.Errorf("SAFE.Stricter(CAUTION) = %s", got)
	}
	if got := RiskDangerous.Stricter(RiskSafe); got != RiskDangerous {
		t.Errorf("DANGEROUS.Stricter(SAFE) = %s", got)
	}
	if got := RiskCaution.Stricter(RiskCaution); got != RiskCaution {
		t.Errorf("CAUTION.Stricter(CAUTION) = %s", got)
	}
}
