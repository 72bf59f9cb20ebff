package service

import "narrative-safety/internal/models"

// DeriveRiskLevel applies the judge's decision thresholds to its flagged sections.
// Any CRITICAL or at least two HIGH flags is DANGEROUS. A single HIGH, any MEDIUM
// or at least three LOW flags is CAUTION. Everything else is SAFE.
func DeriveRiskLevel(flags []models.FlaggedSection) models.RiskLevel {
	var critical, high, medium, low int
	for _, f := range flags {
		switch f.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		case models.SeverityMedium:
			medium++
		case models.SeverityLow:
			low++
		default:
			// Unknown severities count as MEDIUM so they never pass silently
			medium++
		}
	}

	switch {
	case critical > 0 || high >= 2:
		return models.RiskDangerous
	case high == 1 || medium > 0 || low >= 3:
		return models.RiskCaution
	default:
		return models.RiskSafe
	}
}

// reconcileVerdict recomputes routing from the flagged sections and keeps the stricter outcome.
// It never loosens what the judge reported.
func reconcileVerdict(v *models.RiskVerdict) (consistent bool) {
	derived := DeriveRiskLevel(v.FlaggedSections)
	v.LocallyDerivedRisk = derived

	judgeSafe := v.AutoSafeDelivery && !v.RequiresHumanReview
	consistent = v.RiskLevel == derived && judgeSafe == (v.RiskLevel == models.RiskSafe)

	v.RiskLevel = v.RiskLevel.Stricter(derived)
	v.AutoSafeDelivery = judgeSafe && v.RiskLevel == models.RiskSafe
	v.RequiresHumanReview = !v.AutoSafeDelivery
	v.VerdictConsistent = &consistent

	return consistent
}
