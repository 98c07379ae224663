package analytics

import (
	"math"
	"strconv"
	"strings"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// Compliance scores the current alert/policy state against three
// frameworks (spec.md §4.8). The SOC2 "Shadow AI monitoring" check uses
// spec.md's own stated example threshold (fail if >10 Shadow AI alerts
// and no enabled block rule); the remaining checks and their thresholds
// are carried over from original_source's get_compliance() since
// spec.md does not give closed-form thresholds for them (DESIGN.md open
// question resolution).
func Compliance(alerts []model.Alert, rules []model.PolicyRule) ComplianceResponse {
	total := len(alerts)
	shadowAI, highSev, dlpRisk := 0, 0, 0
	for _, a := range alerts {
		desc := strings.ToLower(a.Description)
		if strings.Contains(desc, "shadow ai") || strings.Contains(desc, "shadow_ai") {
			shadowAI++
		}
		if a.Severity == model.SeverityHigh {
			highSev++
		}
		if strings.Contains(desc, "pii") || strings.Contains(desc, "data leak") || strings.Contains(desc, "exfiltration") || strings.Contains(desc, "api key") {
			dlpRisk++
		}
	}

	blockedRules := 0
	hasEnabledBlockRule := false
	for _, r := range rules {
		if r.Enabled && r.Action == model.ActionBlock {
			blockedRules++
			hasEnabledBlockRule = true
		}
	}

	soc2ShadowStatus := ComplianceStatusPass
	if shadowAI > 10 && !hasEnabledBlockRule {
		soc2ShadowStatus = ComplianceStatusFail
	} else if shadowAI > 0 {
		soc2ShadowStatus = ComplianceStatusWarn
	}

	frameworks := []ComplianceFramework{
		{
			ID: "soc2", Name: "SOC 2", Description: "Service Organization Control - data security and availability",
			Checks: []ComplianceCheck{
				{Name: "Shadow AI monitoring", Status: soc2ShadowStatus, Detail: strconv.Itoa(shadowAI) + " Shadow AI events detected"},
				{Name: "Data Loss Prevention", Status: thresholdStatus(dlpRisk, 0, 2), Detail: strconv.Itoa(dlpRisk) + " potential DLP incidents"},
				{Name: "Access Monitoring", Status: passIf(total > 0), Detail: strconv.Itoa(total) + " events captured"},
				{Name: "Policy Enforcement", Status: countStatus(blockedRules, 1, 2), Detail: strconv.Itoa(blockedRules) + " blocking rules active"},
			},
		},
		{
			ID: "gdpr", Name: "GDPR", Description: "General Data Protection Regulation - EU personal data privacy",
			Checks: []ComplianceCheck{
				{Name: "PII Protection", Status: thresholdStatus(dlpRisk, 0, 1), Detail: strconv.Itoa(dlpRisk) + " PII exposure risks"},
				{Name: "Data Processing Records", Status: ComplianceStatusPass, Detail: "alert logging active"},
				{Name: "Right to Erasure Controls", Status: ComplianceStatusWarn, Detail: "manual review recommended"},
				{Name: "Cross-border Transfer", Status: thresholdStatus(shadowAI, 0, 2), Detail: strconv.Itoa(shadowAI) + " transfers to external AI services"},
			},
		},
		{
			ID: "hipaa", Name: "HIPAA", Description: "Health Insurance Portability and Accountability - protected health info",
			Checks: []ComplianceCheck{
				{Name: "PHI Safeguards", Status: thresholdStatus(highSev, 0, 3), Detail: strconv.Itoa(highSev) + " high-severity events"},
				{Name: "Access Controls", Status: passIf(blockedRules > 0), Detail: strconv.Itoa(blockedRules) + " access control policies"},
				{Name: "Audit Trail", Status: ComplianceStatusPass, Detail: "full event logging enabled"},
				{Name: "Breach Notification", Status: passIf(total > 0), Detail: "real-time alerting active"},
			},
		},
	}

	for i := range frameworks {
		scoreFramework(&frameworks[i])
	}

	overall := 0.0
	for _, f := range frameworks {
		overall += f.Score
	}
	overall = math.Round(overall / float64(len(frameworks)))

	violations := 0
	totalChecks := 0
	for _, f := range frameworks {
		violations += f.FailCount
		totalChecks += len(f.Checks)
	}

	return ComplianceResponse{Frameworks: frameworks, OverallScore: overall, TotalChecks: totalChecks, Violations: violations}
}

func scoreFramework(f *ComplianceFramework) {
	score := 0
	for _, c := range f.Checks {
		switch c.Status {
		case ComplianceStatusPass:
			score += 100
			f.PassCount++
		case ComplianceStatusWarn:
			score += 60
			f.WarnCount++
		case ComplianceStatusFail:
			f.FailCount++
		}
	}
	if len(f.Checks) > 0 {
		f.Score = math.Round(float64(score) / float64(len(f.Checks)))
	} else {
		f.Score = 100
	}
}

// thresholdStatus fails above failAbove, warns above warnAbove, else passes.
func thresholdStatus(n, warnAbove, failAbove int) ComplianceStatus {
	switch {
	case n > failAbove:
		return ComplianceStatusFail
	case n > warnAbove:
		return ComplianceStatusWarn
	default:
		return ComplianceStatusPass
	}
}

// countStatus is thresholdStatus inverted: passes at or above passAt,
// warns above zero, else fails — for "more is better" counters like
// active blocking rules.
func countStatus(n, warnAbove, passAt int) ComplianceStatus {
	switch {
	case n >= passAt:
		return ComplianceStatusPass
	case n > warnAbove-1:
		return ComplianceStatusWarn
	default:
		return ComplianceStatusFail
	}
}

func passIf(ok bool) ComplianceStatus {
	if ok {
		return ComplianceStatusPass
	}
	return ComplianceStatusWarn
}
