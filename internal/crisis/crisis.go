// Package crisis decides whether an utterance indicates an acute safety
// crisis. Two interchangeable signal sources sit behind one interface:
// an AI-assisted detector (remote service or local model) and the
// pattern scorer in internal/risk. The orchestrator tries the AI path
// first and falls back to patterns on any failure, so a verdict is
// always produced even when the AI path is down.
package crisis

import "context"

// Severity grades a crisis verdict.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	SeveritySevere Severity = "severe"
)

// RiskLevel is the four-bucket operational risk grading.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Result is the crisis verdict shape shared with external detectors.
type Result struct {
	IsCrisis             bool      `json:"is_crisis"`
	Confidence           float64   `json:"confidence"`
	Category             string    `json:"category"`
	Severity             Severity  `json:"severity"`
	RecommendedAction    string    `json:"recommended_action"`
	RequiresIntervention bool      `json:"requires_intervention"`
	RiskLevel            RiskLevel `json:"risk_level"`
}

// Options tunes a detection call per user.
type Options struct {
	SensitivityLevel string
	UserID           string
}

// Detector is the polymorphic crisis source. Implementations may
// reject or time out; callers must treat any error as "service
// unavailable" and recover locally.
type Detector interface {
	Detect(ctx context.Context, text string, opts Options) (*Result, error)
}

// IsCritical reports whether a verdict must bypass all other context
// scoring and be returned immediately. Evaluated before any ranking.
func IsCritical(r *Result) bool {
	if r == nil {
		return false
	}
	return r.Confidence > 0.8 ||
		r.Severity == SeveritySevere ||
		r.RequiresIntervention ||
		r.RiskLevel == RiskLevelCritical
}

func validSeverity(s Severity) bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeveritySevere:
		return true
	}
	return false
}

func validRiskLevel(l RiskLevel) bool {
	switch l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}
