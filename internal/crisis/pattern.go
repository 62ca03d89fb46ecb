package crisis

import (
	"context"

	"github.com/sentira-ai/sentira/internal/risk"
)

// Recommended actions for pattern-derived verdicts.
const (
	ActionImmediateIntervention = "immediate-intervention"
	ActionEscalate              = "escalate"
	ActionMonitor               = "monitor"
)

// PatternDetector derives crisis verdicts from the static risk rule
// tables. It is the always-available fallback source: pure, local, and
// deterministic.
type PatternDetector struct {
	scorer *risk.Scorer

	// crisisThreshold is the overall score above which the verdict is
	// a crisis even without an immediate-action match.
	crisisThreshold float64
	// floorThreshold is the overall score at or below which no verdict
	// is surfaced at all, to avoid false-alarm noise downstream.
	floorThreshold float64
}

// NewPatternDetector builds the fallback detector over the shared rule
// tables.
func NewPatternDetector(cal risk.Calibration) *PatternDetector {
	return &PatternDetector{
		scorer:          risk.NewScorer(cal),
		crisisThreshold: 0.6,
		floorThreshold:  0.3,
	}
}

// Detect satisfies Detector. It never returns an error; a nil result
// means the risk signal was too weak to surface.
func (d *PatternDetector) Detect(_ context.Context, text string, _ Options) (*Result, error) {
	result, _ := d.Assess(text)
	return result, nil
}

// Assess scores the text and translates the risk assessment into the
// crisis verdict shape. The assessment is returned alongside so callers
// can reuse the matched evidence for audit indicators.
func (d *PatternDetector) Assess(text string) (*Result, risk.Assessment) {
	a := d.scorer.Assess(text)

	if a.OverallScore <= d.floorThreshold {
		return nil, a
	}

	r := &Result{
		IsCrisis:             a.ImmediateAction || a.OverallScore > d.crisisThreshold,
		Confidence:           a.OverallScore,
		Category:             string(a.Primary),
		Severity:             SeverityForScore(a.OverallScore),
		RequiresIntervention: a.ImmediateAction,
		RiskLevel:            RiskLevelForScore(a.OverallScore),
	}
	switch {
	case a.ImmediateAction:
		r.RecommendedAction = ActionImmediateIntervention
	case r.Severity == SeverityHigh || r.Severity == SeveritySevere:
		r.RecommendedAction = ActionEscalate
	default:
		r.RecommendedAction = ActionMonitor
	}
	return r, a
}

// SeverityForScore buckets an overall risk score into a severity band.
// The bands are shared by every detection source so verdicts stay
// comparable regardless of origin.
func SeverityForScore(score float64) Severity {
	switch {
	case score >= 0.8:
		return SeveritySevere
	case score >= 0.6:
		return SeverityHigh
	case score >= 0.4:
		return SeverityMedium
	case score >= 0.2:
		return SeverityLow
	}
	return SeverityNone
}

// RiskLevelForScore buckets an overall risk score into a risk level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskLevelCritical
	case score >= 0.6:
		return RiskLevelHigh
	case score >= 0.4:
		return RiskLevelMedium
	}
	return RiskLevelLow
}
