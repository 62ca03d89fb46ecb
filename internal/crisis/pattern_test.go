package crisis

import (
	"testing"

	"github.com/sentira-ai/sentira/internal/risk"
)

func TestPatternDetectorSevereBuckets(t *testing.T) {
	d := NewPatternDetector(risk.DefaultCalibration())

	r, a := d.Assess("I am going to kill myself")
	if r == nil {
		t.Fatalf("expected a verdict for a severe phrase")
	}
	if !r.IsCrisis {
		t.Fatalf("expected crisis verdict")
	}
	if r.Severity != SeveritySevere {
		t.Fatalf("expected severe, got %s", r.Severity)
	}
	if r.RiskLevel != RiskLevelCritical {
		t.Fatalf("expected critical, got %s", r.RiskLevel)
	}
	if !r.RequiresIntervention {
		t.Fatalf("expected intervention flag")
	}
	if r.RecommendedAction != ActionImmediateIntervention {
		t.Fatalf("expected immediate intervention, got %s", r.RecommendedAction)
	}
	if !a.ImmediateAction {
		t.Fatalf("assessment must carry immediate action")
	}
}

func TestPatternDetectorSuppressesWeakSignals(t *testing.T) {
	d := NewPatternDetector(risk.DefaultCalibration())

	// No matches at all.
	if r, _ := d.Assess("What time is the meeting tomorrow?"); r != nil {
		t.Fatalf("benign text surfaced a verdict: %+v", r)
	}

	// Empty input.
	if r, _ := d.Assess("   "); r != nil {
		t.Fatalf("empty input surfaced a verdict: %+v", r)
	}
}

func TestPatternDetectorMidRangeBuckets(t *testing.T) {
	d := NewPatternDetector(risk.DefaultCalibration())

	r, _ := d.Assess("My heart is racing and I can't calm down")
	if r == nil {
		t.Fatalf("expected a surfaced verdict above the floor")
	}
	if r.IsCrisis {
		t.Fatalf("mid-range anxiety alone should not be a crisis verdict")
	}
	if r.Severity != SeverityMedium {
		t.Fatalf("unexpected severity %s", r.Severity)
	}
	if r.RequiresIntervention {
		t.Fatalf("no immediate action expected")
	}
}

func TestSeverityAndRiskLevelMappings(t *testing.T) {
	sevCases := []struct {
		score float64
		want  Severity
	}{
		{0.85, SeveritySevere},
		{0.8, SeveritySevere},
		{0.7, SeverityHigh},
		{0.5, SeverityMedium},
		{0.25, SeverityLow},
		{0.1, SeverityNone},
	}
	for _, tc := range sevCases {
		if got := SeverityForScore(tc.score); got != tc.want {
			t.Fatalf("SeverityForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}

	levelCases := []struct {
		score float64
		want  RiskLevel
	}{
		{0.9, RiskLevelCritical},
		{0.65, RiskLevelHigh},
		{0.45, RiskLevelMedium},
		{0.2, RiskLevelLow},
	}
	for _, tc := range levelCases {
		if got := RiskLevelForScore(tc.score); got != tc.want {
			t.Fatalf("RiskLevelForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
