package crisismodel

import (
	"context"
	"sort"

	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/risk"
)

// floor mirrors the pattern detector's suppression floor: verdicts at
// or below it are noise and are not surfaced.
const floor = 0.3

// Detector adapts the local model to the crisis detection interface.
type Detector struct {
	model *Model
}

// NewDetector wraps a loaded model.
func NewDetector(model *Model) *Detector {
	return &Detector{model: model}
}

// Detect runs inference and maps label scores to a crisis verdict.
// A nil result means the signal was too weak to surface.
func (d *Detector) Detect(ctx context.Context, text string, opts crisis.Options) (*crisis.Result, error) {
	scores, err := d.model.Evaluate(ctx, text)
	if err != nil {
		return nil, err
	}
	return verdict(scores, d.model.thresholds, opts.SensitivityLevel), nil
}

// verdict is the pure mapping from label scores to a crisis result,
// factored out so the translation is testable without a runtime.
func verdict(scores map[string]float32, thresholds map[string]Thresholds, sensitivity string) *crisis.Result {
	top, topScore := topLabel(scores)
	if top == "" || float64(topScore) <= floor {
		return nil
	}

	overall := float64(topScore)
	alerted := false
	for label, score := range scores {
		th, ok := thresholds[label]
		if !ok {
			continue
		}
		if th.Alert != nil && score >= *th.Alert {
			alerted = true
		}
	}

	r := &crisis.Result{
		IsCrisis:             alerted || overall > crisisThresholdFor(sensitivity),
		Confidence:           overall,
		Category:             top,
		Severity:             crisis.SeverityForScore(overall),
		RequiresIntervention: alerted,
		RiskLevel:            crisis.RiskLevelForScore(overall),
	}
	switch {
	case alerted:
		r.RecommendedAction = crisis.ActionImmediateIntervention
	case r.Severity == crisis.SeverityHigh || r.Severity == crisis.SeveritySevere:
		r.RecommendedAction = crisis.ActionEscalate
	default:
		r.RecommendedAction = crisis.ActionMonitor
	}
	return r
}

// crisisThresholdFor shifts the crisis cutoff by project sensitivity.
func crisisThresholdFor(sensitivity string) float64 {
	switch sensitivity {
	case "high":
		return 0.5
	case "low":
		return 0.7
	}
	return 0.6
}

// topLabel returns the highest-scored label. Ties break by the risk
// category severity ranking first, then lexically, so output never
// depends on map iteration order.
func topLabel(scores map[string]float32) (string, float32) {
	if len(scores) == 0 {
		return "", 0
	}
	labels := make([]string, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		ri, rj := categoryRank(labels[i]), categoryRank(labels[j])
		if ri != rj {
			return ri < rj
		}
		return labels[i] < labels[j]
	})

	best, bestScore := "", float32(-1)
	for _, label := range labels {
		if scores[label] > bestScore {
			best, bestScore = label, scores[label]
		}
	}
	return best, bestScore
}

func categoryRank(label string) int {
	for i, c := range risk.Categories {
		if string(c) == label {
			return i
		}
	}
	return len(risk.Categories)
}
