package classify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/provider"
	"github.com/sentira-ai/sentira/internal/risk"
)

type stubDetector struct {
	result *crisis.Result
	err    error
	panics bool
}

func (d *stubDetector) Detect(ctx context.Context, text string, opts crisis.Options) (*crisis.Result, error) {
	if d.panics {
		panic("detector blew up")
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func newPatternClassifier() *Classifier {
	orch := crisis.NewOrchestrator(nil, risk.DefaultCalibration(), time.Second, nil)
	return New(orch, nil, risk.DefaultCalibration(), "standard", nil)
}

func newClassifierWith(det crisis.Detector, labeler *Labeler) *Classifier {
	orch := crisis.NewOrchestrator(det, risk.DefaultCalibration(), time.Second, nil)
	return New(orch, labeler, risk.DefaultCalibration(), "standard", nil)
}

func TestDetectEducationalQuestion(t *testing.T) {
	c := newPatternClassifier()

	det := c.Detect(context.Background(), "What is anxiety?", nil, "")
	require.Equal(t, ContextEducational, det.Context)
	assert.GreaterOrEqual(t, det.Confidence, 0.5)
	assert.Contains(t, det.Indicators, "what-is")
	assert.Equal(t, MethodPatternBased, det.Metadata.AnalysisMethod)
}

func TestDetectSupportContext(t *testing.T) {
	c := newPatternClassifier()

	det := c.Detect(context.Background(), "I've been feeling really sad lately", nil, "")
	require.Equal(t, ContextSupport, det.Context)
	assert.Contains(t, det.Indicators, "feeling-low")
}

func TestDetectCrisisShortCircuit(t *testing.T) {
	c := newPatternClassifier()

	det := c.Detect(context.Background(), "I am going to kill myself", nil, "")
	require.Equal(t, ContextCrisis, det.Context)
	assert.Greater(t, det.Confidence, 0.8)
	assert.Contains(t, det.Indicators, "requires-immediate-intervention")
	assert.Contains(t, det.Indicators, "risk-term-kill-myself")
	require.NotNil(t, det.Metadata.Crisis)
	assert.True(t, det.Metadata.Crisis.RequiresIntervention)
}

func TestDetectEmptyInputGeneralBaseline(t *testing.T) {
	c := newPatternClassifier()

	for _, query := range []string{"", "   "} {
		det := c.Detect(context.Background(), query, nil, "")
		require.Equal(t, ContextGeneral, det.Context)
		assert.InDelta(t, generalBaseline, det.Confidence, 1e-9)
		assert.Equal(t, []string{"detected-general"}, det.Indicators)
		assert.Empty(t, det.Alternatives)
	}
}

func TestDetectNoMatchesIsGeneral(t *testing.T) {
	c := newPatternClassifier()

	det := c.Detect(context.Background(), "The bus arrives at seven", nil, "")
	require.Equal(t, ContextGeneral, det.Context)
}

func TestDetectorErrorNeverPropagates(t *testing.T) {
	c := newClassifierWith(&stubDetector{err: errors.New("service down")}, nil)

	det := c.Detect(context.Background(), "Test message", nil, "u1")
	require.Equal(t, ContextGeneral, det.Context)
	assert.Empty(t, det.Metadata.Error)
}

func TestDetectorPanicIsRecovered(t *testing.T) {
	c := newClassifierWith(&stubDetector{panics: true}, nil)

	det := c.Detect(context.Background(), "anything at all", nil, "")
	require.Equal(t, ContextGeneral, det.Context)
	assert.InDelta(t, failureConfidence, det.Confidence, 1e-9)
	assert.Contains(t, det.Metadata.Error, "detector blew up")
}

func TestAIConfidenceIsClamped(t *testing.T) {
	c := newClassifierWith(&stubDetector{result: &crisis.Result{
		IsCrisis:             true,
		Confidence:           1.5,
		Category:             "suicidal_ideation",
		Severity:             crisis.SeveritySevere,
		RequiresIntervention: true,
		RiskLevel:            crisis.RiskLevelCritical,
	}}, nil)

	det := c.Detect(context.Background(), "some text", nil, "")
	require.Equal(t, ContextCrisis, det.Context)
	assert.Equal(t, 1.0, det.Confidence)
}

func TestNonCriticalCrisisCompetesAsCandidate(t *testing.T) {
	c := newClassifierWith(&stubDetector{result: &crisis.Result{
		IsCrisis:   false,
		Confidence: 0.45,
		Severity:   crisis.SeverityMedium,
		RiskLevel:  crisis.RiskLevelMedium,
	}}, nil)

	det := c.Detect(context.Background(), "What is depression?", nil, "")
	require.Equal(t, ContextEducational, det.Context)

	var foundCrisis bool
	for _, alt := range det.Alternatives {
		if alt.Context == ContextCrisis {
			foundCrisis = true
			assert.InDelta(t, 0.45, alt.Confidence, 1e-9)
		}
	}
	assert.True(t, foundCrisis, "non-critical crisis signal must appear among alternatives")
}

func TestHistoryInformsClassification(t *testing.T) {
	c := newPatternClassifier()

	history := []string{
		"hello",
		"I've been feeling really down for weeks",
		"nothing helps",
	}
	det := c.Detect(context.Background(), "Can you help me?", history, "")
	require.Equal(t, ContextSupport, det.Context)
}

func TestHistoryWindowUsesLastThreeEntries(t *testing.T) {
	c := newPatternClassifier()

	// The support-laden entry sits outside the 3-entry window.
	history := []string{
		"I've been feeling really sad lately",
		"ok",
		"ok",
		"ok",
	}
	det := c.Detect(context.Background(), "thanks", history, "")
	require.Equal(t, ContextGeneral, det.Context)
}

func TestDetectIsDeterministic(t *testing.T) {
	c := newClassifierWith(&stubDetector{result: &crisis.Result{
		IsCrisis:   false,
		Confidence: 0.35,
		Severity:   crisis.SeverityLow,
		RiskLevel:  crisis.RiskLevelLow,
	}}, nil)

	history := []string{"I have been struggling"}
	a := c.Detect(context.Background(), "what is a panic attack", history, "u")
	b := c.Detect(context.Background(), "what is a panic attack", history, "u")

	a.Metadata.ProcessingTimeMs = 0
	b.Metadata.ProcessingTimeMs = 0

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))
}

func TestDetectBatchPreservesInputOrder(t *testing.T) {
	c := newPatternClassifier()

	inputs := []Input{
		{Query: "What is anxiety?"},
		{Query: "I've been feeling really sad lately"},
		{Query: "I am going to kill myself"},
	}
	results := c.DetectBatch(context.Background(), inputs)
	require.Len(t, results, 3)
	assert.Equal(t, ContextEducational, results[0].Context)
	assert.Equal(t, ContextSupport, results[1].Context)
	assert.Equal(t, ContextCrisis, results[2].Context)
}

func TestLabelerMalformedResponseFallsBackVisibly(t *testing.T) {
	labeler := NewLabeler(provider.NewFake("not json at all"), "test-model")
	c := newClassifierWith(nil, labeler)

	det := c.Detect(context.Background(), "What is anxiety?", nil, "")
	require.Equal(t, ContextGeneral, det.Context)
	assert.InDelta(t, parseErrorConfidence, det.Confidence, 1e-9)
	assert.True(t, det.Metadata.ParseError)
	assert.Equal(t, MethodHybrid, det.Metadata.AnalysisMethod)
}

func TestLabelerTransportErrorKeepsPatternResult(t *testing.T) {
	labeler := NewLabeler(&provider.FakeProvider{Error: errors.New("timeout")}, "test-model")
	c := newClassifierWith(nil, labeler)

	det := c.Detect(context.Background(), "What is anxiety?", nil, "")
	require.Equal(t, ContextEducational, det.Context)
	assert.False(t, det.Metadata.ParseError)
	assert.Equal(t, MethodPatternBased, det.Metadata.AnalysisMethod)
}

func TestLabelerNormalizesSynonymLabels(t *testing.T) {
	reply := `{"detectedContext": "emotional_support", "confidence": 0.9, "contextualIndicators": ["tone"], "needsSpecialHandling": false, "urgency": "low", "metadata": {}}`
	labeler := NewLabeler(provider.NewFake(reply), "test-model")
	c := newClassifierWith(nil, labeler)

	det := c.Detect(context.Background(), "hm, not sure how to say this", nil, "")
	require.Equal(t, ContextSupport, det.Context)
	assert.Equal(t, MethodHybrid, det.Metadata.AnalysisMethod)
	assert.Contains(t, det.Indicators, "ai-label-support")
}

func TestNormalizeContextRejectsUnknownLabels(t *testing.T) {
	cases := map[string]ContextType{
		"emergency":         ContextCrisis,
		"Education":         ContextEducational,
		"clinical":          ContextClinicalAssessment,
		"resources":         ContextInformational,
		"made_up_label":     ContextGeneral,
		"":                  ContextGeneral,
		"smalltalk":         ContextGeneral,
		"Emotional Support": ContextSupport,
	}
	for label, want := range cases {
		assert.Equal(t, want, NormalizeContext(label), "label %q", label)
	}
}

func TestConfidenceAlwaysInUnitRange(t *testing.T) {
	c := newPatternClassifier()

	texts := []string{
		"",
		"I am going to kill myself",
		"What is anxiety? explain the difference between panic and worry, tell me about treatment",
		"I feel hopeless and worthless and can't go on and I'm empty inside",
	}
	for _, text := range texts {
		det := c.Detect(context.Background(), text, nil, "")
		assert.GreaterOrEqual(t, det.Confidence, 0.0, "text %q", text)
		assert.LessOrEqual(t, det.Confidence, 1.0, "text %q", text)

		var valid bool
		for _, ct := range ContextTypes {
			if det.Context == ct {
				valid = true
			}
		}
		assert.True(t, valid, "context %q must be in-domain", det.Context)
	}
}
