package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentira-ai/sentira/internal/provider"
)

func TestLabelParsesFencedJSON(t *testing.T) {
	reply := "```json\n{\"detectedContext\": \"educational\", \"confidence\": 0.82, \"contextualIndicators\": [\"question-form\"], \"needsSpecialHandling\": false, \"urgency\": \"low\", \"metadata\": {}}\n```"
	l := NewLabeler(provider.NewFake(reply), "test-model")

	label, err := l.Label(context.Background(), "what is cbt")
	require.NoError(t, err)
	assert.Equal(t, ContextEducational, label.Context)
	assert.InDelta(t, 0.82, label.Confidence, 1e-9)
	assert.Equal(t, []string{"question-form"}, label.Indicators)
}

func TestLabelSurroundingProseIsTolerated(t *testing.T) {
	reply := `Here is my classification: {"detectedContext": "support", "confidence": 0.7, "contextualIndicators": [], "needsSpecialHandling": true, "urgency": "medium", "metadata": {}} Hope that helps.`
	l := NewLabeler(provider.NewFake(reply), "test-model")

	label, err := l.Label(context.Background(), "I feel alone")
	require.NoError(t, err)
	assert.Equal(t, ContextSupport, label.Context)
	assert.True(t, label.NeedsSpecialHandling)
}

func TestLabelMissingFieldsIsMalformed(t *testing.T) {
	l := NewLabeler(provider.NewFake(`{"confidence": 0.9}`), "test-model")

	_, err := l.Label(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestLabelTransportErrorIsNotMalformed(t *testing.T) {
	l := NewLabeler(&provider.FakeProvider{Error: errors.New("connection refused")}, "test-model")

	_, err := l.Label(context.Background(), "hello")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedResponse))
}

func TestLabelConfidenceClampedToUnitRange(t *testing.T) {
	l := NewLabeler(provider.NewFake(`{"detectedContext": "crisis", "confidence": 1.5, "contextualIndicators": [], "needsSpecialHandling": true, "urgency": "high", "metadata": {}}`), "test-model")

	label, err := l.Label(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1.0, label.Confidence)
}
