package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sentira-ai/sentira/internal/provider"
)

// ErrMalformedResponse marks a labeler reply that was not parsable as
// the expected JSON shape. The classifier maps it to the visible
// parse-error fallback rather than a guessed high-confidence label.
var ErrMalformedResponse = errors.New("malformed labeler response")

const labelerSystemPrompt = `You classify one user message from a mental-health support chat into exactly one context label: crisis, educational, support, clinical_assessment, informational, or general.
Respond with a single JSON object and nothing else:
{"detectedContext": "<label>", "confidence": <0..1>, "contextualIndicators": ["..."], "needsSpecialHandling": <bool>, "urgency": "low|medium|high", "metadata": {}}`

// Labeler asks a chat-completion provider for a context label. It is
// optional; the classifier works fully without it.
type Labeler struct {
	provider provider.Provider
	model    string
}

// NewLabeler builds a labeler over a chat provider.
func NewLabeler(p provider.Provider, model string) *Labeler {
	return &Labeler{provider: p, model: model}
}

// Label is the labeler's parsed verdict with the label already
// normalized to the context enum.
type Label struct {
	Context              ContextType
	Confidence           float64
	Indicators           []string
	NeedsSpecialHandling bool
	Urgency              string
}

type labelerReply struct {
	DetectedContext      *string        `json:"detectedContext"`
	Confidence           *float64       `json:"confidence"`
	ContextualIndicators []string       `json:"contextualIndicators"`
	NeedsSpecialHandling bool           `json:"needsSpecialHandling"`
	Urgency              string         `json:"urgency"`
	Metadata             map[string]any `json:"metadata"`
}

// Label requests a classification. Transport failures return ordinary
// errors (treat as service unavailable); unparsable or schema-invalid
// replies return ErrMalformedResponse.
func (l *Labeler) Label(ctx context.Context, text string) (*Label, error) {
	resp, err := l.provider.ChatCompletion(ctx, &provider.Request{
		Model: l.model,
		Messages: []provider.Message{
			{Role: "system", Content: labelerSystemPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("labeler completion: %w", err)
	}

	payload := extractJSON(resp.Message.Content)
	var reply labelerReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if reply.DetectedContext == nil || reply.Confidence == nil {
		return nil, fmt.Errorf("%w: missing required fields", ErrMalformedResponse)
	}

	return &Label{
		Context:              NormalizeContext(*reply.DetectedContext),
		Confidence:           clamp01(*reply.Confidence),
		Indicators:           reply.ContextualIndicators,
		NeedsSpecialHandling: reply.NeedsSpecialHandling,
		Urgency:              reply.Urgency,
	}, nil
}

// extractJSON strips markdown code fences and surrounding prose,
// keeping the outermost JSON object. Models wrap JSON in fences often
// enough that refusing to would turn routine replies into parse errors.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
