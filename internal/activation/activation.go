// Package activation assembles and delivers classification events to
// configured sinks. Events are the audit trail for crisis escalation
// review, so assembly never blocks the request path and previews honor
// the configured capture level.
package activation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentira-ai/sentira/internal/classify"
	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/redact"
)

// Capture levels for utterance previews.
const (
	LevelNone     = "none"
	LevelMetadata = "metadata"
	LevelFull     = "full"
)

const previewLimit = 500

// Meta identifies the request origin.
type Meta struct {
	ProjectID   string `json:"project_id"`
	Route       string `json:"route"`
	Sensitivity string `json:"sensitivity,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Classification is the verdict portion of an event.
type Classification struct {
	Context              string                 `json:"context"`
	Confidence           float64                `json:"confidence"`
	Method               string                 `json:"method"`
	Alternatives         []classify.Alternative `json:"alternatives,omitempty"`
	Indicators           []string               `json:"indicators,omitempty"`
	Crisis               *crisis.Result         `json:"crisis,omitempty"`
	ShortCircuit         bool                   `json:"short_circuit"`
	Degraded             bool                   `json:"degraded,omitempty"`
	ParseError           bool                   `json:"parse_error,omitempty"`
	RequiresIntervention bool                   `json:"requires_intervention"`
}

// Preview carries the capped, scrubbed utterance when capture level is
// full. At metadata level it stays empty.
type Preview struct {
	Query string `json:"query,omitempty"`
}

// TimingMs breaks down the request latency.
type TimingMs struct {
	Detector float64 `json:"detector"`
	Total    float64 `json:"total"`
}

// Event is the canonical classification event payload.
type Event struct {
	Version        string         `json:"version"`
	Timestamp      time.Time      `json:"timestamp"`
	RequestID      string         `json:"request_id"`
	Meta           Meta           `json:"meta"`
	Classification Classification `json:"classification"`
	Preview        Preview        `json:"preview"`
	TimingMs       TimingMs       `json:"timing_ms"`
}

// BuildParams collects inputs needed to assemble an event.
type BuildParams struct {
	Detection    *classify.Detection
	Query        string
	ProjectID    string
	Sensitivity  string
	UserID       string
	Route        string
	CaptureLevel string
	RequestID    string
	ShortCircuit bool
	Degraded     bool
	DetectorMs   float64
}

// BuildEvent creates a classification event. It returns nil when the
// detection is absent or the capture level is none.
func BuildEvent(params BuildParams) *Event {
	if params.Detection == nil {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(params.CaptureLevel))
	if level == "" {
		level = LevelMetadata
	}
	if level == LevelNone {
		return nil
	}

	det := params.Detection

	requiresIntervention := det.Metadata.Crisis != nil && det.Metadata.Crisis.RequiresIntervention

	ev := &Event{
		Version:   "1",
		Timestamp: time.Now().UTC(),
		RequestID: ensureRequestID(params.RequestID),
		Meta: Meta{
			ProjectID:   params.ProjectID,
			Route:       params.Route,
			Sensitivity: params.Sensitivity,
			UserID:      params.UserID,
		},
		Classification: Classification{
			Context:              string(det.Context),
			Confidence:           det.Confidence,
			Method:               det.Metadata.AnalysisMethod,
			Alternatives:         det.Alternatives,
			Indicators:           det.Indicators,
			Crisis:               det.Metadata.Crisis,
			ShortCircuit:         params.ShortCircuit,
			Degraded:             params.Degraded,
			ParseError:           det.Metadata.ParseError,
			RequiresIntervention: requiresIntervention,
		},
		TimingMs: TimingMs{
			Detector: params.DetectorMs,
			Total:    det.Metadata.ProcessingTimeMs,
		},
	}

	if level == LevelFull {
		ev.Preview.Query = redact.String(redact.Preview(params.Query, previewLimit))
	}

	return ev
}

func ensureRequestID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
