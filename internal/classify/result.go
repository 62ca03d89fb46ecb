package classify

import (
	"strings"

	"github.com/sentira-ai/sentira/internal/crisis"
)

// ContextType is the classified conversational intent of a message.
type ContextType string

const (
	ContextCrisis             ContextType = "crisis"
	ContextEducational        ContextType = "educational"
	ContextSupport            ContextType = "support"
	ContextClinicalAssessment ContextType = "clinical_assessment"
	ContextInformational      ContextType = "informational"
	ContextGeneral            ContextType = "general"
)

// ContextTypes lists all context types in ranking order. Ties between
// equally-scored candidates break toward the earlier entry, so crisis
// is never outranked by an equal score.
var ContextTypes = []ContextType{
	ContextCrisis,
	ContextEducational,
	ContextSupport,
	ContextClinicalAssessment,
	ContextInformational,
	ContextGeneral,
}

// Analysis methods reported in Detection metadata.
const (
	MethodPatternBased = "pattern-based"
	MethodAIAssisted   = "ai-assisted"
	MethodHybrid       = "hybrid"
)

// Alternative is a non-primary candidate that scored above the
// alternatives threshold.
type Alternative struct {
	Context    ContextType `json:"context"`
	Confidence float64     `json:"confidence"`
}

// Metadata carries provenance and degradation flags alongside a
// Detection. Callers that want to distinguish "confident general" from
// "degraded general" check Error/ParseError; both are safe defaults.
type Metadata struct {
	Crisis           *crisis.Result `json:"crisis_assessment,omitempty"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	AnalysisMethod   string         `json:"analysis_method"`
	Error            string         `json:"error,omitempty"`
	ParseError       bool           `json:"parse_error,omitempty"`
	Degraded         bool           `json:"degraded,omitempty"`
}

// Detection is the classifier's output. Every Detection is fully
// populated: Context is always one of the six enum values and
// Confidence is always within [0,1].
type Detection struct {
	Context      ContextType   `json:"detected_context"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternative_contexts"`
	Indicators   []string      `json:"indicators"`
	Metadata     Metadata      `json:"metadata"`
}

// contextSynonyms maps known out-of-domain labels from AI-assisted
// paths onto the enum. Unmappable labels become general; an undefined
// label is never surfaced.
var contextSynonyms = map[string]ContextType{
	"crisis":              ContextCrisis,
	"emergency":           ContextCrisis,
	"urgent":              ContextCrisis,
	"safety":              ContextCrisis,
	"educational":         ContextEducational,
	"education":           ContextEducational,
	"learning":            ContextEducational,
	"psychoeducation":     ContextEducational,
	"support":             ContextSupport,
	"emotional_support":   ContextSupport,
	"emotional-support":   ContextSupport,
	"empathy":             ContextSupport,
	"venting":             ContextSupport,
	"clinical_assessment": ContextClinicalAssessment,
	"clinical-assessment": ContextClinicalAssessment,
	"clinical":            ContextClinicalAssessment,
	"assessment":          ContextClinicalAssessment,
	"diagnostic":          ContextClinicalAssessment,
	"screening":           ContextClinicalAssessment,
	"informational":       ContextInformational,
	"information":         ContextInformational,
	"resources":           ContextInformational,
	"resource":            ContextInformational,
	"general":             ContextGeneral,
	"casual":              ContextGeneral,
	"chat":                ContextGeneral,
	"smalltalk":           ContextGeneral,
}

// NormalizeContext maps an arbitrary label to an in-domain context
// type, defaulting to general.
func NormalizeContext(label string) ContextType {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.ReplaceAll(key, " ", "_")
	if ct, ok := contextSynonyms[key]; ok {
		return ct
	}
	return ContextGeneral
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
