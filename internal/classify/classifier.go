// Package classify decides which conversational context a user
// utterance belongs to, fusing static pattern scoring with the crisis
// orchestrator's verdict and, optionally, an LLM labeler. The entry
// points never return errors and never panic: every failure mode
// degrades to a usable, visibly-flagged classification.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/risk"
)

const (
	// generalBaseline keeps general in every candidate set so empty or
	// unmatched input still classifies.
	generalBaseline = 0.1
	// alternativesThreshold admits a non-primary candidate into the
	// alternatives list.
	alternativesThreshold = 0.3
	// parseErrorConfidence is deliberately low and visibly flagged:
	// a malformed AI reply must not masquerade as a confident label.
	parseErrorConfidence = 0.3
	// failureConfidence marks the recover-all path.
	failureConfidence = 0.1
	// historyWindow is how many trailing history entries feed the
	// analysis text.
	historyWindow = 3
)

// Input is one unit of work for batch classification. Sensitivity is
// an optional per-request override of the classifier-wide level; it is
// set by the caller, never taken from the wire.
type Input struct {
	Query       string   `json:"query"`
	History     []string `json:"history,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Sensitivity string   `json:"-"`
}

// Classifier runs the full context-detection pipeline. It holds no
// per-call state; one instance serves concurrent callers.
type Classifier struct {
	orch        *crisis.Orchestrator
	labeler     *Labeler
	cal         risk.Calibration
	sensitivity string
	logger      *zap.Logger
}

// New builds a classifier. labeler may be nil (pattern + crisis only).
func New(orch *crisis.Orchestrator, labeler *Labeler, cal risk.Calibration, sensitivity string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		orch:        orch,
		labeler:     labeler,
		cal:         cal,
		sensitivity: sensitivity,
		logger:      logger,
	}
}

// Detect classifies one utterance. The contract guarantees a fully
// populated Detection under every failure mode; errors and panics are
// converted into a low-confidence general result with metadata set.
func (c *Classifier) Detect(ctx context.Context, query string, history []string, userID string) Detection {
	return c.DetectInput(ctx, Input{Query: query, History: history, UserID: userID})
}

// DetectInput is Detect with an Input, honoring a per-request
// sensitivity override when Input.Sensitivity is set.
func (c *Classifier) DetectInput(ctx context.Context, in Input) (det Detection) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("classification panicked", zap.Any("panic", r))
			det = Detection{
				Context:      ContextGeneral,
				Confidence:   failureConfidence,
				Alternatives: []Alternative{},
				Indicators:   []string{indicatorFor(ContextGeneral)},
				Metadata: Metadata{
					ProcessingTimeMs: elapsedMs(start),
					AnalysisMethod:   MethodPatternBased,
					Error:            fmt.Sprint(r),
				},
			}
		}
	}()

	analysisText := buildAnalysisText(in.Query, in.History)

	// Safety classification preempts everything else: the crisis
	// verdict is evaluated before any context scoring runs.
	outcome := c.orch.Assess(ctx, analysisText, crisis.Options{
		SensitivityLevel: coalesce(in.Sensitivity, c.sensitivity),
		UserID:           in.UserID,
	})
	if crisis.IsCritical(outcome.Result) {
		return c.shortCircuit(outcome, start)
	}

	return c.rank(ctx, analysisText, outcome, start)
}

// DetectBatch classifies independent inputs concurrently. Results are
// returned in input order regardless of completion order; a slow or
// cancelled sibling never corrupts the others since each pipeline is
// side-effect-free.
func (c *Classifier) DetectBatch(ctx context.Context, inputs []Input) []Detection {
	results := make([]Detection, len(inputs))

	var g errgroup.Group
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = c.DetectInput(ctx, in)
			return nil
		})
	}
	// Detect never returns an error, so Wait cannot either.
	_ = g.Wait()
	return results
}

// shortCircuit assembles the crisis terminal state.
func (c *Classifier) shortCircuit(outcome crisis.Outcome, start time.Time) Detection {
	r := outcome.Result

	indicators := []string{
		"crisis-type-" + coalesce(r.Category, "unspecified"),
		"severity-" + string(r.Severity),
	}
	if r.RequiresIntervention {
		indicators = append(indicators, "requires-immediate-intervention")
	}
	for _, m := range outcome.Assessment.Matches {
		indicators = append(indicators, "risk-term-"+m.Term)
	}

	return Detection{
		Context:      ContextCrisis,
		Confidence:   clamp01(r.Confidence),
		Alternatives: []Alternative{},
		Indicators:   indicators,
		Metadata: Metadata{
			Crisis:           r,
			ProcessingTimeMs: elapsedMs(start),
			AnalysisMethod:   outcome.Source,
			Degraded:         outcome.Degraded,
		},
	}
}

// rank is the non-crisis terminal state: score all context candidates,
// fold in any non-critical crisis signal, and pick a winner.
func (c *Classifier) rank(ctx context.Context, analysisText string, outcome crisis.Outcome, start time.Time) Detection {
	normalized := risk.Normalize(analysisText)

	scores := map[ContextType]float64{ContextGeneral: generalBaseline}
	evidence := map[ContextType][]string{}

	for _, ct := range ContextTypes {
		rules, ok := contextRuleTables[ct]
		if !ok {
			continue
		}
		score, terms := c.scoreRules(normalized, rules)
		scores[ct] = score
		evidence[ct] = terms
	}

	// A crisis signal below the critical bar still competes as one
	// more candidate rather than being discarded.
	if outcome.Result != nil {
		scores[ContextCrisis] = clamp01(outcome.Result.Confidence)
		for _, m := range outcome.Assessment.Matches {
			evidence[ContextCrisis] = append(evidence[ContextCrisis], "risk-term-"+m.Term)
		}
	}

	method := MethodPatternBased
	if c.labeler != nil && normalized != "" {
		label, err := c.labeler.Label(ctx, normalized)
		switch {
		case errors.Is(err, ErrMalformedResponse):
			c.logger.Warn("labeler returned malformed response", zap.Error(err))
			return Detection{
				Context:      ContextGeneral,
				Confidence:   parseErrorConfidence,
				Alternatives: []Alternative{},
				Indicators:   []string{indicatorFor(ContextGeneral)},
				Metadata: Metadata{
					Crisis:           outcome.Result,
					ProcessingTimeMs: elapsedMs(start),
					AnalysisMethod:   MethodHybrid,
					ParseError:       true,
					Degraded:         outcome.Degraded,
				},
			}
		case err != nil:
			// Service unavailable: recovered locally, the pattern
			// scores stand on their own.
			c.logger.Warn("labeler unavailable", zap.Error(err))
		default:
			method = MethodHybrid
			if label.Confidence > scores[label.Context] {
				scores[label.Context] = label.Confidence
			}
			evidence[label.Context] = append(evidence[label.Context], "ai-label-"+string(label.Context))
			evidence[label.Context] = append(evidence[label.Context], label.Indicators...)
		}
	}

	primary, confidence := pickPrimary(scores)

	alternatives := []Alternative{}
	for _, ct := range ContextTypes {
		if ct == primary {
			continue
		}
		if scores[ct] > alternativesThreshold {
			alternatives = append(alternatives, Alternative{Context: ct, Confidence: clamp01(scores[ct])})
		}
	}
	sortAlternatives(alternatives)

	indicators := evidence[primary]
	if len(indicators) == 0 {
		indicators = []string{indicatorFor(primary)}
	}

	return Detection{
		Context:      primary,
		Confidence:   clamp01(confidence),
		Alternatives: alternatives,
		Indicators:   indicators,
		Metadata: Metadata{
			Crisis:           outcome.Result,
			ProcessingTimeMs: elapsedMs(start),
			AnalysisMethod:   method,
			Degraded:         outcome.Degraded,
		},
	}
}

// scoreRules applies the shared scoring mechanics to a context table:
// strongest pattern dominates, corroborating hits add a capped bonus.
func (c *Classifier) scoreRules(text string, rules []contextRule) (float64, []string) {
	if text == "" {
		return 0, nil
	}

	var (
		terms     []string
		maxWeight float64
	)
	for _, r := range rules {
		if !r.pattern.MatchString(text) {
			continue
		}
		terms = append(terms, r.term)
		if r.weight > maxWeight {
			maxWeight = r.weight
		}
	}
	if len(terms) == 0 {
		return 0, nil
	}

	multiplier := 1 + float64(len(terms)-1)*c.cal.CorroborationStep
	if multiplier > c.cal.CorroborationCap {
		multiplier = c.cal.CorroborationCap
	}
	score := maxWeight * multiplier
	if score > 1 {
		score = 1
	}
	return score, terms
}

// pickPrimary selects the highest-scored candidate, breaking ties
// toward earlier entries in ContextTypes.
func pickPrimary(scores map[ContextType]float64) (ContextType, float64) {
	best := ContextGeneral
	bestScore := scores[ContextGeneral]
	for _, ct := range ContextTypes {
		if scores[ct] > bestScore {
			best = ct
			bestScore = scores[ct]
		}
	}
	return best, bestScore
}

// sortAlternatives orders by confidence descending; equal confidences
// keep the ranking order already established by ContextTypes, keeping
// output deterministic.
func sortAlternatives(alts []Alternative) {
	sort.SliceStable(alts, func(i, j int) bool {
		return alts[i].Confidence > alts[j].Confidence
	})
}

// buildAnalysisText prepends the trailing history window so a terse
// follow-up ("can you help me?") inherits context from what preceded
// it.
func buildAnalysisText(query string, history []string) string {
	if len(history) == 0 {
		return query
	}
	from := len(history) - historyWindow
	if from < 0 {
		from = 0
	}
	parts := append([]string{}, history[from:]...)
	if strings.TrimSpace(query) != "" {
		parts = append(parts, query)
	}
	return strings.Join(parts, " ")
}

func indicatorFor(ct ContextType) string {
	return "detected-" + string(ct)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func coalesce(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
