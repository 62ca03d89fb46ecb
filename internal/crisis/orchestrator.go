package crisis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sentira-ai/sentira/internal/risk"
)

// Source labels which signal source produced a verdict.
const (
	SourceAIAssisted   = "ai-assisted"
	SourcePatternBased = "pattern-based"
)

// Outcome bundles a verdict with its provenance and the pattern
// evidence collected along the way.
type Outcome struct {
	// Result is nil when no crisis signal is worth surfacing.
	Result *Result
	// Source is the signal source that produced Result.
	Source string
	// Assessment is the pattern risk assessment. It is always
	// populated: the pattern pass is pure and cheap, and its matches
	// feed the audit indicators even when the AI path won.
	Assessment risk.Assessment
	// Degraded is set when the AI detector was configured but failed
	// and the pattern fallback was used instead.
	Degraded bool
}

// Orchestrator applies the "try AI, fall back to rules" policy in one
// place. The detector is optional; without one every call takes the
// pattern path directly.
type Orchestrator struct {
	detector Detector
	fallback *PatternDetector
	timeout  time.Duration
	logger   *zap.Logger
}

// NewOrchestrator builds the orchestrator. detector may be nil.
func NewOrchestrator(detector Detector, cal risk.Calibration, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		detector: detector,
		fallback: NewPatternDetector(cal),
		timeout:  timeout,
		logger:   logger,
	}
}

// Assess produces a crisis verdict for the text. It never returns an
// error: detector failures are logged and recovered via the pattern
// fallback. "No response within the timeout" is treated identically to
// an error response.
func (o *Orchestrator) Assess(ctx context.Context, text string, opts Options) Outcome {
	fallbackResult, assessment := o.fallback.Assess(text)

	if o.detector == nil {
		return Outcome{
			Result:     fallbackResult,
			Source:     SourcePatternBased,
			Assessment: assessment,
		}
	}

	detectCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.detector.Detect(detectCtx, text, opts)
	if err != nil {
		o.logger.Warn("crisis detector unavailable, using pattern fallback",
			zap.Error(err),
			zap.String("sensitivity", opts.SensitivityLevel),
		)
		return Outcome{
			Result:     fallbackResult,
			Source:     SourcePatternBased,
			Assessment: assessment,
			Degraded:   true,
		}
	}

	return Outcome{
		Result:     result,
		Source:     SourceAIAssisted,
		Assessment: assessment,
	}
}
