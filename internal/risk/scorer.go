package risk

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Calibration collects the scoring constants. The defaults are the
// tuned values the rule tables were calibrated against; deployments may
// override individual knobs via config, but the relative effects
// (top-score dominance, small corroboration bonus, length-based
// confidence adjustment) are the contract, not the literal numbers.
type Calibration struct {
	// CorroborationStep is the per-extra-hit multiplier increment.
	CorroborationStep float64 `yaml:"corroboration_step"`
	// CorroborationCap bounds the hit multiplier.
	CorroborationCap float64 `yaml:"corroboration_cap"`
	// DecayBase weights the i-th highest category score by DecayBase^i.
	DecayBase float64 `yaml:"decay_base"`
	// SecondaryThreshold admits a category into the secondary risk list.
	SecondaryThreshold float64 `yaml:"secondary_threshold"`
	// ImmediateThreshold marks an acute-category score as requiring
	// immediate action.
	ImmediateThreshold float64 `yaml:"immediate_threshold"`
	// BaseConfidence is the assessor's starting confidence before
	// length and corroboration adjustments.
	BaseConfidence float64 `yaml:"base_confidence"`
}

// DefaultCalibration returns the tuned defaults.
func DefaultCalibration() Calibration {
	return Calibration{
		CorroborationStep:  0.1,
		CorroborationCap:   1.3,
		DecayBase:          0.7,
		SecondaryThreshold: 0.3,
		ImmediateThreshold: 0.8,
		BaseConfidence:     0.70,
	}
}

// Match records one rule hit as auditable evidence.
type Match struct {
	Category Category `json:"category"`
	Term     string   `json:"term"`
	Weight   float64  `json:"weight"`
}

// Assessment is the outcome of scoring one text across all categories.
// It is created fresh per call and never mutated afterwards;
// persistence is a collaborator's concern, not this package's.
type Assessment struct {
	OverallScore    float64              `json:"overall_risk_score"`
	Primary         Category             `json:"primary_risk"`
	Secondary       []Category           `json:"secondary_risks"`
	Confidence      float64              `json:"confidence_score"`
	ImmediateAction bool                 `json:"immediate_action_required"`
	Timestamp       time.Time            `json:"analysis_timestamp"`
	Matches         []Match              `json:"matches,omitempty"`
	CategoryScores  map[Category]float64 `json:"category_scores,omitempty"`
}

// Scorer evaluates texts against the static rule tables.
type Scorer struct {
	cal    Calibration
	tables map[Category][]Rule
}

// NewScorer builds a scorer over the package rule tables.
func NewScorer(cal Calibration) *Scorer {
	return &Scorer{cal: cal, tables: RuleTables}
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	literalNLRe  = regexp.MustCompile(`\\n`)
)

// Normalize prepares raw text for matching: literal "\n" escape
// sequences become spaces, runs of whitespace collapse, and the result
// is trimmed.
func Normalize(text string) string {
	out := literalNLRe.ReplaceAllString(text, " ")
	out = whitespaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Score runs one category's rules over normalized text. The strongest
// matching pattern dominates; additional hits add a small corroboration
// bonus, capped so multiple weak signals cannot outrank one severe
// literal phrase. Returns 0 and no matches when nothing fires.
func (s *Scorer) Score(text string, category Category) (float64, []Match) {
	rules := s.tables[category]
	if len(rules) == 0 || text == "" {
		return 0, nil
	}

	var (
		matches   []Match
		maxWeight float64
	)
	for _, r := range rules {
		if !r.Pattern.MatchString(text) {
			continue
		}
		matches = append(matches, Match{Category: category, Term: r.Term, Weight: r.Weight})
		if r.Weight > maxWeight {
			maxWeight = r.Weight
		}
	}
	if len(matches) == 0 {
		return 0, nil
	}

	multiplier := 1 + float64(len(matches)-1)*s.cal.CorroborationStep
	if multiplier > s.cal.CorroborationCap {
		multiplier = s.cal.CorroborationCap
	}
	score := maxWeight * multiplier
	if score > 1 {
		score = 1
	}
	return score, matches
}

// Assess scores all categories and aggregates them into an Assessment.
// Empty or whitespace-only input yields the zero assessment, never an
// error.
func (s *Scorer) Assess(text string) Assessment {
	now := time.Now().UTC()
	normalized := Normalize(text)
	if normalized == "" {
		return Assessment{
			Primary:    CategoryNone,
			Secondary:  []Category{},
			Confidence: 0.5,
			Timestamp:  now,
		}
	}

	scores := make(map[Category]float64, len(Categories))
	var allMatches []Match
	for _, cat := range Categories {
		score, matches := s.Score(normalized, cat)
		scores[cat] = score
		allMatches = append(allMatches, matches...)
	}

	primary := CategoryNone
	primaryScore := 0.0
	for _, cat := range Categories {
		if scores[cat] > primaryScore {
			primary = cat
			primaryScore = scores[cat]
		}
	}

	secondary := []Category{}
	for _, cat := range Categories {
		if cat == primary {
			continue
		}
		if scores[cat] > s.cal.SecondaryThreshold {
			secondary = append(secondary, cat)
		}
	}

	overall := s.aggregate(scores)
	confidence := s.confidence(normalized, scores, primaryScore)

	immediate := primaryScore >= s.cal.ImmediateThreshold && isAcute(primary)

	return Assessment{
		OverallScore:    overall,
		Primary:         primary,
		Secondary:       secondary,
		Confidence:      confidence,
		ImmediateAction: immediate,
		Timestamp:       now,
		Matches:         allMatches,
		CategoryScores:  scores,
	}
}

// aggregate combines per-category scores into one figure. Nonzero
// scores are sorted descending and position i is weighted by
// DecayBase^i, then averaged. One very high score therefore dominates
// even when every other category is zero, while elevated scores in
// ranks 2-3 still move the result.
func (s *Scorer) aggregate(scores map[Category]float64) float64 {
	var nonzero []float64
	for _, cat := range Categories {
		if scores[cat] > 0 {
			nonzero = append(nonzero, scores[cat])
		}
	}
	if len(nonzero) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(nonzero)))

	var weighted, weightSum float64
	for i, score := range nonzero {
		w := math.Pow(s.cal.DecayBase, float64(i))
		weighted += score * w
		weightSum += w
	}
	return weighted / weightSum
}

// confidence derives how much to trust the pattern assessment. It is
// clamped to [0.5, 0.95]: pattern matching never claims near-certainty
// and never near-zero confidence.
func (s *Scorer) confidence(text string, scores map[Category]float64, top float64) float64 {
	conf := s.cal.BaseConfidence

	switch n := len(text); {
	case n < 20:
		conf -= 0.2
	case n > 100:
		conf += 0.1
	}

	nonzero := 0
	for _, cat := range Categories {
		if scores[cat] > 0 {
			nonzero++
		}
	}
	if nonzero >= 2 {
		conf += 0.1
	}

	switch {
	case top > 0.8:
		conf += 0.1
	case top > 0 && top < 0.5:
		conf -= 0.1
	}

	if conf < 0.5 {
		conf = 0.5
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func isAcute(cat Category) bool {
	switch cat {
	case CategorySuicidalIdeation, CategorySelfHarm, CategoryHarmOthers:
		return true
	}
	return false
}
