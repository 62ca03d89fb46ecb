package risk

import (
	"reflect"
	"testing"
)

func newTestScorer() *Scorer {
	return NewScorer(DefaultCalibration())
}

func TestAssessEmptyInputIsZero(t *testing.T) {
	s := newTestScorer()

	for _, text := range []string{"", "   ", "\n\t ", `\n\n`} {
		a := s.Assess(text)
		if a.OverallScore != 0 {
			t.Fatalf("text %q: expected zero score, got %v", text, a.OverallScore)
		}
		if a.Primary != CategoryNone {
			t.Fatalf("text %q: expected primary none, got %s", text, a.Primary)
		}
		if a.ImmediateAction {
			t.Fatalf("text %q: immediate action must not fire on empty input", text)
		}
	}
}

func TestAssessSevereSuicidalPhrase(t *testing.T) {
	s := newTestScorer()

	a := s.Assess("I am going to kill myself")
	if a.Primary != CategorySuicidalIdeation {
		t.Fatalf("expected suicidal_ideation, got %s", a.Primary)
	}
	if a.OverallScore < 0.9 {
		t.Fatalf("expected near-maximal score, got %v", a.OverallScore)
	}
	if !a.ImmediateAction {
		t.Fatalf("expected immediate action for severe literal phrase")
	}
}

func TestScoreStrongestPatternDominates(t *testing.T) {
	s := newTestScorer()

	// Benign padding must not dilute a severe literal phrase.
	padded := "The weather was nice today and we talked about work, but honestly I want to die."
	score, matches := s.Score(Normalize(padded), CategorySuicidalIdeation)
	if score < 0.85 {
		t.Fatalf("expected score >= pattern weight, got %v", score)
	}
	if len(matches) != 1 {
		t.Fatalf("expected a single match, got %d", len(matches))
	}
}

func TestScoreCorroborationBonusIsCapped(t *testing.T) {
	s := newTestScorer()

	text := Normalize("I feel hopeless and worthless, nothing matters, no point in anything, I'm empty inside and can't go on")
	score, matches := s.Score(text, CategorySevereDepression)
	if len(matches) < 4 {
		t.Fatalf("expected several corroborating matches, got %d", len(matches))
	}
	// cap: max weight 0.7 * 1.3
	if score > 0.7*1.3+1e-9 {
		t.Fatalf("corroboration bonus exceeded cap: %v", score)
	}
	if score <= 0.7 {
		t.Fatalf("corroboration should raise the score above the single max weight, got %v", score)
	}
}

func TestAssessSecondaryRisks(t *testing.T) {
	s := newTestScorer()

	a := s.Assess("I've been drinking too much since the panic attacks started and I feel completely hopeless")
	if a.Primary == CategoryNone {
		t.Fatalf("expected a primary risk")
	}
	if len(a.Secondary) == 0 {
		t.Fatalf("expected secondary risks above threshold")
	}
	for _, sec := range a.Secondary {
		if sec == a.Primary {
			t.Fatalf("secondary risks must exclude the primary")
		}
		if a.CategoryScores[sec] <= 0.3 {
			t.Fatalf("secondary %s scored %v, below threshold", sec, a.CategoryScores[sec])
		}
	}
}

func TestAssessTieBreaksTowardSeverityOrder(t *testing.T) {
	s := newTestScorer()

	// Both categories hit via patterns of equal weight (0.85).
	a := s.Assess("I keep wanting to die and I've started to hurt myself")
	if a.Primary != CategorySuicidalIdeation {
		t.Fatalf("tie must break toward suicidal_ideation, got %s", a.Primary)
	}
}

func TestAssessConfidenceBounds(t *testing.T) {
	s := newTestScorer()

	cases := []string{
		"sad",
		"I am going to kill myself",
		"I've been feeling really sad lately and hopeless about everything going on in my life right now, nothing seems to help at all",
		"completely unrelated text about gardening and recipes",
	}
	for _, text := range cases {
		a := s.Assess(text)
		if a.Confidence < 0.5 || a.Confidence > 0.95 {
			t.Fatalf("text %q: confidence %v out of [0.5, 0.95]", text, a.Confidence)
		}
	}
}

func TestAssessIsDeterministic(t *testing.T) {
	s := newTestScorer()

	text := "I can't stop drinking and I feel worthless"
	a := s.Assess(text)
	b := s.Assess(text)

	a.Timestamp = b.Timestamp
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated assessment differs:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeCollapsesWhitespaceAndEscapes(t *testing.T) {
	got := Normalize(`I feel\n\nso   alone
	today`)
	want := "I feel so alone today"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestRuleTableWeightsAreValid(t *testing.T) {
	for cat, rules := range RuleTables {
		if len(rules) == 0 {
			t.Fatalf("category %s has no rules", cat)
		}
		for _, r := range rules {
			if r.Weight <= 0 || r.Weight > 1 {
				t.Fatalf("category %s term %s: weight %v out of (0,1]", cat, r.Term, r.Weight)
			}
			if r.Term == "" {
				t.Fatalf("category %s: rule without evidence term", cat)
			}
		}
	}
}
