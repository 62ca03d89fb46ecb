package risk

import "regexp"

// Category is one clinical risk dimension scored independently.
type Category string

const (
	CategorySuicidalIdeation Category = "suicidal_ideation"
	CategorySelfHarm         Category = "self_harm"
	CategoryHarmOthers       Category = "harm_others"
	CategorySevereDepression Category = "severe_depression"
	CategorySevereAnxiety    Category = "severe_anxiety"
	CategorySubstanceIssue   Category = "substance_issue"

	// CategoryNone is reported when no category scored above zero.
	CategoryNone Category = "none"
)

// Categories lists all risk categories in severity order. Ties in
// scoring break toward the earlier entry, so suicidal ideation wins
// over any equally-scored category.
var Categories = []Category{
	CategorySuicidalIdeation,
	CategorySelfHarm,
	CategoryHarmOthers,
	CategorySevereDepression,
	CategorySevereAnxiety,
	CategorySubstanceIssue,
}

// Rule pairs a compiled matcher with a static severity weight in (0,1].
// Weights are calibration constants reviewed with the rule content;
// they are never learned or adjusted at runtime.
type Rule struct {
	Pattern *regexp.Regexp
	Term    string // short auditable tag for evidence trails
	Weight  float64
}

func rule(term string, weight float64, expr string) Rule {
	return Rule{
		Pattern: regexp.MustCompile(`(?i)` + expr),
		Term:    term,
		Weight:  weight,
	}
}

// RuleTables holds the versioned per-category pattern rules. The tables
// are built once at init and are read-only afterwards, so concurrent
// readers need no synchronization.
var RuleTables = map[Category][]Rule{
	CategorySuicidalIdeation: {
		rule("kill-myself", 0.95, `\bkill(ing)?\s+myself\b`),
		rule("take-my-own-life", 0.95, `\btake\s+my\s+own\s+life\b`),
		rule("end-my-life", 0.95, `\bend(ing)?\s+my\s+life\b`),
		rule("want-to-die", 0.85, `\b(want(s|ed|ing)?|wish(es|ed|ing)?)\s+to\s+die\b`),
		rule("suicidal", 0.85, `\bsuicidal\b`),
		rule("better-off-dead", 0.85, `\bbetter\s+off\s+dead\b`),
		rule("suicide", 0.80, `\bsuicide\b`),
		rule("no-reason-to-live", 0.80, `\bno\s+reason\s+to\s+(live|go\s+on)\b`),
		rule("end-it-all", 0.75, `\bend\s+it\s+all\b`),
		rule("dont-want-to-be-here", 0.70, `\bdon'?t\s+want\s+to\s+(be\s+here|exist|wake\s+up)\b`),
		rule("goodbye-forever", 0.60, `\b(goodbye|farewell)\s+forever\b`),
	},
	CategorySelfHarm: {
		rule("cutting-myself", 0.90, `\bcut(ting)?\s+myself\b`),
		rule("burning-myself", 0.85, `\bburn(ing)?\s+myself\b`),
		rule("hurt-myself", 0.85, `\bhurt(ing)?\s+myself\b`),
		rule("self-harm", 0.85, `\bself[\s-]?harm(ing)?\b`),
		rule("self-injury", 0.80, `\bself[\s-]?injur(y|e|ing)\b`),
		rule("punish-myself", 0.60, `\bpunish(ing)?\s+myself\b`),
		rule("deserve-pain", 0.60, `\bdeserve\s+(the\s+)?pain\b`),
	},
	CategoryHarmOthers: {
		rule("kill-someone", 0.90, `\bkill(ing)?\s+(him|her|them|someone|somebody|people)\b`),
		rule("hurt-someone", 0.80, `\bhurt(ing)?\s+(him|her|them|someone|somebody|people)\b`),
		rule("want-to-hurt", 0.80, `\bwant\s+to\s+(hurt|attack)\b`),
		rule("violent-thoughts", 0.65, `\bviolent\s+(thoughts|urges|fantasies)\b`),
		rule("make-them-pay", 0.60, `\bmake\s+(him|her|them)\s+pay\b`),
	},
	CategorySevereDepression: {
		rule("cant-go-on", 0.70, `\bcan'?t\s+go\s+on\b`),
		rule("completely-hopeless", 0.65, `\b(completely|totally|utterly)\s+hopeless\b`),
		rule("hopeless", 0.60, `\bhopeless\b`),
		rule("worthless", 0.60, `\bworthless\b`),
		rule("nothing-matters", 0.60, `\bnothing\s+matters\b`),
		rule("no-point", 0.60, `\bno\s+point\s+(in|to)\s+(anything|living|trying)\b`),
		rule("empty-inside", 0.55, `\b(empty|dead|numb)\s+inside\b`),
		rule("cant-get-out-of-bed", 0.55, `\bcan'?t\s+(even\s+)?get\s+out\s+of\s+bed\b`),
		rule("feeling-sad", 0.40, `\bfeel(ing)?\s+(really\s+|so\s+|very\s+)?(sad|down|low|depressed)\b`),
	},
	CategorySevereAnxiety: {
		rule("panic-attack", 0.70, `\bpanic\s+attack(s)?\b`),
		rule("overwhelming-fear", 0.65, `\boverwhelming\s+(fear|dread|panic)\b`),
		rule("cant-breathe", 0.65, `\bcan'?t\s+breathe\b`),
		rule("losing-control", 0.60, `\blosing\s+(control|my\s+mind)\b`),
		rule("heart-racing", 0.55, `\bheart\s+(is\s+)?(racing|pounding)\b`),
		rule("constant-worry", 0.55, `\bconstant(ly)?\s+(worry(ing)?|anxious|on\s+edge)\b`),
		rule("terrified", 0.50, `\bterrified\b`),
	},
	CategorySubstanceIssue: {
		rule("overdose", 0.85, `\boverdos(e|ed|ing)\b`),
		rule("too-many-pills", 0.80, `\btoo\s+many\s+pills\b`),
		rule("cant-stop-using", 0.75, `\bcan'?t\s+stop\s+(drinking|using|taking)\b`),
		rule("relapse", 0.65, `\brelaps(e|ed|ing)\b`),
		rule("drinking-too-much", 0.60, `\bdrink(ing)?\s+(too\s+much|every\s+day|to\s+cope)\b`),
		rule("blackout", 0.60, `\bblack(ed)?\s*out\s+(drunk|drinking)\b`),
		rule("using-again", 0.55, `\busing\s+again\b`),
	},
}
