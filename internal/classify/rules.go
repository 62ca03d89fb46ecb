package classify

import "regexp"

// contextRule pairs a compiled matcher with a static weight, mirroring
// the risk rule tables. The tables are data: scoring mechanics live in
// the classifier so rule content can be versioned and audited on its
// own.
type contextRule struct {
	pattern *regexp.Regexp
	term    string
	weight  float64
}

func ctxRule(term string, weight float64, expr string) contextRule {
	return contextRule{
		pattern: regexp.MustCompile(`(?i)` + expr),
		term:    term,
		weight:  weight,
	}
}

// contextRuleTables covers the four explicitly-scored context types.
// Crisis is folded in from the crisis orchestrator and general is a
// constant baseline, so neither has a table here.
var contextRuleTables = map[ContextType][]contextRule{
	ContextEducational: {
		ctxRule("what-is", 0.60, `\bwhat\s+(is|are|does)\b`),
		ctxRule("how-does-work", 0.60, `\bhow\s+(does|do|can)\b.*\b(work|help|affect)`),
		ctxRule("explain", 0.55, `\bexplain\b`),
		ctxRule("tell-me-about", 0.55, `\btell\s+me\s+(more\s+)?about\b`),
		ctxRule("learn-about", 0.55, `\blearn\s+(more\s+)?about\b`),
		ctxRule("difference-between", 0.50, `\bdifference\s+between\b`),
		ctxRule("definition", 0.50, `\b(define|definition|meaning)\s+(of)?\b`),
		ctxRule("why-do", 0.45, `\bwhy\s+(do|does|is|are)\b`),
	},
	ContextSupport: {
		ctxRule("need-to-talk", 0.65, `\bneed\s+(someone\s+)?to\s+talk\b`),
		ctxRule("feeling-low", 0.60, `\bfeel(ing)?\s+(really\s+|so\s+|very\s+)?(sad|down|low|lonely|alone|awful|terrible)\b`),
		ctxRule("having-hard-time", 0.60, `\bhaving\s+a\s+(hard|rough|tough|difficult)\s+(time|day|week)\b`),
		ctxRule("struggling", 0.55, `\bstruggling\b`),
		ctxRule("overwhelmed", 0.55, `\b(feel(ing)?\s+)?overwhelmed\b`),
		ctxRule("going-through", 0.50, `\bgoing\s+through\s+(a\s+lot|something|a\s+break)`),
		ctxRule("no-one-understands", 0.50, `\bno\s+one\s+(understands|listens|cares)\b`),
		ctxRule("lately", 0.35, `\blately\b`),
	},
	ContextClinicalAssessment: {
		ctxRule("screening-tool", 0.70, `\b(phq-?9|gad-?7|screening\s+(tool|questionnaire))\b`),
		ctxRule("do-i-have", 0.60, `\bdo\s+i\s+have\b`),
		ctxRule("diagnosis", 0.60, `\bdiagnos(is|ed|e)\b`),
		ctxRule("assessment", 0.55, `\b(assess(ment)?|evaluat(e|ion))\b`),
		ctxRule("my-therapist", 0.50, `\bmy\s+(therapist|psychiatrist|doctor|counselor)\b`),
		ctxRule("medication", 0.50, `\b(medication|meds|prescri(bed|ption)|dosage)\b`),
		ctxRule("symptoms-check", 0.45, `\b(my|these)\s+symptoms\b`),
	},
	ContextInformational: {
		ctxRule("hotline", 0.60, `\b(hotline|helpline|crisis\s+line)\b`),
		ctxRule("where-to-find", 0.55, `\bwhere\s+(can|do)\s+i\s+(find|get|go)\b`),
		ctxRule("how-to-access", 0.55, `\bhow\s+(do|can)\s+i\s+(find|get|access|contact)\b`),
		ctxRule("resources", 0.50, `\bresources?\b`),
		ctxRule("information-about", 0.50, `\binformation\s+(about|on)\b`),
		ctxRule("services", 0.45, `\b(support\s+)?services\b`),
		ctxRule("cost-insurance", 0.45, `\b(cost|insurance|coverage|afford)\b`),
	},
}
