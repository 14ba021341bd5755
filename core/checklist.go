package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ontoloom/ontoloom/config"
)

// =============================================================================
// RED FLAG DETECTOR
// =============================================================================

// Red flags are patterns that indicate fundamental problems a minor
// refinement cannot fix; any match forces FAIL.
//
//	R1: process verbs (extracted, detected, ...) - definitions say what a
//	    thing IS, not how it was produced
//	R2: "represents" instead of "denotes"
//	R3: functional language (serves to, used to, ...)
//	R4: syntactic terms (noun phrase, encoded as, ...)
var (
	r1Patterns = compileAll(`\bextracted\b`, `\bdetected\b`, `\bidentified\b`, `\bparsed\b`)
	r2Patterns = compileAll(`\brepresents\b`)
	r3Patterns = compileAll(`\bserves to\b`, `\bused to\b`, `\bfunctions to\b`)
	r4Patterns = compileAll(`\bnoun phrase\b`, `\bverb phrase\b`, `\bencoded as\b`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// RedFlagDetector detects anti-patterns R1-R4 in definitions.
type RedFlagDetector struct{}

// Check evaluates a definition against all red flag categories, producing
// one result per category.
func (RedFlagDetector) Check(definition string) []CheckResult {
	lower := strings.ToLower(definition)

	categories := []struct {
		code     string
		name     string
		patterns []*regexp.Regexp
		found    string
		clean    string
	}{
		{"R1", "No process verbs", r1Patterns, "Found process verbs: %s", "No process verbs found"},
		{"R2", "Uses 'denotes' not 'represents'", r2Patterns, "Found 'represents' - ICEs should 'denote', not 'represent'", "Correct: does not use 'represents'"},
		{"R3", "No functional language", r3Patterns, "Found functional language: %s", "No functional language found"},
		{"R4", "No syntactic terms", r4Patterns, "Found syntactic terms: %s", "No syntactic terms found"},
	}

	results := make([]CheckResult, 0, len(categories))
	for _, cat := range categories {
		matches := findMatches(lower, cat.patterns)
		evidence := cat.clean
		if len(matches) > 0 {
			if strings.Contains(cat.found, "%s") {
				evidence = fmt.Sprintf(cat.found, strings.Join(matches, ", "))
			} else {
				evidence = cat.found
			}
		}
		results = append(results, CheckResult{
			Code:     cat.code,
			Name:     cat.name,
			Passed:   len(matches) == 0,
			Evidence: evidence,
			Severity: SeverityRedFlag,
		})
	}
	return results
}

func findMatches(text string, patterns []*regexp.Regexp) []string {
	var matches []string
	for _, p := range patterns {
		matches = append(matches, p.FindAllString(text, -1)...)
	}
	return matches
}

// =============================================================================
// CIRCULARITY CHECKER
// =============================================================================

// CircularityChecker detects the defined term appearing in its own
// definition, directly or through morphological variants.
type CircularityChecker struct{}

// Check reports whether the term (or a variant of it) occurs in the
// definition, using word-boundary matching to avoid false positives.
func (CircularityChecker) Check(definition, term string) CheckResult {
	lower := strings.ToLower(definition)
	variants := termVariants(strings.ToLower(term))

	var found []string
	for _, v := range variants {
		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
		if pattern.MatchString(lower) {
			found = append(found, v)
		}
	}

	evidence := "Definition does not contain the term being defined"
	if len(found) > 0 {
		evidence = "Term appears in definition: " + strings.Join(found, ", ")
	}
	return CheckResult{
		Code:     "C3",
		Name:     "Non-circular",
		Passed:   len(found) == 0,
		Evidence: evidence,
		Severity: SeverityRequired,
	}
}

// termVariants generates morphological variants of a lowercase term: the
// term itself, its individual words, plural/singular, -ing and -ed forms.
// Variants shorter than three characters are skipped.
func termVariants(term string) []string {
	variants := []string{term}
	words := strings.Fields(term)
	if len(words) > 1 {
		variants = append(variants, words...)
	}
	for _, word := range words {
		if !strings.HasSuffix(word, "s") {
			variants = append(variants, word+"s")
		} else {
			variants = append(variants, strings.TrimSuffix(word, "s"))
		}
		if strings.HasSuffix(word, "e") {
			variants = append(variants, strings.TrimSuffix(word, "e")+"ing")
		} else if !strings.HasSuffix(word, "ing") {
			variants = append(variants, word+"ing")
		}
		if strings.HasSuffix(word, "e") {
			variants = append(variants, word+"d")
		} else if !strings.HasSuffix(word, "ed") {
			variants = append(variants, word+"ed")
		}
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(variants))
	for _, v := range variants {
		if len(v) <= 2 || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	return unique
}

// =============================================================================
// CUSTOM RULE EVALUATOR
// =============================================================================

// CustomRuleEvaluator applies user-defined regex rules. Rule codes are
// assigned positionally: X1, X2, ...
type CustomRuleEvaluator struct {
	Rules []config.CustomRule
}

// Evaluate checks the definition against every enabled rule.
func (e CustomRuleEvaluator) Evaluate(definition string) []CheckResult {
	results := make([]CheckResult, 0, len(e.Rules))
	for i := range e.Rules {
		rule := &e.Rules[i]
		if !rule.Enabled {
			continue
		}

		match := rule.Matches(definition)
		severity := SeverityQuality
		if rule.Severity == config.RuleSeverityError {
			severity = SeverityRedFlag
		}

		evidence := fmt.Sprintf("No match for custom rule: %s", rule.Name)
		if match != "" {
			evidence = fmt.Sprintf("%s (matched: '%s')", rule.Message, match)
		}
		results = append(results, CheckResult{
			Code:     fmt.Sprintf("X%d", i+1),
			Name:     rule.Name,
			Passed:   match == "",
			Evidence: evidence,
			Severity: severity,
		})
	}
	return results
}

// =============================================================================
// CHECKLIST EVALUATOR
// =============================================================================

var (
	genusPatterns = compileAll(`^a[n]?\s+\w+`, `^the\s+\w+`)

	differentiaPatterns = compileAll(
		`\bthat\b`, `\bwhich\b`, `\bwhere\b`, `\bwhen\b`,
		`\bcharacterized by\b`, `\bdefined by\b`, `\bdistinguished by\b`,
	)

	iceStarterPatterns = compileAll(`^an ice\b`, `^an information content entity\b`, `^a[n]? .* ice\b`)
	iceVerbPatterns    = compileAll(`\bdenotes\b`, `\bis about\b`, `\bthat is about\b`)
	denotationPatterns = compileAll(`\bdenotes\s+\w+`, `\bis about\s+\w+`, `\bthat is about\s+\w+`)

	nonStandardPatterns = compileAll(
		`\bstuff\b`, `\bthing\b(?:[^s]|$)`, `\bkind of\b`, `\bsort of\b`, `\btype of\b`,
	)

	sentenceSplit = regexp.MustCompile(`[.!?]\s+[A-Z]`)
	camelSplit    = regexp.MustCompile(`([A-Z])`)
)

// ChecklistEvaluator runs the automated checklist over a definition. It is a
// pure function of its inputs: no network, no shared state, safe for
// concurrent use.
//
// Check categories:
//  1. Core requirements C1-C4: must all pass for PASS
//  2. ICE requirements I1-I3: must pass when IsICE
//  3. Quality checks Q1-Q3: desirable but not required
//  4. Red flags R1-R4: any failure forces FAIL
//  5. Custom rules X1-Xn
type ChecklistEvaluator struct {
	redFlags    RedFlagDetector
	circularity CircularityChecker
	customRules CustomRuleEvaluator
}

// NewChecklistEvaluator creates an evaluator, optionally with custom rules.
func NewChecklistEvaluator(rules []config.CustomRule) *ChecklistEvaluator {
	return &ChecklistEvaluator{
		customRules: CustomRuleEvaluator{Rules: rules},
	}
}

// Evaluate runs all applicable checks for the class against the definition.
func (e *ChecklistEvaluator) Evaluate(definition string, info ClassInfo) []CheckResult {
	var results []CheckResult
	results = append(results, e.checkCoreRequirements(definition, info.Label, info.ParentClass)...)
	if info.IsICE {
		results = append(results, e.checkICERequirements(definition)...)
	}
	results = append(results, e.checkQuality(definition)...)
	results = append(results, e.redFlags.Check(definition)...)
	results = append(results, e.customRules.Evaluate(definition)...)
	return results
}

// DetermineStatus classifies combined check results.
//
//	FAIL    any failing red_flag or required check, or failing ice_required
//	        when isICE
//	ITERATE only quality checks fail
//	PASS    otherwise
func (e *ChecklistEvaluator) DetermineStatus(results []CheckResult, isICE bool) VerifyStatus {
	qualityFailed := false
	for _, r := range results {
		if r.Passed {
			continue
		}
		switch r.Severity {
		case SeverityRedFlag, SeverityRequired:
			return StatusFail
		case SeverityICERequired:
			if isICE {
				return StatusFail
			}
		case SeverityQuality:
			qualityFailed = true
		}
	}
	if qualityFailed {
		return StatusIterate
	}
	return StatusPass
}

func (e *ChecklistEvaluator) checkCoreRequirements(definition, term, parentClass string) []CheckResult {
	results := make([]CheckResult, 0, 4)

	hasGenus := checkGenusStructure(definition, parentClass)
	results = append(results, CheckResult{
		Code:   "C1",
		Name:   "Genus present",
		Passed: hasGenus,
		Evidence: pick(hasGenus,
			"Definition appears to have genus-differentia structure",
			"Definition may lack proper genus (parent class reference)"),
		Severity: SeverityRequired,
	})

	hasDifferentia := anyMatch(strings.ToLower(definition), differentiaPatterns)
	results = append(results, CheckResult{
		Code:   "C2",
		Name:   "Differentia present",
		Passed: hasDifferentia,
		Evidence: pick(hasDifferentia,
			"Definition includes distinguishing characteristics",
			"Definition may lack differentia (distinguishing features)"),
		Severity: SeverityRequired,
	})

	results = append(results, e.circularity.Check(definition, term))

	singleSentence := sentenceSplit.FindStringIndex(strings.TrimSpace(definition)) == nil
	results = append(results, CheckResult{
		Code:   "C4",
		Name:   "Single sentence",
		Passed: singleSentence,
		Evidence: pick(singleSentence,
			"Definition is a single, complete sentence",
			"Definition should be a single sentence"),
		Severity: SeverityRequired,
	})

	return results
}

func (e *ChecklistEvaluator) checkICERequirements(definition string) []CheckResult {
	lower := strings.ToLower(definition)
	results := make([]CheckResult, 0, 3)

	startsWithICE := anyMatch(lower, iceStarterPatterns)
	results = append(results, CheckResult{
		Code:   "I1",
		Name:   "ICE pattern start",
		Passed: startsWithICE,
		Evidence: pick(startsWithICE,
			"Definition correctly starts with ICE pattern",
			"ICE definitions should start with 'An ICE...'"),
		Severity: SeverityICERequired,
	})

	hasICEVerb := anyMatch(lower, iceVerbPatterns)
	results = append(results, CheckResult{
		Code:   "I2",
		Name:   "Uses 'denotes' or 'is about'",
		Passed: hasICEVerb,
		Evidence: pick(hasICEVerb,
			"Definition uses appropriate ICE verb (denotes/is about)",
			"ICE definitions should use 'denotes' or 'is about'"),
		Severity: SeverityICERequired,
	})

	hasDenotation := anyMatch(lower, denotationPatterns)
	results = append(results, CheckResult{
		Code:   "I3",
		Name:   "Specifies denotation",
		Passed: hasDenotation,
		Evidence: pick(hasDenotation,
			"Definition specifies what the ICE denotes",
			"ICE definitions should specify what they denote"),
		Severity: SeverityICERequired,
	})

	return results
}

func (e *ChecklistEvaluator) checkQuality(definition string) []CheckResult {
	results := make([]CheckResult, 0, 3)

	length := len(definition)
	okLength := length >= 20 && length <= 300
	lengthEvidence := fmt.Sprintf("Definition length (%d chars) is appropriate", length)
	if !okLength {
		direction := "long"
		if length < 20 {
			direction = "short"
		}
		lengthEvidence = fmt.Sprintf("Definition length (%d chars) may be too %s", length, direction)
	}
	results = append(results, CheckResult{
		Code:     "Q1",
		Name:     "Appropriate length",
		Passed:   okLength,
		Evidence: lengthEvidence,
		Severity: SeverityQuality,
	})

	parens := strings.Count(definition, "(") + strings.Count(definition, ")")
	commas := strings.Count(definition, ",")
	readable := parens <= 4 && commas <= 5
	results = append(results, CheckResult{
		Code:   "Q2",
		Name:   "Clear and readable",
		Passed: readable,
		Evidence: pick(readable,
			"Definition is clear and readable",
			"Definition may be overly complex or unclear"),
		Severity: SeverityQuality,
	})

	standard := !anyMatch(strings.ToLower(definition), nonStandardPatterns)
	results = append(results, CheckResult{
		Code:   "Q3",
		Name:   "Standard terminology",
		Passed: standard,
		Evidence: pick(standard,
			"Definition uses standard ontology terminology",
			"Definition may use non-standard terminology"),
		Severity: SeverityQuality,
	})

	return results
}

// checkGenusStructure accepts a definition opening with an article ("A/An/The
// <noun>") or, when a parent class is known, one that references a word from
// the parent's CamelCase name.
func checkGenusStructure(definition, parentClass string) bool {
	lower := strings.ToLower(definition)
	hasGenusPattern := anyMatch(lower, genusPatterns)

	if parentClass == "" {
		return hasGenusPattern
	}

	parts := strings.Split(parentClass, ":")
	parentName := parts[len(parts)-1]
	spaced := strings.ToLower(camelSplit.ReplaceAllString(parentName, " $1"))
	for _, word := range strings.Fields(spaced) {
		if len(word) > 2 && strings.Contains(lower, word) {
			return true
		}
	}
	return hasGenusPattern
}

func anyMatch(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func pick(cond bool, pass, fail string) string {
	if cond {
		return pass
	}
	return fail
}
