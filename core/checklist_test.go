package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoloom/ontoloom/config"
)

func resultByCode(t *testing.T, results []CheckResult, code string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Code == code {
			return r
		}
	}
	t.Fatalf("no result with code %s", code)
	return CheckResult{}
}

// =============================================================================
// RED FLAG TESTS
// =============================================================================

func TestRedFlagDetector(t *testing.T) {
	tests := []struct {
		name       string
		definition string
		failCodes  []string
	}{
		{"clean", "A material entity that is part of a larger whole.", nil},
		{"process verb", "A phrase extracted from the source text.", []string{"R1"}},
		{"represents", "An entity that represents a person.", []string{"R2"}},
		{"functional language", "A tool that serves to measure temperature.", []string{"R3"}},
		{"syntactic terms", "A noun phrase encoded as a string.", []string{"R4"}},
		{"multiple", "A noun phrase that represents data detected in text.", []string{"R1", "R2", "R4"}},
	}

	var detector RedFlagDetector
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := detector.Check(tt.definition)
			require.Len(t, results, 4, "one result per category")

			var failed []string
			for _, r := range results {
				assert.Equal(t, SeverityRedFlag, r.Severity)
				if !r.Passed {
					failed = append(failed, r.Code)
				}
			}
			assert.ElementsMatch(t, tt.failCodes, failed)
		})
	}
}

// =============================================================================
// CIRCULARITY TESTS
// =============================================================================

func TestCircularityChecker(t *testing.T) {
	var checker CircularityChecker

	tests := []struct {
		name       string
		term       string
		definition string
		circular   bool
	}{
		{"clean", "Sentence", "A linguistic expression with a complete thought.", false},
		{"direct", "Sentence", "A sentence that expresses a thought.", true},
		{"plural variant", "Sentence", "A grouping of sentences in a paragraph.", true},
		{"multiword term word", "Verb Phrase", "A phrase headed by a verb.", true},
		{"gerund variant", "Parse", "The result of parsing an input.", true},
		{"substring no boundary", "Cat", "A categorical assertion about the world.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.Check(tt.definition, tt.term)
			assert.Equal(t, "C3", result.Code)
			assert.Equal(t, SeverityRequired, result.Severity)
			assert.Equal(t, !tt.circular, result.Passed, result.Evidence)
		})
	}
}

func TestTermVariants_SkipsShortWords(t *testing.T) {
	variants := termVariants("an ox")
	for _, v := range variants {
		assert.Greater(t, len(v), 2, "variant %q too short", v)
	}
}

// =============================================================================
// EVALUATOR TESTS
// =============================================================================

const passingDefinition = "A directive information entity that prescribes the steps of a planned process."

func TestChecklistEvaluator_PassingDefinition(t *testing.T) {
	e := NewChecklistEvaluator(nil)
	info := ClassInfo{IRI: ":Protocol", Label: "Protocol", ParentClass: "cco:DirectiveInformationContentEntity"}

	results := e.Evaluate(passingDefinition, info)
	for _, r := range results {
		assert.True(t, r.Passed, "%s failed: %s", r.Code, r.Evidence)
	}
	assert.Equal(t, StatusPass, e.DetermineStatus(results, false))
}

func TestChecklistEvaluator_ICEChecksOnlyWhenICE(t *testing.T) {
	e := NewChecklistEvaluator(nil)

	plain := e.Evaluate(passingDefinition, ClassInfo{Label: "Protocol"})
	for _, r := range plain {
		assert.NotEqual(t, SeverityICERequired, r.Severity, "non-ICE class got ICE check %s", r.Code)
	}

	ice := e.Evaluate(passingDefinition, ClassInfo{Label: "Protocol", IsICE: true})
	codes := make(map[string]bool)
	for _, r := range ice {
		codes[r.Code] = true
	}
	for _, code := range []string{"I1", "I2", "I3"} {
		assert.True(t, codes[code], "missing %s", code)
	}
}

func TestChecklistEvaluator_ICEDefinition(t *testing.T) {
	e := NewChecklistEvaluator(nil)
	info := ClassInfo{Label: "Person Name", IsICE: true}

	good := "An information content entity that denotes a human being by a conventional label."
	results := e.Evaluate(good, info)
	assert.True(t, resultByCode(t, results, "I1").Passed)
	assert.True(t, resultByCode(t, results, "I2").Passed)
	assert.True(t, resultByCode(t, results, "I3").Passed)
	assert.Equal(t, StatusPass, e.DetermineStatus(results, true))

	bad := "A textual label that refers to a human being in ordinary discourse."
	results = e.Evaluate(bad, info)
	assert.False(t, resultByCode(t, results, "I1").Passed)
	assert.Equal(t, StatusFail, e.DetermineStatus(results, true))
	assert.Equal(t, StatusPass, e.DetermineStatus(results, false),
		"ice_required failures are ignored for non-ICE classes")
}

func TestChecklistEvaluator_SingleSentence(t *testing.T) {
	e := NewChecklistEvaluator(nil)
	info := ClassInfo{Label: "Widget"}

	single := e.Evaluate("A component that performs one function.", info)
	assert.True(t, resultByCode(t, single, "C4").Passed)

	double := e.Evaluate("A component that performs one function. It is also reusable.", info)
	assert.False(t, resultByCode(t, double, "C4").Passed)

	abbrev := e.Evaluate("A component of approx. 3 units that performs one function.", info)
	assert.True(t, resultByCode(t, abbrev, "C4").Passed,
		"period not followed by capitalized word is not a sentence break")
}

func TestChecklistEvaluator_QualityChecks(t *testing.T) {
	e := NewChecklistEvaluator(nil)
	info := ClassInfo{Label: "Widget"}

	short := e.Evaluate("A set that is odd.", info)
	assert.False(t, resultByCode(t, short, "Q1").Passed)

	long := e.Evaluate("A device that "+strings.Repeat("performs many elaborate functions and ", 10)+"exists.", info)
	assert.False(t, resultByCode(t, long, "Q1").Passed)

	cluttered := e.Evaluate("A part (one, two, three), that has (a), (b), (c), and more, always, somewhere.", info)
	assert.False(t, resultByCode(t, cluttered, "Q2").Passed)

	vague := e.Evaluate("A kind of stuff that fills containers when present.", info)
	assert.False(t, resultByCode(t, vague, "Q3").Passed)
}

func TestChecklistEvaluator_DetermineStatus(t *testing.T) {
	e := NewChecklistEvaluator(nil)

	tests := []struct {
		name    string
		results []CheckResult
		isICE   bool
		want    VerifyStatus
	}{
		{"all pass", []CheckResult{{Code: "C1", Passed: true, Severity: SeverityRequired}}, false, StatusPass},
		{"red flag fails", []CheckResult{{Code: "R1", Passed: false, Severity: SeverityRedFlag}}, false, StatusFail},
		{"required fails", []CheckResult{{Code: "C3", Passed: false, Severity: SeverityRequired}}, false, StatusFail},
		{"only quality fails", []CheckResult{
			{Code: "C1", Passed: true, Severity: SeverityRequired},
			{Code: "Q1", Passed: false, Severity: SeverityQuality},
		}, false, StatusIterate},
		{"ice fails for ice", []CheckResult{{Code: "I1", Passed: false, Severity: SeverityICERequired}}, true, StatusFail},
		{"ice ignored for non-ice", []CheckResult{{Code: "I1", Passed: false, Severity: SeverityICERequired}}, false, StatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.DetermineStatus(tt.results, tt.isICE))
		})
	}
}

// =============================================================================
// CUSTOM RULE TESTS
// =============================================================================

func TestCustomRuleEvaluator(t *testing.T) {
	rules := []config.CustomRule{
		{Name: "no latin", Pattern: `\bi\.e\.`, Message: "Avoid latin abbreviations", Severity: config.RuleSeverityWarning, Enabled: true},
		{Name: "no banned word", Pattern: `\bforbidden\b`, Message: "Banned word", Severity: config.RuleSeverityError, Enabled: true},
		{Name: "disabled", Pattern: `.*`, Message: "never fires", Severity: config.RuleSeverityInfo, Enabled: false},
	}
	for i := range rules {
		require.NoError(t, rules[i].Validate())
	}

	e := NewChecklistEvaluator(rules)
	info := ClassInfo{Label: "Widget"}

	results := e.Evaluate("A part that holds a forbidden value, i.e. anything.", info)

	x1 := resultByCode(t, results, "X1")
	assert.False(t, x1.Passed)
	assert.Equal(t, SeverityQuality, x1.Severity, "warning maps to quality")

	x2 := resultByCode(t, results, "X2")
	assert.False(t, x2.Passed)
	assert.Equal(t, SeverityRedFlag, x2.Severity, "error maps to red_flag")
	assert.Equal(t, StatusFail, e.DetermineStatus(results, false))

	for _, r := range results {
		assert.NotEqual(t, "X3", r.Code, "disabled rules produce no result")
	}
}
