package batch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// CROSS-CLASS CONSISTENCY
// =============================================================================

// ConsistencyIssueType classifies cross-class findings.
type ConsistencyIssueType string

const (
	// IssueTerminologyMix marks ICE definitions mixing aboutness verbs.
	IssueTerminologyMix ConsistencyIssueType = "terminology_mix"
	// IssuePatternMismatch marks an ICE definition not following the batch's
	// dominant opener pattern.
	IssuePatternMismatch ConsistencyIssueType = "pattern_mismatch"
	// IssuePossibleContradiction marks sibling definitions that negate each
	// other's wording.
	IssuePossibleContradiction ConsistencyIssueType = "possible_contradiction"
)

// ConsistencyIssue is one advisory cross-class finding. Issues never fail a
// batch; they are surfaced in reports for human review.
type ConsistencyIssue struct {
	Type      ConsistencyIssueType `json:"type"`
	ClassIRIs []string             `json:"class_iris"`
	Detail    string               `json:"detail"`
}

var (
	denotesPattern    = regexp.MustCompile(`\bdenotes\b|\bis about\b`)
	representsPattern = regexp.MustCompile(`\brepresents\b|\brefers to\b`)
	iceOpenerPattern  = regexp.MustCompile(`^an (ice|information content entity)\b`)
	negationPattern   = regexp.MustCompile(`\b(?:not|never|without)\s+(\w+)`)
)

// ConsistencyAnalyzer inspects the final definitions of a completed batch for
// cross-class inconsistencies a per-class checklist cannot see.
type ConsistencyAnalyzer struct {
	logger core.Logger
}

// NewConsistencyAnalyzer creates an analyzer. Pass nil logger to disable
// logging.
func NewConsistencyAnalyzer(logger core.Logger) *ConsistencyAnalyzer {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &ConsistencyAnalyzer{logger: logger.Bind("component", "consistency")}
}

// Analyze runs all cross-class checks over the batch results.
func (a *ConsistencyAnalyzer) Analyze(results []*core.LoopResult) []ConsistencyIssue {
	var issues []ConsistencyIssue
	issues = append(issues, a.checkTerminology(results)...)
	issues = append(issues, a.checkPatterns(results)...)
	issues = append(issues, a.checkContradictions(results)...)

	if len(issues) > 0 {
		a.logger.Info("consistency_issues_found", "count", len(issues))
	}
	return issues
}

// checkTerminology flags ICE definitions using representational verbs when
// the rest of the batch uses denotational ones.
func (a *ConsistencyAnalyzer) checkTerminology(results []*core.LoopResult) []ConsistencyIssue {
	var denoting, representing []string
	for _, r := range results {
		if !r.ClassInfo.IsICE {
			continue
		}
		lower := strings.ToLower(r.FinalDefinition)
		if denotesPattern.MatchString(lower) {
			denoting = append(denoting, r.ClassInfo.IRI)
		}
		if representsPattern.MatchString(lower) {
			representing = append(representing, r.ClassInfo.IRI)
		}
	}

	if len(denoting) > 0 && len(representing) > 0 {
		return []ConsistencyIssue{{
			Type:      IssueTerminologyMix,
			ClassIRIs: representing,
			Detail: fmt.Sprintf("%d ICE definitions use denotes/is-about while %d use represents/refers-to",
				len(denoting), len(representing)),
		}}
	}
	return nil
}

// checkPatterns flags ICE definitions deviating from the ICE opener when the
// majority of ICE definitions in the batch follow it.
func (a *ConsistencyAnalyzer) checkPatterns(results []*core.LoopResult) []ConsistencyIssue {
	var following, deviating []string
	for _, r := range results {
		if !r.ClassInfo.IsICE {
			continue
		}
		if iceOpenerPattern.MatchString(strings.ToLower(r.FinalDefinition)) {
			following = append(following, r.ClassInfo.IRI)
		} else {
			deviating = append(deviating, r.ClassInfo.IRI)
		}
	}

	if len(following) > len(deviating) && len(deviating) > 0 {
		var issues []ConsistencyIssue
		for _, iri := range deviating {
			issues = append(issues, ConsistencyIssue{
				Type:      IssuePatternMismatch,
				ClassIRIs: []string{iri},
				Detail:    "ICE definition does not follow the batch's dominant 'An information content entity...' opener",
			})
		}
		return issues
	}
	return nil
}

// checkContradictions flags sibling definitions (same parent) where one
// negates a term the other asserts.
func (a *ConsistencyAnalyzer) checkContradictions(results []*core.LoopResult) []ConsistencyIssue {
	byParent := make(map[string][]*core.LoopResult)
	for _, r := range results {
		if r.ClassInfo.ParentClass != "" {
			byParent[r.ClassInfo.ParentClass] = append(byParent[r.ClassInfo.ParentClass], r)
		}
	}

	var issues []ConsistencyIssue
	for _, group := range byParent {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				negated := negatedTerms(group[i].FinalDefinition)
				other := tokenSet(group[j].FinalDefinition)
				for _, term := range negated {
					if other[term] {
						issues = append(issues, ConsistencyIssue{
							Type:      IssuePossibleContradiction,
							ClassIRIs: []string{group[i].ClassInfo.IRI, group[j].ClassInfo.IRI},
							Detail:    fmt.Sprintf("one sibling negates '%s' while the other asserts it", term),
						})
						break
					}
				}
			}
		}
	}
	return issues
}

func negatedTerms(definition string) []string {
	matches := negationPattern.FindAllStringSubmatch(strings.ToLower(definition), -1)
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, m[1])
	}
	return terms
}
