package batch

import (
	"fmt"
	"strings"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// SIBLING EXCLUSIVITY
// =============================================================================

// SiblingIssue reports a pair of sibling definitions that may not be
// mutually exclusive.
type SiblingIssue struct {
	ClassIRI   string  `json:"class_iri"`
	SiblingIRI string  `json:"sibling_iri"`
	Similarity float64 `json:"similarity"`
	Detail     string  `json:"detail"`
}

// DefaultSiblingThreshold is the similarity above which two definitions are
// flagged.
const DefaultSiblingThreshold = 0.7

// SiblingAnalyzer compares each class's definition against its declared
// siblings using token-set similarity. Highly similar definitions suggest the
// differentia does not actually distinguish the classes. Advisory only.
type SiblingAnalyzer struct {
	// Threshold is the Jaccard similarity above which a pair is flagged.
	// Zero means DefaultSiblingThreshold.
	Threshold float64
}

// Analyze compares declared sibling pairs present in the batch.
func (a *SiblingAnalyzer) Analyze(results []*core.LoopResult) []SiblingIssue {
	threshold := a.Threshold
	if threshold == 0 {
		threshold = DefaultSiblingThreshold
	}

	byIRI := make(map[string]*core.LoopResult, len(results))
	for _, r := range results {
		byIRI[r.ClassInfo.IRI] = r
	}

	seen := make(map[string]bool)
	var issues []SiblingIssue
	for _, r := range results {
		for _, siblingIRI := range r.ClassInfo.SiblingClasses {
			sibling, ok := byIRI[siblingIRI]
			if !ok {
				continue
			}
			// Each unordered pair is compared once.
			key := pairKey(r.ClassInfo.IRI, siblingIRI)
			if seen[key] {
				continue
			}
			seen[key] = true

			sim := jaccard(tokenSet(r.FinalDefinition), tokenSet(sibling.FinalDefinition))
			if sim >= threshold {
				issues = append(issues, SiblingIssue{
					ClassIRI:   r.ClassInfo.IRI,
					SiblingIRI: siblingIRI,
					Similarity: sim,
					Detail: fmt.Sprintf("definitions are %.0f%% similar; siblings should be distinguishable",
						sim*100),
				})
			}
		}
	}
	return issues
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// stopwords excluded from token comparison; shared scaffolding words would
// otherwise dominate the similarity score.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "that": true, "which": true,
	"of": true, "and": true, "or": true, "is": true, "to": true,
	"in": true, "by": true, "with": true, "for": true, "as": true,
}

// tokenSet normalizes a definition into a set of content words.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:()\"'")
		if len(word) < 2 || stopwords[word] {
			continue
		}
		set[word] = true
	}
	return set
}

// jaccard is intersection over union of two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
