package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoloom/ontoloom/batch"
	"github.com/ontoloom/ontoloom/core"
)

func sampleResult() *core.LoopResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &core.LoopResult{
		RunID: "run-1",
		ClassInfo: core.ClassInfo{
			IRI:         ":Invoice",
			Label:       "Invoice",
			ParentClass: ":Document",
		},
		FinalDefinition: "A document that records a request for payment.",
		Status:          core.StatusPass,
		Iterations: []core.LoopIteration{
			{
				IterationNumber:     1,
				GeneratedDefinition: "A document that represents a request for payment.",
				CritiqueResults: []core.CheckResult{
					{Code: "R2", Name: "Uses 'denotes' not 'represents'", Passed: false, Severity: core.SeverityRedFlag},
				},
				RefinedDefinition: "A document that records a request for payment.",
				VerifyStatus:      core.StatusPass,
			},
		},
		TotalIterations: 1,
		StartedAt:       start,
		CompletedAt:     start.Add(3 * time.Second),
	}
}

// =============================================================================
// TURTLE TESTS
// =============================================================================

func TestTurtleGenerator_Render(t *testing.T) {
	g := &TurtleGenerator{OntologyIRI: "http://example.org/onto#"}
	doc := g.Render([]*core.LoopResult{sampleResult()})

	assert.Contains(t, doc, "@prefix : <http://example.org/onto#> .")
	assert.Contains(t, doc, "@prefix owl: ")
	assert.Contains(t, doc, ":Invoice a owl:Class ;")
	assert.Contains(t, doc, `rdfs:label "Invoice"@en ;`)
	assert.Contains(t, doc, `skos:definition "A document that records a request for payment."@en`)
	assert.Contains(t, doc, "rdfs:subClassOf :Document")

	assert.NoError(t, ValidateTurtle(doc))
}

func TestTurtleGenerator_EscapesLiterals(t *testing.T) {
	r := sampleResult()
	r.FinalDefinition = `A document that cites "prior art" and more.`

	g := &TurtleGenerator{}
	doc := g.Render([]*core.LoopResult{r})

	assert.Contains(t, doc, `\"prior art\"`)
	assert.NoError(t, ValidateTurtle(doc))
}

func TestTurtleGenerator_ExternalParentNeedsPrefix(t *testing.T) {
	r := sampleResult()
	r.ClassInfo.ParentClass = "cco:Document"

	bare := &TurtleGenerator{}
	assert.Error(t, ValidateTurtle(bare.Render([]*core.LoopResult{r})),
		"unknown prefix must be rejected")

	withPrefix := &TurtleGenerator{
		ExtraPrefixes: map[string]string{"cco": "https://www.commoncoreontologies.org/"},
	}
	assert.NoError(t, ValidateTurtle(withPrefix.Render([]*core.LoopResult{r})))
}

func TestValidateTurtle_UnbalancedQuotes(t *testing.T) {
	assert.Error(t, ValidateTurtle("@prefix : <http://x#> .\n:A rdfs:label \"broken .\n"))
}

// =============================================================================
// REPORT TESTS
// =============================================================================

func TestReportGenerator_Markdown(t *testing.T) {
	md := NewReportGenerator().Markdown(sampleResult())

	assert.Contains(t, md, "# Definition report: Invoice")
	assert.Contains(t, md, "**Status**: PASS")
	assert.Contains(t, md, "| 1 | pass | 1 | yes |")
	assert.Contains(t, md, "> A document that records a request for payment.")
	assert.NotContains(t, md, "Outstanding check failures",
		"a passing run has nothing outstanding")
}

func TestReportGenerator_MarkdownListsOutstandingFailures(t *testing.T) {
	r := sampleResult()
	r.Status = core.StatusFail
	r.Iterations[0].VerifyStatus = core.StatusFail
	r.Iterations[0].RefinedDefinition = ""

	md := NewReportGenerator().Markdown(r)
	assert.Contains(t, md, "Outstanding check failures")
	assert.Contains(t, md, "**R2**")
}

func TestReportGenerator_JSONRoundTrips(t *testing.T) {
	data, err := NewReportGenerator().JSON(sampleResult())
	require.NoError(t, err)

	var decoded core.LoopResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ":Invoice", decoded.ClassInfo.IRI)
	assert.Equal(t, core.StatusPass, decoded.Status)
}

func TestReportGenerator_HTML(t *testing.T) {
	page, err := NewReportGenerator().HTML(sampleResult())
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<h1>Definition report: Invoice</h1>")
	assert.Contains(t, html, "<table>", "iteration table renders as HTML")
}

// =============================================================================
// BATCH REPORT TESTS
// =============================================================================

func TestBatchReportGenerator_Markdown(t *testing.T) {
	result := &batch.BatchResult{
		BatchID: "batch-1",
		Results: []*core.LoopResult{sampleResult()},
		Skipped: []core.ClassInfo{{IRI: ":Old"}},
		Progress: batch.BatchProgress{
			Total: 2, Completed: 1, Passed: 1, Skipped: 1,
		},
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC().Add(time.Second),
	}
	issues := []batch.ConsistencyIssue{
		{Type: batch.IssueTerminologyMix, ClassIRIs: []string{":Invoice"}, Detail: "mixed verbs"},
	}
	siblings := []batch.SiblingIssue{
		{ClassIRI: ":A", SiblingIRI: ":B", Similarity: 0.9, Detail: "too similar"},
	}

	md := NewBatchReportGenerator().Markdown(result, issues, siblings)

	assert.Contains(t, md, "# Batch report")
	assert.Contains(t, md, "2 total, 1 passed")
	assert.Contains(t, md, "| `:Invoice` | pass | 1 |")
	assert.Contains(t, md, "## Skipped (resumed)")
	assert.Contains(t, md, "[terminology_mix] mixed verbs")
	assert.Contains(t, md, "[sibling_overlap] :A vs :B")
}
