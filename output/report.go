package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ontoloom/ontoloom/batch"
	"github.com/ontoloom/ontoloom/core"
)

// timeRounding keeps report durations readable.
const timeRounding = 10 * time.Millisecond

// =============================================================================
// RUN REPORT
// =============================================================================

// ReportGenerator renders a single run as markdown, JSON, or HTML.
type ReportGenerator struct {
	md goldmark.Markdown
}

// NewReportGenerator creates a generator with table support enabled.
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Markdown renders the run history: outcome, iteration table, failed checks,
// and the definition's evolution across iterations.
func (g *ReportGenerator) Markdown(r *core.LoopResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Definition report: %s\n\n", r.ClassInfo.Label)
	fmt.Fprintf(&b, "- **Class**: `%s`\n", r.ClassInfo.IRI)
	if r.ClassInfo.ParentClass != "" {
		fmt.Fprintf(&b, "- **Parent**: `%s`\n", r.ClassInfo.ParentClass)
	}
	fmt.Fprintf(&b, "- **Status**: %s\n", strings.ToUpper(string(r.Status)))
	fmt.Fprintf(&b, "- **Iterations**: %d\n", r.TotalIterations)
	fmt.Fprintf(&b, "- **Duration**: %s\n\n", r.Duration().Round(timeRounding))

	fmt.Fprintf(&b, "## Final definition\n\n> %s\n\n", r.FinalDefinition)

	b.WriteString("## Iterations\n\n")
	b.WriteString("| # | Status | Failed checks | Refined |\n")
	b.WriteString("|---|--------|---------------|---------|\n")
	for _, it := range r.Iterations {
		refined := "no"
		if it.RefinedDefinition != "" {
			refined = "yes"
		}
		fmt.Fprintf(&b, "| %d | %s | %d | %s |\n",
			it.IterationNumber, it.VerifyStatus, len(it.FailedChecks()), refined)
	}
	b.WriteString("\n")

	if last := lastIteration(r); last != nil && len(last.FailedChecks()) > 0 {
		b.WriteString("## Outstanding check failures\n\n")
		for _, severity := range []core.Severity{
			core.SeverityRedFlag, core.SeverityRequired, core.SeverityICERequired, core.SeverityQuality,
		} {
			for _, c := range last.FailedChecks() {
				if c.Severity == severity {
					fmt.Fprintf(&b, "- **%s** (%s) %s: %s\n", c.Code, c.Severity, c.Name, c.Evidence)
				}
			}
		}
		b.WriteString("\n")
	}

	if r.TotalIterations > 1 {
		b.WriteString("## Definition evolution\n\n")
		for _, it := range r.Iterations {
			fmt.Fprintf(&b, "**Iteration %d**: %s\n\n", it.IterationNumber, it.FinalDefinition())
		}
	}

	return b.String()
}

// JSON renders the complete run result as indented JSON.
func (g *ReportGenerator) JSON(r *core.LoopResult) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// HTML renders the markdown report as a standalone HTML page.
func (g *ReportGenerator) HTML(r *core.LoopResult) ([]byte, error) {
	return g.toHTML(g.Markdown(r), "Definition report: "+r.ClassInfo.Label)
}

func (g *ReportGenerator) toHTML(markdown, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := g.md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", title)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func lastIteration(r *core.LoopResult) *core.LoopIteration {
	if len(r.Iterations) == 0 {
		return nil
	}
	return &r.Iterations[len(r.Iterations)-1]
}

// =============================================================================
// BATCH REPORT
// =============================================================================

// BatchReportGenerator renders a batch summary.
type BatchReportGenerator struct {
	runs *ReportGenerator
}

// NewBatchReportGenerator creates a batch report generator.
func NewBatchReportGenerator() *BatchReportGenerator {
	return &BatchReportGenerator{runs: NewReportGenerator()}
}

// Markdown renders the batch outcome: counters, a per-class table, errors,
// and any advisory findings.
func (g *BatchReportGenerator) Markdown(result *batch.BatchResult, consistency []batch.ConsistencyIssue, siblings []batch.SiblingIssue) string {
	var b strings.Builder

	b.WriteString("# Batch report\n\n")
	fmt.Fprintf(&b, "- **Batch**: `%s`\n", result.BatchID)
	fmt.Fprintf(&b, "- **Duration**: %s\n", result.Duration().Round(timeRounding))
	p := result.Progress
	fmt.Fprintf(&b, "- **Classes**: %d total, %d passed, %d failed, %d errored, %d skipped\n\n",
		p.Total, p.Passed, p.Failed, p.Errored, p.Skipped)

	b.WriteString("## Classes\n\n")
	b.WriteString("| Class | Status | Iterations | Definition |\n")
	b.WriteString("|-------|--------|------------|------------|\n")
	for _, r := range result.SortedResults() {
		fmt.Fprintf(&b, "| `%s` | %s | %d | %s |\n",
			r.ClassInfo.IRI, r.Status, r.TotalIterations, escapeCell(r.FinalDefinition))
	}
	b.WriteString("\n")

	if len(result.Errors) > 0 {
		b.WriteString("## Errors\n\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "- `%s`: %v\n", e.ClassInfo.IRI, e.Err)
		}
		b.WriteString("\n")
	}

	if len(result.Skipped) > 0 {
		b.WriteString("## Skipped (resumed)\n\n")
		for _, info := range result.Skipped {
			fmt.Fprintf(&b, "- `%s`\n", info.IRI)
		}
		b.WriteString("\n")
	}

	if len(consistency) > 0 || len(siblings) > 0 {
		b.WriteString("## Advisory findings\n\n")
		for _, issue := range consistency {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n",
				issue.Type, issue.Detail, strings.Join(issue.ClassIRIs, ", "))
		}
		for _, issue := range siblings {
			fmt.Fprintf(&b, "- [sibling_overlap] %s vs %s: %s\n",
				issue.ClassIRI, issue.SiblingIRI, issue.Detail)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders the batch markdown report as a standalone HTML page.
func (g *BatchReportGenerator) HTML(result *batch.BatchResult, consistency []batch.ConsistencyIssue, siblings []batch.SiblingIssue) ([]byte, error) {
	return g.runs.toHTML(g.Markdown(result, consistency, siblings), "Batch report")
}

// JSON renders the batch result as indented JSON.
func (g *BatchReportGenerator) JSON(result *batch.BatchResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
