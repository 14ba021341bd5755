// Package batch schedules refinement loops over collections of classes:
// dependency ordering, concurrent processing, resume state, and post-batch
// cross-class analysis.
package batch

import (
	"fmt"
	"strings"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// ISSUES AND ERRORS
// =============================================================================

// IssueType classifies dependency validation findings.
type IssueType string

const (
	// IssueSelfReference marks a class whose parent is itself.
	IssueSelfReference IssueType = "self_reference"
	// IssueCircular marks a class participating in a dependency cycle.
	IssueCircular IssueType = "circular"
	// IssueMissingParent marks a local-looking parent absent from the batch.
	IssueMissingParent IssueType = "missing_parent"
)

// DependencyIssue is one finding from graph validation.
type DependencyIssue struct {
	Type     IssueType `json:"type"`
	ClassIRI string    `json:"class_iri"`
	Detail   string    `json:"detail"`
}

// CycleError reports a dependency cycle. Cycle holds the full path, with the
// starting class repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// =============================================================================
// DEPENDENCY GRAPH
// =============================================================================

// DependencyGraph is a child -> parent graph over a batch of classes. Parents
// outside the batch are treated as already defined and never block ordering.
//
// A parent IRI with a bare ":" prefix is expected to be local to the batch;
// when absent it is reported as a missing_parent issue but still treated as
// external for ordering purposes.
type DependencyGraph struct {
	classes []core.ClassInfo
	index   map[string]int    // IRI -> input position
	parent  map[string]string // child IRI -> in-batch parent IRI
}

// NewDependencyGraph builds the graph from the batch input. Input order is
// preserved and used as the tie-break for ordering.
func NewDependencyGraph(classes []core.ClassInfo) *DependencyGraph {
	g := &DependencyGraph{
		classes: classes,
		index:   make(map[string]int, len(classes)),
		parent:  make(map[string]string),
	}
	for i, c := range classes {
		g.index[c.IRI] = i
	}
	for _, c := range classes {
		if c.ParentClass == "" || c.ParentClass == c.IRI {
			continue
		}
		if _, inBatch := g.index[c.ParentClass]; inBatch {
			g.parent[c.IRI] = c.ParentClass
		}
	}
	return g
}

// Validate reports self-references, missing local parents, and cycles. The
// graph itself is left usable; callers decide which issues are fatal.
func (g *DependencyGraph) Validate() []DependencyIssue {
	var issues []DependencyIssue

	for _, c := range g.classes {
		if c.ParentClass != "" && c.ParentClass == c.IRI {
			issues = append(issues, DependencyIssue{
				Type:     IssueSelfReference,
				ClassIRI: c.IRI,
				Detail:   fmt.Sprintf("class %s lists itself as parent", c.IRI),
			})
		}
		if strings.HasPrefix(c.ParentClass, ":") {
			if _, inBatch := g.index[c.ParentClass]; !inBatch {
				issues = append(issues, DependencyIssue{
					Type:     IssueMissingParent,
					ClassIRI: c.IRI,
					Detail:   fmt.Sprintf("local parent %s of %s is not in the batch", c.ParentClass, c.IRI),
				})
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		for _, iri := range cycle[:len(cycle)-1] {
			issues = append(issues, DependencyIssue{
				Type:     IssueCircular,
				ClassIRI: iri,
				Detail:   (&CycleError{Cycle: cycle}).Error(),
			})
		}
	}

	return issues
}

// Order returns the classes in a dependency-respecting order: every in-batch
// parent precedes its children. Ties break by input position, so the order is
// deterministic. A cycle aborts ordering with a *CycleError before any
// scheduling happens.
func (g *DependencyGraph) Order() ([]core.ClassInfo, error) {
	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	placed := make(map[string]bool, len(g.classes))
	order := make([]core.ClassInfo, 0, len(g.classes))

	// Kahn's algorithm, scanning in input order each round so ties resolve
	// deterministically.
	for len(order) < len(g.classes) {
		progressed := false
		for _, c := range g.classes {
			if placed[c.IRI] {
				continue
			}
			if p, ok := g.parent[c.IRI]; ok && !placed[p] {
				continue
			}
			placed[c.IRI] = true
			order = append(order, c)
			progressed = true
		}
		if !progressed {
			// Unreachable after the cycle check above; guard anyway.
			return nil, &CycleError{Cycle: g.remainingIRIs(placed)}
		}
	}

	return order, nil
}

// Levels partitions the batch into dependency levels: level 0 holds classes
// with no in-batch parent, level n+1 holds the children of level n. Every
// class appears in exactly one level. Classes within a level are independent
// and safe to process concurrently.
func (g *DependencyGraph) Levels() ([][]core.ClassInfo, error) {
	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	depth := make(map[string]int, len(g.classes))
	var levelOf func(iri string) int
	levelOf = func(iri string) int {
		if d, ok := depth[iri]; ok {
			return d
		}
		d := 0
		if p, ok := g.parent[iri]; ok {
			d = levelOf(p) + 1
		}
		depth[iri] = d
		return d
	}

	maxLevel := 0
	for _, c := range g.classes {
		if d := levelOf(c.IRI); d > maxLevel {
			maxLevel = d
		}
	}

	levels := make([][]core.ClassInfo, maxLevel+1)
	for _, c := range g.classes {
		d := depth[c.IRI]
		levels[d] = append(levels[d], c)
	}
	return levels, nil
}

// findCycle runs a DFS over in-batch parent edges and returns the first cycle
// found as a path (start repeated at the end), or nil.
func (g *DependencyGraph) findCycle() []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.classes))

	var path []string
	var visit func(iri string) []string
	visit = func(iri string) []string {
		color[iri] = gray
		path = append(path, iri)

		if p, ok := g.parent[iri]; ok {
			switch color[p] {
			case gray:
				// Found a back edge; slice the cycle out of the path.
				for i, v := range path {
					if v == p {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, p)
					}
				}
			case white:
				if cycle := visit(p); cycle != nil {
					return cycle
				}
			}
		}

		color[iri] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, c := range g.classes {
		if color[c.IRI] == white {
			if cycle := visit(c.IRI); cycle != nil {
				return cycle
			}
			path = path[:0]
		}
	}
	return nil
}

func (g *DependencyGraph) remainingIRIs(placed map[string]bool) []string {
	var iris []string
	for _, c := range g.classes {
		if !placed[c.IRI] {
			iris = append(iris, c.IRI)
		}
	}
	return iris
}
