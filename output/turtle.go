// Package output renders run and batch results: Turtle for ontology tooling,
// markdown/JSON/HTML reports for humans.
package output

import (
	"fmt"
	"strings"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// TURTLE GENERATOR
// =============================================================================

// standardPrefixes are always emitted; user prefixes are added on top.
var standardPrefixes = map[string]string{
	"owl":  "http://www.w3.org/2002/07/owl#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"skos": "http://www.w3.org/2004/02/skos/core#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
}

// TurtleGenerator renders class definitions as Turtle suitable for merging
// into an ontology file.
type TurtleGenerator struct {
	// OntologyIRI is bound to the empty prefix.
	OntologyIRI string
	// ExtraPrefixes maps additional prefix names to namespace IRIs, e.g.
	// "cco" -> "https://www.commoncoreontologies.org/".
	ExtraPrefixes map[string]string
}

// Render produces a complete Turtle document for the results: one prefix
// block followed by a class block per result, in the given order.
func (g *TurtleGenerator) Render(results []*core.LoopResult) string {
	var b strings.Builder
	g.writePrefixes(&b)
	for _, r := range results {
		b.WriteString("\n")
		g.writeClass(&b, r)
	}
	return b.String()
}

// RenderClass produces the Turtle block for a single result, without the
// prefix header.
func (g *TurtleGenerator) RenderClass(r *core.LoopResult) string {
	var b strings.Builder
	g.writeClass(&b, r)
	return b.String()
}

func (g *TurtleGenerator) writePrefixes(b *strings.Builder) {
	iri := g.OntologyIRI
	if iri == "" {
		iri = "http://example.org/ontology#"
	}
	fmt.Fprintf(b, "@prefix : <%s> .\n", iri)
	for _, name := range []string{"owl", "rdfs", "skos", "xsd"} {
		fmt.Fprintf(b, "@prefix %s: <%s> .\n", name, standardPrefixes[name])
	}
	for name, ns := range g.ExtraPrefixes {
		fmt.Fprintf(b, "@prefix %s: <%s> .\n", name, ns)
	}
}

func (g *TurtleGenerator) writeClass(b *strings.Builder, r *core.LoopResult) {
	info := r.ClassInfo
	fmt.Fprintf(b, "%s a owl:Class ;\n", info.IRI)
	fmt.Fprintf(b, "    rdfs:label \"%s\"@en ;\n", escapeLiteral(info.Label))
	fmt.Fprintf(b, "    skos:definition \"%s\"@en", escapeLiteral(r.FinalDefinition))
	if info.ParentClass != "" {
		fmt.Fprintf(b, " ;\n    rdfs:subClassOf %s", info.ParentClass)
	}
	b.WriteString(" .\n")
}

// escapeLiteral escapes a string for use inside a double-quoted Turtle
// literal.
func escapeLiteral(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return replacer.Replace(s)
}

// ValidateTurtle performs structural checks on a rendered document: balanced
// unescaped quotes and only known prefixes in subject/predicate/object
// positions. It is a safety net, not a parser.
func ValidateTurtle(doc string) error {
	known := make(map[string]bool)
	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "@prefix") {
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				known[strings.TrimSuffix(fields[1], ":")] = true
			}
			continue
		}
		if trimmed == "" {
			continue
		}

		if countUnescapedQuotes(trimmed)%2 != 0 {
			return fmt.Errorf("unbalanced quotes: %s", trimmed)
		}
		for _, token := range strings.Fields(stripLiterals(trimmed)) {
			idx := strings.Index(token, ":")
			if idx <= 0 {
				continue // empty prefix or no prefix
			}
			prefix := token[:idx]
			if strings.ContainsAny(prefix, "\"<>@.;,()") {
				continue
			}
			if !known[prefix] {
				return fmt.Errorf("unknown prefix %q in: %s", prefix, trimmed)
			}
		}
	}
	return nil
}

func countUnescapedQuotes(s string) int {
	count := 0
	escaped := false
	for _, c := range s {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			count++
		}
	}
	return count
}

// stripLiterals removes quoted literal content so prefix checking does not
// trip over colons inside definitions.
func stripLiterals(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for _, c := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
