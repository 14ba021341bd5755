package llm

import (
	"fmt"
	"strings"

	"github.com/ontoloom/ontoloom/core"
)

// prompt pairs a system instruction with a user message.
type prompt struct {
	System string
	User   string
}

const definitionSystemPrompt = `You are an ontology engineer writing Aristotelian definitions for OWL classes.

A good definition has the form "A <genus> that <differentia>." where the genus
names the parent class and the differentia states what distinguishes this
class from its siblings. Rules:
- Exactly one sentence.
- Never use the term being defined inside the definition.
- Say what the entity IS, never how it was produced or what it is used for.
- For Information Content Entities, start with "An information content entity"
  and use "denotes" or "is about" to state what the entity is about.
- Avoid "represents", "stuff", "thing", "kind of", "sort of", "type of".

Respond with the definition sentence only, no preamble and no quotes.`

const critiqueSystemPrompt = `You are an ontology reviewer evaluating a class definition.

Assess the definition for problems the automated checklist cannot catch:
wrong genus, vacuous differentia, sibling overlap, domain inaccuracy.
Respond with a JSON array of findings. Each finding is an object:
{"code": "L<n>", "name": "<short name>", "passed": false,
 "evidence": "<why>", "severity": "quality"}
Use severity "required" only for findings that make the definition wrong,
"quality" for findings that make it weak. Return [] when the definition is
sound.`

const refineSystemPrompt = `You are an ontology engineer revising a class definition to fix review findings.

Keep everything that is correct. Change only what the findings require. The
result must remain a single Aristotelian sentence following the same rules as
the original. Respond with the revised definition sentence only.`

func buildGeneratePrompt(info core.ClassInfo) prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a definition for the class %q (%s).\n", info.Label, info.IRI)
	if info.ParentClass != "" {
		fmt.Fprintf(&b, "Parent class: %s\n", info.ParentClass)
	}
	if len(info.SiblingClasses) > 0 {
		fmt.Fprintf(&b, "Sibling classes to stay distinguishable from: %s\n",
			strings.Join(info.SiblingClasses, ", "))
	}
	if info.IsICE {
		b.WriteString("This class is an Information Content Entity.\n")
	}
	if info.CurrentDefinition != "" {
		fmt.Fprintf(&b, "Existing definition to improve upon: %s\n", info.CurrentDefinition)
	}
	return prompt{System: definitionSystemPrompt, User: b.String()}
}

func buildCritiquePrompt(info core.ClassInfo, definition string) prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Class: %q (%s)\n", info.Label, info.IRI)
	if info.ParentClass != "" {
		fmt.Fprintf(&b, "Parent class: %s\n", info.ParentClass)
	}
	if info.IsICE {
		b.WriteString("This class is an Information Content Entity.\n")
	}
	fmt.Fprintf(&b, "Definition under review: %s\n", definition)
	return prompt{System: critiqueSystemPrompt, User: b.String()}
}

func buildRefinePrompt(info core.ClassInfo, definition string, issues []core.CheckResult) prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Class: %q (%s)\n", info.Label, info.IRI)
	if info.ParentClass != "" {
		fmt.Fprintf(&b, "Parent class: %s\n", info.ParentClass)
	}
	if info.IsICE {
		b.WriteString("This class is an Information Content Entity.\n")
	}
	fmt.Fprintf(&b, "Current definition: %s\n\nFindings to fix:\n", definition)
	for _, issue := range issues {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", issue.Code, issue.Name, issue.Evidence)
	}
	return prompt{System: refineSystemPrompt, User: b.String()}
}
