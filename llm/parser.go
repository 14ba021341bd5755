package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// RESPONSE PARSER
// =============================================================================

var (
	fencePattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	prefixPattern = regexp.MustCompile(`(?i)^(definition|answer|revised definition|here is the definition)\s*[:\-]\s*`)
)

// responseParser normalizes raw model output into definitions and critique
// results. Models wrap answers in fences, prefixes, and prose despite
// instructions; the parser strips the common decorations.
type responseParser struct {
	providerName string
}

// parseDefinition extracts a definition sentence from raw model output.
func (p responseParser) parseDefinition(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", &ResponseError{Provider: p.providerName, Detail: "empty response"}
	}

	// Unwrap a code fence if the whole answer sits inside one.
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	// Take the first non-empty line; models sometimes append commentary.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = prefixPattern.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'`)
		if line == "" {
			continue
		}
		return line, nil
	}

	return "", &ResponseError{Provider: p.providerName, Detail: "no definition text in response"}
}

// critiqueFinding is the JSON shape expected from the critique prompt.
type critiqueFinding struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Evidence string `json:"evidence"`
	Severity string `json:"severity"`
}

// parseCritique extracts check results from raw model output. The first JSON
// array found in the text is used; anything around it is ignored.
func (p responseParser) parseCritique(raw string) ([]core.CheckResult, error) {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	payload, ok := extractJSONArray(text)
	if !ok {
		return nil, &ResponseError{Provider: p.providerName, Detail: "no JSON array in critique response"}
	}

	var findings []critiqueFinding
	if err := json.Unmarshal([]byte(payload), &findings); err != nil {
		return nil, &ResponseError{Provider: p.providerName, Detail: "malformed critique JSON", Err: err}
	}

	results := make([]core.CheckResult, 0, len(findings))
	for _, f := range findings {
		results = append(results, core.CheckResult{
			Code:     f.Code,
			Name:     f.Name,
			Passed:   f.Passed,
			Evidence: f.Evidence,
			Severity: mapSeverity(f.Severity),
		})
	}
	return results, nil
}

// extractJSONArray returns the first balanced top-level JSON array in text.
// Bracket depth is tracked outside string literals so brackets inside
// evidence strings do not confuse the scan.
func extractJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// mapSeverity converts model-reported severities into checklist tiers,
// defaulting unknown values to quality so a creative model cannot fail a
// definition outright.
func mapSeverity(s string) core.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "required":
		return core.SeverityRequired
	case "ice_required":
		return core.SeverityICERequired
	case "red_flag":
		return core.SeverityRedFlag
	default:
		return core.SeverityQuality
	}
}
