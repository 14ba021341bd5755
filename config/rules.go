// Package config provides layered settings and user-defined checklist rules.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RuleSeverity grades custom rule matches.
type RuleSeverity string

const (
	// RuleSeverityError fails the check, like a red flag.
	RuleSeverityError RuleSeverity = "error"
	// RuleSeverityWarning is noted but does not fail the definition.
	RuleSeverityWarning RuleSeverity = "warning"
	// RuleSeverityInfo is informational only.
	RuleSeverityInfo RuleSeverity = "info"
)

// CustomRule is a user-defined regex check applied to every definition.
type CustomRule struct {
	// Name is the human-readable rule name.
	Name string `yaml:"name" mapstructure:"name"`
	// Pattern is the regex matched against definitions (case-insensitive).
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	// Message is shown as evidence when the rule triggers.
	Message string `yaml:"message" mapstructure:"message"`
	// Severity grades a match. Defaults to warning.
	Severity RuleSeverity `yaml:"severity" mapstructure:"severity"`
	// Enabled toggles the rule without removing it.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	compiled *regexp.Regexp
}

// Validate compiles the pattern and normalizes defaults.
func (r *CustomRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("custom rule requires a name")
	}
	if r.Pattern == "" {
		return fmt.Errorf("custom rule '%s' requires a pattern", r.Name)
	}
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return fmt.Errorf("custom rule '%s' has invalid pattern: %w", r.Name, err)
	}
	r.compiled = re
	switch r.Severity {
	case RuleSeverityError, RuleSeverityWarning, RuleSeverityInfo:
	case "":
		r.Severity = RuleSeverityWarning
	default:
		return fmt.Errorf("custom rule '%s' has invalid severity '%s'", r.Name, r.Severity)
	}
	return nil
}

// Matches returns the matched text, or "" when the rule is disabled or does
// not match. Validate must have been called first.
func (r *CustomRule) Matches(text string) string {
	if !r.Enabled || r.compiled == nil {
		return ""
	}
	return r.compiled.FindString(text)
}

// rulesFile is the on-disk shape of a rules document.
type rulesFile struct {
	Rules []CustomRule `yaml:"rules"`
}

// LoadRules reads user-defined rules from a YAML file and validates each
// rule's pattern and severity.
func LoadRules(path string) ([]CustomRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	for i := range doc.Rules {
		if err := doc.Rules[i].Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Rules, nil
}
