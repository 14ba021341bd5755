package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestDefaultSettingsAreValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, "openai", s.LLM.Provider)
	assert.Equal(t, 3, s.Loop.MaxIterations)
	assert.True(t, s.Loop.UseHybridChecking)
	assert.Equal(t, 3, s.Batch.MaxConcurrency)
	assert.Equal(t, 60*time.Second, s.LLM.Timeout())
	assert.Equal(t, 500*time.Millisecond, s.Batch.RateLimitDelay())
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad provider", func(s *Settings) { s.LLM.Provider = "anthropic" }},
		{"temperature out of range", func(s *Settings) { s.LLM.Temperature = 3.5 }},
		{"zero iterations", func(s *Settings) { s.Loop.MaxIterations = 0 }},
		{"zero concurrency", func(s *Settings) { s.Batch.MaxConcurrency = 0 }},
		{"bad output format", func(s *Settings) { s.Output.Format = "pdf" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := filepath.Join(t.TempDir(), "ontoloom.yaml")
	content := `
llm:
  provider: mock
  model: test-model
loop:
  max_iterations: 5
batch:
  max_concurrency: 8
  continue_on_error: false
`
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	require.NoError(t, Init(cfg))

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mock", s.LLM.Provider)
	assert.Equal(t, "test-model", s.LLM.Model)
	assert.Equal(t, 5, s.Loop.MaxIterations)
	assert.Equal(t, 8, s.Batch.MaxConcurrency)
	assert.False(t, s.Batch.ContinueOnError)

	// Values absent from the file keep their defaults.
	assert.Equal(t, 3, s.LLM.MaxRetries)
	assert.Equal(t, "markdown", s.Output.Format)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ONTOLOOM_LOOP_MAX_ITERATIONS", "7")
	t.Setenv("ONTOLOOM_LLM_PROVIDER", "mock")

	cfg := filepath.Join(t.TempDir(), "ontoloom.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("loop:\n  max_iterations: 2\n"), 0o644))
	require.NoError(t, Init(cfg))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, s.Loop.MaxIterations)
	assert.Equal(t, "mock", s.LLM.Provider)
}

// =============================================================================
// CUSTOM RULE TESTS
// =============================================================================

func TestCustomRule_Validate(t *testing.T) {
	r := CustomRule{Name: "no jargon", Pattern: `\bsynergy\b`, Message: "avoid jargon", Enabled: true}
	require.NoError(t, r.Validate())
	assert.Equal(t, RuleSeverityWarning, r.Severity, "severity defaults to warning")

	assert.Equal(t, "Synergy", r.Matches("A Synergy of parts."), "matching is case-insensitive")
	assert.Empty(t, r.Matches("A whole of parts."))

	bad := CustomRule{Name: "broken", Pattern: `([`}
	assert.Error(t, bad.Validate())

	unnamed := CustomRule{Pattern: `x`}
	assert.Error(t, unnamed.Validate())

	badSeverity := CustomRule{Name: "x", Pattern: `x`, Severity: "fatal"}
	assert.Error(t, badSeverity.Validate())
}

func TestCustomRule_DisabledNeverMatches(t *testing.T) {
	r := CustomRule{Name: "off", Pattern: `.*`, Enabled: false}
	require.NoError(t, r.Validate())
	assert.Empty(t, r.Matches("anything"))
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - name: no hedging
    pattern: '\b(perhaps|maybe)\b'
    message: definitions must not hedge
    severity: error
    enabled: true
  - name: style note
    pattern: '\butilize\b'
    message: prefer "use"
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, RuleSeverityError, rules[0].Severity)
	assert.Equal(t, RuleSeverityWarning, rules[1].Severity)
	assert.Equal(t, "maybe", rules[0].Matches("It is maybe a thing."))
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: broken\n    pattern: '(['\n"), 0o644))
	_, err = LoadRules(path)
	assert.Error(t, err)
}
