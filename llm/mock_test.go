package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// MOCK PROVIDER TESTS
// =============================================================================

func TestMockProvider_ScriptedDefinitions(t *testing.T) {
	m := &MockProvider{
		Definitions: map[string]string{":A": "A scripted definition that suffices."},
	}

	def, err := m.Generate(context.Background(), core.ClassInfo{IRI: ":A"})
	require.NoError(t, err)
	assert.Equal(t, "A scripted definition that suffices.", def)

	gen, _, _ := m.Calls()
	assert.Equal(t, 1, gen)
}

func TestMockProvider_DefaultDefinitions(t *testing.T) {
	m := &MockProvider{}

	def, err := m.Generate(context.Background(), core.ClassInfo{
		IRI: ":X", Label: "X Item", ParentClass: "cco:DirectiveInformationContentEntity",
	})
	require.NoError(t, err)
	assert.Contains(t, def, "directive information content entity",
		"genus derived from the CamelCase parent name")

	iceDef, err := m.Generate(context.Background(), core.ClassInfo{IRI: ":Y", IsICE: true})
	require.NoError(t, err)
	assert.Contains(t, iceDef, "An information content entity that denotes")
}

func TestMockProvider_RefineRepairsRedFlags(t *testing.T) {
	m := &MockProvider{}

	refined, err := m.Refine(context.Background(), core.ClassInfo{IRI: ":A"},
		"A label that represents a value extracted from text.", nil)
	require.NoError(t, err)
	assert.NotContains(t, refined, "represents")
	assert.NotContains(t, refined, "extracted from")
	assert.Contains(t, refined, "denotes")
}

func TestMockProvider_InjectedErrors(t *testing.T) {
	boom := errors.New("scripted failure")
	m := &MockProvider{GenerateErr: boom, CritiqueErr: boom, RefineErr: boom}
	ctx := context.Background()

	_, err := m.Generate(ctx, core.ClassInfo{})
	assert.ErrorIs(t, err, boom)
	_, err = m.Critique(ctx, core.ClassInfo{}, "x")
	assert.ErrorIs(t, err, boom)
	_, err = m.Refine(ctx, core.ClassInfo{}, "x", nil)
	assert.ErrorIs(t, err, boom)
}

func TestMockProvider_LatencyHonorsContext(t *testing.T) {
	m := &MockProvider{Latency: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, core.ClassInfo{})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// MOCK + LOOP INTEGRATION
// =============================================================================

func TestMockProvider_DrivesLoopToPass(t *testing.T) {
	m := &MockProvider{
		Definitions: map[string]string{
			":Invoice": "A document that represents a request for payment.",
		},
		Refinements: map[string]string{
			":Invoice": "A document that records a request for payment issued to a customer.",
		},
	}

	loop, err := core.NewLoop(m, core.NewChecklistEvaluator(nil),
		core.LoopConfig{MaxIterations: 3, UseHybridChecking: true}, core.LoopHooks{}, nil)
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), core.ClassInfo{IRI: ":Invoice", Label: "Invoice"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPass, result.Status)
	assert.Equal(t, "A document that records a request for payment issued to a customer.", result.FinalDefinition)

	gen, _, refine := m.Calls()
	assert.Equal(t, 1, gen)
	assert.Equal(t, 1, refine)
}

// =============================================================================
// ERROR TAXONOMY TESTS
// =============================================================================

func TestErrorTaxonomy_Matching(t *testing.T) {
	cause := errors.New("root cause")

	var auth *AuthError
	var rate *RateLimitError
	var timeout *TimeoutError
	var resp *ResponseError

	err := error(&AuthError{Provider: "openai", Err: cause})
	assert.True(t, errors.As(err, &auth))
	assert.ErrorIs(t, err, cause)

	err = &RateLimitError{Provider: "openai", RetryAfter: 2 * time.Second, Err: cause}
	assert.True(t, errors.As(err, &rate))
	assert.Equal(t, 2*time.Second, rate.RetryAfter)

	err = &TimeoutError{Provider: "openai", Err: cause}
	assert.True(t, errors.As(err, &timeout))

	err = &ResponseError{Provider: "openai", Detail: "empty choices"}
	assert.True(t, errors.As(err, &resp))
	assert.Contains(t, err.Error(), "empty choices")
}

func TestSessionUsage(t *testing.T) {
	var usage SessionUsage
	usage.Add(UsageStats{Phase: "generate", PromptTokens: 100, CompletionTokens: 30})
	usage.Add(UsageStats{Phase: "refine", PromptTokens: 150, CompletionTokens: 40})
	usage.Add(UsageStats{Phase: "generate", PromptTokens: 90, CompletionTokens: 25})

	calls, prompt, completion := usage.Totals()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 340, prompt)
	assert.Equal(t, 95, completion)
	assert.Equal(t, map[string]int{"generate": 2, "refine": 1}, usage.ByPhase())
}
