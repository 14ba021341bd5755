package llm

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// MOCK PROVIDER
// =============================================================================

// MockProvider is a deterministic Provider for tests and offline runs. With
// no scripting it produces plausible Aristotelian definitions; behavior can
// be overridden per phase, per class, or with injected errors.
//
// Safe for concurrent use.
type MockProvider struct {
	// Definitions scripts Generate output per class IRI.
	Definitions map[string]string
	// Refinements scripts Refine output per class IRI.
	Refinements map[string]string
	// Latency is slept (context-aware) before each call, to exercise
	// concurrency and cancellation paths.
	Latency time.Duration

	// GenerateErr, CritiqueErr, RefineErr are returned instead of results
	// when set.
	GenerateErr error
	CritiqueErr error
	RefineErr   error

	mu            sync.Mutex
	generateCalls int
	critiqueCalls int
	refineCalls   int
}

// Generate returns the scripted definition for the class, or a derived one.
func (m *MockProvider) Generate(ctx context.Context, info core.ClassInfo) (string, error) {
	m.mu.Lock()
	m.generateCalls++
	m.mu.Unlock()

	if err := m.pause(ctx); err != nil {
		return "", err
	}
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	if def, ok := m.Definitions[info.IRI]; ok {
		return def, nil
	}
	return defaultDefinition(info), nil
}

// Critique returns no additional findings.
func (m *MockProvider) Critique(ctx context.Context, info core.ClassInfo, definition string) ([]core.CheckResult, error) {
	m.mu.Lock()
	m.critiqueCalls++
	m.mu.Unlock()

	if err := m.pause(ctx); err != nil {
		return nil, err
	}
	if m.CritiqueErr != nil {
		return nil, m.CritiqueErr
	}
	return nil, nil
}

// Refine returns the scripted refinement for the class, or the definition
// with common red-flag wording repaired.
func (m *MockProvider) Refine(ctx context.Context, info core.ClassInfo, definition string, issues []core.CheckResult) (string, error) {
	m.mu.Lock()
	m.refineCalls++
	m.mu.Unlock()

	if err := m.pause(ctx); err != nil {
		return "", err
	}
	if m.RefineErr != nil {
		return "", m.RefineErr
	}
	if refined, ok := m.Refinements[info.IRI]; ok {
		return refined, nil
	}
	return repairDefinition(definition), nil
}

// Calls returns per-phase call counts.
func (m *MockProvider) Calls() (generate, critique, refine int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls, m.critiqueCalls, m.refineCalls
}

func (m *MockProvider) pause(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	return sleepCtx(ctx, m.Latency)
}

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// defaultDefinition derives a checklist-friendly definition from the class
// metadata.
func defaultDefinition(info core.ClassInfo) string {
	if info.IsICE {
		return "An information content entity that denotes a designated portion of reality."
	}

	genus := "entity"
	if info.ParentClass != "" {
		parts := strings.Split(info.ParentClass, ":")
		name := camelBoundary.ReplaceAllString(parts[len(parts)-1], "$1 $2")
		if name != "" {
			genus = strings.ToLower(name)
		}
	}
	return "A " + genus + " that is distinguished from its peers by its characteristic features."
}

var redFlagRepairs = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\brepresents\b`), "denotes"},
	{regexp.MustCompile(`\b(extracted|detected|identified|parsed) from\b`), "found in"},
	{regexp.MustCompile(`\bserves to\b|\bused to\b|\bfunctions to\b`), "has the capacity to"},
	{regexp.MustCompile(`\bnoun phrase\b|\bverb phrase\b`), "linguistic expression"},
}

// repairDefinition rewrites the most common red-flag wording, mimicking what
// a real model does with refinement findings.
func repairDefinition(definition string) string {
	out := definition
	for _, r := range redFlagRepairs {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	return out
}

// =============================================================================
// FAILING PROVIDER
// =============================================================================

// FailingProvider fails every call with Err. Useful for error-path tests.
type FailingProvider struct {
	Err error
}

func (f *FailingProvider) Generate(ctx context.Context, info core.ClassInfo) (string, error) {
	return "", f.Err
}

func (f *FailingProvider) Critique(ctx context.Context, info core.ClassInfo, definition string) ([]core.CheckResult, error) {
	return nil, f.Err
}

func (f *FailingProvider) Refine(ctx context.Context, info core.ClassInfo, definition string, issues []core.CheckResult) (string, error) {
	return "", f.Err
}
