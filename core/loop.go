package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ontoloom/ontoloom/observability"
)

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Provider supplies the generative phases of the loop. Implementations live
// outside this package (LLM backends, mocks); the loop only depends on this
// interface.
//
// All methods must honor context cancellation. Retry and backoff are the
// provider's responsibility; the loop never retries a failed call.
type Provider interface {
	// Generate produces an initial definition for the class.
	Generate(ctx context.Context, info ClassInfo) (string, error)

	// Critique evaluates a definition and returns check results.
	Critique(ctx context.Context, info ClassInfo, definition string) ([]CheckResult, error)

	// Refine rewrites a definition to address the given failed checks.
	Refine(ctx context.Context, info ClassInfo, definition string, issues []CheckResult) (string, error)
}

// =============================================================================
// CONFIG AND HOOKS
// =============================================================================

// DefaultMaxIterations bounds a run when no limit is configured.
const DefaultMaxIterations = 3

// LoopConfig controls a refinement loop.
type LoopConfig struct {
	// MaxIterations caps the number of cycles. Defaults to DefaultMaxIterations.
	MaxIterations int
	// UseHybridChecking skips the LLM critique when automated checks already
	// found a disqualifying failure.
	UseHybridChecking bool
	// FailFastOnRedFlags skips the LLM critique entirely when automated red
	// flags are present.
	FailFastOnRedFlags bool
}

// Validate normalizes and checks the config.
func (c *LoopConfig) Validate() error {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// LoopHooks are optional observation points fired during a run. Hooks are
// called synchronously; a nil hook is skipped, and a panicking hook is
// recovered and logged without affecting the run.
type LoopHooks struct {
	OnLoopStart      func(info ClassInfo)
	OnIterationStart func(iteration int, info ClassInfo)
	OnGenerated      func(iteration int, definition string)
	OnCritiqued      func(iteration int, results []CheckResult)
	OnRefined        func(iteration int, definition string)
	OnVerified       func(iteration int, status VerifyStatus)
	OnIterationEnd   func(it LoopIteration)
	OnLoopEnd        func(result *LoopResult)
}

// =============================================================================
// HYBRID CRITIQUE
// =============================================================================

// HybridCheckResult is the outcome of the CRITIQUE phase.
type HybridCheckResult struct {
	// Results are the merged check results.
	Results []CheckResult
	// UsedLLM reports whether the LLM critique contributed.
	UsedLLM bool
	// Degraded reports that the LLM critique was attempted but failed, and
	// the results are automated-only.
	Degraded bool
}

// =============================================================================
// LOOP
// =============================================================================

// Loop drives a single definition through Generate -> Critique -> Refine ->
// Verify cycles until it passes or the iteration budget is spent.
//
// A Loop is safe for concurrent use: Run shares no mutable state between
// invocations.
type Loop struct {
	provider  Provider
	evaluator *ChecklistEvaluator
	config    LoopConfig
	hooks     LoopHooks
	logger    Logger
	tracer    oteltrace.Tracer
}

// NewLoop creates a loop. Pass nil logger to disable logging.
func NewLoop(provider Provider, evaluator *ChecklistEvaluator, config LoopConfig, hooks LoopHooks, logger Logger) (*Loop, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if evaluator == nil {
		evaluator = NewChecklistEvaluator(nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger{}
	}
	return &Loop{
		provider:  provider,
		evaluator: evaluator,
		config:    config,
		hooks:     hooks,
		logger:    logger,
		tracer:    otel.Tracer("ontoloom/core"),
	}, nil
}

// Run executes the full loop for one class. The returned result always has a
// definition when at least one iteration completed; a provider error aborts
// the run and is returned unmodified (wrapped with context only).
func (l *Loop) Run(ctx context.Context, info ClassInfo) (*LoopResult, error) {
	runID := uuid.New().String()
	logger := l.logger.Bind("run_id", runID, "iri", info.IRI)

	ctx, span := l.tracer.Start(ctx, "loop.run",
		oteltrace.WithAttributes(
			attribute.String("class.iri", info.IRI),
			attribute.String("run.id", runID),
			attribute.Bool("class.is_ice", info.IsICE),
		))
	defer span.End()

	logger.Info("loop_started",
		"label", info.Label,
		"max_iterations", l.config.MaxIterations,
		"hybrid", l.config.UseHybridChecking)

	l.callHook(logger, "on_loop_start", func() {
		if l.hooks.OnLoopStart != nil {
			l.hooks.OnLoopStart(info)
		}
	})

	state := NewLoopState(info, l.config.MaxIterations)
	start := time.Now()

	for !state.IsComplete() {
		if err := ctx.Err(); err != nil {
			observability.RecordLoopExecution("error", state.CurrentIteration(), int(time.Since(start).Milliseconds()))
			return nil, err
		}

		next, err := l.Step(ctx, state, logger)
		if err != nil {
			logger.Error("loop_aborted",
				"iteration", state.CurrentIteration()+1,
				"error", err.Error())
			observability.RecordLoopExecution("error", state.CurrentIteration(), int(time.Since(start).Milliseconds()))
			span.SetAttributes(attribute.String("loop.outcome", "error"))
			return nil, err
		}
		state = next
	}

	last := state.Iterations[len(state.Iterations)-1]
	result := &LoopResult{
		RunID:           runID,
		ClassInfo:       info,
		FinalDefinition: last.FinalDefinition(),
		Status:          last.VerifyStatus,
		Iterations:      state.Iterations,
		TotalIterations: state.CurrentIteration(),
		StartedAt:       state.StartedAt,
		CompletedAt:     time.Now().UTC(),
	}

	span.SetAttributes(
		attribute.String("loop.outcome", string(result.Status)),
		attribute.Int("loop.iterations", result.TotalIterations),
	)
	observability.RecordLoopExecution(string(result.Status), result.TotalIterations, int(time.Since(start).Milliseconds()))

	logger.Info("loop_completed",
		"status", string(result.Status),
		"iterations", result.TotalIterations,
		"duration_ms", time.Since(start).Milliseconds())

	l.callHook(logger, "on_loop_end", func() {
		if l.hooks.OnLoopEnd != nil {
			l.hooks.OnLoopEnd(result)
		}
	})

	return result, nil
}

// Step runs one Generate -> Critique -> Refine -> Verify cycle and returns a
// new state with the iteration appended. The input state is not modified.
func (l *Loop) Step(ctx context.Context, state LoopState, logger Logger) (LoopState, error) {
	iteration := state.CurrentIteration() + 1
	info := state.ClassInfo
	if logger == nil {
		logger = l.logger
	}

	ctx, span := l.tracer.Start(ctx, "loop.step",
		oteltrace.WithAttributes(attribute.Int("loop.iteration", iteration)))
	defer span.End()

	l.callHook(logger, "on_iteration_start", func() {
		if l.hooks.OnIterationStart != nil {
			l.hooks.OnIterationStart(iteration, info)
		}
	})

	// GENERATE: the provider is called only when no working text exists yet.
	// A pre-existing definition on the class, or the previous cycle's text,
	// is carried forward instead.
	definition := state.LatestDefinition()
	if definition == "" {
		generated, err := l.provider.Generate(ctx, info)
		if err != nil {
			return state, fmt.Errorf("generate phase: %w", err)
		}
		definition = generated
		logger.Debug("definition_generated", "length", len(definition))
	}
	l.callHook(logger, "on_generated", func() {
		if l.hooks.OnGenerated != nil {
			l.hooks.OnGenerated(iteration, definition)
		}
	})

	// CRITIQUE
	critique := l.critique(ctx, info, definition, logger)
	l.callHook(logger, "on_critiqued", func() {
		if l.hooks.OnCritiqued != nil {
			l.hooks.OnCritiqued(iteration, critique.Results)
		}
	})

	status := l.evaluator.DetermineStatus(critique.Results, info.IsICE)
	results := critique.Results
	usedLLM := critique.UsedLLM

	// REFINE: attempt a rewrite when the definition did not pass, then
	// re-run the full critique against the new text.
	var refined string
	if status != StatusPass {
		issues := FailedChecks(results)
		text, err := l.provider.Refine(ctx, info, definition, issues)
		if err != nil {
			return state, fmt.Errorf("refine phase: %w", err)
		}
		if text != "" && text != definition {
			refined = text
			recheck := l.critique(ctx, info, refined, logger)
			results = recheck.Results
			usedLLM = usedLLM || recheck.UsedLLM
			status = l.evaluator.DetermineStatus(results, info.IsICE)
			logger.Debug("definition_refined", "length", len(refined), "status", string(status))
		}
		l.callHook(logger, "on_refined", func() {
			if l.hooks.OnRefined != nil {
				l.hooks.OnRefined(iteration, refined)
			}
		})
	}

	for _, r := range FailedChecks(results) {
		observability.RecordCheckFailure(r.Code, string(r.Severity))
	}

	l.callHook(logger, "on_verified", func() {
		if l.hooks.OnVerified != nil {
			l.hooks.OnVerified(iteration, status)
		}
	})

	logger.Info("iteration_completed",
		"iteration", iteration,
		"status", string(status),
		"failed_checks", len(FailedChecks(results)),
		"used_llm_critique", usedLLM)

	it := LoopIteration{
		IterationNumber:     iteration,
		GeneratedDefinition: definition,
		CritiqueResults:     results,
		RefinedDefinition:   refined,
		VerifyStatus:        status,
		Timestamp:           time.Now().UTC(),
	}
	l.callHook(logger, "on_iteration_end", func() {
		if l.hooks.OnIterationEnd != nil {
			l.hooks.OnIterationEnd(it)
		}
	})

	return state.WithIteration(it), nil
}

// critique runs the automated checklist and, when warranted, the LLM
// critique. The LLM is skipped when automated checks already disqualify the
// definition (hybrid mode) or when red flags are present (fail-fast). An LLM
// failure degrades to automated-only results with a warning; it never aborts
// the run.
func (l *Loop) critique(ctx context.Context, info ClassInfo, definition string, logger Logger) HybridCheckResult {
	automated := l.evaluator.Evaluate(definition, info)

	if l.config.FailFastOnRedFlags && len(RedFlags(automated)) > 0 {
		logger.Debug("critique_short_circuit", "reason", "red_flags")
		return HybridCheckResult{Results: automated}
	}
	if l.config.UseHybridChecking && hasDisqualifyingFailure(automated, info.IsICE) {
		logger.Debug("critique_short_circuit", "reason", "required_failure")
		return HybridCheckResult{Results: automated}
	}

	llmResults, err := l.provider.Critique(ctx, info, definition)
	if err != nil {
		logger.Warn("llm_critique_failed", "error", err.Error())
		return HybridCheckResult{Results: automated, Degraded: true}
	}

	return HybridCheckResult{
		Results: mergeResults(automated, llmResults),
		UsedLLM: true,
	}
}

// callHook invokes fn, recovering and logging any panic.
func (l *Loop) callHook(logger Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("hook_panicked", "hook", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// hasDisqualifyingFailure reports a failing required check, a failing red
// flag, or a failing ice_required check when the class is an ICE.
func hasDisqualifyingFailure(results []CheckResult, isICE bool) bool {
	for _, r := range results {
		if r.Passed {
			continue
		}
		switch r.Severity {
		case SeverityRequired, SeverityRedFlag:
			return true
		case SeverityICERequired:
			if isICE {
				return true
			}
		}
	}
	return false
}

// mergeResults combines automated and LLM critique results. On code
// collisions the automated result wins: deterministic checks are trusted over
// model judgment.
func mergeResults(automated, llm []CheckResult) []CheckResult {
	seen := make(map[string]bool, len(automated))
	merged := make([]CheckResult, 0, len(automated)+len(llm))
	for _, r := range automated {
		seen[r.Code] = true
		merged = append(merged, r)
	}
	for _, r := range llm {
		if r.Code != "" && seen[r.Code] {
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
