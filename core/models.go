// Package core provides the data model and refinement loop for ontology
// class definitions.
//
// The central types mirror the lifecycle of a single definition:
//   - ClassInfo: the class to define (input, immutable)
//   - CheckResult: outcome of one checklist item
//   - LoopIteration: one Generate -> Critique -> Refine -> Verify cycle
//   - LoopState: append-only history threaded through the loop
//   - LoopResult: terminal snapshot returned to callers
package core

import (
	"time"
)

// =============================================================================
// ENUMS
// =============================================================================

// Severity classifies checklist items.
type Severity string

const (
	// SeverityRequired marks core requirements (C1-C4).
	SeverityRequired Severity = "required"
	// SeverityICERequired marks ICE-specific requirements (I1-I3).
	SeverityICERequired Severity = "ice_required"
	// SeverityQuality marks quality checks (Q1-Q3).
	SeverityQuality Severity = "quality"
	// SeverityRedFlag marks auto-fail patterns (R1-R4).
	SeverityRedFlag Severity = "red_flag"
)

// VerifyStatus is the outcome of the VERIFY phase.
type VerifyStatus string

const (
	// StatusPass means all required checks pass and no red flags are present.
	StatusPass VerifyStatus = "pass"
	// StatusFail means a required check fails or a red flag is present.
	StatusFail VerifyStatus = "fail"
	// StatusIterate means only quality checks fail; another cycle may fix them.
	StatusIterate VerifyStatus = "iterate"
)

// =============================================================================
// CLASS INFO
// =============================================================================

// ClassInfo describes an ontology class to be refined. It is the primary
// input to the loop and is never mutated once admitted to a batch; identity
// is the IRI.
type ClassInfo struct {
	// IRI of the class, e.g. ":VerbPhrase".
	IRI string `json:"iri"`
	// Label is the human-readable name, e.g. "Verb Phrase".
	Label string `json:"label"`
	// ParentClass is the parent IRI, e.g. "cco:InformationContentEntity".
	// May reference a class outside the batch.
	ParentClass string `json:"parent_class"`
	// SiblingClasses lists sibling IRIs for exclusivity checking.
	SiblingClasses []string `json:"sibling_classes,omitempty"`
	// IsICE marks Information Content Entities, which enables the
	// ICE-specific checklist items.
	IsICE bool `json:"is_ice"`
	// CurrentDefinition is an existing definition to improve, or empty for a
	// new class.
	CurrentDefinition string `json:"current_definition,omitempty"`
}

// =============================================================================
// CHECK RESULT
// =============================================================================

// CheckResult is the outcome of a single checklist item evaluation.
type CheckResult struct {
	// Code identifies the check, e.g. "C1", "I2", "R3".
	Code string `json:"code"`
	// Name is the human-readable check name.
	Name string `json:"name"`
	// Passed reports whether the check passed.
	Passed bool `json:"passed"`
	// Evidence supports the pass/fail determination.
	Evidence string `json:"evidence"`
	// Severity is the tier of this check.
	Severity Severity `json:"severity"`
}

// FailedChecks filters results down to the ones that did not pass.
func FailedChecks(results []CheckResult) []CheckResult {
	failed := make([]CheckResult, 0)
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RedFlags filters results down to failing red-flag checks.
func RedFlags(results []CheckResult) []CheckResult {
	flags := make([]CheckResult, 0)
	for _, r := range results {
		if !r.Passed && r.Severity == SeverityRedFlag {
			flags = append(flags, r)
		}
	}
	return flags
}

// =============================================================================
// LOOP ITERATION
// =============================================================================

// LoopIteration records a single cycle through the loop.
type LoopIteration struct {
	// IterationNumber is 1-indexed.
	IterationNumber int `json:"iteration_number"`
	// GeneratedDefinition is the definition entering the CRITIQUE phase.
	GeneratedDefinition string `json:"generated_definition"`
	// CritiqueResults holds the checklist outcomes for this cycle.
	CritiqueResults []CheckResult `json:"critique_results"`
	// RefinedDefinition is set when the REFINE phase produced a new text.
	RefinedDefinition string `json:"refined_definition,omitempty"`
	// VerifyStatus is the outcome of the VERIFY phase.
	VerifyStatus VerifyStatus `json:"verify_status"`
	// Timestamp is when the iteration completed.
	Timestamp time.Time `json:"timestamp"`
}

// FinalDefinition returns the refined definition when present, otherwise the
// generated one.
func (it LoopIteration) FinalDefinition() string {
	if it.RefinedDefinition != "" {
		return it.RefinedDefinition
	}
	return it.GeneratedDefinition
}

// FailedChecks returns the checks in this iteration that did not pass.
func (it LoopIteration) FailedChecks() []CheckResult {
	return FailedChecks(it.CritiqueResults)
}

// =============================================================================
// LOOP STATE
// =============================================================================

// LoopState is the state threaded through the loop. Each Step produces a new
// value rather than mutating the previous one, so historical states remain
// valid for auditing and comparison.
type LoopState struct {
	ClassInfo     ClassInfo
	Iterations    []LoopIteration
	MaxIterations int
	StartedAt     time.Time
}

// NewLoopState creates the initial state for a run.
func NewLoopState(info ClassInfo, maxIterations int) LoopState {
	return LoopState{
		ClassInfo:     info,
		Iterations:    nil,
		MaxIterations: maxIterations,
		StartedAt:     time.Now().UTC(),
	}
}

// CurrentIteration is the number of completed iterations.
func (s LoopState) CurrentIteration() int {
	return len(s.Iterations)
}

// IsComplete reports whether the loop has terminated, either because the last
// iteration passed or the iteration budget is spent.
func (s LoopState) IsComplete() bool {
	if len(s.Iterations) == 0 {
		return false
	}
	last := s.Iterations[len(s.Iterations)-1]
	return last.VerifyStatus == StatusPass || s.CurrentIteration() >= s.MaxIterations
}

// LatestDefinition returns the most recent definition, falling back to the
// class's pre-existing definition before any iteration has run. Empty when
// neither exists.
func (s LoopState) LatestDefinition() string {
	if len(s.Iterations) > 0 {
		return s.Iterations[len(s.Iterations)-1].FinalDefinition()
	}
	return s.ClassInfo.CurrentDefinition
}

// WithIteration returns a new state with the iteration appended. The
// receiver is left untouched.
func (s LoopState) WithIteration(it LoopIteration) LoopState {
	iterations := make([]LoopIteration, len(s.Iterations), len(s.Iterations)+1)
	copy(iterations, s.Iterations)
	iterations = append(iterations, it)
	return LoopState{
		ClassInfo:     s.ClassInfo,
		Iterations:    iterations,
		MaxIterations: s.MaxIterations,
		StartedAt:     s.StartedAt,
	}
}

// =============================================================================
// LOOP RESULT
// =============================================================================

// LoopResult is the terminal snapshot of a run.
type LoopResult struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`
	// ClassInfo is the class that was refined.
	ClassInfo ClassInfo `json:"class_info"`
	// FinalDefinition is the definition from the last iteration (refined if
	// the REFINE phase ran, generated otherwise).
	FinalDefinition string `json:"final_definition"`
	// Status is the verify status of the last iteration.
	Status VerifyStatus `json:"status"`
	// Iterations is the full history of the run.
	Iterations []LoopIteration `json:"iterations"`
	// TotalIterations is the number of iterations performed.
	TotalIterations int `json:"total_iterations"`
	// StartedAt / CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Converged reports whether the run produced a passing definition.
func (r *LoopResult) Converged() bool {
	return r.Status == StatusPass
}

// Duration is the wall-clock time taken by the run.
func (r *LoopResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
