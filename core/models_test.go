package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LOOP STATE TESTS
// =============================================================================

func TestLoopState_WithIteration_DoesNotMutateReceiver(t *testing.T) {
	state := NewLoopState(ClassInfo{IRI: ":Widget", Label: "Widget"}, 3)

	next := state.WithIteration(LoopIteration{
		IterationNumber:     1,
		GeneratedDefinition: "A widget definition.",
		VerifyStatus:        StatusIterate,
	})

	assert.Equal(t, 0, state.CurrentIteration(), "original state must be unchanged")
	assert.Equal(t, 1, next.CurrentIteration())

	// Appending to the derived state must not leak back either.
	third := next.WithIteration(LoopIteration{IterationNumber: 2, VerifyStatus: StatusPass})
	assert.Equal(t, 1, next.CurrentIteration())
	assert.Equal(t, 2, third.CurrentIteration())
}

func TestLoopState_IsComplete(t *testing.T) {
	state := NewLoopState(ClassInfo{IRI: ":A"}, 2)
	assert.False(t, state.IsComplete(), "fresh state is not complete")

	state = state.WithIteration(LoopIteration{IterationNumber: 1, VerifyStatus: StatusIterate})
	assert.False(t, state.IsComplete(), "iterate status leaves budget remaining")

	passed := state.WithIteration(LoopIteration{IterationNumber: 2, VerifyStatus: StatusPass})
	assert.True(t, passed.IsComplete(), "pass terminates")

	exhausted := state.WithIteration(LoopIteration{IterationNumber: 2, VerifyStatus: StatusFail})
	assert.True(t, exhausted.IsComplete(), "budget exhaustion terminates")
}

func TestLoopState_LatestDefinition(t *testing.T) {
	state := NewLoopState(ClassInfo{IRI: ":A", CurrentDefinition: "existing text"}, 3)
	assert.Equal(t, "existing text", state.LatestDefinition(),
		"falls back to the pre-existing definition")

	state = state.WithIteration(LoopIteration{
		IterationNumber:     1,
		GeneratedDefinition: "generated",
	})
	assert.Equal(t, "generated", state.LatestDefinition())

	state = state.WithIteration(LoopIteration{
		IterationNumber:     2,
		GeneratedDefinition: "generated",
		RefinedDefinition:   "refined",
	})
	assert.Equal(t, "refined", state.LatestDefinition(), "refined text wins")
}

// =============================================================================
// ITERATION AND RESULT TESTS
// =============================================================================

func TestLoopIteration_FinalDefinition(t *testing.T) {
	it := LoopIteration{GeneratedDefinition: "gen"}
	assert.Equal(t, "gen", it.FinalDefinition())

	it.RefinedDefinition = "refined"
	assert.Equal(t, "refined", it.FinalDefinition())
}

func TestCheckResult_Filters(t *testing.T) {
	results := []CheckResult{
		{Code: "C1", Passed: true, Severity: SeverityRequired},
		{Code: "C3", Passed: false, Severity: SeverityRequired},
		{Code: "R1", Passed: false, Severity: SeverityRedFlag},
		{Code: "Q1", Passed: false, Severity: SeverityQuality},
	}

	failed := FailedChecks(results)
	require.Len(t, failed, 3)

	flags := RedFlags(results)
	require.Len(t, flags, 1)
	assert.Equal(t, "R1", flags[0].Code)
}

func TestLoopResult_Converged(t *testing.T) {
	r := LoopResult{Status: StatusPass}
	assert.True(t, r.Converged())

	r.Status = StatusFail
	assert.False(t, r.Converged())

	r.StartedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.CompletedAt = r.StartedAt.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
}
