package batch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoloom/ontoloom/core"
	"github.com/ontoloom/ontoloom/testutil"
)

func testResult(info core.ClassInfo, status core.VerifyStatus) *core.LoopResult {
	return &core.LoopResult{
		RunID:           "test-run",
		ClassInfo:       info,
		FinalDefinition: "A test definition that is adequate.",
		Status:          status,
		TotalIterations: 2,
		CompletedAt:     time.Now().UTC(),
	}
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestClassKey_Stability(t *testing.T) {
	info := core.ClassInfo{IRI: ":A", Label: "A", ParentClass: ":B"}

	assert.Equal(t, ClassKey(info), ClassKey(info), "key is deterministic")
	assert.Len(t, ClassKey(info), 16)

	changed := info
	changed.ParentClass = ":C"
	assert.NotEqual(t, ClassKey(info), ClassKey(changed), "parent change invalidates key")

	// Fields outside the identity triple do not affect the key.
	enriched := info
	enriched.CurrentDefinition = "something"
	assert.Equal(t, ClassKey(info), ClassKey(enriched))
}

func TestBatchState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	info := core.ClassInfo{IRI: ":A", Label: "A", ParentClass: "owl:Thing"}

	state := NewBatchState(path, nil)
	state.Load()
	assert.False(t, state.IsCompleted(info))

	state.MarkCompleted(info, testResult(info, core.StatusPass))
	assert.True(t, state.IsCompleted(info))

	// A fresh ledger sees the persisted record.
	reloaded := NewBatchState(path, nil)
	reloaded.Load()
	assert.True(t, reloaded.IsCompleted(info))
	assert.Equal(t, 1, reloaded.CompletedCount())

	summary, ok := reloaded.Summary(info)
	require.True(t, ok)
	assert.Equal(t, "pass", summary.Status)
	assert.Equal(t, 2, summary.Iterations)
}

func TestBatchState_CorruptFileIsNonFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	logger := testutil.NewMockLogger()
	state := NewBatchState(path, logger)
	state.Load()
	assert.Equal(t, 0, state.CompletedCount(), "corrupt ledger degrades to empty")
	assert.True(t, logger.Has("warn", "state_parse_failed"))
}

func TestBatchState_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	info := core.ClassInfo{IRI: ":A", Label: "A"}

	state := NewBatchState(path, nil)
	state.MarkCompleted(info, testResult(info, core.StatusPass))
	require.FileExists(t, path)

	require.NoError(t, state.Clear())
	assert.False(t, state.IsCompleted(info))
	assert.NoFileExists(t, path)

	assert.NoError(t, state.Clear(), "clearing an absent file is fine")
}
