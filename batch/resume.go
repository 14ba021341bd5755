package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ontoloom/ontoloom/core"
)

// =============================================================================
// RESUME LEDGER
// =============================================================================

// ClassKey derives a stable identity for a class from its IRI, label, and
// parent. Changing any of the three invalidates prior progress for the class.
func ClassKey(info core.ClassInfo) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", info.IRI, info.Label, info.ParentClass)))
	return hex.EncodeToString(sum[:])[:16]
}

// ResultSummary is the minimal record kept per completed class.
type ResultSummary struct {
	IRI         string    `json:"iri"`
	Label       string    `json:"label"`
	Status      string    `json:"status"`
	Definition  string    `json:"definition"`
	Iterations  int       `json:"iterations"`
	CompletedAt time.Time `json:"completed_at"`
}

// stateDocument is the on-disk shape of the ledger.
type stateDocument struct {
	Version   int                      `json:"version"`
	UpdatedAt time.Time                `json:"updated_at"`
	Completed map[string]ResultSummary `json:"completed"`
}

// BatchState is a persistent ledger of completed classes, used to skip
// already-finished work when a batch is re-run. All IO failures are
// non-fatal: the ledger degrades to empty (on load) or in-memory only (on
// save) with a warning, and the batch proceeds.
//
// Safe for concurrent use.
type BatchState struct {
	path   string
	logger core.Logger

	mu        sync.Mutex
	completed map[string]ResultSummary
}

// NewBatchState creates a ledger backed by the given file. Pass a nil logger
// to disable logging.
func NewBatchState(path string, logger core.Logger) *BatchState {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &BatchState{
		path:      path,
		logger:    logger.Bind("component", "batch_state"),
		completed: make(map[string]ResultSummary),
	}
}

// Load reads the ledger from disk. A missing file is a fresh start; a
// corrupt or unreadable file is logged and ignored.
func (s *BatchState) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("state_load_failed", "path", s.path, "error", err.Error())
		}
		return
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("state_parse_failed", "path", s.path, "error", err.Error())
		return
	}
	if doc.Completed != nil {
		s.completed = doc.Completed
	}
	s.logger.Info("state_loaded", "path", s.path, "completed", len(s.completed))
}

// IsCompleted reports whether the class already finished in a prior run.
func (s *BatchState) IsCompleted(info core.ClassInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[ClassKey(info)]
	return ok
}

// MarkCompleted records a finished class and persists the ledger. Persistence
// failures are logged and otherwise ignored.
func (s *BatchState) MarkCompleted(info core.ClassInfo, result *core.LoopResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed[ClassKey(info)] = ResultSummary{
		IRI:         info.IRI,
		Label:       info.Label,
		Status:      string(result.Status),
		Definition:  result.FinalDefinition,
		Iterations:  result.TotalIterations,
		CompletedAt: result.CompletedAt,
	}
	s.saveLocked()
}

// Summary returns the stored record for a class, if any.
func (s *BatchState) Summary(info core.ClassInfo) (ResultSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.completed[ClassKey(info)]
	return r, ok
}

// CompletedCount is the number of classes in the ledger.
func (s *BatchState) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

// Clear discards the ledger in memory and removes the backing file.
func (s *BatchState) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = make(map[string]ResultSummary)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

func (s *BatchState) saveLocked() {
	doc := stateDocument{
		Version:   1,
		UpdatedAt: time.Now().UTC(),
		Completed: s.completed,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Warn("state_encode_failed", "error", err.Error())
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("state_save_failed", "path", s.path, "error", err.Error())
	}
}
