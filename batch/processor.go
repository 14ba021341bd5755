package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ontoloom/ontoloom/core"
	"github.com/ontoloom/ontoloom/observability"
)

// =============================================================================
// CONFIG
// =============================================================================

// BatchConfig controls batch scheduling.
type BatchConfig struct {
	// MaxConcurrency caps simultaneously processed classes. Defaults to 3.
	MaxConcurrency int
	// ContinueOnError keeps the batch going after an item fails; when false
	// the first error stops admission of new items.
	ContinueOnError bool
	// RespectRateLimits enables pacing before each item starts.
	RespectRateLimits bool
	// RateLimitDelay is a fixed delay applied before each item when pacing
	// is enabled.
	RateLimitDelay time.Duration
	// RequestsPerMinute caps item starts per minute when pacing is enabled.
	// Zero disables the ceiling.
	RequestsPerMinute int
	// EnableResume skips classes already recorded in the state file.
	EnableResume bool
	// StateFile is the resume ledger path. Defaults to ".ontoloom_state.json".
	StateFile string
}

// Validate normalizes and checks the config.
func (c *BatchConfig) Validate() error {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 3
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.RateLimitDelay < 0 {
		return fmt.Errorf("rate limit delay must not be negative")
	}
	if c.StateFile == "" {
		c.StateFile = ".ontoloom_state.json"
	}
	return nil
}

// Callbacks are optional per-item observation points. They are invoked
// synchronously and serialized: no two callbacks run at once, so observers
// need no locking of their own. A panicking callback is recovered and logged.
type Callbacks struct {
	OnItemStart    func(info core.ClassInfo)
	OnItemComplete func(result *core.LoopResult)
	OnItemError    func(info core.ClassInfo, err error)
	OnProgress     func(progress BatchProgress)
}

// =============================================================================
// PROGRESS AND RESULT
// =============================================================================

// BatchProgress is a snapshot of batch counters.
type BatchProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Errored   int `json:"errored"`
	Skipped   int `json:"skipped"`
}

// Remaining is the number of items not yet accounted for.
func (p BatchProgress) Remaining() int {
	return p.Total - p.Completed - p.Errored - p.Skipped
}

// ItemError pairs a failed class with its error.
type ItemError struct {
	ClassInfo core.ClassInfo
	Err       error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.ClassInfo.IRI, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// BatchResult is the outcome of a batch run. Results appear in completion
// order; use SortedResults for a stable view.
type BatchResult struct {
	BatchID     string
	Results     []*core.LoopResult
	Errors      []ItemError
	Skipped     []core.ClassInfo
	Progress    BatchProgress
	StartedAt   time.Time
	CompletedAt time.Time
}

// SortedResults returns the results ordered by class IRI.
func (r *BatchResult) SortedResults() []*core.LoopResult {
	sorted := make([]*core.LoopResult, len(r.Results))
	copy(sorted, r.Results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ClassInfo.IRI < sorted[j].ClassInfo.IRI
	})
	return sorted
}

// ResultFor finds the result for a class IRI.
func (r *BatchResult) ResultFor(iri string) (*core.LoopResult, bool) {
	for _, res := range r.Results {
		if res.ClassInfo.IRI == iri {
			return res, true
		}
	}
	return nil, false
}

// Duration is the wall-clock time of the batch.
func (r *BatchResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Runner executes the refinement loop for one class. *core.Loop satisfies it.
type Runner interface {
	Run(ctx context.Context, info core.ClassInfo) (*core.LoopResult, error)
}

// Processor schedules refinement loops over a batch of classes. Items are
// admitted in dependency order through a counting semaphore; results are
// collected as items complete.
type Processor struct {
	runner    Runner
	config    BatchConfig
	callbacks Callbacks
	logger    core.Logger
	pacer     *Pacer
	tracer    oteltrace.Tracer

	cbMu sync.Mutex
}

// NewProcessor creates a processor. Pass nil logger to disable logging.
func NewProcessor(runner Runner, config BatchConfig, callbacks Callbacks, logger core.Logger) (*Processor, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.NopLogger{}
	}

	var pacer *Pacer
	if config.RespectRateLimits {
		pacer = NewPacer(config.RateLimitDelay, config.RequestsPerMinute)
	}

	return &Processor{
		runner:    runner,
		config:    config,
		callbacks: callbacks,
		logger:    logger.Bind("component", "batch_processor"),
		pacer:     pacer,
		tracer:    otel.Tracer("ontoloom/batch"),
	}, nil
}

// Process runs the batch. Dependency cycles abort before any scheduling with
// a *CycleError. After scheduling starts, Process always returns a
// BatchResult carrying whatever completed; the error is non-nil when
// ContinueOnError is off and an item failed (the first failure), or when the
// caller's context was cancelled.
func (p *Processor) Process(ctx context.Context, classes []core.ClassInfo) (*BatchResult, error) {
	batchID := uuid.New().String()
	logger := p.logger.Bind("batch_id", batchID)

	ctx, span := p.tracer.Start(ctx, "batch.process",
		oteltrace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(classes)),
		))
	defer span.End()

	graph := NewDependencyGraph(classes)
	for _, issue := range graph.Validate() {
		if issue.Type == IssueCircular {
			continue // reported by Order below
		}
		logger.Warn("dependency_issue",
			"type", string(issue.Type),
			"iri", issue.ClassIRI,
			"detail", issue.Detail)
	}

	ordered, err := graph.Order()
	if err != nil {
		logger.Error("dependency_order_failed", "error", err.Error())
		return nil, err
	}

	var state *BatchState
	if p.config.EnableResume {
		state = NewBatchState(p.config.StateFile, p.logger)
		state.Load()
	}

	result := &BatchResult{
		BatchID:   batchID,
		StartedAt: time.Now().UTC(),
		Progress:  BatchProgress{Total: len(ordered)},
	}

	logger.Info("batch_started",
		"classes", len(ordered),
		"max_concurrency", p.config.MaxConcurrency,
		"resume", p.config.EnableResume)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.config.MaxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards result and progress

	for _, info := range ordered {
		// Admission gate: stop handing out new work once cancelled.
		if runCtx.Err() != nil {
			break
		}

		if state != nil && state.IsCompleted(info) {
			mu.Lock()
			result.Skipped = append(result.Skipped, info)
			result.Progress.Skipped++
			progress := result.Progress
			mu.Unlock()
			observability.RecordBatchItem("skipped")
			logger.Debug("item_skipped", "iri", info.IRI)
			p.fireProgress(logger, progress)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(info core.ClassInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			if p.pacer != nil {
				if err := p.pacer.Wait(runCtx); err != nil {
					// Admitted but never started; account for it so the
					// progress counters still add up to the total.
					mu.Lock()
					result.Errors = append(result.Errors, ItemError{ClassInfo: info, Err: err})
					result.Progress.Errored++
					progress := result.Progress
					mu.Unlock()
					observability.RecordBatchItem("errored")
					logger.Debug("item_cancelled_before_start", "iri", info.IRI)
					p.fireProgress(logger, progress)
					return
				}
			}

			p.fireCallback(logger, "on_item_start", func() {
				if p.callbacks.OnItemStart != nil {
					p.callbacks.OnItemStart(info)
				}
			})

			res, err := p.runner.Run(runCtx, info)

			mu.Lock()
			if err != nil {
				result.Errors = append(result.Errors, ItemError{ClassInfo: info, Err: err})
				result.Progress.Errored++
			} else {
				result.Results = append(result.Results, res)
				result.Progress.Completed++
				if res.Converged() {
					result.Progress.Passed++
				} else {
					result.Progress.Failed++
				}
			}
			progress := result.Progress
			mu.Unlock()

			if err != nil {
				observability.RecordBatchItem("errored")
				logger.Error("item_failed", "iri", info.IRI, "error", err.Error())
				p.fireCallback(logger, "on_item_error", func() {
					if p.callbacks.OnItemError != nil {
						p.callbacks.OnItemError(info, err)
					}
				})
				if !p.config.ContinueOnError {
					cancel()
				}
			} else {
				if res.Converged() {
					observability.RecordBatchItem("passed")
				} else {
					observability.RecordBatchItem("failed")
				}
				logger.Info("item_completed",
					"iri", info.IRI,
					"status", string(res.Status),
					"iterations", res.TotalIterations)
				if state != nil {
					state.MarkCompleted(info, res)
				}
				p.fireCallback(logger, "on_item_complete", func() {
					if p.callbacks.OnItemComplete != nil {
						p.callbacks.OnItemComplete(res)
					}
				})
			}
			p.fireProgress(logger, progress)
		}(info)
	}

	wg.Wait()
	result.CompletedAt = time.Now().UTC()

	status := "success"
	switch {
	case len(result.Errors) > 0 && !p.config.ContinueOnError:
		status = "error"
	case len(result.Errors) > 0:
		status = "partial"
	}
	observability.RecordBatchExecution(status, int(result.Duration().Milliseconds()))
	span.SetAttributes(
		attribute.String("batch.status", status),
		attribute.Int("batch.completed", result.Progress.Completed),
		attribute.Int("batch.errored", result.Progress.Errored),
	)

	logger.Info("batch_completed",
		"status", status,
		"completed", result.Progress.Completed,
		"passed", result.Progress.Passed,
		"failed", result.Progress.Failed,
		"errored", result.Progress.Errored,
		"skipped", result.Progress.Skipped,
		"duration_ms", result.Duration().Milliseconds())

	// The result always carries whatever completed; the error reports why the
	// batch stopped early.
	switch {
	case len(result.Errors) > 0 && !p.config.ContinueOnError:
		return result, result.Errors[0]
	case ctx.Err() != nil:
		return result, ctx.Err()
	}
	return result, nil
}

// fireCallback invokes a callback under the callback mutex, recovering any
// panic so observers cannot break the batch.
func (p *Processor) fireCallback(logger core.Logger, name string, fn func()) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("callback_panicked", "callback", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (p *Processor) fireProgress(logger core.Logger, progress BatchProgress) {
	p.fireCallback(logger, "on_progress", func() {
		if p.callbacks.OnProgress != nil {
			p.callbacks.OnProgress(progress)
		}
	})
}
