// Package llm provides generative backends for the refinement loop: an
// OpenAI-backed provider, a deterministic mock, prompt construction, and
// response parsing.
package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/ontoloom/ontoloom/core"
)

// Provider is the generative interface consumed by the loop. See
// core.Provider for the contract.
type Provider = core.Provider

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// AuthError indicates rejected credentials. Not retryable.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError indicates the provider throttled the request. RetryAfter is
// the server-suggested wait, zero when unknown.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TimeoutError indicates the call exceeded its deadline.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out: %v", e.Provider, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ResponseError indicates the provider answered but the response was
// unusable: server error, empty choices, or unparseable content.
type ResponseError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: bad response: %s", e.Provider, e.Detail)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// =============================================================================
// USAGE TRACKING
// =============================================================================

// UsageStats records one provider call.
type UsageStats struct {
	Phase            string        `json:"phase"` // generate, critique, refine
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Latency          time.Duration `json:"latency"`
}

// SessionUsage aggregates usage across calls. Safe for concurrent use.
type SessionUsage struct {
	mu    sync.Mutex
	calls []UsageStats
}

// Add records one call.
func (s *SessionUsage) Add(stats UsageStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, stats)
}

// Totals returns call count and summed token counts.
func (s *SessionUsage) Totals() (calls, promptTokens, completionTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		promptTokens += c.PromptTokens
		completionTokens += c.CompletionTokens
	}
	return len(s.calls), promptTokens, completionTokens
}

// ByPhase returns call counts grouped by phase.
func (s *SessionUsage) ByPhase() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, c := range s.calls {
		counts[c.Phase]++
	}
	return counts
}
