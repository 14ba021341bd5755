package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "key", Model: "gpt-4o"}, nil)
	require.NoError(t, err)
	return p
}

func apiError(status int, header http.Header) *openai.Error {
	req, _ := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
	return &openai.Error{
		StatusCode: status,
		Request:    req,
		Response:   &http.Response{StatusCode: status, Header: header},
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestOpenAIConfig_Validate(t *testing.T) {
	cfg := OpenAIConfig{APIKey: "key", Model: "gpt-4o"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)

	assert.Error(t, (&OpenAIConfig{Model: "gpt-4o"}).Validate(), "api key required")
	assert.Error(t, (&OpenAIConfig{APIKey: "key"}).Validate(), "model required")
}

// =============================================================================
// ERROR CLASSIFICATION TESTS
// =============================================================================

func TestClassify_StatusCodeMapping(t *testing.T) {
	p := testProvider(t)

	var auth *AuthError
	assert.True(t, errors.As(p.classify(apiError(401, http.Header{})), &auth))
	assert.True(t, errors.As(p.classify(apiError(403, http.Header{})), &auth))

	var rate *RateLimitError
	assert.True(t, errors.As(p.classify(apiError(429, http.Header{})), &rate))

	var resp *ResponseError
	assert.True(t, errors.As(p.classify(apiError(500, http.Header{})), &resp))
	assert.True(t, errors.As(p.classify(apiError(404, http.Header{})), &resp))

	var timeout *TimeoutError
	assert.True(t, errors.As(p.classify(context.DeadlineExceeded), &timeout))
}

func TestClassify_RateLimitCarriesRetryAfter(t *testing.T) {
	p := testProvider(t)
	header := http.Header{"Retry-After": []string{"7"}}

	var rate *RateLimitError
	require.True(t, errors.As(p.classify(apiError(429, header)), &rate))
	assert.Equal(t, 7*time.Second, rate.RetryAfter)
}

func TestRetryAfterHint(t *testing.T) {
	assert.Zero(t, retryAfterHint(nil))
	assert.Zero(t, retryAfterHint(&http.Response{Header: http.Header{}}))
	assert.Zero(t, retryAfterHint(&http.Response{
		Header: http.Header{"Retry-After": []string{"soon"}},
	}), "unparsable values fall back to the default backoff")

	delta := retryAfterHint(&http.Response{
		Header: http.Header{"Retry-After": []string{"12"}},
	})
	assert.Equal(t, 12*time.Second, delta)

	at := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	dated := retryAfterHint(&http.Response{
		Header: http.Header{"Retry-After": []string{at}},
	})
	assert.Greater(t, dated, time.Duration(0))
	assert.LessOrEqual(t, dated, 30*time.Second)
}

// =============================================================================
// RETRY POLICY TESTS
// =============================================================================

func TestRetryable(t *testing.T) {
	p := testProvider(t)

	assert.True(t, retryable(p.classify(apiError(429, http.Header{}))))
	assert.True(t, retryable(p.classify(apiError(503, http.Header{}))))
	assert.False(t, retryable(p.classify(apiError(401, http.Header{}))))
	assert.False(t, retryable(p.classify(apiError(400, http.Header{}))))
	assert.False(t, retryable(p.classify(context.DeadlineExceeded)))
}

func TestBackoffDelay(t *testing.T) {
	p := testProvider(t)
	p.config.RetryBaseDelay = time.Second

	generic := &ResponseError{Provider: "openai", Detail: "server error 500"}
	assert.Equal(t, time.Second, p.backoffDelay(1, generic))
	assert.Equal(t, 2*time.Second, p.backoffDelay(2, generic))
	assert.Equal(t, 4*time.Second, p.backoffDelay(3, generic))

	hinted := &RateLimitError{Provider: "openai", RetryAfter: 9 * time.Second}
	assert.Equal(t, 9*time.Second, p.backoffDelay(1, hinted),
		"the server hint overrides the exponential schedule")
}
