package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ontoloom/ontoloom/core"
	"github.com/ontoloom/ontoloom/observability"
)

const openaiProviderName = "openai"

// OpenAIConfig configures the OpenAI-backed provider.
type OpenAIConfig struct {
	// APIKey authenticates against the API. Required.
	APIKey string
	// BaseURL overrides the API endpoint, for proxies and compatible servers.
	BaseURL string
	// Model is the chat model name. Required.
	Model string
	// Temperature for generation. Zero means the API default.
	Temperature float64
	// MaxRetries bounds retry attempts for throttled and 5xx responses.
	// Defaults to 3.
	MaxRetries int
	// RetryBaseDelay seeds the exponential backoff. Defaults to 1s.
	RetryBaseDelay time.Duration
	// RequestTimeout caps each API call. Zero disables the deadline.
	RequestTimeout time.Duration
}

// Validate normalizes and checks the config.
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("openai model is required")
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = time.Second
	}
	return nil
}

// OpenAIProvider implements Provider over the OpenAI chat completions API.
// Retry and backoff for throttled and transient failures live here; callers
// never retry.
type OpenAIProvider struct {
	config OpenAIConfig
	opts   []option.RequestOption
	parser responseParser
	logger core.Logger

	// Usage accumulates token and latency stats for the session.
	Usage SessionUsage
}

// NewOpenAIProvider creates a provider. Pass nil logger to disable logging.
func NewOpenAIProvider(config OpenAIConfig, logger core.Logger) (*OpenAIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &OpenAIProvider{
		config: config,
		opts:   opts,
		parser: responseParser{providerName: openaiProviderName},
		logger: logger.Bind("provider", openaiProviderName, "model", config.Model),
	}, nil
}

// Generate produces an initial definition for the class.
func (p *OpenAIProvider) Generate(ctx context.Context, info core.ClassInfo) (string, error) {
	raw, err := p.complete(ctx, "generate", buildGeneratePrompt(info))
	if err != nil {
		return "", err
	}
	return p.parser.parseDefinition(raw)
}

// Critique asks the model for findings beyond the automated checklist.
func (p *OpenAIProvider) Critique(ctx context.Context, info core.ClassInfo, definition string) ([]core.CheckResult, error) {
	raw, err := p.complete(ctx, "critique", buildCritiquePrompt(info, definition))
	if err != nil {
		return nil, err
	}
	return p.parser.parseCritique(raw)
}

// Refine rewrites the definition to address the given issues.
func (p *OpenAIProvider) Refine(ctx context.Context, info core.ClassInfo, definition string, issues []core.CheckResult) (string, error) {
	raw, err := p.complete(ctx, "refine", buildRefinePrompt(info, definition, issues))
	if err != nil {
		return "", err
	}
	return p.parser.parseDefinition(raw)
}

// complete issues one chat completion with retry for throttled and transient
// failures.
func (p *OpenAIProvider) complete(ctx context.Context, phase string, pr prompt) (string, error) {
	client := openai.NewClient(p.opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(pr.System),
			openai.UserMessage(pr.User),
		},
	}
	if p.config.Temperature > 0 {
		params.Temperature = openai.Float(p.config.Temperature)
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.backoffDelay(attempt, lastErr)
			p.logger.Warn("llm_retrying",
				"phase", phase,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr.Error())
			if err := sleepCtx(ctx, delay); err != nil {
				return "", err
			}
		}

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.config.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		}

		start := time.Now()
		resp, err := client.Chat.Completions.New(callCtx, params)
		latency := time.Since(start)
		cancel()

		if err != nil {
			mapped := p.classify(err)
			observability.RecordLLMCall(openaiProviderName, phase, "error", int(latency.Milliseconds()))
			if !retryable(mapped) {
				return "", mapped
			}
			lastErr = mapped
			continue
		}

		observability.RecordLLMCall(openaiProviderName, phase, "success", int(latency.Milliseconds()))
		observability.RecordLLMTokens(openaiProviderName,
			int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
		p.Usage.Add(UsageStats{
			Phase:            phase,
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			Latency:          latency,
		})

		if len(resp.Choices) == 0 {
			return "", &ResponseError{Provider: openaiProviderName, Detail: "empty choices"}
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", lastErr
}

// classify maps SDK failures into the package error taxonomy.
func (p *OpenAIProvider) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: openaiProviderName, Err: err}
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return &AuthError{Provider: openaiProviderName, Err: err}
		case apierr.StatusCode == 429:
			return &RateLimitError{
				Provider:   openaiProviderName,
				RetryAfter: retryAfterHint(apierr.Response),
				Err:        err,
			}
		case apierr.StatusCode >= 500:
			return &ResponseError{
				Provider: openaiProviderName,
				Detail:   fmt.Sprintf("server error %d", apierr.StatusCode),
				Err:      err,
			}
		default:
			return &ResponseError{
				Provider: openaiProviderName,
				Detail:   fmt.Sprintf("api error %d", apierr.StatusCode),
				Err:      err,
			}
		}
	}

	return &ResponseError{Provider: openaiProviderName, Detail: "request failed", Err: err}
}

// retryable reports whether the mapped error is worth another attempt:
// throttling and server-side errors are, everything else is not.
func retryable(err error) bool {
	var rate *RateLimitError
	if errors.As(err, &rate) {
		return true
	}
	var resp *ResponseError
	if errors.As(err, &resp) {
		var apierr *openai.Error
		return errors.As(resp.Err, &apierr) && apierr.StatusCode >= 500
	}
	return false
}

// retryAfterHint reads the Retry-After header from a throttled response.
// Both the delta-seconds and HTTP-date forms are accepted; absent or
// unparsable values yield zero.
func retryAfterHint(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// backoffDelay computes the sleep before the given attempt: the server's
// RetryAfter when known, otherwise exponential from the base delay.
func (p *OpenAIProvider) backoffDelay(attempt int, lastErr error) time.Duration {
	var rate *RateLimitError
	if errors.As(lastErr, &rate) && rate.RetryAfter > 0 {
		return rate.RetryAfter
	}
	return p.config.RetryBaseDelay << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
