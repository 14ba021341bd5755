package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the complete application configuration. Precedence:
// flags > environment (ONTOLOOM_*) > config file > defaults.
type Settings struct {
	LLM       LLMSettings       `mapstructure:"llm"`
	Loop      LoopSettings      `mapstructure:"loop"`
	Batch     BatchSettings     `mapstructure:"batch"`
	Checklist ChecklistSettings `mapstructure:"checklist"`
	Output    OutputSettings    `mapstructure:"output"`
}

// LLMSettings configures the generative backend.
type LLMSettings struct {
	// Provider selects the backend: "openai" or "mock".
	Provider string `mapstructure:"provider"`
	// APIKey authenticates against the provider API.
	APIKey string `mapstructure:"api_key"`
	// BaseURL overrides the API endpoint for proxies and compatible servers.
	BaseURL string `mapstructure:"base_url"`
	// Model is the chat model name.
	Model string `mapstructure:"model"`
	// Temperature for generation; 0 means the API default.
	Temperature float64 `mapstructure:"temperature"`
	// MaxRetries bounds retries for throttled and transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// TimeoutSeconds is the per-call deadline; 0 disables.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the per-call deadline as a duration (0 = disabled).
func (s *LLMSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// LoopSettings configures the refinement loop.
type LoopSettings struct {
	// MaxIterations caps cycles per class.
	MaxIterations int `mapstructure:"max_iterations"`
	// UseHybridChecking skips LLM critique on disqualifying automated failures.
	UseHybridChecking bool `mapstructure:"use_hybrid_checking"`
	// FailFastOnRedFlags skips LLM critique when red flags are present.
	FailFastOnRedFlags bool `mapstructure:"fail_fast_on_red_flags"`
}

// BatchSettings configures batch scheduling.
type BatchSettings struct {
	// MaxConcurrency caps classes processed at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// ContinueOnError keeps the batch going after an item fails.
	ContinueOnError bool `mapstructure:"continue_on_error"`
	// RespectRateLimits enables pacing before each item.
	RespectRateLimits bool `mapstructure:"respect_rate_limits"`
	// RateLimitDelayMs is a fixed pre-item delay in milliseconds.
	RateLimitDelayMs int `mapstructure:"rate_limit_delay_ms"`
	// RequestsPerMinute caps item starts per minute; 0 disables.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// EnableResume skips classes recorded in the state file.
	EnableResume bool `mapstructure:"enable_resume"`
	// StateFile is the resume ledger path.
	StateFile string `mapstructure:"state_file"`
}

// RateLimitDelay returns the fixed pre-item delay as a duration.
func (s *BatchSettings) RateLimitDelay() time.Duration {
	return time.Duration(s.RateLimitDelayMs) * time.Millisecond
}

// ChecklistSettings configures the automated evaluator.
type ChecklistSettings struct {
	// RulesFile points at a YAML file of custom rules; empty disables.
	RulesFile string `mapstructure:"rules_file"`
}

// OutputSettings configures result writers.
type OutputSettings struct {
	// Directory receives generated files.
	Directory string `mapstructure:"directory"`
	// Format selects the report format: "markdown", "json", or "html".
	Format string `mapstructure:"format"`
	// OntologyIRI is the namespace IRI bound to the empty prefix in Turtle
	// output.
	OntologyIRI string `mapstructure:"ontology_iri"`
}

// Default returns the built-in configuration.
func Default() *Settings {
	return &Settings{
		LLM: LLMSettings{
			Provider:       "openai",
			Model:          "gpt-4o",
			MaxRetries:     3,
			TimeoutSeconds: 60,
		},
		Loop: LoopSettings{
			MaxIterations:      3,
			UseHybridChecking:  true,
			FailFastOnRedFlags: true,
		},
		Batch: BatchSettings{
			MaxConcurrency:    3,
			ContinueOnError:   true,
			RespectRateLimits: true,
			RateLimitDelayMs:  500,
			EnableResume:      true,
			StateFile:         ".ontoloom_state.json",
		},
		Output: OutputSettings{
			Directory:   "output",
			Format:      "markdown",
			OntologyIRI: "http://example.org/ontology#",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("llm.provider", defaults.LLM.Provider)
	viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	viper.SetDefault("llm.model", defaults.LLM.Model)
	viper.SetDefault("llm.temperature", defaults.LLM.Temperature)
	viper.SetDefault("llm.max_retries", defaults.LLM.MaxRetries)
	viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)

	viper.SetDefault("loop.max_iterations", defaults.Loop.MaxIterations)
	viper.SetDefault("loop.use_hybrid_checking", defaults.Loop.UseHybridChecking)
	viper.SetDefault("loop.fail_fast_on_red_flags", defaults.Loop.FailFastOnRedFlags)

	viper.SetDefault("batch.max_concurrency", defaults.Batch.MaxConcurrency)
	viper.SetDefault("batch.continue_on_error", defaults.Batch.ContinueOnError)
	viper.SetDefault("batch.respect_rate_limits", defaults.Batch.RespectRateLimits)
	viper.SetDefault("batch.rate_limit_delay_ms", defaults.Batch.RateLimitDelayMs)
	viper.SetDefault("batch.requests_per_minute", defaults.Batch.RequestsPerMinute)
	viper.SetDefault("batch.enable_resume", defaults.Batch.EnableResume)
	viper.SetDefault("batch.state_file", defaults.Batch.StateFile)

	viper.SetDefault("checklist.rules_file", defaults.Checklist.RulesFile)

	viper.SetDefault("output.directory", defaults.Output.Directory)
	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.ontology_iri", defaults.Output.OntologyIRI)
}

// Init wires viper: defaults, config file discovery, and the environment.
// An explicit cfgFile must exist; discovered files are optional.
func Init(cfgFile string) error {
	SetDefaults()

	viper.SetEnvPrefix("ONTOLOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		return nil
	}

	viper.SetConfigName("ontoloom")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "ontoloom"))
		viper.AddConfigPath(home)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// Load unmarshals the current viper state and validates it.
func Load() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every section.
func (s *Settings) Validate() error {
	switch s.LLM.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("llm.provider must be 'openai' or 'mock', got %q", s.LLM.Provider)
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %v", s.LLM.Temperature)
	}
	if s.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1, got %d", s.Loop.MaxIterations)
	}
	if s.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("batch.max_concurrency must be at least 1, got %d", s.Batch.MaxConcurrency)
	}
	switch s.Output.Format {
	case "markdown", "json", "html":
	default:
		return fmt.Errorf("output.format must be markdown, json, or html, got %q", s.Output.Format)
	}
	return nil
}
