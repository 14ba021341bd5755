// Ontoloom CLI
//
// Drives the definition refinement engine from the command line:
//
//	ontoloom run --iri :Invoice --label Invoice --parent :Document
//	ontoloom batch classes.json --concurrency 4
//	ontoloom validate --label Invoice "A document that records a payment request."
//	ontoloom init
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ontoloom/ontoloom/batch"
	"github.com/ontoloom/ontoloom/config"
	"github.com/ontoloom/ontoloom/core"
	"github.com/ontoloom/ontoloom/llm"
	"github.com/ontoloom/ontoloom/observability"
	"github.com/ontoloom/ontoloom/output"
)

// stdLogger implements core.Logger using standard library log.
type stdLogger struct {
	fields  []any
	verbose bool
}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	if l.verbose {
		log.Printf("[DEBUG] %s %v", msg, append(l.fields, keysAndValues...))
	}
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, append(l.fields, keysAndValues...))
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, append(l.fields, keysAndValues...))
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, append(l.fields, keysAndValues...))
}

func (l *stdLogger) Bind(fields ...any) core.Logger {
	return &stdLogger{fields: append(append([]any{}, l.fields...), fields...), verbose: l.verbose}
}

var (
	cfgFile      string
	verbose      bool
	otlpEndpoint string
)

func main() {
	root := &cobra.Command{
		Use:           "ontoloom",
		Short:         "Iterative refinement of ontology class definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ontoloom.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for tracing")

	root.AddCommand(newRunCmd(), newBatchCmd(), newValidateCmd(), newInitCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// =============================================================================
// SHARED WIRING
// =============================================================================

func newLogger() core.Logger {
	return &stdLogger{verbose: verbose}
}

// setupTracing starts the tracer when an endpoint is configured and returns
// a shutdown func (no-op otherwise).
func setupTracing(logger core.Logger) func() {
	if otlpEndpoint == "" {
		return func() {}
	}
	shutdown, err := observability.InitTracer("ontoloom", otlpEndpoint)
	if err != nil {
		logger.Warn("tracing_init_failed", "error", err.Error())
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing_shutdown_failed", "error", err.Error())
		}
	}
}

func buildProvider(settings *config.Settings, logger core.Logger) (core.Provider, error) {
	switch settings.LLM.Provider {
	case "mock":
		return &llm.MockProvider{}, nil
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:         settings.LLM.APIKey,
			BaseURL:        settings.LLM.BaseURL,
			Model:          settings.LLM.Model,
			Temperature:    settings.LLM.Temperature,
			MaxRetries:     settings.LLM.MaxRetries,
			RequestTimeout: settings.LLM.Timeout(),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", settings.LLM.Provider)
	}
}

func buildEvaluator(settings *config.Settings) (*core.ChecklistEvaluator, error) {
	var rules []config.CustomRule
	if settings.Checklist.RulesFile != "" {
		loaded, err := config.LoadRules(settings.Checklist.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return core.NewChecklistEvaluator(rules), nil
}

func buildLoop(settings *config.Settings, logger core.Logger) (*core.Loop, error) {
	provider, err := buildProvider(settings, logger)
	if err != nil {
		return nil, err
	}
	evaluator, err := buildEvaluator(settings)
	if err != nil {
		return nil, err
	}
	return core.NewLoop(provider, evaluator, core.LoopConfig{
		MaxIterations:      settings.Loop.MaxIterations,
		UseHybridChecking:  settings.Loop.UseHybridChecking,
		FailFastOnRedFlags: settings.Loop.FailFastOnRedFlags,
	}, core.LoopHooks{}, logger)
}

func writeRunReport(settings *config.Settings, result *core.LoopResult) error {
	if err := os.MkdirAll(settings.Output.Directory, 0o755); err != nil {
		return err
	}
	gen := output.NewReportGenerator()
	base := filepath.Join(settings.Output.Directory,
		strings.TrimPrefix(result.ClassInfo.IRI, ":"))

	switch settings.Output.Format {
	case "json":
		data, err := gen.JSON(result)
		if err != nil {
			return err
		}
		return os.WriteFile(base+".json", data, 0o644)
	case "html":
		data, err := gen.HTML(result)
		if err != nil {
			return err
		}
		return os.WriteFile(base+".html", data, 0o644)
	default:
		return os.WriteFile(base+".md", []byte(gen.Markdown(result)), 0o644)
	}
}

// =============================================================================
// RUN COMMAND
// =============================================================================

func newRunCmd() *cobra.Command {
	var iri, label, parent, definition string
	var siblings []string
	var isICE bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Refine the definition of a single class",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger()
			defer setupTracing(logger)()

			loop, err := buildLoop(settings, logger)
			if err != nil {
				return err
			}

			result, err := loop.Run(cmd.Context(), core.ClassInfo{
				IRI:               iri,
				Label:             label,
				ParentClass:       parent,
				SiblingClasses:    siblings,
				IsICE:             isICE,
				CurrentDefinition: definition,
			})
			if err != nil {
				return err
			}

			if err := writeRunReport(settings, result); err != nil {
				return err
			}

			fmt.Printf("Status: %s (%d iterations)\n", strings.ToUpper(string(result.Status)), result.TotalIterations)
			fmt.Printf("Definition: %s\n", result.FinalDefinition)
			if !result.Converged() {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&iri, "iri", "", "class IRI, e.g. :Invoice")
	cmd.Flags().StringVar(&label, "label", "", "human-readable class label")
	cmd.Flags().StringVar(&parent, "parent", "", "parent class IRI")
	cmd.Flags().StringSliceVar(&siblings, "sibling", nil, "sibling class IRI (repeatable)")
	cmd.Flags().BoolVar(&isICE, "ice", false, "class is an Information Content Entity")
	cmd.Flags().StringVar(&definition, "definition", "", "existing definition to improve")
	cmd.Flags().String("provider", "openai", "generative backend (openai or mock)")
	cmd.Flags().Int("max-iterations", 3, "refinement cycles before giving up")
	_ = viper.BindPFlag("llm.provider", cmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("loop.max_iterations", cmd.Flags().Lookup("max-iterations"))
	_ = cmd.MarkFlagRequired("iri")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}

// =============================================================================
// BATCH COMMAND
// =============================================================================

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <classes.json>",
		Short: "Refine definitions for a batch of classes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger()
			defer setupTracing(logger)()

			classes, err := loadClasses(args[0])
			if err != nil {
				return err
			}

			loop, err := buildLoop(settings, logger)
			if err != nil {
				return err
			}

			processor, err := batch.NewProcessor(loop, batch.BatchConfig{
				MaxConcurrency:    settings.Batch.MaxConcurrency,
				ContinueOnError:   settings.Batch.ContinueOnError,
				RespectRateLimits: settings.Batch.RespectRateLimits,
				RateLimitDelay:    settings.Batch.RateLimitDelay(),
				RequestsPerMinute: settings.Batch.RequestsPerMinute,
				EnableResume:      settings.Batch.EnableResume,
				StateFile:         settings.Batch.StateFile,
			}, progressCallbacks(), logger)
			if err != nil {
				return err
			}

			result, err := processor.Process(cmd.Context(), classes)
			if err != nil {
				return err
			}

			consistency := batch.NewConsistencyAnalyzer(logger).Analyze(result.Results)
			siblings := (&batch.SiblingAnalyzer{}).Analyze(result.Results)

			if err := writeBatchOutput(settings, result, consistency, siblings); err != nil {
				return err
			}

			p := result.Progress
			fmt.Printf("Batch done: %d passed, %d failed, %d errored, %d skipped\n",
				p.Passed, p.Failed, p.Errored, p.Skipped)
			if p.Errored > 0 {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().Int("concurrency", 3, "maximum classes processed at once")
	cmd.Flags().Bool("resume", true, "skip classes recorded in the state file")
	cmd.Flags().Bool("continue-on-error", true, "keep going after an item fails")
	cmd.Flags().String("state-file", ".ontoloom_state.json", "resume ledger path")
	cmd.Flags().String("output-dir", "output", "directory for generated files")
	_ = viper.BindPFlag("batch.max_concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("batch.enable_resume", cmd.Flags().Lookup("resume"))
	_ = viper.BindPFlag("batch.continue_on_error", cmd.Flags().Lookup("continue-on-error"))
	_ = viper.BindPFlag("batch.state_file", cmd.Flags().Lookup("state-file"))
	_ = viper.BindPFlag("output.directory", cmd.Flags().Lookup("output-dir"))

	return cmd
}

func progressCallbacks() batch.Callbacks {
	return batch.Callbacks{
		OnProgress: func(p batch.BatchProgress) {
			fmt.Printf("\rProgress: %d/%d (passed %d, failed %d, errored %d, skipped %d)",
				p.Total-p.Remaining(), p.Total, p.Passed, p.Failed, p.Errored, p.Skipped)
			if p.Remaining() == 0 {
				fmt.Println()
			}
		},
	}
}

func loadClasses(path string) ([]core.ClassInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	var classes []core.ClassInfo
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, fmt.Errorf("parsing class file %s: %w", path, err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("class file %s contains no classes", path)
	}
	return classes, nil
}

func writeBatchOutput(settings *config.Settings, result *batch.BatchResult, consistency []batch.ConsistencyIssue, siblings []batch.SiblingIssue) error {
	if err := os.MkdirAll(settings.Output.Directory, 0o755); err != nil {
		return err
	}

	turtle := &output.TurtleGenerator{OntologyIRI: settings.Output.OntologyIRI}
	doc := turtle.Render(result.SortedResults())
	ttlPath := filepath.Join(settings.Output.Directory, "definitions.ttl")
	if err := os.WriteFile(ttlPath, []byte(doc), 0o644); err != nil {
		return err
	}

	gen := output.NewBatchReportGenerator()
	base := filepath.Join(settings.Output.Directory, "batch_report")
	switch settings.Output.Format {
	case "json":
		data, err := gen.JSON(result)
		if err != nil {
			return err
		}
		return os.WriteFile(base+".json", data, 0o644)
	case "html":
		data, err := gen.HTML(result, consistency, siblings)
		if err != nil {
			return err
		}
		return os.WriteFile(base+".html", data, 0o644)
	default:
		md := gen.Markdown(result, consistency, siblings)
		return os.WriteFile(base+".md", []byte(md), 0o644)
	}
}

// =============================================================================
// VALIDATE COMMAND
// =============================================================================

func newValidateCmd() *cobra.Command {
	var label, parent string
	var isICE bool

	cmd := &cobra.Command{
		Use:   "validate <definition>",
		Short: "Run the automated checklist on a definition without any LLM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			evaluator, err := buildEvaluator(settings)
			if err != nil {
				return err
			}

			info := core.ClassInfo{Label: label, ParentClass: parent, IsICE: isICE}
			results := evaluator.Evaluate(args[0], info)
			status := evaluator.DetermineStatus(results, isICE)

			for _, r := range results {
				mark := "PASS"
				if !r.Passed {
					mark = "FAIL"
				}
				fmt.Printf("[%s] %-4s %-35s %s\n", mark, r.Code, r.Name, r.Evidence)
			}
			fmt.Printf("\nVerdict: %s\n", strings.ToUpper(string(status)))
			if status == core.StatusFail {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "class label (for circularity checking)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent class IRI")
	cmd.Flags().BoolVar(&isICE, "ice", false, "class is an Information Content Entity")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}

// =============================================================================
// INIT COMMAND
// =============================================================================

const exampleConfig = `# Ontoloom configuration
llm:
  provider: openai        # openai or mock
  model: gpt-4o
  # api_key: set here or via ONTOLOOM_LLM_API_KEY
  max_retries: 3
  timeout_seconds: 60

loop:
  max_iterations: 3
  use_hybrid_checking: true
  fail_fast_on_red_flags: true

batch:
  max_concurrency: 3
  continue_on_error: true
  respect_rate_limits: true
  rate_limit_delay_ms: 500
  enable_resume: true
  state_file: .ontoloom_state.json

checklist:
  # rules_file: custom_rules.yaml

output:
  directory: output
  format: markdown        # markdown, json, or html
  ontology_iri: http://example.org/ontology#
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write an example ontoloom.yaml to the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			const path = "ontoloom.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
}
