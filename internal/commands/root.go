// Package commands provides CLI commands for llamigo.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogo/llamigo/internal/config"
)

// Version info (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// app carries the parsed flags and the effective configuration shared by
// every command.
type app struct {
	deps   *Dependencies
	cfg    config.Config
	logger *slog.Logger

	// Global flags
	modelFlag   string
	engineFlag  string
	baseURLFlag string
	personaFlag string
	verboseFlag bool

	// Query flags
	outputFlag  string
	fileFlag    string
	copyFlag    bool
	rawFlag     bool
	versionFlag bool
}

// NewRootCmd builds the command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}
	a := &app{
		deps:   deps,
		logger: slog.New(slog.DiscardHandler),
	}

	rootCmd := &cobra.Command{
		Use:   "llamigo [prompt]",
		Short: "Chat with local llama.cpp models from the terminal",
		Long: `llamigo is a terminal chat client for language models. It streams
replies from a llama.cpp server (or the Gemini API) into an interactive
chat or straight to stdout.

Examples:
  llamigo chat -m ~/models/qwen2.5-7b.gguf   Start interactive chat
  llamigo chat --resume @last                Continue the last conversation
  llamigo "What is Go?"                      Send a single query
  llamigo -f prompt.md                       Read prompt from file
  cat main.go | llamigo "Review this"        Prompt plus stdin
  llamigo "Hello" -o response.md             Save response to file`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.versionFlag {
				fmt.Fprintf(cmd.OutOrStdout(), "llamigo %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, given, err := a.readPrompt(args)
			if err != nil {
				return err
			}
			if !given {
				return cmd.Help()
			}
			return a.runQuery(cmd, prompt)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.modelFlag, "model", "m", "", "Model path (llamacpp) or name (gemini)")
	pf.StringVarP(&a.engineFlag, "engine", "e", "", fmt.Sprintf("Inference engine (%s)", strings.Join(config.AvailableEngines(), ", ")))
	pf.StringVar(&a.baseURLFlag, "base-url", "", "Server address for the engine")
	pf.StringVarP(&a.personaFlag, "persona", "p", "", "Persona (system prompt) to use")
	pf.BoolVar(&a.verboseFlag, "verbose", false, "Enable debug logging")

	f := rootCmd.Flags()
	f.StringVarP(&a.outputFlag, "output", "o", "", "Save response to file")
	f.StringVarP(&a.fileFlag, "file", "f", "", "Read prompt from file")
	f.BoolVarP(&a.copyFlag, "copy", "c", false, "Copy response to the clipboard")
	f.BoolVar(&a.rawFlag, "raw", false, "Print the raw reply without rendering")
	f.BoolVarP(&a.versionFlag, "version", "v", false, "Show version and exit")

	rootCmd.AddCommand(a.newChatCmd())
	rootCmd.AddCommand(a.newHistoryCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(a.newPersonaCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(NewDependencies()).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the
// stderr logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = a.applyFlags(cfg)
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.Verbose, slog.LevelWarn)
	return nil
}

// applyFlags overrides cfg with the flags that were set
func (a *app) applyFlags(cfg config.Config) config.Config {
	if a.engineFlag != "" {
		cfg.Engine = a.engineFlag
	}
	if a.modelFlag != "" {
		cfg.Model = a.modelFlag
	}
	if a.baseURLFlag != "" {
		cfg.BaseURL = a.baseURLFlag
	}
	if a.personaFlag != "" {
		cfg.Persona = a.personaFlag
	}
	if a.verboseFlag {
		cfg.Verbose = true
	}
	return cfg
}

// persona returns the configured persona
func (a *app) persona() (*config.Persona, error) {
	p, err := config.GetPersona(a.cfg.Persona)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona: %w", err)
	}
	a.logger.Debug("using persona", "name", p.Name)
	return p, nil
}

// readPrompt collects the prompt from --file, the argument and piped
// stdin. An argument and piped input are joined, the argument first.
// given is false when there was no input at all.
func (a *app) readPrompt(args []string) (prompt string, given bool, err error) {
	if a.fileFlag != "" {
		data, err := os.ReadFile(a.fileFlag)
		if err != nil {
			return "", true, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	var parts []string
	if len(args) > 0 {
		given = true
		parts = append(parts, args[0])
	}
	if a.deps.StdinIsPipe != nil && a.deps.StdinIsPipe() {
		given = true
		data, err := io.ReadAll(a.deps.Stdin)
		if err != nil {
			return "", true, fmt.Errorf("failed to read stdin: %w", err)
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), given, nil
}
