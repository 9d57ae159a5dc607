package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/atotto/clipboard"
	"golang.org/x/term"

	"github.com/diogo/llamigo/internal/chat"
	"github.com/diogo/llamigo/internal/config"
	"github.com/diogo/llamigo/internal/engine"
	"github.com/diogo/llamigo/internal/history"
	"github.com/diogo/llamigo/internal/render"
	"github.com/diogo/llamigo/internal/tui"
)

// EngineFactory builds the engine named by cfg.Engine
type EngineFactory func(cfg config.Config, systemPrompt string, logger *slog.Logger) (engine.Engine, error)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewEngine creates the inference engine.
	NewEngine EngineFactory

	// RunChat runs the interactive TUI until the user quits.
	RunChat func(c *chat.Coordinator, modelName string, opts render.Options) error

	// PickConversation lets the user choose a saved conversation.
	PickConversation func(store history.Store, modelName string) (tui.PickerResult, error)

	// Stdin is read when no prompt argument is given.
	Stdin io.Reader

	// StdinIsPipe reports whether Stdin carries piped input.
	StdinIsPipe func() bool

	// IsTerminal reports whether stdout is a terminal.
	IsTerminal func() bool

	// TerminalWidth returns the stdout width, or 0 when unknown.
	TerminalWidth func() int

	// CopyToClipboard writes text to the system clipboard.
	CopyToClipboard func(text string) error
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewEngine: newEngine,
		RunChat:   tui.Run,
		PickConversation: func(store history.Store, modelName string) (tui.PickerResult, error) {
			return tui.RunPicker(store, modelName)
		},
		Stdin: os.Stdin,
		StdinIsPipe: func() bool {
			stat, err := os.Stdin.Stat()
			return err == nil && stat.Mode()&os.ModeCharDevice == 0
		},
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
		TerminalWidth: func() int {
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				return 0
			}
			return width
		},
		CopyToClipboard: clipboard.WriteAll,
	}
}
