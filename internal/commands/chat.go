package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/diogo/llamigo/internal/chat"
	"github.com/diogo/llamigo/internal/config"
	"github.com/diogo/llamigo/internal/engine"
	"github.com/diogo/llamigo/internal/history"
	"github.com/diogo/llamigo/internal/render"
	"github.com/diogo/llamigo/internal/transcript"
	"github.com/diogo/llamigo/internal/tui"
)

func (a *app) newChatCmd() *cobra.Command {
	var (
		resumeFlag string
		selectFlag bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

The model loads in the background while the chat opens; messages sent
before it is ready wait in line. Type 'exit', 'quit', or press Esc to end
the session. /copy copies the last reply to the clipboard.

` + history.ListAliases(),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, resumeFlag, selectFlag)
		},
	}

	cmd.Flags().StringVarP(&resumeFlag, "resume", "r", "", "Resume a saved conversation (@last, index, title or ID)")
	cmd.Flags().BoolVarP(&selectFlag, "select", "s", false, "Pick a saved conversation to resume")
	cmd.MarkFlagsMutuallyExclusive("resume", "select")

	return cmd
}

func (a *app) runChat(cmd *cobra.Command, resume string, pick bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path, err := modelPath(a.cfg)
	if err != nil {
		return err
	}
	persona, err := a.persona()
	if err != nil {
		return err
	}

	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(logFile, a.cfg.Verbose, slog.LevelInfo).With("session", "chat")

	var store history.Store
	if a.cfg.HistoryEnabled || resume != "" || pick {
		store, err = openHistory(a.cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var conv *history.Conversation
	switch {
	case resume != "":
		conv, err = history.Resolve(store, resume)
		if err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
	case pick:
		res, err := a.deps.PickConversation(store, path)
		if err != nil {
			return err
		}
		if !res.Confirmed {
			return nil
		}
		conv = res.Conversation
	}

	eng, err := a.deps.NewEngine(a.cfg, persona.SystemPrompt, logger)
	if err != nil {
		return err
	}

	ts := transcript.New()
	opts := []chat.Option{chat.WithLogger(logger)}
	if conv != nil {
		msgs := conv.Transcript()
		if err := ts.Seed(msgs); err != nil {
			return err
		}
		eng = engine.WithPriming(eng, engine.Exchanges(msgs))
		logger.Info("resuming conversation", "id", conv.ID, "messages", len(msgs))
	}
	if a.cfg.HistoryEnabled && store != nil {
		if conv != nil {
			opts = append(opts, chat.WithRecorder(history.ResumeRecorder(store, conv)))
		} else {
			opts = append(opts, chat.WithRecorder(history.NewRecorder(store, path)))
		}
	}

	coord := chat.New(eng, ts, opts...)
	defer func() {
		unloadCtx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		defer cancel()
		coord.Unload(unloadCtx)
	}()

	// Queued before the TUI starts so early messages wait for the model.
	// Load failures are written into the transcript.
	coord.LoadAsync(ctx, path)

	if a.cfg.Theme != "" && !tui.SetPalette(a.cfg.Theme) {
		logger.Warn("unknown theme, using the default", "theme", a.cfg.Theme)
	}
	return a.deps.RunChat(coord, path, render.OptionsFromConfig(a.cfg.Markdown))
}

// openHistory opens the configured history backend under the config dir
func openHistory(cfg config.Config, logger *slog.Logger) (history.Store, error) {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.HistoryBackend, dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
