package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diogo/llamigo/internal/chat"
	apierrors "github.com/diogo/llamigo/internal/errors"
	"github.com/diogo/llamigo/internal/models"
	"github.com/diogo/llamigo/internal/render"
	"github.com/diogo/llamigo/internal/transcript"
)

var (
	colorText     = lipgloss.Color("#c0caf5")
	colorTextDim  = lipgloss.Color("#565f89")
	colorTextMute = lipgloss.Color("#3b4261")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorPrimary  = lipgloss.Color("#7aa2f7")
	colorError    = lipgloss.Color("#f7768e")
)

// Styles matching the chat TUI
var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginTop(1).
				MarginBottom(1)
)

// unloadTimeout bounds how long teardown may wait for the engine
const unloadTimeout = 10 * time.Second

// runQuery loads the model, sends a single prompt and prints the reply.
//
// On a terminal the reply is rendered as markdown once complete; otherwise
// (or with --raw) fragments are written to stdout as they arrive. The
// command fails when the model cannot load or the stream fails.
func (a *app) runQuery(cmd *cobra.Command, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return apierrors.ErrEmptyPrompt
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	path, err := modelPath(a.cfg)
	if err != nil {
		return err
	}
	persona, err := a.persona()
	if err != nil {
		return err
	}
	eng, err := a.deps.NewEngine(a.cfg, persona.SystemPrompt, a.logger)
	if err != nil {
		return err
	}

	store := transcript.New()
	coord := chat.New(eng, store, chat.WithLogger(a.logger))
	defer func() {
		unloadCtx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		defer cancel()
		coord.Unload(unloadCtx)
	}()

	decorated := !a.rawFlag && a.deps.IsTerminal()

	var spin *spinner
	if decorated {
		spin = newSpinner(stderr, "Loading "+path)
		spin.start()
	}
	if err := coord.Load(ctx, path); err != nil {
		if decorated {
			spin.stopWithError()
			fmt.Fprintln(stderr, formatErrorMessage(err, "Load failed"))
		}
		return err
	}
	if decorated {
		spin.stopWithSuccess("Loaded " + path)
	}

	a.logger.Debug("sending prompt", "engine", a.cfg.Engine, "model", path, "bytes", len(prompt))
	turn, err := coord.Submit(prompt)
	if err != nil {
		return err
	}

	// Stream straight to stdout only when nothing else wants the text
	var live io.Writer
	if !decorated && a.outputFlag == "" {
		live = stdout
	}

	if decorated {
		spin = newSpinner(stderr, "Generating response")
		spin.start()
	}
	start := time.Now()
	reply, err := follow(ctx, store, turn, live)
	if err != nil {
		if decorated {
			spin.stopWithError()
			fmt.Fprintln(stderr, formatErrorMessage(err, "Generation failed"))
		} else if live != nil && reply.Content != "" {
			fmt.Fprintln(live)
		}
		return err
	}
	if decorated {
		spin.stopWithSuccess("Done")
	}
	a.logger.Debug("reply finished", "bytes", len(reply.Content), "elapsed", time.Since(start).Round(time.Millisecond))

	text := reply.Content

	if a.copyFlag || a.cfg.CopyToClipboard {
		if err := a.deps.CopyToClipboard(text); err != nil {
			fmt.Fprintln(stderr, lipgloss.NewStyle().Foreground(colorError).Render(
				fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		} else if decorated {
			fmt.Fprintln(stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard"))
		}
	}

	if a.outputFlag != "" {
		if err := os.WriteFile(a.outputFlag, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if decorated {
			fmt.Fprintln(stderr, lipgloss.NewStyle().Foreground(colorSuccess).Render(
				fmt.Sprintf("✓ Response saved to %s", a.outputFlag)))
		}
		return nil
	}

	if !decorated {
		if a.deps.IsTerminal() && !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(stdout)
		}
		return nil
	}

	bubbleWidth := min(max(a.deps.TerminalWidth()-4, 40), 120)
	opts := render.OptionsFromConfig(a.cfg.Markdown).WithWidth(bubbleWidth - 4)

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, assistantLabelStyle.Render("✦ "+models.RoleAssistant.Label()))
	fmt.Fprintln(stdout, assistantBubbleStyle.Width(bubbleWidth).Render(render.MarkdownOrPlain(text, opts)))
	return nil
}

// follow waits for turn to finish and returns its reply. When w is not nil
// the reply text is written to it as it grows. A failed reply's error
// description is not written; the turn's error is returned instead.
func follow(ctx context.Context, store *transcript.Store, turn *chat.Turn, w io.Writer) (models.Message, error) {
	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	written := 0
	emit := func(msg models.Message) {
		if w == nil || msg.Status == models.StatusFailed || len(msg.Content) <= written {
			return
		}
		_, _ = io.WriteString(w, msg.Content[written:])
		written = len(msg.Content)
	}

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if msg, found := snap.Find(turn.ReplyID()); found {
				emit(msg)
			}
		case <-turn.Done():
			msg, _ := store.Snapshot().Find(turn.ReplyID())
			emit(msg)
			if err := turn.Err(); err != nil {
				return msg, err
			}
			if turn.State() == chat.StateCancelled {
				return msg, apierrors.ErrClosed
			}
			return msg, nil
		case <-ctx.Done():
			msg, _ := store.Snapshot().Find(turn.ReplyID())
			return msg, ctx.Err()
		}
	}
}

// formatErrorMessage formats an error with a hint for the known error types
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %s", context, apierrors.Describe(err))))

	switch {
	case apierrors.IsLoadError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: check --model and that the server at --base-url is running"))
	case apierrors.IsStreamError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: the engine stopped mid-reply; see --verbose for details"))
	}

	return sb.String()
}
