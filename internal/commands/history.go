package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/diogo/llamigo/internal/history"
	"github.com/diogo/llamigo/internal/models"
)

func (a *app) newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage conversation history",
		Long: `View and manage your local conversation history.

` + history.ListAliases(),
	}

	var (
		formatFlag  string
		outputFlag  string
		contentFlag bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.NoArgs,
		RunE:  a.withHistory(a.runHistoryList),
	}

	showCmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  a.withHistory(a.runHistoryShow),
	}

	exportCmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a conversation as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: a.withHistory(func(cmd *cobra.Command, store history.Store, args []string) error {
			return runHistoryExport(cmd, store, args[0], formatFlag, outputFlag)
		}),
	}
	exportCmd.Flags().StringVar(&formatFlag, "format", "", "Export format: md or json (default from --output extension, else md)")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write to file instead of stdout")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation titles",
		Args:  cobra.ExactArgs(1),
		RunE: a.withHistory(func(cmd *cobra.Command, store history.Store, args []string) error {
			return runHistorySearch(cmd, store, args[0], contentFlag)
		}),
	}
	searchCmd.Flags().BoolVar(&contentFlag, "content", false, "Search message content too")

	deleteCmd := &cobra.Command{
		Use:   "delete <ref>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  a.withHistory(a.runHistoryDelete),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all conversations",
		Args:  cobra.NoArgs,
		RunE:  a.withHistory(a.runHistoryClear),
	}

	historyCmd.AddCommand(listCmd, showCmd, exportCmd, searchCmd, deleteCmd, clearCmd)
	return historyCmd
}

// withHistory opens the store for the duration of a history subcommand
func (a *app) withHistory(run func(cmd *cobra.Command, store history.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(a.cfg, a.logger)
		if err != nil {
			return err
		}
		defer store.Close()
		return run(cmd, store, args)
	}
}

func (a *app) runHistoryList(cmd *cobra.Command, store history.Store, args []string) error {
	conversations, err := store.ListConversations()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(conversations) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tMODEL\tMESSAGES\tUPDATED")
	_, _ = fmt.Fprintln(w, "-\t--\t-----\t-----\t--------\t-------")

	for i, conv := range conversations {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1, conv.ID, truncate(oneLine(conv.Title), 40), conv.Model, len(conv.Messages),
			history.FormatRelativeTime(conv.UpdatedAt))
	}

	return w.Flush()
}

func (a *app) runHistoryShow(cmd *cobra.Command, store history.Store, args []string) error {
	conv, err := history.Resolve(store, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID: %s\n", conv.ID)
	fmt.Fprintf(out, "Title: %s\n", conv.Title)
	fmt.Fprintf(out, "Model: %s\n", conv.Model)
	fmt.Fprintf(out, "Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated: %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Messages: %d\n\n", len(conv.Messages))

	for i, msg := range conv.Messages {
		label := models.Role(msg.Role).Label()
		if msg.Status != "" {
			label += " [" + msg.Status + "]"
		}
		fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, label, msg.Timestamp.Format("15:04"))
		fmt.Fprintf(out, "  %s\n\n", strings.ReplaceAll(truncate(msg.Content, 500), "\n", "\n  "))
	}

	return nil
}

func runHistoryExport(cmd *cobra.Command, store history.Store, ref, format, output string) error {
	conv, err := history.Resolve(store, ref)
	if err != nil {
		return err
	}

	if format == "" {
		format = "md"
		if strings.HasSuffix(strings.ToLower(output), ".json") {
			format = "json"
		}
	}
	f, err := history.ParseExportFormat(format)
	if err != nil {
		return err
	}

	data, err := history.Export(conv, f)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", conv.ID, output)
	return nil
}

func runHistorySearch(cmd *cobra.Command, store history.Store, query string, content bool) error {
	results, err := history.Search(store, query, content)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No conversations matching %q.\n", query)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tMATCH")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Conversation.ID, truncate(oneLine(r.Conversation.Title), 40), truncate(oneLine(r.MatchSnippet), 60))
	}
	return w.Flush()
}

func (a *app) runHistoryDelete(cmd *cobra.Command, store history.Store, args []string) error {
	id, err := history.ResolveID(store, args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteConversation(id); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation: %s\n", id)
	return nil
}

func (a *app) runHistoryClear(cmd *cobra.Command, store history.Store, args []string) error {
	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "All conversations deleted.")
	return nil
}

// truncate shortens s to n runes, marking the cut with "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// oneLine collapses all whitespace runs, newlines included, to single spaces
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
