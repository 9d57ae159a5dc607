package commands

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/llamigo/internal/config"
)

func (a *app) newPersonaCmd() *cobra.Command {
	personaCmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage chat personas",
		Long:  `View and manage personas (system prompts) sent with every request.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available personas",
		Args:  cobra.NoArgs,
		RunE:  a.runPersonaList,
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show persona details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			persona, err := config.GetPersona(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", persona.Name)
			fmt.Fprintf(out, "Description: %s\n", persona.Description)
			fmt.Fprintf(out, "\nSystem Prompt:\n%s\n", persona.SystemPrompt)
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new persona",
		Long: `Add a new persona. The description is read from the first line of
stdin and the system prompt from the following lines, up to an empty line.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runPersonaAdd,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeletePersona(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Persona '%s' deleted.\n", args[0])
			return nil
		},
	}

	defaultCmd := &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default persona",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runPersonaSetDefault,
	}

	personaCmd.AddCommand(listCmd, showCmd, addCmd, deleteCmd, defaultCmd)
	return personaCmd
}

func (a *app) runPersonaList(cmd *cobra.Command, args []string) error {
	pc, err := config.LoadPersonas()
	if err != nil {
		return fmt.Errorf("failed to load personas: %w", err)
	}

	current := a.cfg.Persona
	if current == "" {
		current = "default"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION\tACTIVE")
	_, _ = fmt.Fprintln(w, "----\t-----------\t------")

	for _, p := range pc.Personas {
		active := ""
		if p.Name == current {
			active = "✓"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Description, active)
	}

	return w.Flush()
}

func (a *app) runPersonaAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if _, err := config.GetPersona(name); err == nil {
		return fmt.Errorf("persona '%s' already exists", name)
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(a.deps.Stdin)

	fmt.Fprint(out, "Enter description: ")
	desc, err := reader.ReadString('\n')
	if err != nil && desc == "" {
		return fmt.Errorf("failed to read description: %w", err)
	}
	desc = strings.TrimSpace(desc)

	fmt.Fprintln(out, "Enter system prompt (end with an empty line):")
	var promptLines []string
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\n\r")
		if line == "" {
			break
		}
		promptLines = append(promptLines, line)
		if err != nil {
			break
		}
	}

	persona := config.Persona{
		Name:         name,
		Description:  desc,
		SystemPrompt: strings.Join(promptLines, "\n"),
	}
	if err := config.AddPersona(persona); err != nil {
		return err
	}

	fmt.Fprintf(out, "Persona '%s' created.\n", name)
	return nil
}

func (a *app) runPersonaSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]
	if _, err := config.GetPersona(name); err != nil {
		return err
	}

	// Save over the file contents, not the flag- and env-adjusted config
	cfg, err := config.LoadFileConfig()
	if err != nil {
		return err
	}
	cfg.Persona = name
	if err := config.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Default persona set to '%s'.\n", name)
	return nil
}
