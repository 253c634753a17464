package main

import (
	"fmt"
	"strings"

	"pipeboard/internal/config"

	"github.com/spf13/cobra"
)

// addCmd creates a lead in a stage.
var addCmd = &cobra.Command{
	Use:   "add [stage] [name] [field=value]...",
	Short: "Add a lead to a stage",
	Long: `Creates a lead optimistically. Extra CRM fields are passed as
field=value pairs, e.g.:

  pipeboard add "New Lead" "Jane Doe" email=jane@example.com loanAmount=250000`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}
		if _, err := store.Load(cmd.Context(), false); err != nil {
			return err
		}

		fields := map[string]any{"name": args[1]}
		for _, pair := range args[2:] {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("field %q is not of the form key=value", pair)
			}
			fields[key] = value
		}

		lead, err := store.AddLead(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		fmt.Printf("created %s (%s) in %q\n", lead.DisplayName(), lead.ID, args[0])
		return nil
	},
}

// moveCmd moves a lead between stages.
var moveCmd = &cobra.Command{
	Use:   "move [lead-id] [from-stage] [to-stage]",
	Short: "Move a lead to another stage",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}
		if _, err := store.Load(cmd.Context(), false); err != nil {
			return err
		}
		return store.MoveLead(cmd.Context(), args[0], args[1], args[2])
	},
}

// rmCmd deletes a lead.
var rmCmd = &cobra.Command{
	Use:   "rm [lead-id]",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}
		if _, err := store.Load(cmd.Context(), false); err != nil {
			return err
		}
		return store.RemoveLead(cmd.Context(), args[0])
	},
}

// tagCmd creates a tag-derived column locally.
var tagCmd = &cobra.Command{
	Use:   "tag [name]",
	Short: "Create a tag column on the board",
	Long: `Registers a tag as a board column. This is a local construct until
leads are moved into it, so no CRM call is made.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}
		if err := store.AddTag(args[0]); err != nil {
			return err
		}
		fmt.Printf("column %q registered\n", args[0])
		return nil
	},
}

// retagCmd rewrites a lead's tags.
var retagCmd = &cobra.Command{
	Use:   "retag [lead-id] [tag]...",
	Short: "Replace a lead's tags",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}
		if _, err := store.Load(cmd.Context(), false); err != nil {
			return err
		}
		return store.UpdateLeadTags(cmd.Context(), args[0], args[1:])
	},
}

// initCmd writes a default config file for the workspace.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .pipeboard/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path(workspace)
		cfg := config.DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}
