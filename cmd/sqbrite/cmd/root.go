package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var heuristicsFlag string

func addCommands(cmd *cobra.Command) {
	cmd.AddCommand(NewCSVCmd())
	cmd.AddCommand(NewUndeleteCmd())
	cmd.AddCommand(NewGrepCmd())
}

// NewRoot builds and executes the sqbrite root command.
func NewRoot() error {
	root := &cobra.Command{
		Use:               "sqbrite <command> [flags]",
		Short:             "Recover deleted rows from a SQLite database file",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Long: `sqbrite reads a SQLite database file directly, without opening it
through SQLite itself, and searches its freed pages and free-list for
byte patterns that look like deleted rows.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(titleStyle.Render("sqbrite"))
			fmt.Println("Run \"sqbrite help\" for a list of commands.")
		},
	}

	addCommands(root)

	root.PersistentFlags().StringVar(&heuristicsFlag, "heuristics", "", "Path to a heuristics YAML file (default: $SQBRITE_HEURISTICS or the user config directory)")

	// main maps the returned error to spec.md §6's exit codes; cobra's
	// own "Error: ..." printing would be wrong for ErrNoRowsRecovered,
	// which isn't a failure.
	root.SilenceErrors = true
	root.SilenceUsage = true

	return root.ExecuteContext(context.Background())
}
