package cmd

import (
	"fmt"

	"github.com/mboyer-forensics/sqbrite"
	"github.com/spf13/cobra"
)

// NewGrepCmd builds "sqbrite grep <db> <pattern>", a raw byte-pattern
// search over every page independent of table attribution (spec.md §6,
// SPEC_FULL.md §12).
func NewGrepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grep <database> <pattern>",
		Short: "Search every page for a byte-regex pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, pattern := args[0], args[1]

			cache, err := sqbrite.OpenPageCache(dbPath)
			if err != nil {
				return err
			}
			defer cache.Close()

			matches, err := sqbrite.Grep(cache, pattern)
			if err != nil {
				return err
			}

			if len(matches) == 0 {
				fmt.Println(warnStyle.Render("no matches found"))
				return nil
			}
			for _, m := range matches {
				fmt.Println(renderRow(fmt.Sprintf("page %d", m.Page), fmt.Sprintf("offset %d", m.Offset)))
			}
			return nil
		},
	}
}
