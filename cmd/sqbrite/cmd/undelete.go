package cmd

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mboyer-forensics/sqbrite"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var undeleteOutPath string

// NewUndeleteCmd builds "sqbrite undelete <db>", which recovers every
// row it can find and re-inserts them into a brand-new SQLite database
// (never the original file, per spec.md's no-mutation guarantee) using
// a pure-Go driver so the tool itself never needs cgo.
func NewUndeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undelete <database>",
		Short: "Recover deleted rows into a fresh SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := args[0]

			cache, rows, report, err := openAndRecover(dbPath, false)
			if err != nil {
				return err
			}
			defer cache.Close()

			tables, err := sqbrite.LoadTables(cache)
			if err != nil {
				return err
			}

			outPath := undeleteOutPath
			if outPath == "" {
				_, suffix, err := newSessionID()
				if err != nil {
					return err
				}
				outPath = "sqbrite-undelete-" + suffix + ".db"
			}

			out, err := sql.Open("sqlite", outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			written, skipped := 0, 0
			for tableName, tableRows := range rows {
				if len(tableRows) == 0 {
					continue
				}
				t, ok := tables[tableName]
				if !ok {
					continue
				}
				n, s, err := insertRecoveredRows(out, t, tableRows)
				if err != nil {
					return fmt.Errorf("table %q: %w", tableName, err)
				}
				written += n
				skipped += s
			}

			fmt.Println(titleStyle.Render("sqbrite undelete"))
			fmt.Println(renderRow("Output database", outPath))
			fmt.Println(renderRow("Rows written", fmt.Sprintf("%d", written)))
			if skipped > 0 {
				fmt.Println(renderRow("Rows skipped (insert failed)", fmt.Sprintf("%d", skipped)))
			}
			printReport(report)
			if written == 0 {
				return ErrNoRowsRecovered
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&undeleteOutPath, "out", "", "Output SQLite file (default: a generated sqbrite-undelete-<id>.db)")
	return cmd
}

// insertRecoveredRows inserts rows into t's table in the output
// database, creating the table first if needed from the column names
// alone (the source table's types and constraints are not reproduced).
// A row whose insert fails is skipped with a warning rather than
// aborting the table, matching the original's per-row exception
// handling in its own undelete() (spec.md §6).
func insertRecoveredRows(db *sql.DB, t *sqbrite.Table, rows []sqbrite.RecoveredRow) (written, skipped int, err error) {
	names := t.ColumnNames()
	if len(names) == 0 {
		return 0, 0, fmt.Errorf("no known column list, cannot recreate schema")
	}

	quoted := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
		placeholders[i] = "?"
	}

	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", t.Name, strings.Join(quoted, ", "))
	if _, err := db.Exec(createSQL); err != nil {
		return 0, 0, err
	}

	insertSQL := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", t.Name, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := db.Prepare(insertSQL)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()

	for _, row := range rows {
		values := make([]interface{}, len(row.Columns))
		for i, col := range row.Columns {
			values[i] = fieldToSQLValue(col.Field)
		}
		if _, err := stmt.Exec(values...); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("warning: table %q page %d offset %d: %v", t.Name, row.SourcePage, row.SourceOffset, err)))
			skipped++
			continue
		}
		written++
	}
	return written, skipped, nil
}

func fieldToSQLValue(f sqbrite.Field) interface{} {
	switch f.Kind {
	case sqbrite.FieldInt:
		return f.Int
	case sqbrite.FieldFloat:
		return f.Float
	case sqbrite.FieldText:
		return f.Text
	case sqbrite.FieldBlob:
		return f.Blob
	default:
		return nil
	}
}
