package cmd

import (
	"errors"
	"fmt"

	"github.com/mboyer-forensics/sqbrite"
)

// ErrNoRowsRecovered signals a run that completed cleanly but recovered
// zero rows, mapped to exit code 2 (spec.md §6). It is never printed as
// a failure: the report it follows has already told the user why.
var ErrNoRowsRecovered = errors.New("no rows recovered")

// openAndRecover opens dbPath, resolves the heuristics file per the
// --heuristics flag / SQBRITE_HEURISTICS / user config fallback, and
// runs the full recovery orchestrator against it. includeLive controls
// whether rows flagged LikelyLive (spec.md §4.10) are kept in the
// result. Callers are responsible for closing the returned cache.
func openAndRecover(dbPath string, includeLive bool) (*sqbrite.PageCache, map[string][]sqbrite.RecoveredRow, *sqbrite.RunReport, error) {
	cache, err := sqbrite.OpenPageCache(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := sqbrite.LoadConfig(heuristicsFlag)
	if err != nil {
		cache.Close()
		return nil, nil, nil, err
	}

	registry, err := sqbrite.LoadHeuristicsFile(cfg.HeuristicsPath)
	if err != nil {
		cache.Close()
		return nil, nil, nil, err
	}

	rows, report, err := sqbrite.Recover(cache, registry, includeLive)
	if err != nil {
		cache.Close()
		return nil, nil, nil, err
	}

	return cache, rows, report, nil
}

func printReport(report *sqbrite.RunReport) {
	fmt.Println(renderRow("Tables scanned", fmt.Sprintf("%d", len(report.TablesScanned))))
	fmt.Println(renderRow("Tables skipped (no heuristic)", fmt.Sprintf("%d", len(report.SkippedTables))))
	fmt.Println(renderRow("Rows recovered", fmt.Sprintf("%d", report.RowsRecovered)))
	if report.LikelyLiveSuppressed > 0 {
		fmt.Println(renderRow("Rows suppressed as likely-live", fmt.Sprintf("%d", report.LikelyLiveSuppressed)))
	}
	if report.SecureErase {
		fmt.Println(warnStyle.Render("secure_delete appears to have been enabled: freed pages are zero-filled"))
	}
	for _, w := range report.Warnings {
		fmt.Println(warnStyle.Render("warning: " + w))
	}
}
