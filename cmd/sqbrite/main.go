package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/mboyer-forensics/sqbrite"
	"github.com/mboyer-forensics/sqbrite/cmd/sqbrite/cmd"
)

// Exit codes per spec.md §6: 0 success with data, 1 fatal, 2 success
// with no recovered rows, 3 configuration error.
func main() {
	err := cmd.NewRoot()
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, cmd.ErrNoRowsRecovered):
		os.Exit(2)
	case errors.Is(err, sqbrite.ErrConfigError):
		os.Exit(3)
	default:
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}
