// Package cmd wires the sqbrite CLI's subcommands (csv, undelete, grep)
// on top of cobra, styling their output with lipgloss the way the
// litebase CLI styles its own command output.
package cmd

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/sqids/sqids-go"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Margin(0, 0, 1)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#9ecbff"})
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#fbbf24"})
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"})
)

// newSessionID returns a fresh UUID and a short sqids suffix encoded
// from an independent random number, mirroring the litebase CLI's
// branch-key generation. The csv and undelete commands use only the
// suffix, in their default output names.
func newSessionID() (id string, suffix string, err error) {
	sessionUUID := uuid.New()
	id = sessionUUID.String()

	randInt, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", "", err
	}

	s, err := sqids.New(sqids.Options{
		Alphabet:  "0123456789abcdefghijklmnopqrstuvwxyz",
		MinLength: 8,
	})
	if err != nil {
		return "", "", err
	}

	suffix, err = s.Encode([]uint64{uint64(randInt.Int64())})
	if err != nil {
		return "", "", err
	}

	return id, suffix, nil
}

func renderRow(key, value string) string {
	return fmt.Sprintf("%s %s", keyStyle.Render(key+":"), value)
}
