package sqbrite

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config resolves the location of the heuristics configuration file
// that CandidateOffsets scanning depends on (spec.md §6). Resolution
// order, first non-empty wins: an explicit path (from a CLI flag), the
// SQBRITE_HEURISTICS environment variable (populated from an optional
// .env file in the working directory if present), then the platform
// user configuration directory.
type Config struct {
	HeuristicsPath string
}

// LoadConfig resolves the heuristics file location. explicitPath is
// whatever the caller's --heuristics flag carried, or "" if unset.
func LoadConfig(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return &Config{HeuristicsPath: explicitPath}, nil
	}

	// A missing .env is not an error; godotenv.Load only feeds values
	// into the process environment when the file exists.
	_ = godotenv.Load()

	if fromEnv := os.Getenv("SQBRITE_HEURISTICS"); fromEnv != "" {
		return &Config{HeuristicsPath: fromEnv}, nil
	}

	if dir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(dir, "sqbrite", "sqbrite.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return &Config{HeuristicsPath: candidate}, nil
		}
	}

	return &Config{HeuristicsPath: ""}, nil
}
