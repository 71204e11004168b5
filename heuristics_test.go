package sqbrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleHeuristicsYAML = `
tables:
  users:
    - pattern: "\x05.\x01"
      offset: 0
`

func TestLoadHeuristicsFileMissingIsEmpty(t *testing.T) {
	reg, err := LoadHeuristicsFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.False(t, reg.HasTable("users"))
}

func TestLoadHeuristicsFileParsesRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heuristics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleHeuristicsYAML), 0o644))

	reg, err := LoadHeuristicsFile(path)
	require.NoError(t, err)
	require.True(t, reg.HasTable("users"))
	require.Equal(t, []string{"users"}, reg.Tables())
}

func TestCandidateOffsetsReturnsEveryMatchInOrder(t *testing.T) {
	reg := NewHeuristicsRegistry()
	require.NoError(t, reg.loadYAML([]byte(sampleHeuristicsYAML)))

	data := []byte{0xff, 0x05, 0x02, 0x01, 0xff, 0x05, 0x02, 0x01}
	offsets := reg.CandidateOffsets("users", data)
	require.Equal(t, []int{1, 5}, offsets)
}

func TestCandidateOffsetsUnknownTableIsNil(t *testing.T) {
	reg := NewHeuristicsRegistry()
	require.Nil(t, reg.CandidateOffsets("nope", []byte{1, 2, 3}))
}
