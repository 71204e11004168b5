package sqbrite

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// HeuristicRule is one (byte pattern, offset) rule for a named table,
// as decoded from the heuristics configuration (spec.md §3, §6). A
// successful pattern match at byte offset m within a candidate range
// designates m+Offset as a candidate record-header start.
type HeuristicRule struct {
	Table   string `yaml:"-" validate:"required"`
	Pattern string `yaml:"pattern" validate:"required"`
	Offset  int    `yaml:"offset"`

	compiled *regexp.Regexp
}

// rawHeuristicsFile mirrors the on-disk YAML schema documented in
// spec.md §6:
//
//	tables:
//	  <table_name>:
//	    - pattern: "<byte regex; \xNN escapes permitted>"
//	      offset: <signed integer>
type rawHeuristicsFile struct {
	Tables map[string][]struct {
		Pattern string `yaml:"pattern"`
		Offset  int    `yaml:"offset"`
	} `yaml:"tables"`
}

// HeuristicsRegistry holds every table's compiled rules and answers
// candidate-offset queries against a byte range (spec.md §4.9).
type HeuristicsRegistry struct {
	rules map[string][]*HeuristicRule
}

// NewHeuristicsRegistry returns an empty registry, equivalent to a
// missing configuration file (spec.md §6).
func NewHeuristicsRegistry() *HeuristicsRegistry {
	return &HeuristicsRegistry{rules: make(map[string][]*HeuristicRule)}
}

// LoadHeuristicsFile reads and parses a heuristics YAML file at path. A
// missing file is treated as an empty registry rather than an error,
// per spec.md §6. Malformed YAML or a rule that fails validation is
// ErrConfigError, which is fatal at startup (spec.md §7).
func LoadHeuristicsFile(path string) (*HeuristicsRegistry, error) {
	reg := NewHeuristicsRegistry()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfigError, path, err)
	}

	if err := reg.loadYAML(data); err != nil {
		return nil, err
	}
	return reg, nil
}

func (reg *HeuristicsRegistry) loadYAML(data []byte) error {
	var raw rawHeuristicsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigError, err)
	}

	validate := validator.New()

	for table, rawRules := range raw.Tables {
		for _, rr := range rawRules {
			rule := &HeuristicRule{Table: table, Pattern: rr.Pattern, Offset: rr.Offset}
			if err := validate.Struct(rule); err != nil {
				return fmt.Errorf("%w: table %q: %v", ErrConfigError, table, err)
			}
			// The (?s) flag lets '.' match 0x0A too, a byte that shows
			// up constantly in raw record headers. Go's regexp reads
			// the data as UTF-8: a byte of 0x80 or above that is not
			// part of a valid UTF-8 sequence is seen as U+FFFD, so it
			// is matched by '.' or a negated class but not by a \xNN
			// escape.
			compiled, err := regexp.Compile("(?s)" + rule.Pattern)
			if err != nil {
				return fmt.Errorf("%w: table %q: bad pattern %q: %v", ErrConfigError, table, rule.Pattern, err)
			}
			compiled.Longest()
			rule.compiled = compiled
			reg.rules[table] = append(reg.rules[table], rule)
		}
	}
	return nil
}

// Merge adds every rule in other to reg, after any rules reg already
// holds for the same table.
func (reg *HeuristicsRegistry) Merge(other *HeuristicsRegistry) {
	for table, rules := range other.rules {
		reg.rules[table] = append(reg.rules[table], rules...)
	}
}

// HasTable reports whether any rule is registered for table.
func (reg *HeuristicsRegistry) HasTable(table string) bool {
	return len(reg.rules[table]) > 0
}

// Tables returns every table name with at least one rule, sorted.
func (reg *HeuristicsRegistry) Tables() []string {
	names := make([]string, 0, len(reg.rules))
	for name := range reg.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CandidateOffsets returns every offset within data at which table's
// heuristics locate a plausible record-header start, deduplicated and
// in ascending order. If no rule exists for table, it returns nil and
// the caller should record ErrNoHeuristic (spec.md §4.9).
func (reg *HeuristicsRegistry) CandidateOffsets(table string, data []byte) []int {
	rules := reg.rules[table]
	if len(rules) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var offsets []int
	for _, rule := range rules {
		for _, loc := range rule.compiled.FindAllIndex(data, -1) {
			start := loc[0] + rule.Offset
			if start < 0 || start >= len(data) {
				continue
			}
			if !seen[start] {
				seen[start] = true
				offsets = append(offsets, start)
			}
		}
	}
	sort.Ints(offsets)
	return offsets
}
