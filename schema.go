package sqbrite

import (
	"fmt"
	"strings"
)

// SchemaEntry is one row of the sqlite_master table describing a user
// object: its type ("table", "index", ...), name, owning table name,
// root page, and defining SQL.
type SchemaEntry struct {
	Type     string
	Name     string
	TblName  string
	RootPage uint32
	SQL      string
}

// ColumnDef is a single column extracted from a CREATE TABLE
// statement's column list: its name and an optional type-affinity
// hint (the second whitespace-delimited token in its declaration).
type ColumnDef struct {
	Name     string
	Affinity string
}

// builtinTableColumns seeds the fixed column lists of SQLite's own
// bookkeeping tables, which never appear with a CREATE TABLE statement
// in sqlite_master but which the recovery engine can still usefully
// scan (spec.md's original supplements this; see SPEC_FULL.md §12).
var builtinTableColumns = map[string][]ColumnDef{
	"sqlite_sequence": {{Name: "name"}, {Name: "seq"}},
	"sqlite_stat1":    {{Name: "tbl"}, {Name: "idx"}, {Name: "stat"}},
	"sqlite_stat2":    {{Name: "tbl"}, {Name: "idx"}, {Name: "sampleno"}, {Name: "sample"}},
	"sqlite_stat3":    {{Name: "tbl"}, {Name: "idx"}, {Name: "nEq"}, {Name: "nLt"}, {Name: "nDLt"}, {Name: "sample"}},
	"sqlite_stat4":    {{Name: "tbl"}, {Name: "idx"}, {Name: "nEq"}, {Name: "nLt"}, {Name: "nDLt"}, {Name: "sample"}},
}

// ReadSchema walks the schema table (root page 1) as an ordinary
// table-leaf/interior B-tree and returns every type='table' row found,
// with its column list parsed out of its SQL text. Parsing a given
// entry's SQL is tolerant: a failure produces a warning in warnings and
// excludes that one table, never aborts the read (spec.md §4.6).
func ReadSchema(cache *PageCache) (entries []SchemaEntry, columns map[string][]ColumnDef, warnings []string, err error) {
	leaves, walkErrs := WalkTableLeaves(cache, 1)
	for _, e := range walkErrs {
		warnings = append(warnings, e.Error())
	}

	columns = make(map[string][]ColumnDef)
	for name, cols := range builtinTableColumns {
		columns[name] = cols
	}

	for _, leafNum := range leaves {
		page, perr := ParseBTreePage(cache, leafNum)
		if perr != nil {
			warnings = append(warnings, perr.Error())
			continue
		}
		cells, cerr := page.ParseTableLeafCells(cache, cache.Header().TextEncoding)
		if cerr != nil {
			warnings = append(warnings, cerr.Error())
			continue
		}

		for _, cell := range cells {
			entry, perr := schemaEntryFromRecord(cell.Record)
			if perr != nil {
				warnings = append(warnings, fmt.Sprintf("schema row at page %d: %v", leafNum, perr))
				continue
			}
			entries = append(entries, entry)

			if entry.Type != "table" {
				continue
			}
			cols, perr := parseColumnList(entry.SQL)
			if perr != nil {
				warnings = append(warnings, fmt.Sprintf("table %q: %v", entry.Name, perr))
				continue
			}
			columns[entry.Name] = cols
		}
	}

	return entries, columns, warnings, nil
}

func schemaEntryFromRecord(rec *Record) (SchemaEntry, error) {
	if len(rec.Fields) < 5 {
		return SchemaEntry{}, fmt.Errorf("expected 5 columns, got %d", len(rec.Fields))
	}
	typ := rec.Fields[0]
	name := rec.Fields[1]
	tblName := rec.Fields[2]
	rootpage := rec.Fields[3]
	sql := rec.Fields[4]

	if typ.Kind != FieldText || name.Kind != FieldText || tblName.Kind != FieldText {
		return SchemaEntry{}, fmt.Errorf("schema row has non-text type/name/tbl_name")
	}

	var rootPageNum uint32
	if rootpage.Kind == FieldInt {
		rootPageNum = uint32(rootpage.Int)
	}

	sqlText := ""
	if sql.Kind == FieldText {
		sqlText = sql.Text
	}

	return SchemaEntry{
		Type:     typ.Text,
		Name:     name.Text,
		TblName:  tblName.Text,
		RootPage: rootPageNum,
		SQL:      sqlText,
	}, nil
}

// parseColumnList extracts the ordered column list from a CREATE TABLE
// statement's parenthesised body. It identifies the outermost
// parentheses, splits their contents at top-level commas (respecting
// nested parentheses and quoted identifiers), and for each remaining
// clause takes the first token as the column name and the second as an
// affinity hint. Clauses that open with a table-level constraint
// keyword (PRIMARY, UNIQUE, CHECK, FOREIGN, CONSTRAINT) are skipped
// (spec.md §4.6).
func parseColumnList(sql string) ([]ColumnDef, error) {
	open := strings.IndexByte(sql, '(')
	if open < 0 {
		return nil, fmt.Errorf("no column list found in %q", sql)
	}
	close := strings.LastIndexByte(sql, ')')
	if close < 0 || close <= open {
		return nil, fmt.Errorf("unbalanced parentheses in %q", sql)
	}

	body := sql[open+1 : close]
	clauses := splitTopLevel(body)

	var cols []ColumnDef
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		upper := strings.ToUpper(clause)
		if startsWithAny(upper, "PRIMARY", "UNIQUE", "CHECK", "FOREIGN", "CONSTRAINT") {
			continue
		}

		fields := strings.Fields(clause)
		if len(fields) == 0 {
			continue
		}
		col := ColumnDef{Name: unquoteIdent(fields[0])}
		if len(fields) > 1 {
			col.Affinity = strings.ToUpper(fields[1])
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns parsed from %q", sql)
	}
	return cols, nil
}

func startsWithAny(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if !strings.HasPrefix(s, p) {
			continue
		}
		// The prefix must be a whole word: "CHECKSUM" is a column name,
		// not a CHECK clause.
		if len(s) == len(p) {
			return true
		}
		c := s[len(p)]
		if !(c == '_' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80) {
			return true
		}
	}
	return false
}

func unquoteIdent(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '`' && last == '`') || (first == '[' && last == ']') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// splitTopLevel splits s on commas that are not nested inside
// parentheses or quotes.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
