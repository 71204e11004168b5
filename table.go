package sqbrite

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Table is a user table's identity (name, root page, column list) plus
// the set of live table-leaf pages that make up its B-tree.
type Table struct {
	Name     string
	RootPage uint32
	Columns  []ColumnDef

	Leaves []uint32
}

// BuildTables walks every schema-declared table's B-tree and returns a
// Table for each, including sqlite_master itself. Tables whose root
// page cannot be walked are reported in warnings and omitted, per
// spec.md §4.6 ("Failing to parse a schema entry ... excludes that
// table, never aborts the run").
func BuildTables(cache *PageCache, entries []SchemaEntry, columns map[string][]ColumnDef) (tables map[string]*Table, pageOwner map[uint32]string, warnings []string) {
	tables = make(map[string]*Table)
	pageOwner = make(map[uint32]string)

	masterLeaves, errs := WalkTableLeaves(cache, 1)
	for _, e := range errs {
		warnings = append(warnings, e.Error())
	}
	tables["sqlite_master"] = &Table{Name: "sqlite_master", RootPage: 1, Columns: columns["sqlite_master"], Leaves: masterLeaves}
	for _, p := range masterLeaves {
		pageOwner[p] = "sqlite_master"
	}

	for _, entry := range entries {
		if entry.Type != "table" || entry.RootPage == 0 {
			continue
		}
		leaves, errs := WalkTableLeaves(cache, entry.RootPage)
		for _, e := range errs {
			warnings = append(warnings, fmt.Sprintf("table %q: %v", entry.Name, e))
		}
		if len(leaves) == 0 {
			// A walkable root always yields at least one leaf.
			continue
		}
		tables[entry.Name] = &Table{
			Name:     entry.Name,
			RootPage: entry.RootPage,
			Columns:  columns[entry.Name],
			Leaves:   leaves,
		}
		for _, p := range leaves {
			pageOwner[p] = entry.Name
		}
	}

	return tables, pageOwner, warnings
}

// CheckSignature reports whether rec is plausibly a row of t: it must
// have no more fields than t has columns, and every non-NULL field
// must be consistent with its column's declared affinity. Used to
// reparent orphaned table-leaf pages whose owning table was lost
// (SPEC_FULL.md §12).
func (t *Table) CheckSignature(rec *Record) bool {
	if t.Columns == nil {
		return true
	}
	if len(rec.Fields) > len(t.Columns) {
		return false
	}
	for i, field := range rec.Fields {
		if field.Kind == FieldNull {
			continue
		}
		if !affinityCompatible(t.Columns[i].Affinity, field.Kind) {
			return false
		}
	}
	return true
}

// affinityCompatible is a soft check (spec.md §4.10): permissive
// affinities like TEXT/BLOB/absent never reject a value. An
// INTEGER/INT column accepts only integer values; a REAL/FLOAT/DOUBLE
// column accepts integer or float values.
func affinityCompatible(affinity string, kind FieldKind) bool {
	switch affinity {
	case "INTEGER", "INT":
		return kind == FieldInt
	case "REAL", "FLOAT", "DOUBLE":
		return kind == FieldInt || kind == FieldFloat
	default:
		return true
	}
}

// ColumnNames returns the table's column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// WriteCSV writes header + one row per cell in leaf order, followed by
// any rows in extra (typically the orchestrator's recovered rows for
// this table), to w.
func (t *Table) WriteCSV(w io.Writer, cache *PageCache, extra []RecoveredRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	names := t.ColumnNames()
	if len(names) == 0 {
		names = []string{"col0"}
	}
	if err := cw.Write(names); err != nil {
		return err
	}

	for _, leafNum := range t.Leaves {
		page, err := ParseBTreePage(cache, leafNum)
		if err != nil {
			continue
		}
		cells, err := page.ParseTableLeafCells(cache, cache.Header().TextEncoding)
		if err != nil {
			continue
		}
		for _, cell := range cells {
			if err := cw.Write(fieldsToCSVRow(cell.Record.Fields)); err != nil {
				return err
			}
		}
	}

	for _, row := range extra {
		if err := cw.Write(fieldsToCSVRow(fieldValues(row.Columns))); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func fieldValues(cols []RecoveredColumn) []Field {
	out := make([]Field, len(cols))
	for i, c := range cols {
		out[i] = c.Field
	}
	return out
}

func fieldsToCSVRow(fields []Field) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = fieldToString(f)
	}
	return row
}

func fieldToString(f Field) string {
	switch f.Kind {
	case FieldNull:
		return ""
	case FieldInt:
		return fmt.Sprintf("%d", f.Int)
	case FieldFloat:
		return fmt.Sprintf("%v", f.Float)
	case FieldText:
		return f.Text
	case FieldBlob:
		return fmt.Sprintf("%x", f.Blob)
	default:
		return ""
	}
}
