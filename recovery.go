package sqbrite

import (
	"errors"
	"fmt"
	"sort"
)

// RecoveredColumn pairs a decoded field with the column name the schema
// (or a built-in table definition) assigns to its position.
type RecoveredColumn struct {
	Name  string
	Field Field
}

// RecoveredRow is one candidate row reconstructed from freed bytes: a
// table attribution, its source location, and its decoded columns.
// SourcePage/SourceOffset double as the deduplication key described in
// spec.md §4.10, since the same freed bytes must never surface twice
// even when more than one table's heuristics match them.
type RecoveredRow struct {
	Table        string
	SourcePage   uint32
	SourceOffset int
	Origin       string // "freeblock", "unallocated", or "freelist-leaf"
	Columns      []RecoveredColumn
	// RowID is always nil for heuristic-recovered rows: the cell wrapper
	// that carried it (payload_length varint, rowid varint) is exactly
	// the framing a candidate is found without, so it is never
	// reconstructable (spec.md §3's "rowid: optional").
	RowID *int64
	// LikelyLive is true when this row's decoded fields are bytewise
	// identical to a live row on the same table's leaves (spec.md
	// §4.10's duplicate-suppression law). Recover excludes such rows
	// from its results unless includeLive is set.
	LikelyLive bool
}

// RunReport summarizes one recovery run: what was scanned, what was
// skipped, and why. Nothing in it is fatal — a run either completes
// with a report or fails outright with an error (spec.md §7).
type RunReport struct {
	Warnings      []string
	TablesScanned []string
	SkippedTables []string
	PagesScanned  int
	RowsRecovered int
	SecureErase   bool
	Disagreements []Disagreement
	// LikelyLiveSuppressed counts rows that matched a live row bytewise
	// and were therefore left out of the results (spec.md §4.10).
	LikelyLiveSuppressed int
}

func (r *RunReport) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// candidateSlot identifies one byte offset within one page, used to
// keep a row from being recovered twice from the same (page, offset),
// even under different tables. Overlapping matches at different offsets
// are handled separately, inside scanRangeForTable.
type candidateSlot struct {
	page   uint32
	offset int
}

// LoadTables reads the schema and walks every table's B-tree, without
// running the full recovery search. It exists for callers (the csv
// subcommand) that need a *Table to write live rows even when they
// have no interest in recovering deleted ones.
func LoadTables(cache *PageCache) (map[string]*Table, error) {
	entries, columns, _, err := ReadSchema(cache)
	if err != nil {
		return nil, err
	}
	tables, _, _ := BuildTables(cache, entries, columns)
	return tables, nil
}

// Recover runs the full recovery algorithm described in spec.md §4.10
// against an already-opened database: it reads the schema, classifies
// every page, walks the free-list, and applies the heuristics registry
// against every freed byte range it can attribute to a table. It never
// mutates the source file and never returns partial results silently —
// every skip is recorded in the returned RunReport. Rows that are
// bytewise identical to a live row on the same table are flagged
// LikelyLive and, unless includeLive is set, left out of the returned
// map entirely (spec.md §4.10's duplicate-suppression law).
func Recover(cache *PageCache, heuristics *HeuristicsRegistry, includeLive bool) (map[string][]RecoveredRow, *RunReport, error) {
	report := &RunReport{}
	header := cache.Header()

	entries, columns, schemaWarnings, err := ReadSchema(cache)
	if err != nil {
		return nil, nil, err
	}
	report.Warnings = append(report.Warnings, schemaWarnings...)

	tables, pageOwner, tableWarnings := BuildTables(cache, entries, columns)
	report.Warnings = append(report.Warnings, tableWarnings...)

	rootPageToTable := make(map[uint32]string, len(tables))
	for name, t := range tables {
		rootPageToTable[t.RootPage] = name
	}

	liveSignatures := liveRowSignatures(cache, tables, header.TextEncoding)

	ptrmapReader, err := BuildPtrmapReader(cache)
	if err != nil {
		return nil, nil, err
	}

	classifier := NewClassifier(header.PageCount)
	if ptrmapReader.Available() {
		for page := uint32(1); page <= header.PageCount; page++ {
			if ptrmapReader.IsPtrmapPage(page) {
				classifier.Set(page, KindPtrmap, "ptrmap")
				continue
			}
			entry, perr := ptrmapReader.ParentAndKind(page)
			if perr != nil {
				continue
			}
			switch entry.Kind {
			case PtrmapFreePage:
				classifier.Set(page, KindFreelistLeaf, "ptrmap")
			case PtrmapFirstOverflow, PtrmapOtherOverflow:
				classifier.Set(page, KindOverflow, "ptrmap")
			}
		}
	}
	for page, name := range pageOwner {
		_ = name
		classifier.Set(page, KindTableLeaf, "btree")
	}

	trunks, freelistLeaves, ferr := WalkFreelist(cache)
	if ferr != nil {
		report.warn("free-list walk stopped early: %v", ferr)
	}
	for _, t := range trunks {
		classifier.Set(t, KindFreelistTrunk, "freelist")
	}
	for _, l := range freelistLeaves {
		classifier.Set(l.Page, KindFreelistLeaf, "freelist")
	}
	report.Disagreements = classifier.Disagreements()
	report.PagesScanned = int(header.PageCount)

	for _, name := range reparentOrphanedLeaves(cache, tables, pageOwner, classifier) {
		report.warn("reparented orphaned leaf page to table %q by signature match", name)
	}

	// Gather every freed byte range up front, grouped by the table it
	// can be attributed to (or left in unattributed for a freelist leaf
	// ptrmap could not or does not identify).
	byTable := make(map[string][]sourcedRange)
	var unattributed []sourcedRange

	for tableName, t := range tables {
		for _, leafNum := range t.Leaves {
			page, perr := ParseBTreePage(cache, leafNum)
			if perr != nil {
				report.warn("table %q leaf %d: %v", tableName, leafNum, perr)
				continue
			}
			ranges, serr := ScanFreeblocks(page)
			if serr != nil {
				report.warn("table %q leaf %d: %v", tableName, leafNum, serr)
			}
			for _, fr := range ranges {
				origin := "freeblock"
				if fr.Start == int(page.headerOffset)+int(page.headerSize)+2*len(page.cellPointers) {
					origin = "unallocated"
				}
				byTable[tableName] = append(byTable[tableName], sourcedRange{page: leafNum, origin: origin, FreeRange: fr})
			}
		}
	}

	for _, fl := range freelistLeaves {
		buf, perr := cache.Page(fl.Page)
		if perr != nil {
			report.warn("free-list leaf %d: %v", fl.Page, perr)
			continue
		}
		fr := FreeRange{Start: 0, End: len(buf), Bytes: buf}

		attributed := false
		if ptrmapReader.Available() {
			if entry, perr := ptrmapReader.ParentAndKind(fl.Page); perr == nil && entry.Kind == PtrmapFreePage && entry.Parent != 0 {
				if name, ok := rootPageToTable[entry.Parent]; ok {
					byTable[name] = append(byTable[name], sourcedRange{page: fl.Page, origin: "freelist-leaf", FreeRange: fr})
					attributed = true
				}
			}
		}
		if !attributed {
			unattributed = append(unattributed, sourcedRange{page: fl.Page, origin: "freelist-leaf", FreeRange: fr})
		}
	}

	// spec.md §8's secure-erase law: if the freed bytes examined are
	// uniformly zero, the database was wiped on delete and no heuristic
	// can recover anything real from it. Detect that up front rather
	// than let every table search report ErrNoHeuristic-shaped noise.
	if allRangesZero(byTable, unattributed) {
		report.SecureErase = true
		report.warn("all freed byte ranges are zero-filled; assuming secure_delete was enabled, no rows recovered")
		return map[string][]RecoveredRow{}, report, nil
	}

	seen := make(map[candidateSlot]bool)
	results := make(map[string][]RecoveredRow)

	tableNames := make([]string, 0, len(tables))
	for name := range tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, name := range tableNames {
		t := tables[name]
		if !heuristics.HasTable(name) {
			report.SkippedTables = append(report.SkippedTables, name)
			continue
		}
		report.TablesScanned = append(report.TablesScanned, name)
		encoding := header.TextEncoding
		maxColumns := len(t.Columns)

		for _, sr := range byTable[name] {
			rows := scanRangeForTable(cache, t, sr.page, sr.origin, sr.FreeRange, heuristics, encoding, maxColumns, seen, report)
			rows = flagAndFilterLikelyLive(rows, liveSignatures[name], includeLive, report)
			results[name] = append(results[name], rows...)
		}
	}

	// Unattributed freelist leaves: offered to every table that has
	// heuristics registered, in name order, first match wins. This is
	// the documented fallback when ptrmap cannot or does not identify a
	// freed page's former owner (spec.md §4.5, §4.10).
	for _, sr := range unattributed {
		for _, name := range tableNames {
			if !heuristics.HasTable(name) {
				continue
			}
			t := tables[name]
			rows := scanRangeForTable(cache, t, sr.page, sr.origin, sr.FreeRange, heuristics, header.TextEncoding, len(t.Columns), seen, report)
			rows = flagAndFilterLikelyLive(rows, liveSignatures[name], includeLive, report)
			if len(rows) > 0 {
				results[name] = append(results[name], rows...)
			}
		}
	}

	for _, rows := range results {
		report.RowsRecovered += len(rows)
	}
	return results, report, nil
}

// reparentOrphanedLeaves looks for table-leaf pages that are reachable
// from no table's B-tree and were not attributed by ptrmap or the
// free-list walk either — pages that fell out of every tracking
// structure at once, typically because a table was itself dropped.
// Each orphan's first cell is tested against every known table's
// column signature; a single unambiguous match reparents the page so
// its freeblocks are still scanned. Ambiguous or signature-less
// matches are left alone (SPEC_FULL.md §12).
func reparentOrphanedLeaves(cache *PageCache, tables map[string]*Table, pageOwner map[uint32]string, classifier *Classifier) []string {
	header := cache.Header()
	var reparented []string

	for page := uint32(1); page <= header.PageCount; page++ {
		if _, owned := pageOwner[page]; owned {
			continue
		}
		if classifier.Kind(page) != KindUnknown {
			continue
		}

		bt, err := ParseBTreePage(cache, page)
		if err != nil || bt.Kind != KindTableLeaf {
			continue
		}
		cells, err := bt.ParseTableLeafCells(cache, header.TextEncoding)
		if err != nil || len(cells) == 0 {
			continue
		}

		var match *Table
		ambiguous := false
		for _, t := range tables {
			if t.Columns == nil {
				continue
			}
			if t.CheckSignature(cells[0].Record) {
				if match != nil {
					ambiguous = true
					break
				}
				match = t
			}
		}
		if match == nil || ambiguous {
			continue
		}

		match.Leaves = append(match.Leaves, page)
		pageOwner[page] = match.Name
		classifier.Set(page, KindTableLeaf, "signature")
		reparented = append(reparented, match.Name)
	}

	return reparented
}

// liveRowSignatures decodes every live cell on every table's leaves and
// returns, per table, the set of recordSignature values they produce.
// Recover uses this to implement spec.md §4.10's duplicate-suppression
// law without needing a second B-tree walk per candidate: a table with
// no leaves or nothing decodable simply gets an empty set, which never
// matches.
func liveRowSignatures(cache *PageCache, tables map[string]*Table, encoding TextEncoding) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(tables))
	for name, t := range tables {
		sigs := make(map[string]bool)
		for _, leafNum := range t.Leaves {
			page, err := ParseBTreePage(cache, leafNum)
			if err != nil {
				continue
			}
			cells, err := page.ParseTableLeafCells(cache, encoding)
			if err != nil {
				continue
			}
			for _, c := range cells {
				sigs[recordSignature(c.Record.Fields)] = true
			}
		}
		out[name] = sigs
	}
	return out
}

// flagAndFilterLikelyLive marks each row whose columns match live as
// LikelyLive and, unless includeLive is set, drops it from the
// returned slice, tallying the drop in report.
func flagAndFilterLikelyLive(rows []RecoveredRow, live map[string]bool, includeLive bool, report *RunReport) []RecoveredRow {
	kept := rows[:0]
	for _, row := range rows {
		if live[recordSignature(fieldValues(row.Columns))] {
			row.LikelyLive = true
		}
		if row.LikelyLive && !includeLive {
			report.LikelyLiveSuppressed++
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

// sourcedRange is a freed byte range paired with the page it came from
// and a short label describing why it was considered free.
type sourcedRange struct {
	page   uint32
	origin string
	FreeRange
}

// allRangesZero reports whether every collected range is zero-filled
// and at least one freeblock or free-list byte was seen. Unallocated
// bands must be zero too but do not count toward that total, since they
// are zero on an ordinary page that never had a row deleted.
func allRangesZero(byTable map[string][]sourcedRange, unattributed []sourcedRange) bool {
	total := 0
	for _, ranges := range byTable {
		for _, r := range ranges {
			if r.origin != "unallocated" {
				total += len(r.Bytes)
			}
			if !isAllZero(r.Bytes) {
				return false
			}
		}
	}
	for _, r := range unattributed {
		total += len(r.Bytes)
		if !isAllZero(r.Bytes) {
			return false
		}
	}
	return total > 0
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// scanRangeForTable applies heuristics to a single freed byte range on
// behalf of table t, decoding a candidate record at every match offset
// and rejecting anything that overlaps an already-accepted candidate,
// fails signature validation, or was already recovered from this
// (page, offset) under another table. Ordinary decode failures are
// expected noise and are not individually reported (spec.md §4.10's
// error table); a broken overflow chain is reported once per candidate.
func scanRangeForTable(cache *PageCache, t *Table, page uint32, origin string, fr FreeRange, heuristics *HeuristicsRegistry, encoding TextEncoding, maxColumns int, seen map[candidateSlot]bool, report *RunReport) []RecoveredRow {
	offsets := heuristics.CandidateOffsets(t.Name, fr.Bytes)
	if len(offsets) == 0 {
		return nil
	}

	var rows []RecoveredRow
	consumedUntil := -1

	for _, localOffset := range offsets {
		if localOffset < consumedUntil {
			continue
		}
		absOffset := fr.Start + localOffset
		slot := candidateSlot{page: page, offset: absOffset}
		if seen[slot] {
			continue
		}

		rec, consumed, err := decodeCandidateCell(cache, fr.Bytes[localOffset:], encoding, maxColumns)
		if err != nil {
			if errors.Is(err, ErrOverflowTruncated) || errors.Is(err, ErrOverflowCycle) {
				report.warn("table %q: page %d offset %d: %v", t.Name, page, absOffset, err)
			}
			continue
		}
		if !t.CheckSignature(rec) {
			continue
		}

		seen[slot] = true
		consumedUntil = localOffset + consumed

		cols := make([]RecoveredColumn, len(rec.Fields))
		for i, f := range rec.Fields {
			name := fmt.Sprintf("col%d", i)
			if i < len(t.Columns) {
				name = t.Columns[i].Name
			}
			cols[i] = RecoveredColumn{Name: name, Field: f}
		}

		rows = append(rows, RecoveredRow{
			Table:        t.Name,
			SourcePage:   page,
			SourceOffset: absOffset,
			Origin:       origin,
			Columns:      cols,
		})
	}

	return rows
}

// decodeCandidateCell decodes a record starting at buf[0], which the
// heuristics engine has designated a candidate record-header start
// (spec.md §3, §4.9) — not a full cell: freeblock and free-list
// candidates carry no surviving payload_length/rowid wrapper, only the
// record header and payload itself (grounded on
// original_source/src/pages.py's freeblock recovery loop, which
// constructs a Record directly from the candidate offset).
//
// header_length and the serial-type list give a synthesized total
// payload size (spec.md §4.10 step 3). When that size fits within buf,
// the record is decoded in place. When it doesn't, the candidate is
// treated the way a live overflowing cell would be: the in-page prefix
// implied by the format's M/K split is taken from buf, the 4 bytes
// immediately after it are read as the first overflow page, and the
// remainder is assembled by chasing that chain — trusting that the
// original cell's on-page bytes, including its overflow pointer, are
// still physically present past the record header (spec.md §8
// scenario 2).
//
// consumed is the number of bytes of buf the candidate's on-page
// footprint occupied, used to keep later heuristic matches in the same
// range from re-decoding bytes already claimed by this one.
func decodeCandidateCell(cache *PageCache, buf []byte, encoding TextEncoding, maxColumns int) (rec *Record, consumed int, err error) {
	headerLength, serialTypes, err := decodeRecordHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	if maxColumns > 0 && len(serialTypes) != maxColumns {
		return nil, 0, fmt.Errorf("%w: got %d columns, want %d", ErrBadHeader, len(serialTypes), maxColumns)
	}
	totalPayloadSize, ok := recordPayloadSize(headerLength, serialTypes)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown serial type in candidate header", ErrBadHeader)
	}

	if totalPayloadSize <= int64(len(buf)) {
		record, err := DecodeRecord(buf[:totalPayloadSize], encoding, maxColumns)
		if err != nil {
			return nil, 0, err
		}
		return record, int(totalPayloadSize), nil
	}

	header := cache.Header()
	cellPayloadSize, hasOverflow := header.overflowSplit(totalPayloadSize)
	if !hasOverflow {
		return nil, 0, fmt.Errorf("%w: candidate needs %d bytes, only %d available", ErrTruncated, totalPayloadSize, len(buf))
	}

	r := reader(buf)
	inPage, err := r.bytesAt(0, cellPayloadSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: overflowing candidate truncated before its in-page prefix", ErrTruncated)
	}
	firstOverflowPage, err := r.u32(cellPayloadSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: overflowing candidate missing its overflow pointer", ErrTruncated)
	}

	tail, err := readOverflowChain(cache, firstOverflowPage, totalPayloadSize-cellPayloadSize)
	if err != nil {
		return nil, 0, err
	}

	full := make([]byte, 0, totalPayloadSize)
	full = append(full, inPage...)
	full = append(full, tail...)

	record, err := DecodeRecord(full, encoding, maxColumns)
	if err != nil {
		return nil, 0, err
	}
	return record, int(cellPayloadSize) + 4, nil
}
