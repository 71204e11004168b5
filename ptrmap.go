package sqbrite

import "fmt"

// PtrmapKind is the page role recorded in a pointer-map entry.
type PtrmapKind uint8

const (
	PtrmapBTreeRoot      PtrmapKind = 1
	PtrmapFreePage       PtrmapKind = 2
	PtrmapFirstOverflow  PtrmapKind = 3
	PtrmapOtherOverflow  PtrmapKind = 4
	PtrmapBTreeNonRoot   PtrmapKind = 5
)

func (k PtrmapKind) String() string {
	switch k {
	case PtrmapBTreeRoot:
		return "btree-root"
	case PtrmapFreePage:
		return "free-page"
	case PtrmapFirstOverflow:
		return "overflow-first"
	case PtrmapOtherOverflow:
		return "overflow-other"
	case PtrmapBTreeNonRoot:
		return "btree-non-root"
	default:
		return "unknown"
	}
}

// PtrmapEntry is a single 5-byte pointer-map record: the kind of page
// being described and, where applicable, its parent page number.
type PtrmapEntry struct {
	Kind   PtrmapKind
	Parent uint32
}

// PtrmapReader resolves ptrmap entries for an auto-vacuum database. When
// the database was not created with auto_vacuum enabled, every query
// returns ErrPtrmapUnavailable and the orchestrator is expected to
// degrade to less selective strategies (spec.md §4.5).
type PtrmapReader struct {
	available bool
	entries   map[uint32]PtrmapEntry
	// pageIndices lists every page number that is itself a ptrmap page,
	// so the classifier can tag them directly.
	pageIndices map[uint32]bool
}

// entriesPerPtrmapPage returns how many 5-byte entries fit on a ptrmap
// page, given the database's usable page size.
func entriesPerPtrmapPage(usableSize uint32) uint32 {
	return usableSize / 5
}

// BuildPtrmapReader walks the fixed-stride ptrmap pages of an
// auto-vacuum database (page 2, then every (entriesPerPage+1)th page
// after) and resolves a (kind, parent) pair for every page they
// describe. If the header indicates the database is not auto-vacuum,
// it returns a reader that reports ErrPtrmapUnavailable for every page.
func BuildPtrmapReader(cache *PageCache) (*PtrmapReader, error) {
	header := cache.Header()
	if !header.AutoVacuum() {
		return &PtrmapReader{available: false}, nil
	}

	stride := entriesPerPtrmapPage(header.UsableSize)
	if stride == 0 {
		return nil, fmt.Errorf("%w: usable page size too small for ptrmap entries", ErrBadHeader)
	}

	pr := &PtrmapReader{
		available:   true,
		entries:     make(map[uint32]PtrmapEntry),
		pageIndices: make(map[uint32]bool),
	}

	ptrmapPage := uint32(2)
	for ptrmapPage <= header.PageCount {
		pr.pageIndices[ptrmapPage] = true
		buf, err := cache.Page(ptrmapPage)
		if err != nil {
			return nil, err
		}
		r := reader(buf)

		for entryIdx := uint32(0); entryIdx < stride; entryIdx++ {
			describedPage := ptrmapPage + entryIdx + 1
			if describedPage > header.PageCount {
				break
			}
			off := int64(entryIdx) * 5
			kindByte, err := r.u8(off)
			if err != nil {
				break
			}
			if kindByte == 0 {
				break
			}
			parent, err := r.u32(off + 1)
			if err != nil {
				break
			}
			pr.entries[describedPage] = PtrmapEntry{Kind: PtrmapKind(kindByte), Parent: parent}
		}

		ptrmapPage += stride + 1
	}

	return pr, nil
}

// Available reports whether this database has pointer-map pages.
func (p *PtrmapReader) Available() bool {
	return p != nil && p.available
}

// ParentAndKind answers parent_and_kind(n) from spec.md §4.5.
func (p *PtrmapReader) ParentAndKind(page uint32) (PtrmapEntry, error) {
	if !p.Available() {
		return PtrmapEntry{}, ErrPtrmapUnavailable
	}
	entry, ok := p.entries[page]
	if !ok {
		return PtrmapEntry{}, fmt.Errorf("%w: no ptrmap entry for page %d", ErrPtrmapUnavailable, page)
	}
	return entry, nil
}

// IsPtrmapPage reports whether page is itself one of the ptrmap pages
// (as opposed to a page described by one).
func (p *PtrmapReader) IsPtrmapPage(page uint32) bool {
	return p.Available() && p.pageIndices[page]
}

// PagesOfKind returns every page number the ptrmap attributes to kind,
// optionally restricted to those whose parent matches parentFilter (use
// 0 to mean "any parent").
func (p *PtrmapReader) PagesOfKind(kind PtrmapKind, parentFilter uint32) []uint32 {
	if !p.Available() {
		return nil
	}
	var out []uint32
	for page, entry := range p.entries {
		if entry.Kind != kind {
			continue
		}
		if parentFilter != 0 && entry.Parent != parentFilter {
			continue
		}
		out = append(out, page)
	}
	return out
}
