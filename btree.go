package sqbrite

import "fmt"

// BTreePageHeader is the 8- or 12-byte header at the start of every
// B-tree page (offset 100 on page 1, offset 0 elsewhere).
type BTreePageHeader struct {
	PageType            byte
	FirstFreeblock      uint16
	CellCount           uint16
	CellContentStart    uint16
	FragmentedFreeBytes uint8
	RightMostPage       uint32 // only set for interior pages
}

// BTreePage is a parsed table/index interior or leaf page: its header,
// cell-pointer array, and (for table pages) decoded cells.
type BTreePage struct {
	Page   uint32
	Kind   PageKind
	Header BTreePageHeader

	// headerOffset is 100 on page 1 (the 100-byte file header precedes
	// the B-tree header there), 0 otherwise.
	headerOffset int64
	headerSize   int64
	cellPointers []uint16
	raw          []byte
}

// TableLeafCell is one decoded cell from a table-leaf page: a rowid and
// its record.
type TableLeafCell struct {
	Offset uint16
	RowID  int64
	Record *Record
}

// TableInteriorCell is one decoded cell from a table-interior page: a
// child page pointer and the largest integer key in that subtree.
type TableInteriorCell struct {
	ChildPage uint32
	IntegerKey int64
}

// ParseBTreePage reads page n's header and cell-pointer array. It does
// not yet decode cell payloads; call ParseTableLeafCells or
// ParseTableInteriorCells for that, depending on Kind.
func ParseBTreePage(cache *PageCache, n uint32) (*BTreePage, error) {
	buf, err := cache.Page(n)
	if err != nil {
		return nil, err
	}

	headerOffset := int64(0)
	if n == 1 {
		headerOffset = 100
	}

	r := reader(buf)
	pageType, err := r.u8(headerOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrBadHeader, n, err)
	}
	kind, ok := btreePageTypeKind(pageType)
	if !ok {
		return nil, fmt.Errorf("%w: page %d has unknown b-tree page type 0x%02x", ErrBadHeader, n, pageType)
	}

	headerSize := int64(8)
	if kind == KindTableInterior || kind == KindIndexInterior {
		headerSize = 12
	}

	firstFreeblock, _ := r.u16(headerOffset + 1)
	cellCount, _ := r.u16(headerOffset + 3)
	cellContentStart, _ := r.u16(headerOffset + 5)
	fragmented, _ := r.u8(headerOffset + 7)

	var rightMost uint32
	if headerSize == 12 {
		rightMost, err = r.u32(headerOffset + 8)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrBadHeader, n, err)
		}
	}

	page := &BTreePage{
		Page: n,
		Kind: kind,
		Header: BTreePageHeader{
			PageType:            pageType,
			FirstFreeblock:      firstFreeblock,
			CellCount:           cellCount,
			CellContentStart:    cellContentStart,
			FragmentedFreeBytes: fragmented,
			RightMostPage:       rightMost,
		},
		headerOffset: headerOffset,
		headerSize:   headerSize,
		raw:          buf,
	}

	ptrArrayOffset := headerOffset + headerSize
	pointers := make([]uint16, cellCount)
	for i := uint16(0); i < cellCount; i++ {
		v, err := r.u16(ptrArrayOffset + int64(i)*2)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d cell pointer %d: %v", ErrBadHeader, n, i, err)
		}
		pointers[i] = v
	}
	page.cellPointers = pointers

	return page, nil
}

// CellPointers returns the page's cell-pointer array, in on-disk (not
// necessarily ascending) order.
func (p *BTreePage) CellPointers() []uint16 {
	return p.cellPointers
}

// UnallocatedRange returns the byte range between the end of the
// cell-pointer array and the start of the cell-content area: space
// that has never held a cell, as distinct from a freed one. Recovered
// separately because the format occasionally leaves partial record
// tails there after row shrinkage (spec.md §4.8).
func (p *BTreePage) UnallocatedRange() (start, end int) {
	start = int(p.headerOffset + p.headerSize + int64(len(p.cellPointers))*2)
	// CellContentStart, like the cell pointers and freeblock offsets,
	// is measured from the start of the page, page 1 included.
	end = int(p.Header.CellContentStart)
	if end < start {
		end = start
	}
	return start, end
}

// ParseTableLeafCells decodes every cell on a table-leaf page into
// rowid+record pairs, chasing overflow chains where needed. encoding
// selects how TEXT fields are decoded. Cells whose declared lengths
// don't fit the page, or that fail to decode, are skipped without being
// reported: the caller gets as many good cells as could be parsed.
func (p *BTreePage) ParseTableLeafCells(cache *PageCache, encoding TextEncoding) ([]TableLeafCell, error) {
	if p.Kind != KindTableLeaf {
		return nil, fmt.Errorf("%w: page %d is not a table-leaf page", ErrBadHeader, p.Page)
	}

	header := cache.Header()
	r := reader(p.raw)
	cells := make([]TableLeafCell, 0, len(p.cellPointers))

	for _, ptr := range p.cellPointers {
		off := int64(ptr)
		totalPayloadSize, n, err := r.varint(off)
		if err != nil {
			continue
		}
		off += n

		rowIDVal, n, err := r.varint(off)
		if err != nil {
			continue
		}
		off += n
		rowID := signed(rowIDVal, 8)

		cellPayloadSize, hasOverflow := header.overflowSplit(int64(totalPayloadSize))

		inPage, err := r.bytesAt(off, cellPayloadSize)
		if err != nil {
			continue
		}

		var payload []byte
		if hasOverflow {
			firstOverflowPage, err := r.u32(off + cellPayloadSize)
			if err != nil {
				continue
			}
			tail, err := readOverflowChain(cache, firstOverflowPage, int64(totalPayloadSize)-cellPayloadSize)
			if err != nil {
				continue
			}
			payload = make([]byte, 0, totalPayloadSize)
			payload = append(payload, inPage...)
			payload = append(payload, tail...)
		} else {
			payload = inPage
		}

		record, err := DecodeRecord(payload, encoding, 0)
		if err != nil {
			continue
		}

		cells = append(cells, TableLeafCell{Offset: ptr, RowID: rowID, Record: record})
	}

	return cells, nil
}

// ParseTableInteriorCells decodes every cell on a table-interior page
// into child-page/integer-key pairs, used by the B-tree walker to
// descend the tree.
func (p *BTreePage) ParseTableInteriorCells() ([]TableInteriorCell, error) {
	if p.Kind != KindTableInterior {
		return nil, fmt.Errorf("%w: page %d is not a table-interior page", ErrBadHeader, p.Page)
	}

	r := reader(p.raw)
	cells := make([]TableInteriorCell, 0, len(p.cellPointers))
	for _, ptr := range p.cellPointers {
		off := int64(ptr)
		childPage, err := r.u32(off)
		if err != nil {
			continue
		}
		off += 4
		keyVal, _, err := r.varint(off)
		if err != nil {
			continue
		}
		cells = append(cells, TableInteriorCell{ChildPage: childPage, IntegerKey: signed(keyVal, 8)})
	}
	return cells, nil
}

// WalkTableLeaves starting at root collects every table-leaf page
// number reachable from it, in traversal order, following interior
// cells and the right-child pointer. Cycles and out-of-range children
// are reported as ErrCorruptTree but do not abort the walk — the
// offending subtree is simply skipped.
func WalkTableLeaves(cache *PageCache, root uint32) ([]uint32, []error) {
	var leaves []uint32
	var errs []error
	visited := make(map[uint32]bool)

	queue := []uint32{root}
	for len(queue) > 0 {
		pageNum := queue[0]
		queue = queue[1:]

		if visited[pageNum] {
			errs = append(errs, fmt.Errorf("%w: page %d visited twice while walking root %d", ErrCorruptTree, pageNum, root))
			continue
		}
		visited[pageNum] = true

		if pageNum == 0 || pageNum > cache.PageCount() {
			errs = append(errs, fmt.Errorf("%w: child page %d out of range", ErrCorruptTree, pageNum))
			continue
		}

		page, err := ParseBTreePage(cache, pageNum)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: page %d: %v", ErrCorruptTree, pageNum, err))
			continue
		}

		switch page.Kind {
		case KindTableLeaf:
			leaves = append(leaves, pageNum)
		case KindTableInterior:
			cells, err := page.ParseTableInteriorCells()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			// Already-visited children are still queued so the check
			// at the top of the loop reports the cycle.
			for _, cell := range cells {
				queue = append(queue, cell.ChildPage)
			}
			if right := page.Header.RightMostPage; right != 0 {
				queue = append(queue, right)
			}
		default:
			errs = append(errs, fmt.Errorf("%w: page %d has unexpected kind %s while walking table b-tree", ErrCorruptTree, pageNum, page.Kind))
		}
	}

	return leaves, errs
}
