package sqbrite

import "fmt"

// FreeRange is a candidate range of freed bytes on a table-leaf page:
// either a freeblock's payload region or the page's unallocated band.
type FreeRange struct {
	Start int
	End   int
	Bytes []byte
}

// ScanFreeblocks walks the intra-page freeblock linked list starting at
// the page header's first-freeblock offset, producing one FreeRange per
// node, plus a final range for the unallocated band between the
// cell-pointer array and the cell-content area (spec.md §4.8). The list
// must be strictly ascending in offset with each block at least 4 bytes
// long; a violation halts the scan for this page and returns
// ErrMalformedFreeblocks alongside whatever ranges were already found.
func ScanFreeblocks(page *BTreePage) ([]FreeRange, error) {
	var ranges []FreeRange

	usableEnd := len(page.raw)
	offset := int(page.Header.FirstFreeblock)
	lastOffset := -1

	for offset != 0 {
		if offset <= lastOffset {
			return ranges, fmt.Errorf("%w: page %d freeblock offsets not ascending", ErrMalformedFreeblocks, page.Page)
		}
		if offset+4 > usableEnd {
			return ranges, fmt.Errorf("%w: page %d freeblock header runs past page end", ErrMalformedFreeblocks, page.Page)
		}

		r := reader(page.raw)
		next, err := r.u16(int64(offset))
		if err != nil {
			return ranges, fmt.Errorf("%w: %v", ErrMalformedFreeblocks, err)
		}
		length, err := r.u16(int64(offset) + 2)
		if err != nil {
			return ranges, fmt.Errorf("%w: %v", ErrMalformedFreeblocks, err)
		}
		if length < 4 {
			return ranges, fmt.Errorf("%w: page %d freeblock at %d shorter than 4 bytes", ErrMalformedFreeblocks, page.Page, offset)
		}
		if offset+int(length) > usableEnd {
			return ranges, fmt.Errorf("%w: page %d freeblock at %d crosses page boundary", ErrMalformedFreeblocks, page.Page, offset)
		}

		ranges = append(ranges, FreeRange{
			Start: offset + 4,
			End:   offset + int(length),
			Bytes: page.raw[offset+4 : offset+int(length)],
		})

		lastOffset = offset
		offset = int(next)
	}

	start, end := page.UnallocatedRange()
	if end > start {
		ranges = append(ranges, FreeRange{Start: start, End: end, Bytes: page.raw[start:end]})
	}

	return ranges, nil
}
