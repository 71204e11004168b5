package sqbrite

import "fmt"

// FreelistPage records one page's role in the free-list: which trunk
// page (if any) it belongs to.
type FreelistPage struct {
	Page  uint32
	Trunk uint32
}

// WalkFreelist follows the trunk-linked chain starting at the header's
// first free-list trunk page, returning every trunk and every leaf page
// it references (spec.md §3, "Free-list"). Malformed trunk pages (a
// leaf count that would read past the page) stop the walk at that
// trunk; everything collected up to that point is still returned.
func WalkFreelist(cache *PageCache) (trunks []uint32, leaves []FreelistPage, err error) {
	header := cache.Header()
	trunkPage := header.FirstFreelistTrunk
	visited := make(map[uint32]bool)

	for trunkPage != 0 {
		if visited[trunkPage] {
			return trunks, leaves, fmt.Errorf("%w: free-list trunk %d revisited", ErrCorruptTree, trunkPage)
		}
		visited[trunkPage] = true
		trunks = append(trunks, trunkPage)

		buf, perr := cache.Page(trunkPage)
		if perr != nil {
			return trunks, leaves, perr
		}
		r := reader(buf)

		nextTrunk, e1 := r.u32(0)
		leafCount, e2 := r.u32(4)
		if e1 != nil || e2 != nil {
			return trunks, leaves, fmt.Errorf("%w: truncated free-list trunk %d", ErrCorruptTree, trunkPage)
		}

		maxEntries := (uint32(len(buf)) - 8) / 4
		if leafCount > maxEntries {
			return trunks, leaves, fmt.Errorf("%w: free-list trunk %d claims %d leaves, page holds at most %d", ErrCorruptTree, trunkPage, leafCount, maxEntries)
		}

		for i := uint32(0); i < leafCount; i++ {
			leafPage, e := r.u32(int64(8 + i*4))
			if e != nil {
				break
			}
			leaves = append(leaves, FreelistPage{Page: leafPage, Trunk: trunkPage})
		}

		trunkPage = nextTrunk
	}

	return trunks, leaves, nil
}
