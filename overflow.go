package sqbrite

import "fmt"

// readOverflowChain assembles the full payload for a cell whose
// in-page bytes fall short of totalPayloadSize, chasing the overflow
// chain starting at firstPage. Each overflow page begins with a 4-byte
// next-page pointer (0 terminates) followed by up to PageSize-4
// payload bytes (spec.md §4.7).
func readOverflowChain(cache *PageCache, firstPage uint32, remaining int64) ([]byte, error) {
	out := make([]byte, 0, remaining)
	visited := make(map[uint32]bool)

	page := firstPage
	for page != 0 {
		if visited[page] {
			return nil, fmt.Errorf("%w: page %d revisited", ErrOverflowCycle, page)
		}
		visited[page] = true

		buf, err := cache.Page(page)
		if err != nil {
			return nil, err
		}
		r := reader(buf)
		next, err := r.u32(0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOverflowTruncated, err)
		}

		avail := int64(len(buf)) - 4
		take := remaining
		if take > avail {
			take = avail
		}
		chunk, err := r.bytesAt(4, take)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOverflowTruncated, err)
		}
		out = append(out, chunk...)
		remaining -= take

		if remaining <= 0 {
			return out, nil
		}
		page = next
	}

	return nil, fmt.Errorf("%w: chain ended with %d bytes still needed", ErrOverflowTruncated, remaining)
}
