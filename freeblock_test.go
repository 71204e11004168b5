package sqbrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanFreeblocksPartitionsPageIntoRanges(t *testing.T) {
	raw := make([]byte, 64)
	// One freeblock at offset 8: next=0, length=6 -> payload [12,14).
	raw[8], raw[9] = 0, 0
	raw[10], raw[11] = 0, 6

	page := &BTreePage{
		Page: 2,
		Kind: KindTableLeaf,
		Header: BTreePageHeader{
			PageType:         0x0D,
			FirstFreeblock:   8,
			CellCount:        0,
			CellContentStart: 40,
		},
		headerOffset: 0,
		headerSize:   8,
		raw:          raw,
	}

	ranges, err := ScanFreeblocks(page)
	require.NoError(t, err)
	require.Len(t, ranges, 2)

	require.Equal(t, 12, ranges[0].Start)
	require.Equal(t, 14, ranges[0].End)

	require.Equal(t, 8, ranges[1].Start)
	require.Equal(t, 40, ranges[1].End)
}

func TestScanFreeblocksRejectsNonAscendingOffsets(t *testing.T) {
	raw := make([]byte, 64)
	// Two freeblocks, second one points backwards.
	raw[20], raw[21] = 0, 10 // first block at 20: next=10 (before itself)
	raw[22], raw[23] = 0, 6
	raw[10], raw[11] = 0, 0
	raw[12], raw[13] = 0, 4

	page := &BTreePage{
		Page: 3,
		Kind: KindTableLeaf,
		Header: BTreePageHeader{
			PageType:         0x0D,
			FirstFreeblock:   20,
			CellCount:        0,
			CellContentStart: 20,
		},
		headerOffset: 0,
		headerSize:   8,
		raw:          raw,
	}

	ranges, err := ScanFreeblocks(page)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedFreeblocks)
	require.Len(t, ranges, 1, "the first, well-formed block is still returned")
}

func TestUnallocatedRangeOnPageOne(t *testing.T) {
	page := &BTreePage{
		Page:         1,
		headerOffset: 100,
		headerSize:   8,
		Header:       BTreePageHeader{CellContentStart: 4000},
	}
	start, end := page.UnallocatedRange()
	require.Equal(t, 108, start)
	require.Equal(t, 4000, end)
}
