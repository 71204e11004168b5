package sqbrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeCandidateCellDecodesInPlaceRecord(t *testing.T) {
	// header_length=4, [NULL, int 5, text "hi"] — no payload_length/rowid
	// wrapper: this is exactly what a candidate record-header start
	// points at (spec.md §3, §4.9).
	record := []byte{4, 0, 1, 17, 5, 'h', 'i'}
	buf := append(record, 0xAA, 0xAA, 0xAA) // trailing bytes from later garbage

	rec, consumed, err := decodeCandidateCell(nil, buf, EncodingUTF8, 0)
	require.NoError(t, err)
	require.Equal(t, len(record), consumed)
	require.Len(t, rec.Fields, 3)
	require.Equal(t, "hi", rec.Fields[2].Text)
}

func TestDecodeCandidateCellChasesOverflowChain(t *testing.T) {
	const pageSize = 512
	const usable = pageSize

	text := make([]byte, 500)
	for i := range text {
		text[i] = 'A'
	}
	// header_length varint (1 byte, value 3) + serial-type varint for a
	// 500-byte TEXT field (13+2*500=1013, 2 bytes) = 3 header bytes.
	header := EncodeVarint(nil, 3)
	header = append(header, EncodeVarint(nil, 13+2*500)...)
	require.Len(t, header, 3)

	h := &Header{PageSize: pageSize, PageCount: 2, UsableSize: usable}
	cellPayloadSize, hasOverflow := h.overflowSplit(int64(len(header) + len(text)))
	require.True(t, hasOverflow)

	localText := text[:int(cellPayloadSize)-len(header)]
	tailText := text[len(localText):]

	buf := append(append([]byte{}, header...), localText...)
	buf = append(buf, 0, 0, 0, 2) // overflow pointer -> page 2

	overflowPage := make([]byte, pageSize)
	// next pointer already zero: this is the last overflow page.
	copy(overflowPage[4:], tailText)

	cache := &PageCache{header: h, pages: map[uint32][]byte{2: overflowPage}}

	rec, consumed, err := decodeCandidateCell(cache, buf, EncodingUTF8, 0)
	require.NoError(t, err)
	require.Equal(t, int(cellPayloadSize)+4, consumed)
	require.Len(t, rec.Fields, 1)
	require.Equal(t, string(text), rec.Fields[0].Text)
}

func TestDecodeCandidateCellReportsBrokenOverflowChain(t *testing.T) {
	const pageSize = 300
	const usable = pageSize

	text := make([]byte, 600)
	for i := range text {
		text[i] = 'B'
	}
	header := EncodeVarint(nil, 3)
	header = append(header, EncodeVarint(nil, 13+2*600)...)
	require.Len(t, header, 3)

	h := &Header{PageSize: pageSize, PageCount: 3, UsableSize: usable}
	totalPayloadSize := int64(len(header) + len(text))
	cellPayloadSize, hasOverflow := h.overflowSplit(totalPayloadSize)
	require.True(t, hasOverflow)

	localText := text[:int(cellPayloadSize)-len(header)]
	remaining := text[len(localText):]

	buf := append(append([]byte{}, header...), localText...)
	buf = append(buf, 0, 0, 0, 2) // overflow pointer -> page 2

	// Page 2 holds only part of what's left and wrongly terminates the
	// chain (next=0) instead of pointing at a third page, matching
	// spec.md §8 scenario 2's "breaking the chain" case.
	overflowPage := make([]byte, pageSize)
	avail := pageSize - 4
	require.Less(t, avail, len(remaining), "test setup must require more than one overflow page")
	copy(overflowPage[4:], remaining[:avail])

	cache := &PageCache{header: h, pages: map[uint32][]byte{2: overflowPage}}

	_, _, err := decodeCandidateCell(cache, buf, EncodingUTF8, 0)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOverflowTruncated)
}

func TestScanRangeForTableFindsAndDeduplicates(t *testing.T) {
	record := []byte{4, 0, 1, 17, 5, 'h', 'i'}

	fr := FreeRange{Start: 100, End: 100 + 3 + len(record), Bytes: append([]byte{0xAA, 0xAA, 0xAA}, record...)}

	reg := NewHeuristicsRegistry()
	require.NoError(t, reg.loadYAML([]byte("tables:\n  widgets:\n    - pattern: \"\\x04\\x00\\x01\\x11\"\n      offset: 0\n")))

	table := &Table{Name: "widgets"}
	seen := make(map[candidateSlot]bool)
	report := &RunReport{}

	rows := scanRangeForTable(nil, table, 7, "freeblock", fr, reg, EncodingUTF8, 0, seen, report)
	require.Len(t, rows, 1)
	require.Equal(t, uint32(7), rows[0].SourcePage)
	require.Equal(t, 103, rows[0].SourceOffset)
	require.Nil(t, rows[0].RowID)

	// Calling again with the same seen map must not recover the same slot twice.
	rows = scanRangeForTable(nil, table, 7, "freeblock", fr, reg, EncodingUTF8, 0, seen, report)
	require.Empty(t, rows)
}

func TestFlagAndFilterLikelyLiveDropsMatchesByDefault(t *testing.T) {
	live := &Field{Kind: FieldText, Text: "hi"}
	rows := []RecoveredRow{
		{Table: "widgets", Columns: []RecoveredColumn{{Name: "col0", Field: *live}}},
		{Table: "widgets", Columns: []RecoveredColumn{{Name: "col0", Field: Field{Kind: FieldText, Text: "bye"}}}},
	}
	liveSet := map[string]bool{recordSignature([]Field{*live}): true}
	report := &RunReport{}

	kept := flagAndFilterLikelyLive(rows, liveSet, false, report)
	require.Len(t, kept, 1)
	require.Equal(t, "bye", kept[0].Columns[0].Field.Text)
	require.Equal(t, 1, report.LikelyLiveSuppressed)
}

func TestFlagAndFilterLikelyLiveKeepsMatchesWhenIncluded(t *testing.T) {
	live := Field{Kind: FieldInt, Int: 42}
	rows := []RecoveredRow{{Table: "widgets", Columns: []RecoveredColumn{{Name: "col0", Field: live}}}}
	liveSet := map[string]bool{recordSignature([]Field{live}): true}
	report := &RunReport{}

	kept := flagAndFilterLikelyLive(rows, liveSet, true, report)
	require.Len(t, kept, 1)
	require.True(t, kept[0].LikelyLive)
	require.Equal(t, 0, report.LikelyLiveSuppressed)
}

func TestRecordSignatureDistinguishesKindAndValue(t *testing.T) {
	a := recordSignature([]Field{{Kind: FieldText, Text: "1"}})
	b := recordSignature([]Field{{Kind: FieldInt, Int: 1}})
	require.NotEqual(t, a, b)

	c := recordSignature([]Field{{Kind: FieldText, Text: "hi"}})
	d := recordSignature([]Field{{Kind: FieldText, Text: "hi"}})
	require.Equal(t, c, d)
}

func TestAllRangesZero(t *testing.T) {
	zero := sourcedRange{page: 1, origin: "freeblock", FreeRange: FreeRange{Bytes: make([]byte, 16)}}
	nonZero := sourcedRange{page: 2, origin: "freeblock", FreeRange: FreeRange{Bytes: []byte{0, 1, 0}}}

	require.True(t, allRangesZero(map[string][]sourcedRange{"t": {zero}}, nil))
	require.False(t, allRangesZero(map[string][]sourcedRange{"t": {zero, nonZero}}, nil))
	require.False(t, allRangesZero(nil, nil), "no ranges scanned is not evidence of secure erase")
}
