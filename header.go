package sqbrite

import "fmt"

var magicHeaderString = [16]byte{
	'S', 'Q', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '3', 0,
}

// TextEncoding identifies how TEXT column payloads are encoded, per the
// file header's text-encoding field.
type TextEncoding uint8

const (
	EncodingUTF8    TextEncoding = 1
	EncodingUTF16LE TextEncoding = 2
	EncodingUTF16BE TextEncoding = 3
)

// Header holds the fields of the 100-byte SQLite file header that the
// recovery engine needs. Field names follow the format's own
// terminology rather than abbreviating them.
type Header struct {
	PageSize           uint32
	FileChangeCounter  uint32
	PageCount          uint32
	FirstFreelistTrunk uint32
	FreelistPageCount  uint32
	SchemaCookie       uint32
	TextEncoding       TextEncoding
	ReservedBytes      uint8
	MaxPayloadFraction uint8
	MinPayloadFraction uint8
	LeafPayloadFraction uint8
	IncrementalVacuum  uint32
	LargestBTreePage   uint32 // 0 when the database is not auto-vacuum
	VersionValid       uint32

	// UsableSize is PageSize - ReservedBytes, the number of bytes on a
	// page actually available to the B-tree layer.
	UsableSize uint32
}

func isValidPageSize(p uint32) bool {
	if p < 512 || p > 65536 {
		return false
	}
	return p&(p-1) == 0
}

// ParseHeader validates the magic string and decodes the fixed-position
// fields of the 100-byte database header. It rejects the file with
// ErrBadMagic or ErrUnsupportedPageSize before any page is read.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < 100 {
		return nil, fmt.Errorf("%w: header is %d bytes, need 100", ErrTruncated, len(buf))
	}
	r := reader(buf)

	var magic [16]byte
	copy(magic[:], buf[:16])
	if magic != magicHeaderString {
		return nil, fmt.Errorf("%w: got %q", ErrBadMagic, buf[:16])
	}

	rawPageSize, err := r.u16(16)
	if err != nil {
		return nil, err
	}
	pageSize := uint32(rawPageSize)
	if rawPageSize == 1 {
		pageSize = 65536
	}
	if !isValidPageSize(pageSize) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPageSize, pageSize)
	}

	writeFormat, _ := r.u8(18)
	readFormat, _ := r.u8(19)
	_ = writeFormat
	_ = readFormat

	reserved, err := r.u8(20)
	if err != nil {
		return nil, err
	}
	maxPayload, _ := r.u8(21)
	minPayload, _ := r.u8(22)
	leafPayload, _ := r.u8(23)

	fileChangeCounter, err := r.u32(24)
	if err != nil {
		return nil, err
	}
	pageCount, err := r.u32(28)
	if err != nil {
		return nil, err
	}
	firstFreelistTrunk, err := r.u32(32)
	if err != nil {
		return nil, err
	}
	freelistPageCount, err := r.u32(36)
	if err != nil {
		return nil, err
	}
	schemaCookie, err := r.u32(40)
	if err != nil {
		return nil, err
	}
	_, err = r.u32(44) // schema format number, unused by the recovery engine
	if err != nil {
		return nil, err
	}
	_, err = r.u32(48) // default page cache size, unused
	if err != nil {
		return nil, err
	}
	largestBTreePage, err := r.u32(52)
	if err != nil {
		return nil, err
	}
	rawEncoding, err := r.u32(56)
	if err != nil {
		return nil, err
	}
	encoding := TextEncoding(rawEncoding)
	if encoding == 0 {
		// A freshly created, never-written database may have 0 here;
		// SQLite treats that as UTF-8.
		encoding = EncodingUTF8
	}
	_, err = r.u32(60) // user version, unused
	if err != nil {
		return nil, err
	}
	incrementalVacuum, err := r.u32(64)
	if err != nil {
		return nil, err
	}
	_, err = r.u32(68) // application ID, unused
	if err != nil {
		return nil, err
	}
	versionValid, err := r.u32(92)
	if err != nil {
		return nil, err
	}

	h := &Header{
		PageSize:            pageSize,
		FileChangeCounter:   fileChangeCounter,
		PageCount:           pageCount,
		FirstFreelistTrunk:  firstFreelistTrunk,
		FreelistPageCount:   freelistPageCount,
		SchemaCookie:        schemaCookie,
		TextEncoding:        encoding,
		ReservedBytes:       reserved,
		MaxPayloadFraction:  maxPayload,
		MinPayloadFraction:  minPayload,
		LeafPayloadFraction: leafPayload,
		IncrementalVacuum:   incrementalVacuum,
		LargestBTreePage:    largestBTreePage,
		VersionValid:        versionValid,
	}
	h.UsableSize = h.PageSize - uint32(h.ReservedBytes)
	return h, nil
}

// AutoVacuum reports whether the database was created with auto_vacuum
// (or incremental_vacuum) enabled, which is the precondition for
// pointer-map pages to exist.
func (h *Header) AutoVacuum() bool {
	return h.LargestBTreePage != 0
}

// overflowThreshold returns U' (spec.md §4.7), the maximum payload size
// that a table b-tree leaf cell can store entirely in-page before an
// overflow chain is required.
func (h *Header) overflowThreshold() int64 {
	return int64(h.UsableSize) - 35
}

// overflowSplit returns M and K, the fixed/payload-remainder split used
// when a payload that requires overflow decides how many bytes stay on
// the leaf page (spec.md §4.7 and the format's own fixed payload
// fraction constants, reproduced here rather than recomputed from
// MaxPayloadFraction/MinPayloadFraction since SQLite hard-codes 32/255
// for table b-trees regardless of header contents).
func (h *Header) overflowSplit(totalPayloadSize int64) (cellPayloadSize int64, hasOverflow bool) {
	threshold := h.overflowThreshold()
	if totalPayloadSize <= threshold {
		return totalPayloadSize, false
	}
	usable := int64(h.UsableSize)
	m := ((usable-12)*32)/255 - 23
	k := m + (totalPayloadSize-m)%(usable-4)
	if k <= threshold {
		return k, true
	}
	return m, true
}
