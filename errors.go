package sqbrite

import "errors"

// Sentinel errors for the recovery engine's documented failure modes.
// Callers match these with errors.Is; wrapping with fmt.Errorf("...: %w", ...)
// preserves them through the call chain.
var (
	ErrBadMagic            = errors.New("sqbrite: bad magic header")
	ErrUnsupportedPageSize = errors.New("sqbrite: unsupported page size")
	ErrIOError             = errors.New("sqbrite: io error reading page")
	ErrOutOfRange          = errors.New("sqbrite: page number out of range")
	ErrCorruptTree         = errors.New("sqbrite: corrupt or cyclic b-tree")
	ErrMalformedFreeblocks = errors.New("sqbrite: malformed freeblock chain")
	ErrBadHeader           = errors.New("sqbrite: malformed record header")
	ErrVarintOverflow      = errors.New("sqbrite: varint does not terminate within 9 bytes")
	ErrTruncated           = errors.New("sqbrite: buffer truncated mid-value")
	ErrOverflowTruncated   = errors.New("sqbrite: overflow chain ended before full payload read")
	ErrOverflowCycle       = errors.New("sqbrite: overflow chain revisits a page")
	ErrNoHeuristic         = errors.New("sqbrite: no heuristic registered for table")
	ErrConfigError         = errors.New("sqbrite: invalid heuristics configuration")
	ErrPtrmapUnavailable   = errors.New("sqbrite: pointer-map not present in this database")
)
