package sqbrite

import "sort"

// PageKind is the role a page plays in the database, as determined by
// the classifier (spec.md §4.4).
type PageKind uint8

const (
	KindUnknown PageKind = iota
	KindTableLeaf
	KindTableInterior
	KindIndexLeaf
	KindIndexInterior
	KindPtrmap
	KindFreelistTrunk
	KindFreelistLeaf
	KindOverflow
)

func (k PageKind) String() string {
	switch k {
	case KindTableLeaf:
		return "table-leaf"
	case KindTableInterior:
		return "table-interior"
	case KindIndexLeaf:
		return "index-leaf"
	case KindIndexInterior:
		return "index-interior"
	case KindPtrmap:
		return "ptrmap"
	case KindFreelistTrunk:
		return "freelist-trunk"
	case KindFreelistLeaf:
		return "freelist-leaf"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// btreePageTypeKind maps the page-type byte found at the start of a
// B-tree page header to the corresponding PageKind.
func btreePageTypeKind(pageType byte) (PageKind, bool) {
	switch pageType {
	case 0x02:
		return KindIndexInterior, true
	case 0x05:
		return KindTableInterior, true
	case 0x0A:
		return KindIndexLeaf, true
	case 0x0D:
		return KindTableLeaf, true
	default:
		return KindUnknown, false
	}
}

// Disagreement records a page whose classification differs between two
// independent sources of evidence (ptrmap, B-tree reachability,
// free-list reachability). Per spec.md §4.4 this is reported but never
// fails the run.
type Disagreement struct {
	Page     uint32
	FromPtrmap PageKind
	FromOther  PageKind
	Detail     string
}

// Classifier aggregates page-kind evidence gathered elsewhere (the
// B-tree walker, the free-list walk, and the ptrmap reader) into a
// single source of truth queryable by page number, cross-checking
// agreement between sources as it goes.
type Classifier struct {
	pageCount uint32
	kinds     map[uint32]PageKind
	disagreements []Disagreement
}

// NewClassifier creates an empty classifier for a database with the
// given page count; every page starts out Unknown.
func NewClassifier(pageCount uint32) *Classifier {
	return &Classifier{
		pageCount: pageCount,
		kinds:     make(map[uint32]PageKind, pageCount),
	}
}

// Set records kind as evidence for page, sourced from source (a short
// label such as "btree", "ptrmap", "freelist", used only for
// diagnostics). If the page already has a different kind recorded, the
// mismatch is appended to Disagreements but the original kind wins —
// first writer takes precedence, matching the priority order the
// orchestrator builds the classifier in (ptrmap, then B-tree walk, then
// free-list walk).
func (c *Classifier) Set(page uint32, kind PageKind, source string) {
	existing, ok := c.kinds[page]
	if !ok {
		c.kinds[page] = kind
		return
	}
	if existing != kind {
		c.disagreements = append(c.disagreements, Disagreement{
			Page:       page,
			FromPtrmap: existing,
			FromOther:  kind,
			Detail:     source,
		})
	}
}

// Kind returns the classification for page, or KindUnknown if nothing
// has classified it yet.
func (c *Classifier) Kind(page uint32) PageKind {
	if k, ok := c.kinds[page]; ok {
		return k
	}
	return KindUnknown
}

// Disagreements returns every cross-check mismatch recorded so far.
func (c *Classifier) Disagreements() []Disagreement {
	return c.disagreements
}

// PagesOfKind returns every page number classified as kind, in
// ascending order.
func (c *Classifier) PagesOfKind(kind PageKind) []uint32 {
	var out []uint32
	for page, k := range c.kinds {
		if k == kind {
			out = append(out, page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
