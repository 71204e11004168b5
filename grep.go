package sqbrite

import "regexp"

// GrepMatch is one occurrence of a search pattern found on a page,
// independent of any table attribution or free/live classification.
type GrepMatch struct {
	Page   uint32
	Offset int
}

// Grep scans every page in the database for pattern, a Go regular
// expression run over the raw page bytes, and returns every match
// found. The regexp package reads those bytes as UTF-8, so a byte of
// 0x80 or above that is not part of a valid UTF-8 sequence is seen as
// U+FFFD and is not matched by a \xNN escape. Unlike the recovery orchestrator this makes no
// attempt to interpret what it finds as a record; it is a raw search
// tool for locating a known byte sequence anywhere on disk, ported
// from the original implementation's db.grep (SPEC_FULL.md §12).
func Grep(cache *PageCache, pattern string) ([]GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	var matches []GrepMatch
	for page := uint32(1); page <= cache.PageCount(); page++ {
		buf, err := cache.Page(page)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllIndex(buf, -1) {
			matches = append(matches, GrepMatch{Page: page, Offset: loc[0]})
		}
	}
	return matches, nil
}
