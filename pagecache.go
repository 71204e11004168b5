package sqbrite

import (
	"fmt"
	"io"
	"os"
)

// PageCache maps 1-based page numbers to the page's raw, fixed-size
// bytes, read once from the underlying file and cached for the
// lifetime of the run. It never mutates the source file: the handle is
// opened read-only and shared.
type PageCache struct {
	file   *os.File
	header *Header

	pages map[uint32][]byte
}

// OpenPageCache opens path read-only, parses its 100-byte header, and
// returns a cache ready to serve Page lookups. The file handle remains
// open until Close is called.
func OpenPageCache(path string) (*PageCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	headerBuf := make([]byte, 100)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: reading header: %v", ErrIOError, err)
	}

	header, err := ParseHeader(headerBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &PageCache{
		file:   f,
		header: header,
		pages:  make(map[uint32][]byte, header.PageCount),
	}, nil
}

// Close releases the file handle and drops all cached page bytes.
func (c *PageCache) Close() error {
	c.pages = nil
	return c.file.Close()
}

// Header returns the database's parsed file header.
func (c *PageCache) Header() *Header {
	return c.header
}

// Page returns exactly PageSize bytes starting at file offset
// (n-1)*PageSize, reading and caching them on first access. Page 1's
// B-tree header begins at offset 100 within the returned slice; every
// other page's begins at offset 0 — callers are expected to know this,
// matching spec.md §3.
func (c *PageCache) Page(n uint32) ([]byte, error) {
	if n == 0 || n > c.header.PageCount {
		return nil, fmt.Errorf("%w: page %d (have %d pages)", ErrOutOfRange, n, c.header.PageCount)
	}
	if buf, ok := c.pages[n]; ok {
		return buf, nil
	}

	buf := make([]byte, c.header.PageSize)
	offset := int64(n-1) * int64(c.header.PageSize)
	if _, err := c.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading page %d: %v", ErrIOError, n, err)
	}
	c.pages[n] = buf
	return buf, nil
}

// PageCount returns the number of pages the header declares the
// database to have.
func (c *PageCache) PageCount() uint32 {
	return c.header.PageCount
}
