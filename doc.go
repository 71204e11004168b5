// Package sqbrite is a read-only forensic parser and recovery engine for
// the SQLite on-disk file format. It parses a database file's page
// layout, classifies every page, walks its B-tree and pointer-map
// structures, and attempts to reconstruct rows deleted by ordinary
// (non secure-erase) delete statements from freeblocks and from pages
// returned to the free list.
//
// The package never writes to the source file. A run is parameterised
// by a file path and a Heuristics registry; two runs never share state.
package sqbrite
