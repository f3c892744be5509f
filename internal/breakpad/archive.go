// Package breakpad implements the sym->symcache parser the spec treats as
// an external collaborator (§1, §6): it parses a Breakpad-style text symbol
// file into a binary, gob-encoded index supporting address->location
// lookup with inline chains, and implements the symcache.Parser contract.
//
// This is a deliberately simplified subset of the real Breakpad SYM grammar
// (see DESIGN.md): no CFI/stack-unwind records, and an INLINE record's
// chain applies across its enclosing FUNC's whole address range rather
// than a sub-range. Neither limitation is visible to the symbolication
// core, which only ever calls through symcache.Parser.
package breakpad

import (
	"sort"

	"github.com/honeycombio/crash-symbolicator/internal/symcache"
)

// LineEntry maps a sub-range of a Record's address range to a source line.
type LineEntry struct {
	Addr uint64
	Size uint64
	Line uint32
	File string
}

// InlineRecord is one inlined call, innermost-first within a Record's
// InlineChain.
type InlineRecord struct {
	Symbol string
	File   string
	Line   uint32
}

// Record is one FUNC or PUBLIC entry: an address range, its symbol name,
// optional per-subrange line info, and an optional inline chain.
type Record struct {
	Addr        uint64
	Size        uint64
	Symbol      string
	Lines       []LineEntry
	InlineChain []InlineRecord
}

// Archive is a parsed, lookup-ready symbol file. It implements
// symcache.Symcache and is gob-serializable for caching.
type Archive struct {
	ModuleDebugID       string
	ModuleDebugFilename string
	Records             []Record // sorted ascending by Addr, non-overlapping
}

// Lookup implements symcache.Symcache. It returns source locations ordered
// innermost-inline first, outer function last.
func (a *Archive) Lookup(offset uint64) []symcache.SourceLocation {
	n := len(a.Records)
	idx := sort.Search(n, func(i int) bool {
		return a.Records[i].Addr+a.Records[i].Size > offset
	})
	if idx >= n || a.Records[idx].Addr > offset {
		return nil
	}
	rec := a.Records[idx]

	var line uint32
	var file string
	for _, le := range rec.Lines {
		if le.Addr <= offset && offset < le.Addr+le.Size {
			line = le.Line
			file = le.File
			break
		}
	}

	out := make([]symcache.SourceLocation, 0, len(rec.InlineChain)+1)
	for _, inl := range rec.InlineChain {
		out = append(out, symcache.SourceLocation{
			Symbol:   inl.Symbol,
			SymAddr:  rec.Addr,
			FullPath: inl.File,
			Line:     inl.Line,
		})
	}
	out = append(out, symcache.SourceLocation{
		Symbol:   rec.Symbol,
		SymAddr:  rec.Addr,
		FullPath: file,
		Line:     line,
	})
	return out
}
