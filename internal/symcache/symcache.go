// Package symcache defines the boundary between the symbolication core and
// the sym-file parser: a small, swappable contract for "what does a parsed
// symbol file let you do." Per the spec this parser is an external
// collaborator -- the core only ever calls through this interface -- but a
// concrete implementation lives in internal/breakpad so the service is
// actually runnable end to end.
package symcache

import "context"

// SourceLocation is one entry of a symcache lookup: a function symbol, its
// start address, and optionally its source file and line.
type SourceLocation struct {
	Symbol   string
	SymAddr  uint64
	FullPath string
	// Line is 0 when unknown.
	Line uint32
}

// Symcache supports address-to-location lookup against a parsed symbol
// file. Lookup returns locations ordered innermost-inline first, with the
// outer (non-inlined) function last; an empty result means nothing is known
// about that offset.
type Symcache interface {
	Lookup(offset uint64) []SourceLocation
}

// BadDebugIDError indicates the debug id passed alongside a sym file is not
// usable for that file; the breakpad parser returns it when the id does not
// match the one on the sym file's MODULE line.
type BadDebugIDError struct {
	DebugID string
}

func (e *BadDebugIDError) Error() string {
	return "bad debug id: " + e.DebugID
}

// ParseSymFileError indicates the sym file's body failed to parse.
// ReasonCode becomes a metric tag value, so it must stay a short, stable
// string (no file paths or other high-cardinality data).
type ParseSymFileError struct {
	ReasonCode string
	Err        error
}

func (e *ParseSymFileError) Error() string {
	return "parse sym file error (" + e.ReasonCode + "): " + e.Err.Error()
}

func (e *ParseSymFileError) Unwrap() error { return e.Err }

// Parser parses raw sym file bytes into a Symcache and supports converting
// a Symcache to and from its cacheable byte representation.
type Parser interface {
	// ParseSym parses raw sym file bytes for the given module identity.
	ParseSym(ctx context.Context, debugFilename, debugID string, data []byte) (Symcache, error)

	// BytesToSymcache deserializes a Symcache previously produced by
	// SymcacheToBytes.
	BytesToSymcache(data []byte) (Symcache, error)

	// SymcacheToBytes serializes a Symcache for caching.
	SymcacheToBytes(s Symcache) ([]byte, error)

	// GetModuleFilename extracts the true module filename from a raw sym
	// file's header, falling back to defaultFilename if it can't be
	// determined (e.g. non-Windows modules, where the sym header's own name
	// always matches debug_filename).
	GetModuleFilename(raw []byte, defaultFilename string) string
}
