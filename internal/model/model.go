// Package model holds the shapes shared by validation, acquisition, and
// symbolication: a job is a set of stacks to resolve against a module table.
package model

// Module identifies a single debug symbol file: a library basename paired
// with the hex debug id compiled into it. Either field may be empty, in
// which case the module is unresolvable by convention.
type Module struct {
	DebugFilename string
	DebugID       string
}

// Key returns the "{debug_filename}/{debug_id}" string used as the
// found_modules map key. The on-disk symcache cache key is built separately
// by the acquirer ('/' stripped, debug id upper-cased, ".symc" appended).
func (m Module) Key() string {
	return m.DebugFilename + "/" + m.DebugID
}

// Frame is one (module_index, module_offset) pair from an input stack.
// ModuleIndex of -1 means the address isn't in any module.
type Frame struct {
	ModuleIndex  int
	ModuleOffset int
}

// Job is a single symbolication unit: a list of stacks and the module table
// its frames' ModuleIndex values refer into.
type Job struct {
	Stacks    [][]Frame
	MemoryMap []Module
}

// FrameResult is one resolved output frame. It is always allocated once and
// referenced by pointer from both a JobResult's Stacks and the symbolicator's
// module-grouped work list, so that Pass 2 of symbolication mutates the same
// object the caller will eventually serialize.
type FrameResult struct {
	Frame          int     `json:"frame"`
	Module         string  `json:"module"`
	ModuleOffset   string  `json:"module_offset"`
	Function       string  `json:"function,omitempty"`
	FunctionOffset string  `json:"function_offset,omitempty"`
	File           string  `json:"file,omitempty"`
	Line           *uint32 `json:"line,omitempty"`
	Inlines        []Inline `json:"inlines,omitempty"`
}

// Inline is one entry of an expanded inline call chain, innermost inline
// frame first.
type Inline struct {
	Function string  `json:"function"`
	File     string  `json:"file,omitempty"`
	Line     *uint32 `json:"line,omitempty"`
}

// JobResult is the per-job symbolication output: one FrameResult per input
// frame, grouped by stack in input order, plus one found_modules entry per
// memoryMap row.
type JobResult struct {
	Stacks       [][]*FrameResult `json:"stacks"`
	FoundModules map[string]*bool `json:"found_modules"`
}
