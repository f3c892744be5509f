package breakpad

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/honeycombio/crash-symbolicator/internal/symcache"
)

// Parser implements symcache.Parser over the Breakpad-subset text format
// described in archive.go's package comment.
type Parser struct{}

// NewParser returns a ready-to-use Parser. It carries no state.
func NewParser() *Parser {
	return &Parser{}
}

// ParseSym parses a sym file's bytes into an Archive.
//
// Grammar (one record per line, fields space-separated, trailing fields may
// contain spaces):
//
//	MODULE <os> <arch> <debug_id> <filename...>
//	FILE <id> <path...>
//	FUNC <addr_hex> <size_hex> <param_size_hex> <name...>
//	<addr_hex> <size_hex> <line> <file_id>        (line record for the preceding FUNC/PUBLIC)
//	INLINE <depth> <file_id> <line> <name...>      (inline entry for the preceding FUNC)
//	PUBLIC <addr_hex> <param_size_hex> <name...>
func (p *Parser) ParseSym(_ context.Context, _, debugID string, data []byte) (symcache.Symcache, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "MODULE ") {
		return nil, &symcache.ParseSymFileError{
			ReasonCode: "no_module_line",
			Err:        fmt.Errorf("sym file missing MODULE header"),
		}
	}

	moduleFields := strings.Fields(lines[0])
	if len(moduleFields) < 5 {
		return nil, &symcache.ParseSymFileError{
			ReasonCode: "bad_module_line",
			Err:        fmt.Errorf("MODULE line has too few fields"),
		}
	}
	moduleDebugID := moduleFields[3]
	moduleFilename := strings.Join(moduleFields[4:], " ")

	if debugID != "" && !strings.EqualFold(normalizeDebugID(moduleDebugID), normalizeDebugID(debugID)) {
		return nil, &symcache.BadDebugIDError{DebugID: debugID}
	}

	files := map[string]string{}
	var records []Record
	var current *Record

	flush := func() {
		if current != nil {
			sort.Slice(current.Lines, func(i, j int) bool { return current.Lines[i].Addr < current.Lines[j].Addr })
			records = append(records, *current)
			current = nil
		}
	}

	for lineNo, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "FILE":
			if len(fields) < 3 {
				return nil, malformed(lineNo, "FILE")
			}
			files[fields[1]] = strings.Join(fields[2:], " ")

		case "FUNC", "PUBLIC":
			flush()
			if len(fields) < 4 {
				return nil, malformed(lineNo, fields[0])
			}
			addr, err := parseHex(fields[1])
			if err != nil {
				return nil, malformed(lineNo, fields[0])
			}
			var size uint64
			var name string
			if fields[0] == "FUNC" {
				size, err = parseHex(fields[2])
				if err != nil {
					return nil, malformed(lineNo, fields[0])
				}
				name = strings.Join(fields[3:], " ")
			} else {
				// PUBLIC has no size; treat as a single-address record.
				size = 1
				name = strings.Join(fields[2:], " ")
			}
			current = &Record{Addr: addr, Size: size, Symbol: name}

		case "INLINE":
			if current == nil || len(fields) < 5 {
				return nil, malformed(lineNo, "INLINE")
			}
			line, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, malformed(lineNo, "INLINE")
			}
			current.InlineChain = append([]InlineRecord{{
				Symbol: strings.Join(fields[4:], " "),
				File:   files[fields[2]],
				Line:   uint32(line),
			}}, current.InlineChain...)

		default:
			// A bare line record: addr size line file_id
			if current == nil || len(fields) != 4 {
				return nil, malformed(lineNo, "LINE")
			}
			addr, err1 := parseHex(fields[0])
			size, err2 := parseHex(fields[1])
			lineNum, err3 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, malformed(lineNo, "LINE")
			}
			current.Lines = append(current.Lines, LineEntry{
				Addr: addr,
				Size: size,
				Line: uint32(lineNum),
				File: files[fields[3]],
			})
		}
	}
	flush()

	sort.Slice(records, func(i, j int) bool { return records[i].Addr < records[j].Addr })

	return &Archive{
		ModuleDebugID:       moduleDebugID,
		ModuleDebugFilename: moduleFilename,
		Records:             records,
	}, nil
}

// BytesToSymcache deserializes an Archive previously produced by
// SymcacheToBytes.
func (p *Parser) BytesToSymcache(data []byte) (symcache.Symcache, error) {
	var a Archive
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("breakpad: decode symcache: %w", err)
	}
	return &a, nil
}

// SymcacheToBytes serializes an Archive for caching.
func (p *Parser) SymcacheToBytes(s symcache.Symcache) ([]byte, error) {
	a, ok := s.(*Archive)
	if !ok {
		return nil, fmt.Errorf("breakpad: not a breakpad archive: %T", s)
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("breakpad: encode symcache: %w", err)
	}
	return buf.Bytes(), nil
}

// GetModuleFilename reads the MODULE header line's filename field. It falls
// back to defaultFilename if the header is missing or malformed, since a
// sym file that can't even be header-parsed still shouldn't block the
// download-and-cache path from reporting a sensible module name.
func (p *Parser) GetModuleFilename(raw []byte, defaultFilename string) string {
	firstLine, _, _ := strings.Cut(string(raw), "\n")
	fields := strings.Fields(firstLine)
	if len(fields) >= 5 && fields[0] == "MODULE" {
		return strings.Join(fields[4:], " ")
	}
	return defaultFilename
}

func normalizeDebugID(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", ""))
}

func parseHex(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

func malformed(lineNo int, kind string) error {
	return &symcache.ParseSymFileError{
		ReasonCode: "malformed_" + strings.ToLower(kind) + "_record",
		Err:        fmt.Errorf("malformed %s record at line %d", kind, lineNo+2),
	}
}
