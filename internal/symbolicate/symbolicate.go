// Package symbolicate implements the Symbolicator (spec §4.D): given a
// batch of jobs, build the flat frame list, resolve each distinct module at
// most once, and fill in function/file/line/inlines on every frame that
// shares that module.
package symbolicate

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/honeycombio/crash-symbolicator/internal/acquire"
	"github.com/honeycombio/crash-symbolicator/internal/debugstats"
	"github.com/honeycombio/crash-symbolicator/internal/metrics"
	"github.com/honeycombio/crash-symbolicator/internal/model"
)

// frameRef is one flat-list entry: the module a frame resolved against, and
// a pointer to the shared FrameResult so Pass 2 mutates what the caller
// will serialize. This is the arena-by-pointer translation of the spec's
// "shared mutable frame output" requirement (§4.D, §9): frame results are
// allocated once in Pass 1 and referenced here and from JobResult.Stacks.
type frameRef struct {
	module model.Module
	frame  *model.FrameResult
}

// Symbolicator orchestrates batches of jobs against an Acquirer.
type Symbolicator struct {
	acquirer *acquire.Acquirer
	metrics  *metrics.Recorder
}

// New returns a Symbolicator wired to its Acquirer.
func New(acquirer *acquire.Acquirer, m *metrics.Recorder) *Symbolicator {
	return &Symbolicator{acquirer: acquirer, metrics: m}
}

// Symbolicate resolves every job's frames and returns one JobResult per
// job, in input order. A non-nil error means a module's acquisition hit a
// parser or downloader invariant violation outside the documented
// not-found/parse-failure kinds (spec §7); callers must surface it as an
// internal error rather than return the partial results.
func (s *Symbolicator) Symbolicate(ctx context.Context, jobs []model.Job, stats *debugstats.Stats) ([]model.JobResult, error) {
	results := make([]model.JobResult, len(jobs))
	var frames []frameRef

	// Pass 1: build the flat frame list and per-job result placeholders.
	for ji, job := range jobs {
		stacksOut := make([][]*model.FrameResult, len(job.Stacks))
		for si, stack := range job.Stacks {
			stackOut := make([]*model.FrameResult, len(stack))
			for fi, frame := range stack {
				var mod model.Module
				if frame.ModuleIndex >= 0 && frame.ModuleIndex < len(job.MemoryMap) {
					mod = job.MemoryMap[frame.ModuleIndex]
				}

				moduleName := mod.DebugFilename
				if moduleName == "" {
					moduleName = "<unknown>"
				}

				fr := &model.FrameResult{
					Frame:        fi,
					Module:       moduleName,
					ModuleOffset: hexString(frame.ModuleOffset),
				}
				stackOut[fi] = fr
				frames = append(frames, frameRef{module: mod, frame: fr})
			}
			stacksOut[si] = stackOut
		}
		results[ji] = model.JobResult{Stacks: stacksOut}
	}

	// Pass 2: stable-sort by (debug_filename, debug_id), then resolve each
	// distinct module at most once.
	sort.SliceStable(frames, func(i, j int) bool {
		a, b := frames[i].module, frames[j].module
		if a.DebugFilename != b.DebugFilename {
			return a.DebugFilename < b.DebugFilename
		}
		return a.DebugID < b.DebugID
	})

	moduleLookup := make(map[model.Module]bool)

	for i := 0; i < len(frames); {
		j := i + 1
		for j < len(frames) && frames[j].module == frames[i].module {
			j++
		}
		mod := frames[i].module
		group := frames[i:j]
		i = j

		if mod.DebugFilename == "" || mod.DebugID == "" {
			continue
		}

		result, err := s.acquirer.Acquire(ctx, mod.DebugFilename, mod.DebugID, stats)
		if err != nil {
			return nil, err
		}
		if result == nil {
			moduleLookup[mod] = false
			continue
		}
		moduleLookup[mod] = true

		for _, ref := range group {
			fr := ref.frame
			fr.Module = result.ModuleFilename

			offset, ok := parseHexInt(fr.ModuleOffset)
			if !ok || offset < 0 {
				continue
			}

			locs := result.Symcache.Lookup(uint64(offset))
			if len(locs) == 0 {
				continue
			}

			outer := locs[len(locs)-1]
			fr.Function = outer.Symbol
			fr.FunctionOffset = hexString(offset - int(outer.SymAddr))
			if outer.FullPath != "" {
				fr.File = outer.FullPath
			}
			if outer.Line != 0 && fr.File != "" {
				line := outer.Line
				fr.Line = &line
			}

			if len(locs) > 1 {
				inlines := make([]model.Inline, 0, len(locs)-1)
				for _, loc := range locs[:len(locs)-1] {
					inl := model.Inline{Function: loc.Symbol}
					if loc.FullPath != "" {
						inl.File = loc.FullPath
					}
					if loc.Line != 0 && inl.File != "" {
						line := loc.Line
						inl.Line = &line
					}
					inlines = append(inlines, inl)
				}
				fr.Inlines = inlines
			}
		}
	}

	// Pass 3: assemble found_modules per job.
	for ji, job := range jobs {
		found := make(map[string]*bool, len(job.MemoryMap))
		for _, mod := range job.MemoryMap {
			if v, ok := moduleLookup[mod]; ok {
				vv := v
				found[mod.Key()] = &vv
			} else {
				found[mod.Key()] = nil
			}
		}
		results[ji].FoundModules = found
	}

	s.metrics.FramesCount(ctx, len(frames))

	return results, nil
}

// hexString formats n as a lowercase 0x-prefixed hex string, matching
// Python's hex() including its "-0x.." form for negative numbers.
func hexString(n int) string {
	if n < 0 {
		return "-0x" + strconv.FormatInt(int64(-n), 16)
	}
	return "0x" + strconv.FormatInt(int64(n), 16)
}

// parseHexInt is the inverse of hexString.
func parseHexInt(s string) (int, bool) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if !strings.HasPrefix(s, "0x") {
		return 0, false
	}
	v, err := strconv.ParseInt(s[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return int(v), true
}
