// Package acquire implements the SymcacheAcquirer (spec §4.C): given a
// module identity, return a ready-to-use symcache plus the module filename
// chosen by the parser, going through cache -> download -> parse ->
// cache-set. The documented failure kinds (empty identity, FileNotFound,
// ErrorFileNotFound, BadDebugIDError, ParseSymFileError) are recovered
// locally -- a nil Result with a nil error simply means "this module could
// not be resolved," which the symbolicator turns into a `false`
// found_modules entry. Anything else is a parser/downloader invariant
// violation outside those known kinds and is returned as an error, which
// callers must propagate rather than swallow (spec §7).
package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/honeycombio/crash-symbolicator/internal/cache"
	"github.com/honeycombio/crash-symbolicator/internal/debugstats"
	"github.com/honeycombio/crash-symbolicator/internal/metrics"
	"github.com/honeycombio/crash-symbolicator/internal/store"
	"github.com/honeycombio/crash-symbolicator/internal/symcache"
)

// Result is what a successful Acquire returns: a ready symcache and the
// filename the parser determined the module actually has (which may differ
// from the requested debug_filename on Windows PE modules).
type Result struct {
	Symcache       symcache.Symcache
	ModuleFilename string
}

// Acquirer resolves (debug_filename, debug_id) pairs to symcaches.
type Acquirer struct {
	downloader store.Downloader
	cache      cache.Cache
	parser     symcache.Parser
	metrics    *metrics.Recorder
	logger     *zap.Logger
}

// New returns an Acquirer wired to its collaborators. These are constructed
// once per process; all per-request state lives in the debugstats.Stats
// passed to Acquire.
func New(downloader store.Downloader, c cache.Cache, parser symcache.Parser, m *metrics.Recorder, logger *zap.Logger) *Acquirer {
	return &Acquirer{downloader: downloader, cache: c, parser: parser, metrics: m, logger: logger}
}

// Acquire resolves debugFilename/debugID to a symcache, following the
// cache -> download -> parse -> cache-set pipeline. A nil Result with a nil
// error means the module could not be resolved (empty identity, cache miss
// + download failure, or parse failure) and the caller should degrade the
// frame. A non-nil error means an unexpected downloader or parser failure
// outside those documented kinds, which the caller must propagate.
func (a *Acquirer) Acquire(ctx context.Context, debugFilename, debugID string, stats *debugstats.Stats) (*Result, error) {
	if debugFilename == "" || debugID == "" {
		return nil, nil
	}

	cacheKey := strings.ReplaceAll(debugFilename, "/", "") + "/" +
		strings.ReplaceAll(strings.ToUpper(debugID), "/", "") + ".symc"
	moduleKey := debugFilename + "/" + debugID

	stats.Incr("cache_lookups.count", 1)
	lookupStop := stats.Timer("cache_lookups.time")
	entry, err := a.cache.Get(cacheKey)
	lookupStop()

	if err == nil {
		stats.Incr("cache_lookups.hits", 1)
		sc, decodeErr := a.parser.BytesToSymcache(entry.Symcache)
		if decodeErr == nil {
			return &Result{Symcache: sc, ModuleFilename: entry.Filename}, nil
		}
		a.logger.Warn("cached symcache failed to decode, re-downloading",
			zap.String("module", moduleKey), zap.Error(decodeErr))
	} else {
		stats.Incr("cache_lookups.hits", 0)
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.logger.Warn("cache lookup error", zap.String("module", moduleKey), zap.Error(err))
		}
	}

	symFilename := symFilenameFor(debugFilename)

	stats.Incr("downloads.count", 1)
	downloadStart := time.Now()
	raw, err := a.downloader.Get(ctx, debugFilename, debugID, symFilename)
	downloadElapsed := time.Since(downloadStart).Seconds()

	if err != nil {
		stats.Incr([]string{"downloads", "fail_time_per_module", moduleKey}, downloadElapsed)
		if errors.Is(err, store.ErrFileNotFound) || errors.Is(err, store.ErrErrorFileNotFound) {
			a.logger.Debug("sym file not found", zap.String("module", moduleKey), zap.Error(err))
			return nil, nil
		}
		// An error outside the documented FileNotFound/ErrorFileNotFound
		// kinds is a downloader invariant violation, not a module
		// resolution failure -- it must propagate (spec §7).
		a.logger.Error("unexpected downloader error", zap.String("module", moduleKey), zap.Error(err))
		return nil, fmt.Errorf("acquire: unexpected downloader error for %s: %w", moduleKey, err)
	}

	stats.Incr([]string{"downloads", "size_per_module", moduleKey}, float64(len(raw)))
	stats.Incr([]string{"downloads", "time_per_module", moduleKey}, downloadElapsed)

	moduleFilename := a.parser.GetModuleFilename(raw, debugFilename)

	parseStop := a.metrics.ParseSymTimer(ctx)
	parseStart := time.Now()
	sc, parseErr := a.parser.ParseSym(ctx, debugFilename, debugID, raw)
	parseElapsed := time.Since(parseStart).Seconds()
	parseStop()

	if parseErr != nil {
		stats.Incr([]string{"parse_sym", "fail_time_per_module", moduleKey}, parseElapsed)

		var badID *symcache.BadDebugIDError
		var parseFileErr *symcache.ParseSymFileError
		switch {
		case errors.As(parseErr, &badID):
			a.logger.Error("debug_id parse error", zap.String("debug_id", debugID), zap.Error(parseErr))
			a.metrics.ParseSymError(ctx, "bad_debug_id")
			return nil, nil
		case errors.As(parseErr, &parseFileErr):
			a.logger.Error("sym file parse error",
				zap.String("module", moduleKey), zap.Error(parseErr))
			a.metrics.ParseSymError(ctx, parseFileErr.ReasonCode)
			return nil, nil
		default:
			// A parse error outside the documented BadDebugIDError/
			// ParseSymFileError kinds is a parser invariant violation; it
			// must propagate (spec §7), not degrade the frame silently.
			a.logger.Error("unexpected sym parse error", zap.String("module", moduleKey), zap.Error(parseErr))
			return nil, fmt.Errorf("acquire: unexpected parse error for %s: %w", moduleKey, parseErr)
		}
	}

	stats.Incr([]string{"parse_sym", "time_per_module", moduleKey}, parseElapsed)

	saveStop := stats.Timer([]string{"save_symcache", "time_per_module", moduleKey})
	data, err := a.parser.SymcacheToBytes(sc)
	saveStop()
	if err != nil {
		a.logger.Error("failed to serialize symcache", zap.String("module", moduleKey), zap.Error(err))
		return &Result{Symcache: sc, ModuleFilename: moduleFilename}, nil
	}

	if err := a.cache.Set(cacheKey, cache.Entry{Symcache: data, Filename: moduleFilename}); err != nil {
		a.logger.Warn("failed to cache symcache", zap.String("module", moduleKey), zap.Error(err))
	}

	return &Result{Symcache: sc, ModuleFilename: moduleFilename}, nil
}

func symFilenameFor(debugFilename string) string {
	if strings.HasSuffix(debugFilename, ".pdb") {
		return strings.TrimSuffix(debugFilename, ".pdb") + ".sym"
	}
	return debugFilename + ".sym"
}
