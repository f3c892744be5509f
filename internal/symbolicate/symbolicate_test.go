package symbolicate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/honeycombio/crash-symbolicator/internal/acquire"
	"github.com/honeycombio/crash-symbolicator/internal/cache"
	"github.com/honeycombio/crash-symbolicator/internal/debugstats"
	"github.com/honeycombio/crash-symbolicator/internal/metrics"
	"github.com/honeycombio/crash-symbolicator/internal/model"
	"github.com/honeycombio/crash-symbolicator/internal/store"
	"github.com/honeycombio/crash-symbolicator/internal/symcache"
)

// memDownloader serves fixed sym bytes for a single known module and
// ErrFileNotFound for everything else.
type memDownloader struct {
	debugFilename, debugID string
	data                   []byte
}

func (d *memDownloader) Get(_ context.Context, debugFilename, debugID, _ string) ([]byte, error) {
	if debugFilename == d.debugFilename && debugID == d.debugID {
		return d.data, nil
	}
	return nil, store.ErrFileNotFound
}

type memCache struct {
	data map[string]cache.Entry
}

func newMemCache() *memCache { return &memCache{data: make(map[string]cache.Entry)} }

func (m *memCache) Get(key string) (cache.Entry, error) {
	e, ok := m.data[key]
	if !ok {
		return cache.Entry{}, cache.ErrCacheMiss
	}
	return e, nil
}

func (m *memCache) Set(key string, e cache.Entry) error {
	m.data[key] = e
	return nil
}

// fixedArchive resolves offset 0x100 to a three-deep inline chain and every
// other offset to nothing, exercising the innermost-inline-first contract of
// symcache.Symcache.
type fixedArchive struct{}

func (fixedArchive) Lookup(offset uint64) []symcache.SourceLocation {
	if offset != 0x100 {
		return nil
	}
	return []symcache.SourceLocation{
		{Symbol: "Inner::Inlined", SymAddr: 0x100, FullPath: "inner.cpp", Line: 5},
		{Symbol: "Middle::Inlined", SymAddr: 0x100, FullPath: "middle.cpp", Line: 9},
		{Symbol: "Outer::Function", SymAddr: 0x100, FullPath: "outer.cpp", Line: 20},
	}
}

type fixedParser struct{}

func (fixedParser) ParseSym(context.Context, string, string, []byte) (symcache.Symcache, error) {
	return fixedArchive{}, nil
}
func (fixedParser) BytesToSymcache([]byte) (symcache.Symcache, error) { return fixedArchive{}, nil }
func (fixedParser) SymcacheToBytes(symcache.Symcache) ([]byte, error) { return []byte("x"), nil }
func (fixedParser) GetModuleFilename(_ []byte, defaultFilename string) string {
	return defaultFilename
}

func newTestSymbolicator(t *testing.T, downloader store.Downloader) *Symbolicator {
	t.Helper()
	meter := metric.NewMeterProvider().Meter("test")
	rec, err := metrics.New(meter)
	require.NoError(t, err)
	acq := acquire.New(downloader, newMemCache(), fixedParser{}, rec, zap.NewNop())
	return New(acq, rec)
}

func TestSymbolicate_DownloadResolvesFunctionAndInlines(t *testing.T) {
	dl := &memDownloader{debugFilename: "xul.pdb", debugID: "ABC123", data: []byte("sym")}
	s := newTestSymbolicator(t, dl)

	job := model.Job{
		MemoryMap: []model.Module{{DebugFilename: "xul.pdb", DebugID: "ABC123"}},
		Stacks:    [][]model.Frame{{{ModuleIndex: 0, ModuleOffset: 0x100}}},
	}

	results, err := s.Symbolicate(context.Background(), []model.Job{job}, debugstats.New())
	require.NoError(t, err)
	require.Len(t, results, 1)
	frame := results[0].Stacks[0][0]

	assert.Equal(t, "Outer::Function", frame.Function)
	assert.Equal(t, "outer.cpp", frame.File)
	require.NotNil(t, frame.Line)
	assert.EqualValues(t, 20, *frame.Line)
	require.Len(t, frame.Inlines, 2)
	assert.Equal(t, "Inner::Inlined", frame.Inlines[0].Function)
	assert.Equal(t, "Middle::Inlined", frame.Inlines[1].Function)

	found := results[0].FoundModules["xul.pdb/ABC123"]
	require.NotNil(t, found)
	assert.True(t, *found)
}

func TestSymbolicate_UnknownModuleIndexFallsBack(t *testing.T) {
	dl := &memDownloader{}
	s := newTestSymbolicator(t, dl)

	job := model.Job{
		MemoryMap: []model.Module{{DebugFilename: "xul.pdb", DebugID: "ABC123"}},
		Stacks:    [][]model.Frame{{{ModuleIndex: -1, ModuleOffset: 0x100}}},
	}

	results, err := s.Symbolicate(context.Background(), []model.Job{job}, debugstats.New())
	require.NoError(t, err)
	frame := results[0].Stacks[0][0]
	assert.Equal(t, "<unknown>", frame.Module)
	assert.Empty(t, frame.Function)
	assert.Equal(t, "0x100", frame.ModuleOffset)
}

func TestSymbolicate_DownloadMissMarksModuleNotFound(t *testing.T) {
	dl := &memDownloader{debugFilename: "other.pdb", debugID: "XYZ"}
	s := newTestSymbolicator(t, dl)

	job := model.Job{
		MemoryMap: []model.Module{{DebugFilename: "xul.pdb", DebugID: "ABC123"}},
		Stacks:    [][]model.Frame{{{ModuleIndex: 0, ModuleOffset: 0x100}}},
	}

	results, err := s.Symbolicate(context.Background(), []model.Job{job}, debugstats.New())
	require.NoError(t, err)
	frame := results[0].Stacks[0][0]
	assert.Empty(t, frame.Function)
	assert.Equal(t, "xul.pdb", frame.Module)

	found := results[0].FoundModules["xul.pdb/ABC123"]
	require.NotNil(t, found)
	assert.False(t, *found)
}

func TestSymbolicate_EmptyModuleIdentityLeavesFoundModulesNil(t *testing.T) {
	dl := &memDownloader{}
	s := newTestSymbolicator(t, dl)

	job := model.Job{
		MemoryMap: []model.Module{{DebugFilename: "", DebugID: ""}},
		Stacks:    [][]model.Frame{{{ModuleIndex: 0, ModuleOffset: 0x10}}},
	}

	results, err := s.Symbolicate(context.Background(), []model.Job{job}, debugstats.New())
	require.NoError(t, err)
	found, ok := results[0].FoundModules["/"]
	require.True(t, ok)
	assert.Nil(t, found)
}

func TestSymbolicate_OneModuleAcrossMultipleJobsResolvesOnce(t *testing.T) {
	dl := &memDownloader{debugFilename: "xul.pdb", debugID: "ABC123", data: []byte("sym")}
	s := newTestSymbolicator(t, dl)

	job := model.Job{
		MemoryMap: []model.Module{{DebugFilename: "xul.pdb", DebugID: "ABC123"}},
		Stacks:    [][]model.Frame{{{ModuleIndex: 0, ModuleOffset: 0x100}}},
	}

	stats := debugstats.New()
	results, err := s.Symbolicate(context.Background(), []model.Job{job, job}, stats)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Outer::Function", results[0].Stacks[0][0].Function)
	assert.Equal(t, "Outer::Function", results[1].Stacks[0][0].Function)
	// Every Acquire call counts one cache lookup.
	assert.Equal(t, 1.0, stats.Get("cache_lookups.count", nil))
}

// errDownloader always fails with an error outside the documented
// FileNotFound/ErrorFileNotFound kinds, simulating a downloader invariant
// violation.
type errDownloader struct{}

func (errDownloader) Get(context.Context, string, string, string) ([]byte, error) {
	return nil, errors.New("connection reset by peer")
}

func TestSymbolicate_UnexpectedAcquireErrorPropagates(t *testing.T) {
	s := newTestSymbolicator(t, errDownloader{})

	job := model.Job{
		MemoryMap: []model.Module{{DebugFilename: "xul.pdb", DebugID: "ABC123"}},
		Stacks:    [][]model.Frame{{{ModuleIndex: 0, ModuleOffset: 0x100}}},
	}

	results, err := s.Symbolicate(context.Background(), []model.Job{job}, debugstats.New())
	require.Error(t, err)
	assert.Nil(t, results)
}

func TestHexStringFormatsNegativeNumbers(t *testing.T) {
	assert.Equal(t, "0x100", hexString(256))
	assert.Equal(t, "-0x1", hexString(-1))
	assert.Equal(t, "0x0", hexString(0))
}

func TestParseHexIntRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 256, -1, -4096} {
		v, ok := parseHexInt(hexString(n))
		require.True(t, ok)
		assert.Equal(t, n, v)
	}
}
