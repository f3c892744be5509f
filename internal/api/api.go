// Package api adapts HTTP requests to the symbolicate core and renders its
// results as the v4 and v5 wire formats. Both versions share payload
// decoding, job validation, and error-to-status mapping. v4 takes exactly one
// bare job; v5 also accepts a {"jobs": [...]} envelope capped at MaxJobs and
// can add a debug stanza. They also project a JobResult onto JSON
// differently (spec §4.E).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/honeycombio/crash-symbolicator/internal/debugstats"
	"github.com/honeycombio/crash-symbolicator/internal/metrics"
	"github.com/honeycombio/crash-symbolicator/internal/model"
	"github.com/honeycombio/crash-symbolicator/internal/symbolicate"
	"github.com/honeycombio/crash-symbolicator/internal/validate"
)

// MaxJobs caps the number of jobs accepted in a single request.
const MaxJobs = 10

// Core holds the collaborators both API versions share.
type Core struct {
	symbolicator *symbolicate.Symbolicator
	metrics      *metrics.Recorder
	logger       *zap.Logger
}

// NewCore wires a Core to its dependencies.
func NewCore(s *symbolicate.Symbolicator, m *metrics.Recorder, logger *zap.Logger) *Core {
	return &Core{symbolicator: s, metrics: m, logger: logger}
}

// Register mounts the v4 and v5 endpoints on mux.
func Register(mux *http.ServeMux, core *Core) {
	mux.HandleFunc("/symbolicate/v4", core.HandleV4)
	mux.HandleFunc("/symbolicate", core.HandleV4)
	mux.HandleFunc("/symbolicate/v5", core.HandleV5)
}

// badRequestError carries a client-facing message for a 400 response. It is
// never logged as an application error; it's the expected result of an
// adversarial or malformed payload.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// decodePayload reads the whole request body as JSON into a loosely-typed
// value, matching the upstream behavior of accepting either a single job
// object or a {"jobs": [...]} envelope.
func decodePayload(r *http.Request) (any, error) {
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// jobsFromPayload extracts the list of raw job values from a decoded
// payload. A bare job object is treated as a one-job batch.
func jobsFromPayload(payload any) []any {
	m, ok := payload.(map[string]any)
	if !ok {
		return []any{payload}
	}
	rawJobs, ok := m["jobs"]
	if !ok {
		return []any{payload}
	}
	list, ok := rawJobs.([]any)
	if !ok {
		return nil
	}
	return list
}

// validateAndMeasureJobs validates every raw job, records per-version stack
// counts as it goes, and returns the typed job list. The returned error is
// always a *badRequestError once any per-job validation fails; the request
// error metric is recorded alongside.
func (c *Core) validateAndMeasureJobs(ctx context.Context, rawJobs []any, version string) ([]model.Job, error) {
	jobs := make([]model.Job, len(rawJobs))

	for i, rawJob := range rawJobs {
		jobMap, ok := rawJob.(map[string]any)
		if !ok {
			c.metrics.RequestError(ctx, "invalid_job")
			return nil, &badRequestError{msg: fmt.Sprintf("job %d is invalid", i)}
		}

		rawStacks, ok := jobMap["stacks"]
		if !ok {
			c.metrics.RequestError(ctx, "invalid_job")
			return nil, &badRequestError{msg: fmt.Sprintf("job %d is invalid: no stacks specified", i)}
		}

		rawModules, ok := jobMap["memoryMap"]
		if !ok {
			c.metrics.RequestError(ctx, "invalid_job")
			return nil, &badRequestError{msg: fmt.Sprintf("job %d is invalid: no memoryMap specified", i)}
		}

		modules, err := validate.Modules(rawModules)
		if err != nil {
			c.metrics.RequestError(ctx, "invalid_modules")
			var ime *validate.InvalidModulesError
			errors.As(err, &ime)
			return nil, &badRequestError{msg: fmt.Sprintf("job %d has invalid modules: %s", i, ime.Msg)}
		}

		stacks, err := validate.Stacks(rawStacks, len(modules))
		if err != nil {
			c.metrics.RequestError(ctx, "invalid_stacks")
			var ise *validate.InvalidStacksError
			errors.As(err, &ise)
			return nil, &badRequestError{msg: fmt.Sprintf("job %d has invalid stacks: %s", i, ise.Msg)}
		}

		c.metrics.StacksCount(ctx, version, len(stacks))
		jobs[i] = model.Job{Stacks: stacks, MemoryMap: modules}
	}

	return jobs, nil
}

// addDebugStanza fills in the aggregate fields of the debug tree that can
// only be computed once every job has been symbolicated: module counts,
// per-module stack counts, and sums of the per-module download/parse/save
// timings the acquirer recorded as it went.
func addDebugStanza(stats *debugstats.Stats, results []model.JobResult) {
	stacksPerModule := make(map[string]int)
	for _, result := range results {
		for key, found := range result.FoundModules {
			if found != nil {
				stacksPerModule[key]++
			}
		}
	}

	total := 0
	for key, count := range stacksPerModule {
		stats.Set([]string{"modules", "stacks_per_module", key}, count)
		total += count
	}
	stats.Set("modules.count", total)

	stats.Set([]string{"downloads", "size"}, sumSubtree(stats, []string{"downloads", "size_per_module"}))
	stats.Set([]string{"downloads", "time"}, sumSubtree(stats, []string{"downloads", "time_per_module"}))
	stats.Set([]string{"parse_sym", "time"}, sumSubtree(stats, []string{"parse_sym", "time_per_module"}))
	stats.Set([]string{"save_symcache", "time"}, sumSubtree(stats, []string{"save_symcache", "time_per_module"}))

	stats.Incr("cache_lookups.count", 0)
	stats.Incr("cache_lookups.time", 0)
	stats.Incr("downloads.count", 0)
}

func sumSubtree(stats *debugstats.Stats, key []string) float64 {
	v := stats.Get(key, nil)
	m, ok := v.(map[string]any)
	if !ok {
		return 0
	}
	var total float64
	for _, leaf := range m {
		total += debugstats.ToFloat(leaf)
	}
	return total
}

// truthy mirrors the loose boolean parsing of an HTTP header value: present
// and not one of the well-known false spellings means true.
func truthy(v string) bool {
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
