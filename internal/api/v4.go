package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/honeycombio/crash-symbolicator/internal/debugstats"
	"github.com/honeycombio/crash-symbolicator/internal/model"
)

type v4Response struct {
	SymbolicatedStacks [][]string `json:"symbolicatedStacks"`
	KnownModules       []*bool    `json:"knownModules"`
}

// HandleV4 implements the legacy single-job endpoint: the request body IS
// the job (no envelope), and the response projects a JobResult down to
// parallel arrays instead of the v5 structured frame objects.
func (c *Core) HandleV4(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stopAPITimer := c.metrics.APITimer(ctx, "v4")
	defer stopAPITimer()
	c.metrics.Pageview(ctx, "/symbolicate/v4", r.Method)

	payload, err := decodePayload(r)
	if err != nil {
		c.metrics.RequestError(ctx, "bad_json")
		writeError(w, http.StatusBadRequest, "payload is not valid JSON")
		return
	}

	jobs, err := c.validateAndMeasureJobs(ctx, []any{payload}, "v4")
	if err != nil {
		var bre *badRequestError
		if errors.As(err, &bre) {
			writeError(w, http.StatusBadRequest, bre.msg)
			return
		}
		c.logger.Error("unexpected error validating job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	stats := debugstats.New()
	results, err := c.symbolicator.Symbolicate(ctx, jobs, stats)
	if err != nil {
		c.logger.Error("unexpected error symbolicating job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	result := results[0]
	job := jobs[0]

	symbolicatedStacks := make([][]string, len(result.Stacks))
	numSymbols := 0
	for si, stack := range result.Stacks {
		line := make([]string, len(stack))
		for fi, frame := range stack {
			line[fi] = formatFrameV4(frame)
		}
		symbolicatedStacks[si] = line
		numSymbols += len(stack)
	}

	knownModules := make([]*bool, len(job.MemoryMap))
	for i, mod := range job.MemoryMap {
		knownModules[i] = result.FoundModules[mod.Key()]
	}

	c.logger.Info("symbolicate request",
		zap.String("version", "v4"),
		zap.Int("jobs", 1),
		zap.Int("symbols", numSymbols),
	)

	writeJSON(w, http.StatusOK, v4Response{
		SymbolicatedStacks: symbolicatedStacks,
		KnownModules:       knownModules,
	})
}

// formatFrameV4 renders a resolved frame the way v4 clients expect:
// "function (in module)", falling back to the hex offset when no function
// name was resolved.
func formatFrameV4(f *model.FrameResult) string {
	function := f.Function
	if function == "" {
		function = f.ModuleOffset
	}
	return function + " (in " + f.Module + ")"
}
