package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/honeycombio/crash-symbolicator/internal/debugstats"
	"github.com/honeycombio/crash-symbolicator/internal/model"
)

type v5Response struct {
	Results []model.JobResult `json:"results"`
	Debug   map[string]any    `json:"debug,omitempty"`
}

// HandleV5 implements POST /symbolicate/v5: a batch of jobs in, one result
// per job out, with an optional debug stanza when the Debug header is set.
func (c *Core) HandleV5(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stopAPITimer := c.metrics.APITimer(ctx, "v5")
	defer stopAPITimer()
	c.metrics.Pageview(ctx, "/symbolicate/v5", r.Method)

	payload, err := decodePayload(r)
	if err != nil {
		c.metrics.RequestError(ctx, "bad_json")
		writeError(w, http.StatusBadRequest, "payload is not valid JSON")
		return
	}

	rawJobs := jobsFromPayload(payload)
	if len(rawJobs) > MaxJobs {
		c.metrics.RequestError(ctx, "too_many_jobs")
		writeError(w, http.StatusBadRequest,
			"please limit number of jobs in a single request")
		return
	}
	c.metrics.JobsCount(ctx, "v5", len(rawJobs))

	isDebug := truthy(r.Header.Get("Debug"))

	stats := debugstats.New()
	stopStats := stats.Timer("time")

	jobs, err := c.validateAndMeasureJobs(ctx, rawJobs, "v5")
	if err != nil {
		stopStats()
		var bre *badRequestError
		if errors.As(err, &bre) {
			writeError(w, http.StatusBadRequest, bre.msg)
			return
		}
		c.logger.Error("unexpected error validating jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	results, err := c.symbolicator.Symbolicate(ctx, jobs, stats)
	stopStats()
	if err != nil {
		c.logger.Error("unexpected error symbolicating jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	response := v5Response{Results: results}
	if isDebug {
		addDebugStanza(stats, results)
		response.Debug = stats.Data()
	}

	numSymbols := 0
	for _, job := range jobs {
		for _, stack := range job.Stacks {
			numSymbols += len(stack)
		}
	}
	c.logger.Info("symbolicate request",
		zap.String("version", "v5"),
		zap.Int("jobs", len(jobs)),
		zap.Int("symbols", numSymbols),
		zap.Any("time", stats.Get("time", nil)),
	)

	writeJSON(w, http.StatusOK, response)
}
