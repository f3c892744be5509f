// Package metrics wraps an OpenTelemetry meter with exactly the
// instruments spec.md §6 names, modeled on the teacher's telemetryBuilder +
// metric.WithAttributeSet pattern (dsymprocessor/symbolicator.go,
// logs_processor.go) but hand-wired instead of mdatagen-generated, since
// this is a standalone service rather than a collector component.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records every metric named in spec.md §6.
type Recorder struct {
	pageview       metric.Int64Counter
	requestError   metric.Int64Counter
	parseSymError  metric.Int64Counter
	jobsCount      metric.Int64Histogram
	stacksCount    metric.Int64Histogram
	framesCount    metric.Int64Histogram
	apiDuration    metric.Float64Histogram
	parseSymDurCtr metric.Float64Histogram
}

// New builds a Recorder from the given meter.
func New(meter metric.Meter) (*Recorder, error) {
	var r Recorder
	var err error

	if r.pageview, err = meter.Int64Counter("pageview"); err != nil {
		return nil, err
	}
	if r.requestError, err = meter.Int64Counter("symbolicate.request_error"); err != nil {
		return nil, err
	}
	if r.parseSymError, err = meter.Int64Counter("symbolicate.parse_sym_file.error"); err != nil {
		return nil, err
	}
	if r.jobsCount, err = meter.Int64Histogram("symbolicate.jobs_count"); err != nil {
		return nil, err
	}
	if r.stacksCount, err = meter.Int64Histogram("symbolicate.stacks_count"); err != nil {
		return nil, err
	}
	if r.framesCount, err = meter.Int64Histogram("symbolicate.frames_count"); err != nil {
		return nil, err
	}
	if r.apiDuration, err = meter.Float64Histogram("symbolicate.api",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.parseSymDurCtr, err = meter.Float64Histogram("symbolicate.parse_sym_file.parse",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return &r, nil
}

// Pageview increments pageview{path,method}.
func (r *Recorder) Pageview(ctx context.Context, path, method string) {
	r.pageview.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("method", method),
	))
}

// RequestError increments symbolicate.request_error{reason}.
func (r *Recorder) RequestError(ctx context.Context, reason string) {
	r.requestError.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// ParseSymError increments symbolicate.parse_sym_file.error{reason}.
func (r *Recorder) ParseSymError(ctx context.Context, reason string) {
	r.parseSymError.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// JobsCount records symbolicate.jobs_count{version}.
func (r *Recorder) JobsCount(ctx context.Context, version string, n int) {
	r.jobsCount.Record(ctx, int64(n), metric.WithAttributes(attribute.String("version", version)))
}

// StacksCount records symbolicate.stacks_count{version}.
func (r *Recorder) StacksCount(ctx context.Context, version string, n int) {
	r.stacksCount.Record(ctx, int64(n), metric.WithAttributes(attribute.String("version", version)))
}

// FramesCount records symbolicate.frames_count.
func (r *Recorder) FramesCount(ctx context.Context, n int) {
	r.framesCount.Record(ctx, int64(n))
}

// APITimer starts a symbolicate.api{version} timer; call the returned func
// when the request finishes.
func (r *Recorder) APITimer(ctx context.Context, version string) func() {
	start := time.Now()
	return func() {
		r.apiDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("version", version)))
	}
}

// ParseSymTimer starts a symbolicate.parse_sym_file.parse timer.
func (r *Recorder) ParseSymTimer(ctx context.Context) func() {
	start := time.Now()
	return func() {
		r.parseSymDurCtr.Record(ctx, time.Since(start).Seconds())
	}
}
