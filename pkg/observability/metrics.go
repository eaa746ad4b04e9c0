package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcomes recorded by REDMetrics.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const (
	metricRequestsTotal    = "melodist.requests.total"
	metricRequestDuration  = "melodist.request.duration.seconds"
	metricErrorsTotal      = "melodist.errors.total"
	metricInflightRequests = "melodist.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"
)

// durationBuckets spans a one-bar exercise (milliseconds) to a long
// unconstrained line (minutes).
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// instruments creates meter instruments and keeps the first failure so a
// constructor checks once.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) fail(name string, err error) {
	if err != nil && in.err == nil {
		in.err = fmt.Errorf("create %s: %w", name, err)
	}
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.fail(name, err)

	return c
}

func (in *instruments) gauge(name, desc, unit string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.fail(name, err)

	return g
}

func (in *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	in.fail(name, err)

	return h
}

// REDMetrics counts rate, errors and duration of HTTP requests and MCP tool
// calls, keyed by operation.
type REDMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

// NewREDMetrics creates the request instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	in := &instruments{meter: mt}

	rm := &REDMetrics{
		requests: in.counter(metricRequestsTotal, "Requests handled", "{request}"),
		duration: in.seconds(metricRequestDuration, "Request duration"),
		errors:   in.counter(metricErrorsTotal, "Requests that failed", "{error}"),
		inflight: in.gauge(metricInflightRequests, "Requests in progress", "{request}"),
	}

	if in.err != nil {
		return nil, in.err
	}

	return rm, nil
}

// RecordRequest records one finished request. status is StatusOK or
// StatusError.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, d time.Duration) {
	opAttr := attribute.String(attrOp, op)
	attrs := metric.WithAttributes(opAttr, attribute.String(attrStatus, status))

	rm.requests.Add(ctx, 1, attrs)
	rm.duration.Record(ctx, d.Seconds(), attrs)

	if status == StatusError {
		rm.errors.Add(ctx, 1, metric.WithAttributes(opAttr))
	}
}

// TrackInflight counts op as in progress until the returned func runs.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflight.Add(ctx, 1, attrs)

	return func() { rm.inflight.Add(ctx, -1, attrs) }
}
