package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	return r.ResponseWriter.Write(b) //nolint:wrapcheck // writer errors pass through.
}

// InstrumentHandler serves next inside a server span named after the
// request and records it in red under op. Incoming W3C trace headers are
// honored. Either tracer or red may be nil.
func InstrumentHandler(tracer trace.Tracer, red *REDMetrics, op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		var span trace.Span

		if tracer != nil {
			ctx, span = tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					attribute.String("http.route", r.URL.Path),
					attribute.String("melodist.op", op),
				),
			)
			defer span.End()
		}

		if red != nil {
			defer red.TrackInflight(ctx, op)()
		}

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		if span != nil {
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		}

		if red != nil {
			status := StatusOK
			if rec.status >= http.StatusBadRequest {
				status = StatusError
			}

			red.RecordRequest(ctx, op, status, time.Since(start))
		}
	})
}

// ReadyCheck is one named readiness probe.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthReport is the body of /healthz and /readyz.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	healthOK          = "ok"
	healthUnavailable = "unavailable"
)

// HealthHandler answers liveness probes with 200.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthReport{Status: healthOK})
	})
}

// ReadyHandler runs every check and answers 200 when all pass, 503
// otherwise. The body names each check with "ok" or its error.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: healthOK}
		code := http.StatusOK

		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
		}

		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				report.Checks[c.Name] = err.Error()
				report.Status = healthUnavailable
				code = http.StatusServiceUnavailable

				continue
			}

			report.Checks[c.Name] = healthOK
		}

		writeHealth(w, code, report)
	})
}

func writeHealth(w http.ResponseWriter, code int, report HealthReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(report) //nolint:errchkjson // nothing to do once the header is out.
}
