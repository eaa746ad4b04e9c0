package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/melodist/pkg/lineparse"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/problem"
	"github.com/Sumatoshi-tech/melodist/pkg/render"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
)

const (
	serverReadTimeout     = 30 * time.Second
	serverIdleTimeout     = 120 * time.Second
	serverShutdownTimeout = 10 * time.Second

	// maxBodyBytes caps request bodies (1 MB).
	maxBodyBytes = 1 << 20

	meterName = "melodist"
)

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Line string `json:"line"`
}

var errEmptyCatalog = errors.New("instrument catalog is empty")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand(g *Globals) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Long: `Start an HTTP server exposing the solver.

Endpoints:
  POST /solve        solve a problem document (YAML or JSON body)
  POST /parse        parse {"line": "..."} into notes and contexts
  GET  /instruments  list the instrument catalog
  GET  /healthz      liveness
  GET  /readyz       readiness
  GET  /metrics      Prometheus metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := g.setup(observability.ModeServe)
			if err != nil {
				return err
			}
			defer rt.shutdown()

			if cmd.Flags().Changed("host") {
				rt.cfg.Server.Host = host
			}

			if cmd.Flags().Changed("port") {
				rt.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, rt)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")

	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	handler, err := newServeHandler(rt)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         rt.cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: rt.cfg.Solver.Timeout + serverReadTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		rt.providers.Logger.Info("melodist server starting", "addr", "http://"+server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	rt.providers.Logger.Info("melodist server stopped")

	return nil
}

// solveService holds what the HTTP handlers share.
type solveService struct {
	rt  *runtime
	red *observability.REDMetrics
}

// newServeHandler builds the mux. Request and solver metrics go to a
// Prometheus registry served on /metrics.
func newServeHandler(rt *runtime) (http.Handler, error) {
	metricsHandler, mp, err := observability.PrometheusHandler()
	if err != nil {
		return nil, err
	}

	red, err := observability.NewREDMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}

	solverMetrics, err := observability.NewSolverMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}

	rt.metrics = solverMetrics

	svc := &solveService{rt: rt, red: red}

	mux := http.NewServeMux()
	mux.Handle("POST /solve", svc.route("solve", svc.handleSolve))
	mux.Handle("POST /parse", svc.route("parse", svc.handleParse))
	mux.Handle("GET /instruments", svc.route("instruments", svc.handleInstruments))
	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(observability.ReadyCheck{Name: "catalog", Check: svc.catalogReady}))
	mux.Handle("GET /metrics", metricsHandler)

	return mux, nil
}

// route wraps h with tracing, RED metrics and the body size cap.
func (svc *solveService) route(op string, h http.HandlerFunc) http.Handler {
	return observability.InstrumentHandler(svc.rt.providers.Tracer, svc.red, op,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			h(w, r)
		}))
}

func (svc *solveService) catalogReady(context.Context) error {
	if len(svc.rt.catalog.Names()) == 0 {
		return errEmptyCatalog
	}

	return nil
}

func (svc *solveService) handleSolve(w http.ResponseWriter, r *http.Request) {
	doc, err := problem.Decode(r.Body)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)

		return
	}

	p, err := doc.Build(svc.rt.catalog)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, err)

		return
	}

	opts := svc.rt.solverDefaults()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))

			return
		}

		opts = append(opts, melodic.WithInstanceLimit(limit))
	}

	ctx, cancel := svc.rt.solveContext(observability.WithProblem(r.Context(), p.Name))
	defer cancel()

	rep, err := p.Solve(ctx, opts...)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(r.Context(), w, http.StatusGatewayTimeout, err)
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, err)
	default:
		writeJSON(r.Context(), w, http.StatusOK, rep)
	}
}

func (svc *solveService) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))

		return
	}

	parsed, err := lineparse.Parse(req.Line)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)

		return
	}

	summary, err := render.Summarize(parsed.Line, parsed.Track)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, summary)
}

type instrumentEntry struct {
	Name      string `json:"name"`
	Family    string `json:"family"`
	Range     string `json:"range"`
	Transpose int    `json:"transpose,omitempty"`
	Program   uint8  `json:"program"`
}

func (svc *solveService) handleInstruments(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("family")

	var entries []instrumentEntry

	for _, name := range svc.rt.catalog.Names() {
		in, err := svc.rt.catalog.Get(name)
		if err != nil {
			continue
		}

		if family != "" && in.Family != family {
			continue
		}

		entries = append(entries, instrumentEntry{
			Name: in.Name, Family: in.Family, Range: in.Range.String(), Transpose: in.Transpose, Program: in.Program,
		})
	}

	writeJSON(r.Context(), w, http.StatusOK, entries)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var se *problem.SchemaError
	if errors.As(err, &se) {
		resp.Violations = se.Violations
	}

	writeJSON(ctx, w, status, resp)
}

// writeJSON encodes the given value as JSON and writes it to the response writer.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(value); err != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}
