// Package commands implements the melodist cobra subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/melodist/pkg/config"
	"github.com/Sumatoshi-tech/melodist/pkg/instrument"
	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/render"
	"github.com/Sumatoshi-tech/melodist/pkg/solver/melodic"
	"github.com/Sumatoshi-tech/melodist/pkg/version"
)

// Globals are the persistent root flags shared by every subcommand.
type Globals struct {
	ConfigPath      string
	InstrumentsPath string
	Verbose         bool
	Quiet           bool
}

// runtime is the loaded configuration and telemetry of one command run.
type runtime struct {
	cfg       *config.Config
	providers observability.Providers
	catalog   *instrument.Catalog
	metrics   *observability.SolverMetrics
}

func (g *Globals) setup(mode observability.AppMode) (*runtime, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	catalog := instrument.Builtin()

	if g.InstrumentsPath != "" {
		extra, loadErr := instrument.LoadFile(g.InstrumentsPath)
		if loadErr != nil {
			return nil, fmt.Errorf("load instruments: %w", loadErr)
		}

		if mergeErr := catalog.Merge(extra); mergeErr != nil {
			return nil, fmt.Errorf("load instruments: %w", mergeErr)
		}
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.LogLevel = cfg.Logging.SlogLevel()
	obsCfg.LogJSON = cfg.Logging.JSON() || mode == observability.ModeMCP

	switch {
	case g.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	case g.Quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewSolverMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, providers: providers, catalog: catalog, metrics: metrics}, nil
}

func (rt *runtime) shutdown() {
	if err := rt.providers.Shutdown(context.Background()); err != nil {
		rt.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// solverDefaults turns the solver section into options applied before a
// problem's own settings.
func (rt *runtime) solverDefaults() []melodic.Option {
	opts := []melodic.Option{
		melodic.WithLogger(rt.providers.Logger),
		melodic.WithTracer(rt.providers.Tracer),
		melodic.WithMetrics(rt.metrics),
		melodic.WithSearchMeasures(rt.cfg.Solver.BeatSearchMeasures),
		melodic.WithAcceptPartials(rt.cfg.Solver.AcceptPartials),
	}

	if rt.cfg.Solver.InstanceLimit > 0 {
		opts = append(opts, melodic.WithInstanceLimit(rt.cfg.Solver.InstanceLimit))
	}

	return opts
}

// solveContext bounds ctx by the configured solver timeout.
func (rt *runtime) solveContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if rt.cfg.Solver.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, rt.cfg.Solver.Timeout)
}

// midiOptions maps the render section onto MIDI writer options. Values are
// range-checked when the config loads.
func (rt *runtime) midiOptions() []render.MIDIOption {
	return []render.MIDIOption{
		render.WithTicksPerQuarter(uint16(rt.cfg.Render.TicksPerQuarter)), //nolint:gosec // validated by config.
		render.WithVelocity(uint8(rt.cfg.Render.Velocity)),                //nolint:gosec // validated by config.
		render.WithChannel(uint8(rt.cfg.Render.Channel)),                  //nolint:gosec // validated by config.
	}
}
