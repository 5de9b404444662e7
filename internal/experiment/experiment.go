package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/becsim/internal/compute"
	"github.com/san-kum/becsim/internal/config"
	"github.com/san-kum/becsim/internal/control"
	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/evolution"
	"github.com/san-kum/becsim/internal/metrics"
	"github.com/san-kum/becsim/internal/physics"
	"github.com/san-kum/becsim/internal/storage"
)

type Experiment struct {
	cfg        *config.Config
	name       string
	constants  *physics.Constants
	noiseModel compute.NoiseModel
	collectors []metrics.Collector
	extra      []dynamo.Callback
	logger     *slog.Logger
}

type Option func(*Experiment)

// WithName tags the run, usually with the preset it came from.
func WithName(name string) Option {
	return func(e *Experiment) { e.name = name }
}

// WithCallbacks adds callbacks that run after the configured collectors.
func WithCallbacks(cbs ...dynamo.Callback) Option {
	return func(e *Experiment) { e.extra = append(e.extra, cbs...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// New validates the configuration and derives the simulation constants. No
// compute resources are held until Run.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	model, err := cfg.PhysicsModel()
	if err != nil {
		return nil, err
	}
	c, err := physics.NewConstants(model)
	if err != nil {
		return nil, err
	}
	nm, err := compute.ParseNoiseModel(cfg.Run.NoiseModel)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:        cfg.Clone(),
		constants:  c,
		noiseModel: nm,
		logger:     slog.Default().With(slog.String("component", "experiment")),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.collectors, err = buildCollectors(e.cfg, c, e.logger)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) Constants() *physics.Constants { return e.constants }

func (e *Experiment) Collectors() []metrics.Collector { return e.collectors }

type Result struct {
	Backend   string
	Start     time.Time
	Elapsed   time.Duration
	FinalTime float64
	Steps     int
	Stopped   bool
	Series    []metrics.Series
}

// Run prepares the initial state, evolves it and returns the collected series.
// The backend is acquired for the duration of the call.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	cfg := e.cfg
	backend, err := compute.New(cfg.Backend.Kind, e.constants, cfg.Run.Seed)
	if err != nil {
		return nil, err
	}
	if err := backend.Acquire(); err != nil {
		return nil, fmt.Errorf("acquire %s backend: %w", backend.Name(), err)
	}
	defer func() {
		if err := backend.Release(); err != nil {
			e.logger.Warn("backend release failed", slog.String("backend", backend.Name()), slog.Any("err", err))
		}
	}()

	cloud, err := physics.NewThomasFermi(e.constants).CreateCloud()
	if err != nil {
		return nil, err
	}

	evo := evolution.New(e.constants, backend,
		evolution.WithNoiseModel(e.noiseModel),
		evolution.WithLogger(e.logger.With(slog.String("backend", backend.Name()))))

	if cfg.Run.Wigner {
		if err := evo.ToWigner(cloud); err != nil {
			return nil, err
		}
	}

	if p := cfg.Run.Pulse; p.Theta != 0 {
		pulse := control.NewPulse(cfg.Run.Seed + 1)
		if err := pulse.Apply(cloud, p.Theta, control.WithPhase(p.Phase), control.WithThetaNoise(p.ThetaNoise)); err != nil {
			return nil, fmt.Errorf("splitting pulse: %w", err)
		}
	}

	for _, col := range e.collectors {
		col.Reset()
	}
	callbacks := append(metrics.Callbacks(e.collectors...), e.extra...)

	e.logger.Info("experiment started",
		slog.String("name", e.name),
		slog.String("backend", backend.Name()),
		slog.String("precision", e.constants.Precision.String()),
		slog.Any("grid", e.constants.Shape),
		slog.Int("ensembles", e.constants.Ensembles),
		slog.Bool("wigner", cfg.Run.Wigner),
		slog.Bool("noise", cfg.Run.Noise))

	res := &Result{Backend: backend.Name(), Start: time.Now()}
	final, err := evo.Run(ctx, cloud, cfg.Run.Duration, callbacks, cfg.Run.Interval, cfg.Run.Noise)
	res.Elapsed = time.Since(res.Start)
	res.FinalTime = final
	res.Steps = evo.Steps()
	res.Stopped = final < cfg.Run.Duration-e.constants.Dt/2
	for _, col := range e.collectors {
		res.Series = append(res.Series, col.Series())
	}
	if err != nil {
		return res, err
	}

	e.logger.Info("experiment finished",
		slog.Float64("t", final),
		slog.Int("steps", res.Steps),
		slog.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Metadata describes a finished run for the run store.
func (e *Experiment) Metadata(res *Result) storage.RunMetadata {
	cfg := e.cfg
	return storage.RunMetadata{
		Preset:     e.name,
		Timestamp:  res.Start,
		Backend:    res.Backend,
		Precision:  e.constants.Precision.String(),
		NoiseModel: e.noiseModel.String(),
		Noise:      cfg.Run.Noise,
		Wigner:     cfg.Run.Wigner,
		Seed:       cfg.Run.Seed,
		Atoms:      cfg.Model.N,
		Grid:       append([]int(nil), e.constants.Shape...),
		Ensembles:  e.constants.Ensembles,
		Dt:         e.constants.Dt,
		Duration:   cfg.Run.Duration,
		FinalTime:  res.FinalTime,
		Steps:      res.Steps,
		Elapsed:    res.Elapsed,
		Stopped:    res.Stopped,
		Summary:    Summary(res.Series),
	}
}

// Summary maps "collector.column" to the last recorded value.
func Summary(series []metrics.Series) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range series {
		if s.Len() == 0 {
			continue
		}
		last := s.Rows[s.Len()-1]
		for j, col := range s.Columns {
			out[s.Name+"."+col] = last[j]
		}
	}
	return out
}
