package evolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/san-kum/becsim/internal/compute"
	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

// ErrUnsettled is returned when a previous Propagate left a kinetic half step
// pending, either on the cloud passed to Run and ToWigner or on a different
// cloud than the one passed to Propagate and Settle. Settle that cloud first.
var ErrUnsettled = errors.New("evolution: field has a pending half step")

// Evolution is the split-step scheduler.
//
// A settled field is in position space with every kinetic step complete. After
// Propagate the field is in momentum space and the trailing kinetic half step
// is deferred; the next Propagate folds it into its own leading half step.
// Evolution is not safe for concurrent use.
type Evolution struct {
	c       *physics.Constants
	backend compute.Backend
	logger  *slog.Logger

	spectral  *SpectralPropagator
	nonlinear *NonlinearPropagator
	noise     *NoiseInjector
	projector *ModeProjector

	midstep   bool
	pending   *dynamo.Cloud
	pendingDt float64
	steps     int
}

type Option func(*Evolution)

func WithNoiseModel(m compute.NoiseModel) Option {
	return func(e *Evolution) {
		e.noise = NewNoiseInjector(e.backend, m)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evolution) {
		e.logger = l
	}
}

func New(c *physics.Constants, b compute.Backend, opts ...Option) *Evolution {
	e := &Evolution{
		c:         c,
		backend:   b,
		logger:    slog.Default().With(slog.String("component", "evolution")),
		spectral:  NewSpectralPropagator(b),
		nonlinear: NewNonlinearPropagator(b, c),
		noise:     NewNoiseInjector(b, compute.NoiseDiagonal),
		projector: NewModeProjector(b),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Midstep reports whether a kinetic half step is pending.
func (e *Evolution) Midstep() bool { return e.midstep }

// Steps is the number of Propagate calls completed.
func (e *Evolution) Steps() int { return e.steps }

// Propagate advances the field by dt. A settled field is transformed to
// momentum space first; on return the field is in momentum space with a half
// step pending.
func (e *Evolution) Propagate(cloud *dynamo.Cloud, dt float64, noise bool) error {
	if err := e.check(cloud); err != nil {
		return err
	}
	if e.midstep && cloud != e.pending {
		return ErrUnsettled
	}

	if e.midstep {
		e.spectral.Rotate(cloud, e.pendingDt+dt)
	} else {
		if err := e.spectral.ToMomentum(cloud); err != nil {
			return err
		}
		e.spectral.Rotate(cloud, dt)
	}

	stochastic := cloud.Type == dynamo.Wigner && noise
	if stochastic {
		e.projector.Apply(cloud)
	}

	if err := e.spectral.ToPosition(cloud); err != nil {
		return err
	}
	e.nonlinear.Propagate(cloud, dt)
	if stochastic {
		e.noise.Inject(cloud, dt)
	}

	cloud.Time += dt
	e.steps++
	e.midstep = true
	e.pending = cloud
	e.pendingDt = dt

	if err := e.spectral.ToMomentum(cloud); err != nil {
		return err
	}
	if !cloud.IsFinite() {
		return &dynamo.SimulationError{Step: e.steps, Time: cloud.Time, Wrapped: dynamo.ErrInvalidState}
	}
	return nil
}

// Settle completes a pending half step and returns the field to position space.
// It does nothing for a field that is already settled.
func (e *Evolution) Settle(cloud *dynamo.Cloud) error {
	if !e.midstep {
		return nil
	}
	if cloud != e.pending {
		return ErrUnsettled
	}
	e.spectral.Rotate(cloud, e.pendingDt)
	e.midstep = false
	e.pending = nil
	e.pendingDt = 0
	return e.spectral.ToPosition(cloud)
}

// Run evolves a settled field for total seconds of simulated time with the
// model time step. Callbacks run at the start, every time more than interval
// has elapsed since the previous invocation, and once more at the end when
// interval exceeds total. They always see a settled field.
//
// A callback returning dynamo.Stop ends the run early without error. The
// context is checked at the same points callbacks run; on cancellation the
// field is settled and ctx.Err() is returned. Run returns the simulated time
// reached.
func (e *Evolution) Run(ctx context.Context, cloud *dynamo.Cloud, total float64, callbacks []dynamo.Callback, interval float64, noise bool) (float64, error) {
	if e.midstep {
		return cloud.Time, ErrUnsettled
	}
	if err := e.check(cloud); err != nil {
		return cloud.Time, err
	}

	start := cloud.Time
	dt := e.c.Dt
	timer := 0.0
	e.logger.Debug("run started",
		slog.Float64("t0", start),
		slog.Float64("total", total),
		slog.Float64("dt", dt),
		slog.String("type", cloud.Type.String()),
		slog.Bool("noise", noise))

	if done, err := e.boundary(ctx, cloud, callbacks); done {
		return cloud.Time, err
	}

	for cloud.Time-start < total {
		if err := e.Propagate(cloud, dt, noise); err != nil {
			return cloud.Time, err
		}

		timer += dt
		if timer > interval {
			if done, err := e.boundary(ctx, cloud, callbacks); done {
				return cloud.Time, err
			}
			timer = 0
		}
	}

	if interval > total {
		if done, err := e.boundary(ctx, cloud, callbacks); done {
			return cloud.Time, err
		}
	}

	if err := e.Settle(cloud); err != nil {
		return cloud.Time, err
	}
	e.logger.Info("run finished",
		slog.Float64("t", cloud.Time),
		slog.Int("steps", e.steps))
	return cloud.Time, nil
}

// check validates the cloud and requires it to sit on the grid of the
// constants. Ensemble sizes may differ.
func (e *Evolution) check(cloud *dynamo.Cloud) error {
	if err := cloud.Validate(); err != nil {
		return err
	}
	if !slices.Equal(cloud.Shape, e.c.Shape) {
		return fmt.Errorf("%w: cloud grid %v, constants grid %v", dynamo.ErrDimensionMismatch, cloud.Shape, e.c.Shape)
	}
	return nil
}

// boundary is a callback point. It reports done when the run must end.
func (e *Evolution) boundary(ctx context.Context, cloud *dynamo.Cloud, callbacks []dynamo.Callback) (bool, error) {
	if err := ctx.Err(); err != nil {
		if serr := e.Settle(cloud); serr != nil {
			return true, serr
		}
		e.logger.Info("run cancelled", slog.Float64("t", cloud.Time))
		return true, err
	}
	if len(callbacks) == 0 {
		return false, nil
	}

	if err := e.Settle(cloud); err != nil {
		return true, err
	}
	for _, cb := range callbacks {
		if cb(cloud.Time, cloud) == dynamo.Stop {
			e.logger.Info("run stopped by callback", slog.Float64("t", cloud.Time))
			return true, nil
		}
	}
	return false, nil
}
