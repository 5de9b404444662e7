package metrics

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/becsim/internal/control"
	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

// ParticleNumber records the ensemble-mean atom number in each component.
// For Wigner clouds the vacuum contribution of half a particle per projected
// mode is subtracted.
type ParticleNumber struct {
	name   string
	dV     float64
	modes  int
	pulse  *control.Pulse
	theta  float64
	series Series
	dens   []float64
	logger *slog.Logger
}

type ParticleOption func(*ParticleNumber)

// WithParticleLogger sets where failed readouts are reported.
func WithParticleLogger(l *slog.Logger) ParticleOption {
	return func(pn *ParticleNumber) { pn.logger = l }
}

// WithMeasurementPulse counts atoms after applying a pulse to a copy of the
// cloud, as a population readout after a final interferometer pulse does.
func WithMeasurementPulse(p *control.Pulse, theta float64) ParticleOption {
	return func(pn *ParticleNumber) {
		pn.pulse = p
		pn.theta = theta
	}
}

func NewParticleNumber(c *physics.Constants, opts ...ParticleOption) *ParticleNumber {
	pn := &ParticleNumber{
		name:   "particles",
		dV:     c.DV,
		modes:  c.ProjectedModes(),
		series: newSeries("particles", "Na", "Nb", "N"),
		logger: slog.Default().With(slog.String("component", "metrics")),
	}
	for _, opt := range opts {
		opt(pn)
	}
	return pn
}

func (p *ParticleNumber) Name() string { return p.name }

func (p *ParticleNumber) Observe(t float64, cloud *dynamo.Cloud) {
	if p.pulse != nil {
		cloud = cloud.Clone()
		if err := p.pulse.Apply(cloud, p.theta); err != nil {
			p.logger.Warn("readout pulse failed, sample dropped",
				slog.String("collector", p.name),
				slog.Float64("t", t),
				slog.Any("err", err))
			return
		}
	}

	na := p.count(cloud.A) / float64(cloud.Ensembles)
	nb := p.count(cloud.B) / float64(cloud.Ensembles)
	if cloud.Type == dynamo.Wigner {
		na -= float64(p.modes) / 2
		nb -= float64(p.modes) / 2
	}
	p.series.add(t, na, nb, na+nb)
}

func (p *ParticleNumber) count(field []complex128) float64 {
	if cap(p.dens) < len(field) {
		p.dens = make([]float64, len(field))
	}
	p.dens = p.dens[:len(field)]
	for i, v := range field {
		p.dens[i] = real(v)*real(v) + imag(v)*imag(v)
	}
	return floats.Sum(p.dens) * p.dV
}

func (p *ParticleNumber) Series() Series { return p.series }

func (p *ParticleNumber) Reset() { p.series.reset() }
