package evolution

import (
	"github.com/san-kum/becsim/internal/compute"
	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

// SpectralPropagator moves the field between position and momentum space and
// applies the kinetic phase in momentum space.
type SpectralPropagator struct {
	backend compute.Backend
}

func NewSpectralPropagator(b compute.Backend) *SpectralPropagator {
	return &SpectralPropagator{backend: b}
}

func (s *SpectralPropagator) ToMomentum(cloud *dynamo.Cloud) error {
	if err := s.backend.Forward(cloud.A); err != nil {
		return err
	}
	return s.backend.Forward(cloud.B)
}

func (s *SpectralPropagator) ToPosition(cloud *dynamo.Cloud) error {
	if err := s.backend.Inverse(cloud.A); err != nil {
		return err
	}
	return s.backend.Inverse(cloud.B)
}

// Rotate multiplies every mode by exp(i*k*dt/2). The field must be in momentum space.
func (s *SpectralPropagator) Rotate(cloud *dynamo.Cloud, dt float64) {
	s.backend.RotateKinetic(cloud.A, cloud.B, dt)
}

// NonlinearPropagator advances the local interaction and loss terms in position space.
type NonlinearPropagator struct {
	backend compute.Backend
	c       *physics.Constants
}

func NewNonlinearPropagator(b compute.Backend, c *physics.Constants) *NonlinearPropagator {
	return &NonlinearPropagator{backend: b, c: c}
}

func (n *NonlinearPropagator) Propagate(cloud *dynamo.Cloud, dt float64) {
	cp := compute.CouplingFor(n.c, cloud.CompA, cloud.CompB)
	n.backend.PropagateNonlinear(cloud.A, cloud.B, cp, dt)
}

// NoiseInjector adds one stochastic increment of the configured noise model.
type NoiseInjector struct {
	backend compute.Backend
	model   compute.NoiseModel
}

func NewNoiseInjector(b compute.Backend, model compute.NoiseModel) *NoiseInjector {
	return &NoiseInjector{backend: b, model: model}
}

func (n *NoiseInjector) Model() compute.NoiseModel { return n.model }

func (n *NoiseInjector) Inject(cloud *dynamo.Cloud, dt float64) {
	n.backend.InjectNoise(cloud.A, cloud.B, dt, n.model)
}

// ModeProjector zeroes momentum modes above the energy cutoff.
type ModeProjector struct {
	backend compute.Backend
}

func NewModeProjector(b compute.Backend) *ModeProjector {
	return &ModeProjector{backend: b}
}

func (p *ModeProjector) Apply(cloud *dynamo.Cloud) {
	p.backend.ApplyProjector(cloud.A, cloud.B)
}
