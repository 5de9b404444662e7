package compute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

var (
	ErrUnknownBackend = errors.New("compute: unknown backend")
	ErrNotAcquired    = errors.New("compute: backend not acquired")
	ErrShape          = errors.New("compute: data length is not a multiple of the grid size")
)

// Backend kinds accepted by New.
const (
	Host   = "host"
	Device = "device"
)

// Backend executes the numerical primitives of the split-step integrator.
//
// Field slices are laid out as [ensemble][grid] and are modified in place.
// Every primitive blocks until the whole batch has been processed.
type Backend interface {
	Name() string

	Acquire() error
	Release() error

	// Forward transforms position space to momentum space, batched per ensemble.
	Forward(data []complex128) error
	// Inverse transforms momentum space to position space and normalizes.
	Inverse(data []complex128) error

	RotateKinetic(a, b []complex128, dt float64)
	PropagateNonlinear(a, b []complex128, cp Coupling, dt float64)
	InjectNoise(a, b []complex128, dt float64, model NoiseModel)
	ApplyProjector(a, b []complex128)

	// Normals fills dst with standard Gaussian variates from the backend's source.
	Normals(dst []float64)
}

// Kinds lists the backend identifiers New understands.
func Kinds() []string {
	return []string{Host, Device}
}

// New constructs a backend of the given kind. The returned backend still needs
// Acquire before use.
func New(kind string, c *physics.Constants, seed uint64) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case Host:
		return NewHostBackend(c, seed), nil
	case Device:
		return NewDeviceBackend(c, seed), nil
	}
	return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownBackend, kind, strings.Join(Kinds(), ", "))
}

// Coupling holds the interaction (g/hbar, rad/s) and loss coefficients seen by a
// particular pair of components.
type Coupling struct {
	G11, G12, G22  float64
	L111, L12, L22 float64
}

// CouplingFor resolves the coupling for fields a and b carrying the given components.
func CouplingFor(c *physics.Constants, ca, cb dynamo.Component) Coupling {
	return Coupling{
		G11:  c.GFor(ca, ca),
		G12:  c.GFor(ca, cb),
		G22:  c.GFor(cb, cb),
		L111: c.L111,
		L12:  c.L12,
		L22:  c.L22,
	}
}

// NoiseModel selects the stochastic increment used for Wigner trajectories.
type NoiseModel int

const (
	// NoiseDiagonal ignores cross-field correlations in the noise matrix.
	NoiseDiagonal NoiseModel = iota
	// NoiseFullMatrix uses the complete 2x4 noise matrix with a Heun step.
	NoiseFullMatrix
)

func (m NoiseModel) String() string {
	switch m {
	case NoiseDiagonal:
		return "diagonal"
	case NoiseFullMatrix:
		return "full"
	default:
		return fmt.Sprintf("noise(%d)", int(m))
	}
}

func ParseNoiseModel(s string) (NoiseModel, error) {
	switch strings.ToLower(s) {
	case "", "diagonal", "diag":
		return NoiseDiagonal, nil
	case "full", "matrix", "full_matrix":
		return NoiseFullMatrix, nil
	}
	return NoiseDiagonal, fmt.Errorf("compute: unknown noise model %q", s)
}

// normalsPerCell is the number of Gaussian variates a noise model consumes per field value.
func normalsPerCell(m NoiseModel) int {
	if m == NoiseFullMatrix {
		return 8
	}
	return 4
}
