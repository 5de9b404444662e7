package physics

import (
	"errors"
	"fmt"
	"strings"
)

// Physical constants, SI.
const (
	Hbar       = 1.054571628e-34
	BohrRadius = 5.2917720859e-11
	Rb87Mass   = 1.443160648e-25
)

// ErrParameterBounds indicates a model parameter outside its valid range.
var ErrParameterBounds = errors.New("physics: parameter out of valid bounds")

// Precision selects the floating point width used by device kernels.
type Precision int

const (
	Double Precision = iota
	Single
)

func (p Precision) String() string {
	if p == Single {
		return "single"
	}
	return "double"
}

// ParsePrecision accepts "single"/"float32" and "double"/"float64".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(s) {
	case "", "double", "float64":
		return Double, nil
	case "single", "float32":
		return Single, nil
	}
	return Double, fmt.Errorf("%w: unknown precision %q", ErrParameterBounds, s)
}

// Model holds the physical inputs of a simulation. Scattering lengths are in Bohr
// radii, trap frequencies and the projector cutoff in Hz, everything else SI.
type Model struct {
	N    int
	Mass float64

	A11, A12, A22 float64
	Fx, Fy, Fz    float64

	// Loss rates: three-body in |1>, two-body inter-species and in |2>.
	L111, L12, L22 float64

	Nvx, Nvy, Nvz int

	// Box overrides the Thomas-Fermi sized box when all entries are positive.
	// Order is z, y, x to match the grid shape.
	Box      [3]float64
	BoxScale float64

	DtEvo     float64
	ItMax     int
	Ensembles int
	// ECut is the projector cutoff. Modes with kinetic energy at or above it
	// are dropped from Wigner runs. The default lies above every mode of any
	// practical grid, so projection is off unless a run lowers it.
	ECut      float64
	Precision Precision
}

// DefaultModel describes the Rb-87 clock states used in the interferometry runs.
func DefaultModel() Model {
	return Model{
		N:         150000,
		Mass:      Rb87Mass,
		A11:       100.4,
		A12:       98.13,
		A22:       95.68,
		Fx:        97.6,
		Fy:        97.6,
		Fz:        11.96,
		L111:      5.4e-42,
		L12:       1.51e-20,
		L22:       8.1e-20,
		Nvx:       16,
		Nvy:       16,
		Nvz:       128,
		BoxScale:  1.2,
		DtEvo:     4e-5,
		ItMax:     3,
		Ensembles: 1,
		ECut:      1e6,
		Precision: Double,
	}
}

func (m Model) hasBox() bool {
	return m.Box[0] > 0 && m.Box[1] > 0 && m.Box[2] > 0
}

// Validate checks the model for values the derivation cannot handle.
func (m Model) Validate() error {
	switch {
	case m.Nvx <= 0 || m.Nvy <= 0 || m.Nvz <= 0:
		return fmt.Errorf("%w: grid %dx%dx%d", ErrParameterBounds, m.Nvz, m.Nvy, m.Nvx)
	case m.Ensembles <= 0:
		return fmt.Errorf("%w: ensembles %d", ErrParameterBounds, m.Ensembles)
	case m.Mass <= 0:
		return fmt.Errorf("%w: mass %g", ErrParameterBounds, m.Mass)
	case m.DtEvo <= 0:
		return fmt.Errorf("%w: dt %g", ErrParameterBounds, m.DtEvo)
	case m.ItMax <= 0:
		return fmt.Errorf("%w: itmax %d", ErrParameterBounds, m.ItMax)
	case m.N < 0:
		return fmt.Errorf("%w: atom number %d", ErrParameterBounds, m.N)
	case m.L111 < 0 || m.L12 < 0 || m.L22 < 0:
		return fmt.Errorf("%w: negative loss rate", ErrParameterBounds)
	}
	if !m.hasBox() {
		if m.Fx <= 0 || m.Fy <= 0 || m.Fz <= 0 || m.N <= 0 || m.A11 <= 0 {
			return fmt.Errorf("%w: Thomas-Fermi box needs positive trap frequencies, N and a11", ErrParameterBounds)
		}
		if m.BoxScale <= 0 {
			return fmt.Errorf("%w: box scale %g", ErrParameterBounds, m.BoxScale)
		}
	}
	return nil
}
