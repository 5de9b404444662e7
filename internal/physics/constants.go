package physics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/becsim/internal/dynamo"
)

// Constants are the derived, read-only parameters shared by every component of a
// simulation. Nothing mutates a Constants value or its slices after NewConstants.
type Constants struct {
	Model Model

	// Shape is the grid shape ordered z, y, x.
	Shape []int
	Cells int
	Box   [3]float64
	Step  [3]float64
	DV    float64

	// Coords holds the cell-centre coordinates along z, y, x.
	Coords [3][]float64

	// KVectors is -hbar*k^2/(2m) per cell in rad/s. RotateKinetic multiplies by
	// exp(i*KVectors*dt/2).
	KVectors []float64
	// Potentials is V/hbar per cell in rad/s.
	Potentials []float64
	// ProjectorMask is 1 for modes below the energy cutoff and 0 above it.
	ProjectorMask []float64

	// G holds g_ij/hbar indexed by component.
	G [2][2]float64

	L111, L12, L22 float64

	Dt        float64
	ItMax     int
	Ensembles int
	Precision Precision

	// Mu is the Thomas-Fermi chemical potential over hbar, rad/s.
	Mu float64
}

// NewConstants derives the simulation constants from a model.
func NewConstants(m Model) (*Constants, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	c := &Constants{
		Model:     m,
		Shape:     []int{m.Nvz, m.Nvy, m.Nvx},
		L111:      m.L111,
		L12:       m.L12,
		L22:       m.L22,
		Dt:        m.DtEvo,
		ItMax:     m.ItMax,
		Ensembles: m.Ensembles,
		Precision: m.Precision,
	}
	c.Cells = m.Nvx * m.Nvy * m.Nvz

	scat := [2][2]float64{{m.A11, m.A12}, {m.A12, m.A22}}
	for i := range scat {
		for j := range scat[i] {
			c.G[i][j] = 4 * math.Pi * Hbar * scat[i][j] * BohrRadius / m.Mass
		}
	}

	omega := [3]float64{2 * math.Pi * m.Fz, 2 * math.Pi * m.Fy, 2 * math.Pi * m.Fx}
	if m.N > 0 && m.A11 > 0 && omega[0] > 0 && omega[1] > 0 && omega[2] > 0 {
		wMean := math.Cbrt(omega[0] * omega[1] * omega[2])
		aHo := math.Sqrt(Hbar / (m.Mass * wMean))
		muJ := Hbar * wMean / 2 * math.Pow(15*float64(m.N)*m.A11*BohrRadius/aHo, 0.4)
		c.Mu = muJ / Hbar
		if !m.hasBox() {
			for i, w := range omega {
				r := math.Sqrt(2 * muJ / (m.Mass * w * w))
				c.Box[i] = 2 * m.BoxScale * r
			}
		}
	}
	if m.hasBox() {
		c.Box = m.Box
	}

	c.DV = 1
	for i, n := range c.Shape {
		c.Step[i] = c.Box[i] / float64(n)
		c.DV *= c.Step[i]
		c.Coords[i] = cellCentres(n, c.Box[i])
	}

	kAxes := [3][]float64{}
	for i, n := range c.Shape {
		kAxes[i] = fftFreqs(n, c.Box[i])
	}

	c.KVectors = make([]float64, c.Cells)
	c.Potentials = make([]float64, c.Cells)
	c.ProjectorMask = make([]float64, c.Cells)

	cutoff := 2 * math.Pi * m.ECut
	idx := 0
	for iz := 0; iz < c.Shape[0]; iz++ {
		for iy := 0; iy < c.Shape[1]; iy++ {
			for ix := 0; ix < c.Shape[2]; ix++ {
				k2 := kAxes[0][iz]*kAxes[0][iz] + kAxes[1][iy]*kAxes[1][iy] + kAxes[2][ix]*kAxes[2][ix]
				energy := Hbar * k2 / (2 * m.Mass)
				c.KVectors[idx] = -energy
				if energy < cutoff {
					c.ProjectorMask[idx] = 1
				}

				z, y, x := c.Coords[0][iz], c.Coords[1][iy], c.Coords[2][ix]
				v := omega[0]*omega[0]*z*z + omega[1]*omega[1]*y*y + omega[2]*omega[2]*x*x
				c.Potentials[idx] = m.Mass * v / (2 * Hbar)
				idx++
			}
		}
	}

	return c, nil
}

// cellCentres returns n symmetric cell-centre coordinates spanning length.
func cellCentres(n int, length float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	d := length / float64(n)
	floats.Span(out, -length/2+d/2, length/2-d/2)
	return out
}

// fftFreqs returns angular wave numbers in FFT order: 0, 1, ..., -n/2, ..., -1.
func fftFreqs(n int, length float64) []float64 {
	out := make([]float64, n)
	scale := 2 * math.Pi / length
	for i := 0; i < n; i++ {
		f := i
		if i >= (n+1)/2 {
			f = i - n
		}
		out[i] = float64(f) * scale
	}
	return out
}

// GFor returns g/hbar for a component pair.
func (c *Constants) GFor(i, j dynamo.Component) float64 {
	return c.G[i][j]
}

// ProjectedModes counts the momentum modes kept by the projector.
func (c *Constants) ProjectedModes() int {
	return int(floats.Sum(c.ProjectorMask))
}

// NewCloud allocates an empty cloud on this grid.
func (c *Constants) NewCloud(ensembles int) (*dynamo.Cloud, error) {
	return dynamo.NewCloud(c.Shape, ensembles, dynamo.Comp1, dynamo.Comp2)
}
