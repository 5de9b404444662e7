package evolution

import (
	"fmt"
	"math"

	"github.com/san-kum/becsim/internal/dynamo"
)

// ToWigner turns a settled classical cloud into a truncated-Wigner sample by
// adding half a quantum of vacuum noise to every projected mode of both
// components, independently for each ensemble member.
func (e *Evolution) ToWigner(cloud *dynamo.Cloud) error {
	if e.midstep {
		return ErrUnsettled
	}
	if err := e.check(cloud); err != nil {
		return err
	}
	if cloud.Type == dynamo.Wigner {
		return fmt.Errorf("evolution: cloud is already a Wigner sample")
	}

	if err := e.spectral.ToMomentum(cloud); err != nil {
		return err
	}

	// Forward transforms are unnormalized, so a plane wave of unit occupation
	// has amplitude sqrt(cells/dV) in momentum space. Each quadrature of a
	// vacuum mode has variance 1/4.
	cells := e.c.Cells
	sigma := math.Sqrt(float64(cells) / (4 * e.c.DV))
	mask := e.c.ProjectorMask

	n := len(cloud.A)
	z := make([]float64, 4*n)
	e.backend.Normals(z)
	for i := 0; i < n; i++ {
		m := mask[i%cells] * sigma
		cloud.A[i] += complex(m*z[i], m*z[n+i])
		cloud.B[i] += complex(m*z[2*n+i], m*z[3*n+i])
	}

	if err := e.spectral.ToPosition(cloud); err != nil {
		return err
	}
	cloud.Type = dynamo.Wigner
	return nil
}
