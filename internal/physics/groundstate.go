package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/becsim/internal/dynamo"
)

// GroundState produces initial clouds for the evolution engine.
type GroundState interface {
	CreateCloud() (*dynamo.Cloud, error)
}

// ThomasFermi is the closed-form Thomas-Fermi profile of a single-component
// condensate, normalized to the model's atom number and placed in |1>.
type ThomasFermi struct {
	c *Constants
}

func NewThomasFermi(c *Constants) *ThomasFermi {
	return &ThomasFermi{c: c}
}

func (tf *ThomasFermi) CreateCloud() (*dynamo.Cloud, error) {
	c := tf.c
	g := c.G[dynamo.Comp1][dynamo.Comp1]
	if c.Mu <= 0 || g <= 0 {
		return nil, fmt.Errorf("%w: Thomas-Fermi profile needs a trapped, repulsive condensate", ErrParameterBounds)
	}

	cloud, err := c.NewCloud(1)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for i, v := range c.Potentials {
		n := (c.Mu - v) / g
		if n <= 0 {
			continue
		}
		cloud.A[i] = complex(math.Sqrt(n), 0)
		total += n * c.DV
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: Thomas-Fermi profile does not fit the grid", ErrParameterBounds)
	}

	scale := math.Sqrt(float64(c.Model.N) / total)
	for i := range cloud.A {
		cloud.A[i] *= complex(scale, 0)
	}

	if err := cloud.CreateEnsembles(c.Ensembles); err != nil {
		return nil, err
	}
	return cloud, nil
}
