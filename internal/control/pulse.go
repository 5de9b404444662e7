package control

import (
	"fmt"
	"math"
	"math/cmplx"

	"golang.org/x/exp/rand"

	"github.com/san-kum/becsim/internal/dynamo"
)

// Pulse is an ideal resonant pulse between the two components.
type Pulse struct {
	rng *rand.Rand
}

func NewPulse(seed uint64) *Pulse {
	return &Pulse{rng: rand.New(rand.NewSource(seed))}
}

type pulseOptions struct {
	phase      float64
	thetaNoise float64
}

type PulseOption func(*pulseOptions)

// WithPhase sets the phase of the driving field.
func WithPhase(phi float64) PulseOption {
	return func(o *pulseOptions) { o.phase = phi }
}

// WithThetaNoise adds a Gaussian error with the given standard deviation (rad)
// to the rotation angle of each ensemble member.
func WithThetaNoise(sigma float64) PulseOption {
	return func(o *pulseOptions) { o.thetaNoise = sigma }
}

// Matrix returns the rotation applied by a pulse of area theta and phase phi:
//
//	a' = cos(theta/2) a - i exp(-i phi) sin(theta/2) b
//	b' = -i exp(i phi) sin(theta/2) a + cos(theta/2) b
func Matrix(theta, phi float64) [2][2]complex128 {
	c := complex(math.Cos(theta/2), 0)
	s := math.Sin(theta / 2)
	return [2][2]complex128{
		{c, complex(0, -s) * cmplx.Exp(complex(0, -phi))},
		{complex(0, -s) * cmplx.Exp(complex(0, phi)), c},
	}
}

// Apply rotates the cloud in place. The rotation is the same in position and
// momentum space, so it may be applied to either.
func (p *Pulse) Apply(cloud *dynamo.Cloud, theta float64, opts ...PulseOption) error {
	if err := cloud.Validate(); err != nil {
		return fmt.Errorf("pulse: %w", err)
	}
	o := pulseOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	for e := 0; e < cloud.Ensembles; e++ {
		th := theta
		if o.thetaNoise > 0 {
			th += o.thetaNoise * p.rng.NormFloat64()
		}
		m := Matrix(th, o.phase)

		a, b := cloud.Member(e)
		for i := range a {
			a0, b0 := a[i], b[i]
			a[i] = m[0][0]*a0 + m[0][1]*b0
			b[i] = m[1][0]*a0 + m[1][1]*b0
		}
	}
	return nil
}
