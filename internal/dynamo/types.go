package dynamo

import (
	"fmt"
	"math"
)

// Representation tags how a Cloud should be interpreted.
type Representation int

const (
	// Classical is a mean-field (Gross-Pitaevskii) trajectory.
	Classical Representation = iota
	// Wigner is a truncated-Wigner sample carrying vacuum noise.
	Wigner
)

func (r Representation) String() string {
	switch r {
	case Classical:
		return "classical"
	case Wigner:
		return "wigner"
	default:
		return fmt.Sprintf("representation(%d)", int(r))
	}
}

// Component identifies the hyperfine state a field belongs to. It indexes the
// interaction coefficients.
type Component int

const (
	Comp1 Component = iota // |F=1, mF=-1>
	Comp2                  // |F=2, mF=+1>
)

// Cloud is the evolving two-component field.
//
// A and B are stored row-major as [ensemble][grid...]; both always have
// Ensembles*Cells() elements.
type Cloud struct {
	A, B         []complex128
	CompA, CompB Component
	Shape        []int
	Ensembles    int
	Time         float64
	Type         Representation
}

// NewCloud allocates a zeroed classical cloud.
func NewCloud(shape []int, ensembles int, compA, compB Component) (*Cloud, error) {
	if err := checkDims(shape, ensembles); err != nil {
		return nil, err
	}
	c := &Cloud{
		CompA:     compA,
		CompB:     compB,
		Shape:     append([]int(nil), shape...),
		Ensembles: ensembles,
	}
	c.A = make([]complex128, c.Len())
	c.B = make([]complex128, c.Len())
	return c, nil
}

func checkDims(shape []int, ensembles int) error {
	if len(shape) == 0 || len(shape) > 3 {
		return fmt.Errorf("%w: grid must have 1 to 3 dimensions, got %d", ErrInvalidDimensions, len(shape))
	}
	for _, n := range shape {
		if n <= 0 {
			return fmt.Errorf("%w: grid shape %v", ErrInvalidDimensions, shape)
		}
	}
	if ensembles <= 0 {
		return fmt.Errorf("%w: ensembles %d", ErrInvalidDimensions, ensembles)
	}
	return nil
}

// Cells is the number of grid points in one ensemble member.
func (c *Cloud) Cells() int {
	n := 1
	for _, s := range c.Shape {
		n *= s
	}
	return n
}

// Len is the total number of values per field.
func (c *Cloud) Len() int { return c.Cells() * c.Ensembles }

// Validate checks the shape invariants.
func (c *Cloud) Validate() error {
	if err := checkDims(c.Shape, c.Ensembles); err != nil {
		return err
	}
	if len(c.A) != len(c.B) {
		return fmt.Errorf("%w: len(a)=%d, len(b)=%d", ErrDimensionMismatch, len(c.A), len(c.B))
	}
	if len(c.A) != c.Len() {
		return fmt.Errorf("%w: field has %d values, shape %v x %d ensembles needs %d",
			ErrDimensionMismatch, len(c.A), c.Shape, c.Ensembles, c.Len())
	}
	return nil
}

// Clone returns a deep copy.
func (c *Cloud) Clone() *Cloud {
	out := *c
	out.Shape = append([]int(nil), c.Shape...)
	out.A = append([]complex128(nil), c.A...)
	out.B = append([]complex128(nil), c.B...)
	return &out
}

// IsFinite reports whether every field value is finite.
func (c *Cloud) IsFinite() bool {
	for _, f := range [][]complex128{c.A, c.B} {
		for _, v := range f {
			if math.IsNaN(real(v)) || math.IsInf(real(v), 0) ||
				math.IsNaN(imag(v)) || math.IsInf(imag(v), 0) {
				return false
			}
		}
	}
	return true
}

// CreateEnsembles replicates ensemble 0 into n members.
func (c *Cloud) CreateEnsembles(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: ensembles %d", ErrInvalidDimensions, n)
	}
	cells := c.Cells()
	a := make([]complex128, cells*n)
	b := make([]complex128, cells*n)
	for e := 0; e < n; e++ {
		copy(a[e*cells:], c.A[:cells])
		copy(b[e*cells:], c.B[:cells])
	}
	c.A, c.B, c.Ensembles = a, b, n
	return nil
}

// Member returns the views of ensemble e.
func (c *Cloud) Member(e int) (a, b []complex128) {
	cells := c.Cells()
	return c.A[e*cells : (e+1)*cells], c.B[e*cells : (e+1)*cells]
}

// Signal is returned by callbacks to steer the run loop.
type Signal int

const (
	Continue Signal = iota
	Stop
)

// Callback observes the cloud at a full step in position space.
type Callback func(t float64, c *Cloud) Signal
