package metrics

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

// overlap returns sum(conj(a) b) dV and the atom numbers of one ensemble member.
func overlap(a, b []complex128, dV float64) (complex128, float64, float64) {
	var s complex128
	na, nb := 0.0, 0.0
	for i := range a {
		s += cmplx.Conj(a[i]) * b[i]
		na += real(a[i])*real(a[i]) + imag(a[i])*imag(a[i])
		nb += real(b[i])*real(b[i]) + imag(b[i])*imag(b[i])
	}
	return s * complex(dV, 0), na * dV, nb * dV
}

// Visibility records the ensemble-mean interference contrast 2|<a|b>|/(Na+Nb).
type Visibility struct {
	name   string
	dV     float64
	series Series
}

func NewVisibility(c *physics.Constants) *Visibility {
	return &Visibility{
		name:   "visibility",
		dV:     c.DV,
		series: newSeries("visibility", "visibility"),
	}
}

func (v *Visibility) Name() string { return v.name }

func (v *Visibility) Observe(t float64, cloud *dynamo.Cloud) {
	sum := 0.0
	for e := 0; e < cloud.Ensembles; e++ {
		a, b := cloud.Member(e)
		s, na, nb := overlap(a, b, v.dV)
		if na+nb > 0 {
			sum += 2 * cmplx.Abs(s) / (na + nb)
		}
	}
	v.series.add(t, sum/float64(cloud.Ensembles))
}

func (v *Visibility) Series() Series { return v.series }

func (v *Visibility) Reset() { v.series.reset() }

// PhaseNoise records the circular mean of the relative phase arg<a|b> over the
// ensemble and its spread.
type PhaseNoise struct {
	name   string
	dV     float64
	series Series
	phases []float64
}

func NewPhaseNoise(c *physics.Constants) *PhaseNoise {
	return &PhaseNoise{
		name:   "phase_noise",
		dV:     c.DV,
		series: newSeries("phase_noise", "phase", "noise"),
	}
}

func (p *PhaseNoise) Name() string { return p.name }

func (p *PhaseNoise) Observe(t float64, cloud *dynamo.Cloud) {
	p.phases = p.phases[:0]
	var mean complex128
	for e := 0; e < cloud.Ensembles; e++ {
		a, b := cloud.Member(e)
		s, _, _ := overlap(a, b, p.dV)
		phi := cmplx.Phase(s)
		p.phases = append(p.phases, phi)
		mean += cmplx.Rect(1, phi)
	}

	centre := cmplx.Phase(mean)
	for i, phi := range p.phases {
		p.phases[i] = math.Remainder(phi-centre, 2*math.Pi)
	}

	noise := 0.0
	if len(p.phases) > 1 {
		noise = stat.StdDev(p.phases, nil)
	}
	p.series.add(t, centre, noise)
}

func (p *PhaseNoise) Series() Series { return p.series }

func (p *PhaseNoise) Reset() { p.series.reset() }
