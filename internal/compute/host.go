package compute

import (
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

// minChunk keeps small grids on one goroutine.
const minChunk = 1024

// HostBackend evaluates every primitive as batched float64 array arithmetic,
// split into contiguous chunks across worker goroutines.
type HostBackend struct {
	c        *physics.Constants
	plan     *fftPlan
	rng      *gaussianSource
	features Features
	workers  int
	logger   *slog.Logger

	noise noiseCoeffs[float64]

	// rotation table for the last dt
	kdt   float64
	kcoef []complex128

	a0, b0, da, db []complex128
	z              []float64
}

func NewHostBackend(c *physics.Constants, seed uint64) *HostBackend {
	f := DetectFeatures()
	return &HostBackend{
		c:        c,
		features: f,
		workers:  f.Workers(),
		plan:     newFFTPlan(c.Shape, f.Workers()),
		rng:      newGaussianSource(seed),
		noise:    newNoiseCoeffs[float64](c.L111, c.L12, c.L22, c.DV),
		logger:   slog.Default().With(slog.String("component", "compute.host")),
	}
}

func (h *HostBackend) Name() string { return Host }

func (h *HostBackend) Acquire() error {
	h.logger.Debug("backend acquired",
		slog.Int("workers", h.workers),
		slog.String("features", h.features.String()),
		slog.Int("cells", h.c.Cells))
	return nil
}

func (h *HostBackend) Release() error {
	h.a0, h.b0, h.da, h.db, h.z, h.kcoef = nil, nil, nil, nil, nil, nil
	h.logger.Debug("backend released")
	return nil
}

func (h *HostBackend) Forward(data []complex128) error {
	return h.plan.execute(data, false)
}

func (h *HostBackend) Inverse(data []complex128) error {
	return h.plan.execute(data, true)
}

func (h *HostBackend) RotateKinetic(a, b []complex128, dt float64) {
	if h.kcoef == nil || h.kdt != dt {
		if h.kcoef == nil {
			h.kcoef = make([]complex128, h.c.Cells)
		}
		for i, k := range h.c.KVectors {
			h.kcoef[i] = cmplx.Exp(complex(0, k*dt/2))
		}
		h.kdt = dt
	}

	cells := h.c.Cells
	dynamo.ParallelFor(len(a), minChunk, h.workers, func(start, end int) {
		for i := start; i < end; i++ {
			k := h.kcoef[i%cells]
			a[i] *= k
			b[i] *= k
		}
	})
}

func (h *HostBackend) PropagateNonlinear(a, b []complex128, cp Coupling, dt float64) {
	n := len(a)
	h.a0 = grow(h.a0, n)
	h.b0 = grow(h.b0, n)
	h.da = grow(h.da, n)
	h.db = grow(h.db, n)
	a0, b0, da, db := h.a0, h.b0, h.da, h.db
	copy(a0, a)
	copy(b0, b)

	cells := h.c.Cells
	pot := h.c.Potentials
	l111 := cp.L111 * lossScaleInv2
	half := complex(dt/2, 0)

	for it := 0; it < h.c.ItMax; it++ {
		dynamo.ParallelFor(n, minChunk, h.workers, func(start, end int) {
			for i := start; i < end; i++ {
				na := sqAbs(a[i])
				nb := sqAbs(b[i])
				v := pot[i%cells]
				t := na * lossScale

				pa := complex(-(t*t*l111+cp.L12*nb)/2, -(v + cp.G11*na + cp.G12*nb))
				pb := complex(-(cp.L22*nb+cp.L12*na)/2, -(v + cp.G22*nb + cp.G12*na))

				da[i] = cmplx.Exp(pa * half)
				db[i] = cmplx.Exp(pb * half)
				a[i] = a0[i] * da[i]
				b[i] = b0[i] * db[i]
			}
		})
	}

	dynamo.ParallelFor(n, minChunk, h.workers, func(start, end int) {
		for i := start; i < end; i++ {
			a[i] *= da[i]
			b[i] *= db[i]
		}
	})
}

func (h *HostBackend) InjectNoise(a, b []complex128, dt float64, model NoiseModel) {
	n := len(a)
	h.z = growFloat(h.z, normalsPerCell(model)*n)
	h.rng.fill(h.z)
	z := h.z

	if model == NoiseFullMatrix {
		sdt := math.Sqrt(dt)
		dynamo.ParallelFor(n, minChunk, h.workers, func(start, end int) {
			var zc, zp [4]float64
			for i := start; i < end; i++ {
				for k := 0; k < 4; k++ {
					zc[k] = z[k*n+i]
					zp[k] = z[(4+k)*n+i]
				}
				ar, ai, br, bi := h.noise.heun(real(a[i]), imag(a[i]), real(b[i]), imag(b[i]), zc, zp, sdt)
				a[i] = complex(ar, ai)
				b[i] = complex(br, bi)
			}
		})
		return
	}

	st := math.Sqrt(dt * h.noise.halfInvDV)
	dynamo.ParallelFor(n, minChunk, h.workers, func(start, end int) {
		for i := start; i < end; i++ {
			d11, d22 := h.noise.diagonal(sqAbs(a[i]), sqAbs(b[i]))
			d11 *= st
			d22 *= st
			a[i] += complex(d11*z[i], d11*z[n+i])
			b[i] += complex(d22*z[2*n+i], d22*z[3*n+i])
		}
	})
}

func (h *HostBackend) ApplyProjector(a, b []complex128) {
	cells := h.c.Cells
	mask := h.c.ProjectorMask
	dynamo.ParallelFor(len(a), minChunk, h.workers, func(start, end int) {
		for i := start; i < end; i++ {
			m := complex(mask[i%cells], 0)
			a[i] *= m
			b[i] *= m
		}
	})
}

func (h *HostBackend) Normals(dst []float64) {
	h.rng.fill(dst)
}

func sqAbs(v complex128) float64 {
	return real(v)*real(v) + imag(v)*imag(v)
}

func grow(s []complex128, n int) []complex128 {
	if cap(s) < n {
		return make([]complex128, n)
	}
	return s[:n]
}

func growFloat(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
