package compute

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/becsim/internal/physics"
)

const workGroupSize = 256

// kernel is one compiled work item over interleaved (re, im) buffers. Index i
// runs over ensembles*cells.
type kernel[F float] func(i int, a, b []F, dt F, z []F)

// launch dispatches k over n items in work groups of workGroupSize.
func launch[F float](workers, n int, k kernel[F], a, b []F, dt F, z []F) {
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += workGroupSize {
		start, end := start, min(start+workGroupSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				k(i, a, b, dt, z)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func toF[F float](src []float64) []F {
	out := make([]F, len(src))
	for i, v := range src {
		out[i] = F(v)
	}
	return out
}

func compileRotate[F float](kvectors []float64) kernel[F] {
	kv := toF[F](kvectors)
	cells := len(kv)
	return func(i int, a, b []F, dt F, _ []F) {
		cr, ci := cexpF(0, kv[i%cells]*dt/2)
		a[2*i], a[2*i+1] = cmulF(a[2*i], a[2*i+1], cr, ci)
		b[2*i], b[2*i+1] = cmulF(b[2*i], b[2*i+1], cr, ci)
	}
}

func compileNonlinear[F float](potentials []float64, cp Coupling, itmax int) kernel[F] {
	pot := toF[F](potentials)
	cells := len(pot)
	nc := newNonlinearCoeffs[F](cp, itmax)
	return func(i int, a, b []F, dt F, _ []F) {
		a[2*i], a[2*i+1], b[2*i], b[2*i+1] = nc.cell(a[2*i], a[2*i+1], b[2*i], b[2*i+1], pot[i%cells], dt)
	}
}

// compileDiagonalNoise expects z to hold 4n variates: Re a, Im a, Re b, Im b.
func compileDiagonalNoise[F float](nc noiseCoeffs[F]) kernel[F] {
	h := F(nc.halfInvDV)
	return func(i int, a, b []F, dt F, z []F) {
		n := len(a) / 2
		st := sqrtF(dt * h)
		ar, ai := a[2*i], a[2*i+1]
		br, bi := b[2*i], b[2*i+1]
		d11, d22 := nc.diagonal(ar*ar+ai*ai, br*br+bi*bi)
		d11 *= st
		d22 *= st
		a[2*i] = ar + d11*z[i]
		a[2*i+1] = ai + d11*z[n+i]
		b[2*i] = br + d22*z[2*n+i]
		b[2*i+1] = bi + d22*z[3*n+i]
	}
}

// compileFullNoise expects z to hold 8n variates: four corrector channels
// followed by four predictor channels.
func compileFullNoise[F float](nc noiseCoeffs[F]) kernel[F] {
	return func(i int, a, b []F, dt F, z []F) {
		n := len(a) / 2
		var zc, zp [4]F
		for k := 0; k < 4; k++ {
			zc[k] = z[k*n+i]
			zp[k] = z[(4+k)*n+i]
		}
		a[2*i], a[2*i+1], b[2*i], b[2*i+1] = nc.heun(a[2*i], a[2*i+1], b[2*i], b[2*i+1], zc, zp, sqrtF(dt))
	}
}

func compileProjector[F float](mask []float64) kernel[F] {
	m := toF[F](mask)
	cells := len(m)
	return func(i int, a, b []F, _ F, _ []F) {
		v := m[i%cells]
		a[2*i] *= v
		a[2*i+1] *= v
		b[2*i] *= v
		b[2*i+1] *= v
	}
}

// program is a set of compiled kernels at one precision.
type program interface {
	rotate(a, b []complex128, dt float64)
	nonlinear(a, b []complex128, cp Coupling, dt float64)
	noise(a, b []complex128, z []float64, dt float64, model NoiseModel)
	project(a, b []complex128)
	round(data []complex128)
}

type kernelSet[F float] struct {
	workers int
	itmax   int
	pot     []float64

	rotateK, diagonalK, fullK, projectK kernel[F]

	mu        sync.Mutex
	compiled map[Coupling]kernel[F]

	bufA, bufB, zbuf []F
}

func newKernelSet[F float](c *physics.Constants, workers int) *kernelSet[F] {
	nc := newNoiseCoeffs[F](c.L111, c.L12, c.L22, c.DV)
	return &kernelSet[F]{
		workers:   workers,
		itmax:     c.ItMax,
		pot:       c.Potentials,
		rotateK:   compileRotate[F](c.KVectors),
		diagonalK: compileDiagonalNoise(nc),
		fullK:     compileFullNoise(nc),
		projectK:  compileProjector[F](c.ProjectorMask),
		compiled:  make(map[Coupling]kernel[F]),
	}
}

// nonlinearKernel compiles the midpoint kernel once per coupling.
func (ks *kernelSet[F]) nonlinearKernel(cp Coupling) kernel[F] {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	k, ok := ks.compiled[cp]
	if !ok {
		k = compileNonlinear[F](ks.pot, cp, ks.itmax)
		ks.compiled[cp] = k
	}
	return k
}

func (ks *kernelSet[F]) upload(a, b []complex128) int {
	n := len(a)
	if cap(ks.bufA) < 2*n {
		ks.bufA = make([]F, 2*n)
		ks.bufB = make([]F, 2*n)
	}
	ks.bufA, ks.bufB = ks.bufA[:2*n], ks.bufB[:2*n]
	for i := 0; i < n; i++ {
		ks.bufA[2*i], ks.bufA[2*i+1] = F(real(a[i])), F(imag(a[i]))
		ks.bufB[2*i], ks.bufB[2*i+1] = F(real(b[i])), F(imag(b[i]))
	}
	return n
}

func (ks *kernelSet[F]) download(a, b []complex128) {
	for i := range a {
		a[i] = complex(float64(ks.bufA[2*i]), float64(ks.bufA[2*i+1]))
		b[i] = complex(float64(ks.bufB[2*i]), float64(ks.bufB[2*i+1]))
	}
}

func (ks *kernelSet[F]) run(k kernel[F], a, b []complex128, dt float64, z []F) {
	n := ks.upload(a, b)
	launch(ks.workers, n, k, ks.bufA, ks.bufB, F(dt), z)
	ks.download(a, b)
}

func (ks *kernelSet[F]) rotate(a, b []complex128, dt float64) {
	ks.run(ks.rotateK, a, b, dt, nil)
}

func (ks *kernelSet[F]) nonlinear(a, b []complex128, cp Coupling, dt float64) {
	ks.run(ks.nonlinearKernel(cp), a, b, dt, nil)
}

func (ks *kernelSet[F]) noise(a, b []complex128, z []float64, dt float64, model NoiseModel) {
	if cap(ks.zbuf) < len(z) {
		ks.zbuf = make([]F, len(z))
	}
	ks.zbuf = ks.zbuf[:len(z)]
	for i, v := range z {
		ks.zbuf[i] = F(v)
	}

	k := ks.diagonalK
	if model == NoiseFullMatrix {
		k = ks.fullK
	}
	ks.run(k, a, b, dt, ks.zbuf)
}

func (ks *kernelSet[F]) project(a, b []complex128) {
	ks.run(ks.projectK, a, b, 0, nil)
}

// round truncates data to the kernel precision.
func (ks *kernelSet[F]) round(data []complex128) {
	for i, v := range data {
		data[i] = complex(float64(F(real(v))), float64(F(imag(v))))
	}
}
