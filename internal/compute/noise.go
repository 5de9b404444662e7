package compute

import "math"

type float interface {
	~float32 | ~float64
}

// Three-body loss scales with n^3 and l111 is around 1e-42, below the float32
// range. Densities are multiplied by lossScale before squaring and l111 by
// lossScaleInv2, which keeps the product unchanged.
const (
	lossScale     = 1e-10
	lossScaleInv2 = 1e20
)

func sqrtF[F float](x F) F {
	return F(math.Sqrt(float64(x)))
}

// finite maps NaN and Inf to zero.
func finite[F float](x F) F {
	f := float64(x)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return x
}

func cexpF[F float](re, im F) (F, F) {
	m := math.Exp(float64(re))
	s, c := math.Sincos(float64(im))
	return F(m * c), F(m * s)
}

func cmulF[F float](ar, ai, br, bi F) (F, F) {
	return ar*br - ai*bi, ar*bi + ai*br
}

// noiseCoeffs are the loss coefficients of the noise matrix converted to F.
type noiseCoeffs[F float] struct {
	l111x9 F // 9*l111, pre-multiplied by lossScaleInv2
	l12    F
	l22x4  F
	scale  F
	// halfInvDV is 1/(2 dV); the matrix entries carry its square root.
	halfInvDV float64
	coeff     F
}

func newNoiseCoeffs[F float](l111, l12, l22, dV float64) noiseCoeffs[F] {
	h := 1 / (2 * dV)
	return noiseCoeffs[F]{
		l111x9:    F(9 * l111 * lossScaleInv2),
		l12:       F(l12),
		l22x4:     F(4 * l22),
		scale:     F(lossScale),
		halfInvDV: h,
		coeff:     F(math.Sqrt(h)),
	}
}

// diagonal returns the noise amplitudes of the diagonal model, excluding the
// sqrt(dt/(2 dV)) factor.
func (nc noiseCoeffs[F]) diagonal(n1, n2 F) (d11, d22 F) {
	t := n1 * nc.scale
	d11 = sqrtF(t*t*nc.l111x9 + nc.l12*n2)
	d22 = sqrtF(nc.l12*n1 + nc.l22x4*n2)
	return d11, d22
}

// matrix evaluates the full 2x4 noise matrix at (a, b). Entries 0-3 drive field
// a, entries 4-7 drive field b; each is a (re, im) pair. Branches of the
// decomposition that are not real or not finite are set to zero.
func (nc noiseCoeffs[F]) matrix(ar, ai, br, bi F) (g [8][2]F) {
	n1 := ar*ar + ai*ai
	n2 := br*br + bi*bi
	t := n1 * nc.scale

	a := nc.l12*n2 + nc.l111x9*t*t
	d := nc.l12*n1 + nc.l22x4*n2

	// l12 * a * conj(b)
	b := nc.l12 * (ar*br + ai*bi)
	c := nc.l12 * (ai*br - ar*bi)

	t1 := sqrtF(a)
	t2 := sqrtF(d - b*b/a)
	t3 := sqrtF(a + a*c*c/(b*b-a*d))

	k := nc.coeff
	g[0] = [2]F{finite(t1) * k, 0}
	g[1] = [2]F{0, finite(c/t2) * k}
	g[2] = [2]F{0, finite(t3) * k}
	g[4] = [2]F{finite(b/t1) * k, finite(-c/t1) * k}
	g[5] = [2]F{finite(t2) * k, finite(b*c/(a*t2)) * k}
	g[6] = [2]F{0, finite(b/a*t3) * k}
	g[7] = [2]F{0, finite(sqrtF((d*a-b*b-c*c)/a)) * k}
	return g
}

// heun applies one Stratonovich predictor-corrector increment to a single cell.
// zc and zp are the corrector and predictor variates, sdt is sqrt(dt).
func (nc noiseCoeffs[F]) heun(ar, ai, br, bi F, zc, zp [4]F, sdt F) (F, F, F, F) {
	g := nc.matrix(ar, ai, br, bi)

	sdt2 := sdt * F(math.Sqrt2/2)
	par, pai, pbr, pbi := ar, ai, br, bi
	for k := 0; k < 4; k++ {
		par += sdt2 * g[k][0] * zp[k]
		pai += sdt2 * g[k][1] * zp[k]
		pbr += sdt2 * g[4+k][0] * zp[k]
		pbi += sdt2 * g[4+k][1] * zp[k]
	}

	m1 := nc.matrix(par, pai, pbr, pbi)
	m2 := nc.matrix(par, pai, pbr, pbi)

	half := sdt / 2
	for k := 0; k < 4; k++ {
		ar += half * (m1[k][0] + m2[k][0]) * zc[k]
		ai += half * (m1[k][1] + m2[k][1]) * zc[k]
		br += half * (m1[4+k][0] + m2[4+k][0]) * zc[k]
		bi += half * (m1[4+k][1] + m2[4+k][1]) * zc[k]
	}
	return ar, ai, br, bi
}

// nonlinearCoeffs are the per-coupling constants of the midpoint iteration.
type nonlinearCoeffs[F float] struct {
	g11, g12, g22 F
	l111          F // pre-multiplied by lossScaleInv2
	l12, l22      F
	scale         F
	itmax         int
}

func newNonlinearCoeffs[F float](cp Coupling, itmax int) nonlinearCoeffs[F] {
	return nonlinearCoeffs[F]{
		g11:   F(cp.G11),
		g12:   F(cp.G12),
		g22:   F(cp.G22),
		l111:  F(cp.L111 * lossScaleInv2),
		l12:   F(cp.L12),
		l22:   F(cp.L22),
		scale: F(lossScale),
		itmax: itmax,
	}
}

// cell runs the midpoint iteration for one grid value with potential v.
func (k nonlinearCoeffs[F]) cell(ar, ai, br, bi, v, dt F) (F, F, F, F) {
	a0r, a0i, b0r, b0i := ar, ai, br, bi
	var dar, dai, dbr, dbi F
	h := dt / 2

	for it := 0; it < k.itmax; it++ {
		na := ar*ar + ai*ai
		nb := br*br + bi*bi
		t := na * k.scale

		paRe := -(t*t*k.l111 + k.l12*nb) / 2
		paIm := -(v + k.g11*na + k.g12*nb)
		pbRe := -(k.l22*nb + k.l12*na) / 2
		pbIm := -(v + k.g22*nb + k.g12*na)

		dar, dai = cexpF(paRe*h, paIm*h)
		dbr, dbi = cexpF(pbRe*h, pbIm*h)

		ar, ai = cmulF(a0r, a0i, dar, dai)
		br, bi = cmulF(b0r, b0i, dbr, dbi)
	}

	ar, ai = cmulF(ar, ai, dar, dai)
	br, bi = cmulF(br, bi, dbr, dbi)
	return ar, ai, br, bi
}
