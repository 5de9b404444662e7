package compute

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

func testConstants(t testing.TB, prec physics.Precision) *physics.Constants {
	t.Helper()
	m := physics.DefaultModel()
	m.N = 1000
	m.Nvx, m.Nvy, m.Nvz = 4, 4, 8
	m.Ensembles = 2
	m.Precision = prec
	c, err := physics.NewConstants(m)
	if err != nil {
		t.Fatalf("NewConstants: %v", err)
	}
	return c
}

// untrappedConstants has zero potential and no loss.
func untrappedConstants(t testing.TB) *physics.Constants {
	t.Helper()
	m := physics.DefaultModel()
	m.Nvx, m.Nvy, m.Nvz = 4, 4, 4
	m.Ensembles = 2
	m.Fx, m.Fy, m.Fz = 0, 0, 0
	m.L111, m.L12, m.L22 = 0, 0, 0
	m.Box = [3]float64{1e-5, 1e-5, 1e-5}
	c, err := physics.NewConstants(m)
	if err != nil {
		t.Fatalf("NewConstants: %v", err)
	}
	return c
}

func acquire(t testing.TB, kind string, c *physics.Constants, seed uint64) Backend {
	t.Helper()
	b, err := New(kind, c, seed)
	if err != nil {
		t.Fatalf("New(%q): %v", kind, err)
	}
	if err := b.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = b.Release() })
	return b
}

func randomField(rng *rand.Rand, n int, scale float64) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(rng.NormFloat64()*scale, rng.NormFloat64()*scale)
	}
	return out
}

func maxAbs(v []complex128) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, cmplx.Abs(x))
	}
	return m
}

func maxDiff(x, y []complex128) float64 {
	m := 0.0
	for i := range x {
		m = math.Max(m, cmplx.Abs(x[i]-y[i]))
	}
	return m
}

func clone(v []complex128) []complex128 {
	return append([]complex128(nil), v...)
}

func TestNew_UnknownBackend(t *testing.T) {
	c := testConstants(t, physics.Double)
	for _, kind := range []string{"", "cuda", "opencl"} {
		if _, err := New(kind, c, 1); !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("New(%q): expected ErrUnknownBackend, got %v", kind, err)
		}
	}
	for _, kind := range []string{"host", "Device", " host "} {
		b, err := New(kind, c, 1)
		if err != nil {
			t.Errorf("New(%q): %v", kind, err)
			continue
		}
		if b.Name() != Host && b.Name() != Device {
			t.Errorf("New(%q).Name() = %q", kind, b.Name())
		}
	}
}

func TestParseNoiseModel(t *testing.T) {
	tests := []struct {
		in   string
		want NoiseModel
		ok   bool
	}{
		{"", NoiseDiagonal, true},
		{"diagonal", NoiseDiagonal, true},
		{"full", NoiseFullMatrix, true},
		{"Full_Matrix", NoiseFullMatrix, true},
		{"peter", NoiseDiagonal, false},
	}
	for _, tt := range tests {
		got, err := ParseNoiseModel(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseNoiseModel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNoiseModel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDevice_NotAcquired(t *testing.T) {
	c := testConstants(t, physics.Double)
	d := NewDeviceBackend(c, 1)
	if err := d.Forward(make([]complex128, c.Cells)); !errors.Is(err, ErrNotAcquired) {
		t.Errorf("expected ErrNotAcquired, got %v", err)
	}
}

func TestFFT_RoundTrip(t *testing.T) {
	c := testConstants(t, physics.Double)
	rng := rand.New(rand.NewSource(3))

	for _, kind := range Kinds() {
		t.Run(kind, func(t *testing.T) {
			b := acquire(t, kind, c, 1)
			orig := randomField(rng, 2*c.Cells, 1)
			data := clone(orig)

			if err := b.Forward(data); err != nil {
				t.Fatalf("Forward: %v", err)
			}
			if maxDiff(orig, data) < 1e-3 {
				t.Fatal("forward transform left data unchanged")
			}
			if err := b.Inverse(data); err != nil {
				t.Fatalf("Inverse: %v", err)
			}

			tol := 1e-12 * float64(c.Cells)
			if d := maxDiff(orig, data); d > tol {
				t.Errorf("round trip error %g exceeds %g", d, tol)
			}
		})
	}
}

func TestFFT_Parseval(t *testing.T) {
	c := testConstants(t, physics.Double)
	b := acquire(t, Host, c, 1)
	rng := rand.New(rand.NewSource(5))

	data := randomField(rng, c.Cells, 1)
	px := 0.0
	for _, v := range data {
		px += sqAbs(v)
	}
	if err := b.Forward(data); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	pk := 0.0
	for _, v := range data {
		pk += sqAbs(v)
	}
	if math.Abs(pk/float64(c.Cells)-px)/px > 1e-12 {
		t.Errorf("sum |X|^2 / N = %g, want %g", pk/float64(c.Cells), px)
	}
}

func TestFFT_EnsemblesIndependent(t *testing.T) {
	c := testConstants(t, physics.Double)
	b := acquire(t, Host, c, 1)

	// A constant member transforms to a single k=0 spike and leaves the other
	// member untouched.
	data := make([]complex128, 2*c.Cells)
	for i := 0; i < c.Cells; i++ {
		data[i] = 1
	}
	if err := b.Forward(data); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if cmplx.Abs(data[0]-complex(float64(c.Cells), 0)) > 1e-9 {
		t.Errorf("k=0 component = %v, want %d", data[0], c.Cells)
	}
	for i := 1; i < len(data); i++ {
		if cmplx.Abs(data[i]) > 1e-9 {
			t.Fatalf("unexpected component %v at %d", data[i], i)
		}
	}
}

func TestFFT_BadLength(t *testing.T) {
	c := testConstants(t, physics.Double)
	b := acquire(t, Host, c, 1)
	if err := b.Forward(make([]complex128, c.Cells+1)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestRotateKinetic_HalfStepMerge(t *testing.T) {
	c := testConstants(t, physics.Double)
	rng := rand.New(rand.NewSource(7))

	for _, kind := range Kinds() {
		for _, dt := range []float64{1e-5, 4e-5, 3.7e-4} {
			b := acquire(t, kind, c, 1)
			a1 := randomField(rng, 2*c.Cells, 1e9)
			b1 := randomField(rng, 2*c.Cells, 1e9)
			a2, b2 := clone(a1), clone(b1)

			b.RotateKinetic(a1, b1, dt)
			b.RotateKinetic(a1, b1, dt)
			b.RotateKinetic(a2, b2, 2*dt)

			tol := 1e-12 * maxAbs(a2)
			if d := maxDiff(a1, a2); d > tol {
				t.Errorf("%s dt=%g: merged rotation differs by %g", kind, dt, d)
			}
			if d := maxDiff(b1, b2); d > tol {
				t.Errorf("%s dt=%g: merged rotation differs by %g", kind, dt, d)
			}
		}
	}
}

func TestApplyProjector_Idempotent(t *testing.T) {
	m := physics.DefaultModel()
	m.N = 1000
	m.Nvx, m.Nvy, m.Nvz = 4, 4, 8
	m.ECut = 200
	c, err := physics.NewConstants(m)
	if err != nil {
		t.Fatalf("NewConstants: %v", err)
	}
	rng := rand.New(rand.NewSource(11))

	for _, kind := range Kinds() {
		b := acquire(t, kind, c, 1)
		a1 := randomField(rng, c.Cells, 1)
		b1 := randomField(rng, c.Cells, 1)

		b.ApplyProjector(a1, b1)
		a2, b2 := clone(a1), clone(b1)
		b.ApplyProjector(a2, b2)

		if maxDiff(a1, a2) != 0 || maxDiff(b1, b2) != 0 {
			t.Errorf("%s: projector is not idempotent", kind)
		}
		zeroed := 0
		for i, v := range c.ProjectorMask {
			if v == 0 {
				zeroed++
				if a1[i] != 0 || b1[i] != 0 {
					t.Fatalf("%s: mode %d above cutoff survived", kind, i)
				}
			}
		}
		if zeroed == 0 {
			t.Fatalf("cutoff too high for the test grid")
		}
	}
}

func TestPropagateNonlinear_UniformPhase(t *testing.T) {
	c := untrappedConstants(t)
	cp := CouplingFor(c, dynamo.Comp1, dynamo.Comp2)
	dt := 1e-3

	for _, kind := range Kinds() {
		b := acquire(t, kind, c, 1)
		n := 2 * c.Cells
		fa := make([]complex128, n)
		fb := make([]complex128, n)
		// n = 1e20 m^-3 gives phases of a few radians.
		amp := 1e10
		n0 := amp * amp
		for i := range fa {
			fa[i], fb[i] = complex(amp, 0), complex(amp, 0)
		}

		b.PropagateNonlinear(fa, fb, cp, dt)

		wantA := complex(amp, 0) * cmplx.Exp(complex(0, -(cp.G11+cp.G12)*n0*dt))
		wantB := complex(amp, 0) * cmplx.Exp(complex(0, -(cp.G22+cp.G12)*n0*dt))
		for i := range fa {
			if cmplx.Abs(fa[i]-wantA) > 1e-9*amp || cmplx.Abs(fb[i]-wantB) > 1e-9*amp {
				t.Fatalf("%s: cell %d got (%v, %v), want (%v, %v)", kind, i, fa[i], fb[i], wantA, wantB)
			}
		}
	}
}

func TestPropagateNonlinear_LossDecays(t *testing.T) {
	c := testConstants(t, physics.Double)
	cp := CouplingFor(c, dynamo.Comp1, dynamo.Comp2)
	b := acquire(t, Host, c, 1)
	rng := rand.New(rand.NewSource(13))

	fa := randomField(rng, c.Cells, 1e10)
	fb := randomField(rng, c.Cells, 1e10)
	before := clone(fa)

	b.PropagateNonlinear(fa, fb, cp, 1e-3)
	for i := range fa {
		if cmplx.Abs(fa[i]) > cmplx.Abs(before[i]) {
			t.Fatalf("cell %d grew under loss: %g -> %g", i, cmplx.Abs(before[i]), cmplx.Abs(fa[i]))
		}
	}
}

func TestNoiseMatrix_ZeroClamp(t *testing.T) {
	nc := newNoiseCoeffs[float64](5.4e-42, 1.51e-20, 8.1e-20, 1e-18)

	g := nc.matrix(0, 0, 0, 0)
	for k, e := range g {
		if e[0] != 0 || e[1] != 0 {
			t.Errorf("entry %d = %v, want 0 for an empty cell", k, e)
		}
	}

	g = nc.matrix(3e9, -1e9, 2e9, 5e8)
	for k, e := range g {
		if math.IsNaN(e[0]) || math.IsNaN(e[1]) || math.IsInf(e[0], 0) || math.IsInf(e[1], 0) {
			t.Errorf("entry %d = %v is not finite", k, e)
		}
	}
}

func TestNoiseMatrix_ReducesToDiagonal(t *testing.T) {
	nc := newNoiseCoeffs[float64](5.4e-42, 1.51e-20, 8.1e-20, 1e-18)

	// With b = 0 there is no cross correlation and the full matrix carries the
	// diagonal amplitudes.
	ar, ai := 3e9, 4e9
	g := nc.matrix(ar, ai, 0, 0)
	d11, d22 := nc.diagonal(ar*ar+ai*ai, 0)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"G0 re", g[0][0], d11 * nc.coeff},
		{"G2 im", g[2][1], d11 * nc.coeff},
		{"G5 re", g[5][0], d22 * nc.coeff},
		{"G7 im", g[7][1], d22 * nc.coeff},
		{"G4 re", g[4][0], 0},
		{"G6 im", g[6][1], 0},
	}
	for _, ck := range checks {
		if math.Abs(ck.got-ck.want) > 1e-9*math.Abs(d11*nc.coeff) {
			t.Errorf("%s = %g, want %g", ck.name, ck.got, ck.want)
		}
	}
}

// The increment of a Heun step is sqrt(dt) G z to leading order, so each
// quadrature has variance dt times the squared row of G at the start state.
func TestInjectNoise_FullMatrixVariance(t *testing.T) {
	c := testConstants(t, physics.Double)
	dt := c.Dt
	a0 := complex(1e10, 0)
	b0 := complex(1e10, 0) * complex(0.6, 0.8)

	g := newNoiseCoeffs[float64](c.L111, c.L12, c.L22, c.DV).matrix(real(a0), imag(a0), real(b0), imag(b0))
	var want [4]float64
	for k := 0; k < 4; k++ {
		want[0] += g[k][0] * g[k][0]
		want[1] += g[k][1] * g[k][1]
		want[2] += g[4+k][0] * g[4+k][0]
		want[3] += g[4+k][1] * g[4+k][1]
	}
	for j := range want {
		want[j] *= dt
	}

	names := [4]string{"re a", "im a", "re b", "im b"}
	for _, kind := range Kinds() {
		b := acquire(t, kind, c, 17)
		n := c.Ensembles * c.Cells
		var samples [4][]float64
		for trial := 0; trial < 40; trial++ {
			fa := make([]complex128, n)
			fb := make([]complex128, n)
			for i := range fa {
				fa[i], fb[i] = a0, b0
			}
			b.InjectNoise(fa, fb, dt, NoiseFullMatrix)
			for i := range fa {
				da, db := fa[i]-a0, fb[i]-b0
				samples[0] = append(samples[0], real(da))
				samples[1] = append(samples[1], imag(da))
				samples[2] = append(samples[2], real(db))
				samples[3] = append(samples[3], imag(db))
			}
		}

		for j, s := range samples {
			if want[j] == 0 {
				t.Fatalf("%s: zero expected variance for %s", kind, names[j])
			}
			mean, variance := stat.MeanVariance(s, nil)
			if math.Abs(mean) > 5*math.Sqrt(want[j]/float64(len(s))) {
				t.Errorf("%s %s: mean increment %g, want ~0", kind, names[j], mean)
			}
			if math.Abs(variance-want[j])/want[j] > 0.1 {
				t.Errorf("%s %s: variance %g, want %g", kind, names[j], variance, want[j])
			}
		}
	}
}

func TestBackendEquivalence(t *testing.T) {
	tests := []struct {
		name string
		prec physics.Precision
		tol  float64
	}{
		{"double", physics.Double, 1e-9},
		{"single", physics.Single, 1e-4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConstants(t, tt.prec)
			cp := CouplingFor(c, dynamo.Comp1, dynamo.Comp2)
			host := acquire(t, Host, c, 42)
			dev := acquire(t, Device, c, 42)

			rng := rand.New(rand.NewSource(17))
			ha := randomField(rng, 2*c.Cells, 1e10)
			hb := randomField(rng, 2*c.Cells, 1e10)
			da, db := clone(ha), clone(hb)

			steps := []struct {
				name string
				run  func(b Backend, a, bb []complex128)
			}{
				{"rotate", func(b Backend, a, bb []complex128) { b.RotateKinetic(a, bb, c.Dt) }},
				{"nonlinear", func(b Backend, a, bb []complex128) { b.PropagateNonlinear(a, bb, cp, c.Dt) }},
				{"diagonal noise", func(b Backend, a, bb []complex128) { b.InjectNoise(a, bb, c.Dt, NoiseDiagonal) }},
				{"full noise", func(b Backend, a, bb []complex128) { b.InjectNoise(a, bb, c.Dt, NoiseFullMatrix) }},
				{"projector", func(b Backend, a, bb []complex128) { b.ApplyProjector(a, bb) }},
			}

			for _, s := range steps {
				s.run(host, ha, hb)
				s.run(dev, da, db)

				scale := math.Max(maxAbs(ha), maxAbs(hb))
				if d := math.Max(maxDiff(ha, da), maxDiff(hb, db)); d > tt.tol*scale {
					t.Fatalf("after %s: backends differ by %g (scale %g)", s.name, d, scale)
				}
			}
		})
	}
}

func TestNormals_Reproducible(t *testing.T) {
	c := testConstants(t, physics.Double)
	x := make([]float64, 64)
	y := make([]float64, 64)
	acquire(t, Host, c, 9).Normals(x)
	acquire(t, Device, c, 9).Normals(y)
	for i := range x {
		if x[i] != y[i] {
			t.Fatalf("normals differ at %d: %g vs %g", i, x[i], y[i])
		}
	}
}

func BenchmarkHostNonlinear(b *testing.B) {
	benchmarkNonlinear(b, Host)
}

func BenchmarkDeviceNonlinear(b *testing.B) {
	benchmarkNonlinear(b, Device)
}

func benchmarkNonlinear(b *testing.B, kind string) {
	c := testConstants(b, physics.Double)
	be := acquire(b, kind, c, 1)
	cp := CouplingFor(c, dynamo.Comp1, dynamo.Comp2)
	rng := rand.New(rand.NewSource(1))
	fa := randomField(rng, 2*c.Cells, 1e10)
	fb := randomField(rng, 2*c.Cells, 1e10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		be.PropagateNonlinear(fa, fb, cp, c.Dt)
	}
}

func BenchmarkHostFFT(b *testing.B) {
	c := testConstants(b, physics.Double)
	be := acquire(b, Host, c, 1)
	data := randomField(rand.New(rand.NewSource(1)), 2*c.Cells, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = be.Forward(data)
		_ = be.Inverse(data)
	}
}
