package evolution_test

import (
	"context"
	"math"
	"math/cmplx"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/becsim/internal/compute"
	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/evolution"
	"github.com/san-kum/becsim/internal/physics"
)

// dt is a power of two so accumulated step times are exact.
const dt = 1.0 / 8192

func maxDiff(x, y []complex128) float64 {
	m := 0.0
	for i := range x {
		m = math.Max(m, cmplx.Abs(x[i]-y[i]))
	}
	return m
}

var _ = Describe("Evolution", func() {
	var (
		c       *physics.Constants
		backend compute.Backend
		evo     *evolution.Evolution
		cloud   *dynamo.Cloud
	)

	BeforeEach(func() {
		m := physics.DefaultModel()
		m.N = 2000
		m.Nvx, m.Nvy, m.Nvz = 4, 4, 8
		m.Ensembles = 2
		m.DtEvo = dt

		var err error
		c, err = physics.NewConstants(m)
		Expect(err).NotTo(HaveOccurred())

		backend, err = compute.New(compute.Host, c, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(backend.Acquire()).To(Succeed())
		DeferCleanup(backend.Release)

		evo = evolution.New(c, backend)
		cloud, err = physics.NewThomasFermi(c).CreateCloud()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("midstep bookkeeping", func() {
		It("starts settled", func() {
			Expect(evo.Midstep()).To(BeFalse())
		})

		It("defers the trailing half step after Propagate", func() {
			Expect(evo.Propagate(cloud, dt, false)).To(Succeed())
			Expect(evo.Midstep()).To(BeTrue())
			Expect(cloud.Time).To(Equal(dt))
		})

		It("clears the pending half step on Settle", func() {
			Expect(evo.Propagate(cloud, dt, false)).To(Succeed())
			Expect(evo.Settle(cloud)).To(Succeed())
			Expect(evo.Midstep()).To(BeFalse())
		})

		It("treats Settle on a settled field as a no-op", func() {
			orig := cloud.Clone()
			Expect(evo.Settle(cloud)).To(Succeed())
			Expect(cloud.A).To(Equal(orig.A))
		})

		It("merges consecutive half steps without changing the result", func() {
			merged := cloud.Clone()
			split := cloud.Clone()

			for i := 0; i < 5; i++ {
				Expect(evo.Propagate(merged, dt, false)).To(Succeed())
			}
			Expect(evo.Settle(merged)).To(Succeed())

			for i := 0; i < 5; i++ {
				Expect(evo.Propagate(split, dt, false)).To(Succeed())
				Expect(evo.Settle(split)).To(Succeed())
			}

			scale := 0.0
			for _, v := range split.A {
				scale = math.Max(scale, cmplx.Abs(v))
			}
			Expect(maxDiff(merged.A, split.A)).To(BeNumerically("<", 1e-10*scale))
			Expect(maxDiff(merged.B, split.B)).To(BeNumerically("<", 1e-10*scale))
			Expect(merged.Time).To(Equal(split.Time))
		})

		It("refuses to Run with a pending half step", func() {
			Expect(evo.Propagate(cloud, dt, false)).To(Succeed())
			_, err := evo.Run(context.Background(), cloud, dt, nil, 0, false)
			Expect(err).To(MatchError(evolution.ErrUnsettled))
		})

		It("keeps the pending half step tied to its cloud", func() {
			other := cloud.Clone()
			Expect(evo.Propagate(cloud, dt, false)).To(Succeed())

			before := other.Clone()
			Expect(evo.Propagate(other, dt, false)).To(MatchError(evolution.ErrUnsettled))
			Expect(evo.Settle(other)).To(MatchError(evolution.ErrUnsettled))
			Expect(other.A).To(Equal(before.A))
			Expect(other.Time).To(Equal(before.Time))

			Expect(evo.Settle(cloud)).To(Succeed())
			Expect(evo.Propagate(other, dt, false)).To(Succeed())
			Expect(evo.Settle(other)).To(Succeed())
		})
	})

	Describe("Run", func() {
		var (
			times    []float64
			settled  []bool
			recorder dynamo.Callback
		)

		BeforeEach(func() {
			times, settled = nil, nil
			recorder = func(t float64, _ *dynamo.Cloud) dynamo.Signal {
				times = append(times, t)
				settled = append(settled, !evo.Midstep())
				return dynamo.Continue
			}
		})

		DescribeTable("callback timing",
			func(interval float64, want []float64) {
				end, err := evo.Run(context.Background(), cloud, 10*dt, []dynamo.Callback{recorder}, interval, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(end).To(Equal(10 * dt))
				Expect(times).To(Equal(want))
				Expect(settled).NotTo(ContainElement(false))
				Expect(evo.Midstep()).To(BeFalse())
			},
			Entry("every step", 0.0,
				[]float64{0, 1 * dt, 2 * dt, 3 * dt, 4 * dt, 5 * dt, 6 * dt, 7 * dt, 8 * dt, 9 * dt, 10 * dt}),
			Entry("every fourth step", 3*dt,
				[]float64{0, 4 * dt, 8 * dt}),
			Entry("interval longer than the run", 20*dt,
				[]float64{0, 10 * dt}),
		)

		It("continues from the cloud's current time", func() {
			cloud.Time = 1.0
			end, err := evo.Run(context.Background(), cloud, 4*dt, []dynamo.Callback{recorder}, 0, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(end).To(BeNumerically("~", 1.0+4*dt, 1e-12))
			Expect(times[0]).To(Equal(1.0))
		})

		It("stops at the first callback without advancing", func() {
			stop := func(float64, *dynamo.Cloud) dynamo.Signal { return dynamo.Stop }
			orig := cloud.Clone()

			end, err := evo.Run(context.Background(), cloud, 10*dt, []dynamo.Callback{stop, recorder}, 0, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(end).To(Equal(0.0))
			Expect(times).To(BeEmpty())
			Expect(cloud.A).To(Equal(orig.A))
		})

		It("stops mid-run with a settled field", func() {
			stopAt := func(t float64, _ *dynamo.Cloud) dynamo.Signal {
				if t >= 3*dt {
					return dynamo.Stop
				}
				return dynamo.Continue
			}
			end, err := evo.Run(context.Background(), cloud, 10*dt, []dynamo.Callback{recorder, stopAt}, 0, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(end).To(Equal(3 * dt))
			Expect(times).To(HaveLen(4))
			Expect(evo.Midstep()).To(BeFalse())
		})

		It("observes cancellation at the next callback point", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cancelAt := func(t float64, _ *dynamo.Cloud) dynamo.Signal {
				if t >= 2*dt {
					cancel()
				}
				return dynamo.Continue
			}
			end, err := evo.Run(ctx, cloud, 10*dt, []dynamo.Callback{cancelAt}, 0, false)
			Expect(err).To(MatchError(context.Canceled))
			Expect(end).To(Equal(3 * dt))
			Expect(evo.Midstep()).To(BeFalse())
		})

		It("runs without callbacks", func() {
			end, err := evo.Run(context.Background(), cloud, 6*dt, nil, 0, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(end).To(Equal(6 * dt))
			Expect(evo.Steps()).To(Equal(6))
			Expect(cloud.IsFinite()).To(BeTrue())
		})
	})
})
