// Package evolution advances a two-component condensate with the split-step
// method.
//
// Each step rotates the kinetic phase in momentum space, propagates the
// interaction and loss terms in position space with a fixed-point midpoint
// iteration, and for truncated-Wigner clouds projects out modes above the cutoff
// and injects multiplicative noise. Consecutive kinetic half steps are merged
// into one rotation; callbacks only ever see settled fields in position space.
//
//	evo := evolution.New(constants, backend, evolution.WithNoiseModel(compute.NoiseDiagonal))
//	t, err := evo.Run(ctx, cloud, 0.1, metrics.Callbacks(vis), 0.005, true)
package evolution
