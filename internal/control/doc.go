// Package control applies coherent pulses to a two-component cloud.
//
// A [Pulse] rotates the (a, b) spinor of every cell by an ideal two-level
// rotation matrix. Shot-to-shot fluctuations of the pulse area are modelled with
// a Gaussian spread of the rotation angle, drawn independently for each ensemble
// member:
//
//	p := control.NewPulse(seed)
//	err := p.Apply(cloud, math.Pi/2, control.WithThetaNoise(0.5*math.Pi/math.Sqrt(N)))
package control
