// Package compute provides the execution backends of the evolution engine.
//
// Two interchangeable implementations satisfy [Backend]:
//
//   - host: batched float64 array arithmetic, chunked across worker goroutines
//   - device: per-cell kernels compiled for the model precision and dispatched
//     in work groups of 256 items
//
// Both draw Gaussian variates from the same seeded source in the same order, so
// for equal seeds and inputs they agree to rounding.
//
//	b, err := compute.New("host", constants, seed)
//	if err := b.Acquire(); err != nil { ... }
//	defer b.Release()
//
// Fourier transforms are N-dimensional, built from 1-D passes along each axis
// and batched over ensemble members.
package compute
