package compute

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/becsim/internal/dynamo"
)

// fftPlan runs an N-dimensional transform as consecutive 1-D passes along each
// axis, batched over every ensemble member stored back to back in one slice.
type fftPlan struct {
	shape   []int
	cells   int
	workers int
}

func newFFTPlan(shape []int, workers int) *fftPlan {
	cells := 1
	for _, n := range shape {
		cells *= n
	}
	return &fftPlan{
		shape:   append([]int(nil), shape...),
		cells:   cells,
		workers: workers,
	}
}

// execute transforms data in place. The inverse direction carries the 1/N factor.
func (p *fftPlan) execute(data []complex128, inverse bool) error {
	if len(data) == 0 || len(data)%p.cells != 0 {
		return fmt.Errorf("%w: %d values for %d cells", ErrShape, len(data), p.cells)
	}

	for axis, n := range p.shape {
		if n == 1 {
			continue
		}
		stride := 1
		for _, m := range p.shape[axis+1:] {
			stride *= m
		}
		lines := len(data) / n

		dynamo.ParallelFor(lines, 8, p.workers, func(start, end int) {
			line := make([]complex128, n)
			for l := start; l < end; l++ {
				base := (l/stride)*n*stride + l%stride
				for j := 0; j < n; j++ {
					line[j] = data[base+j*stride]
				}

				var out []complex128
				if inverse {
					out = fft.IFFT(line)
				} else {
					out = fft.FFT(line)
				}

				for j := 0; j < n; j++ {
					data[base+j*stride] = out[j]
				}
			}
		})
	}
	return nil
}
