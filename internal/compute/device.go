package compute

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/becsim/internal/physics"
)

// DeviceBackend runs each primitive as a compiled per-cell kernel over
// ensembles*cells work items, dispatched in work groups of 256. Field data is
// uploaded to precision-specific buffers for every call, so single precision
// models run float32 kernels.
type DeviceBackend struct {
	c       *physics.Constants
	plan    *fftPlan
	rng     *gaussianSource
	workers int
	logger  *slog.Logger

	prog program
	z    []float64
}

func NewDeviceBackend(c *physics.Constants, seed uint64) *DeviceBackend {
	workers := DetectFeatures().Workers()
	return &DeviceBackend{
		c:       c,
		plan:    newFFTPlan(c.Shape, workers),
		rng:     newGaussianSource(seed),
		workers: workers,
		logger:  slog.Default().With(slog.String("component", "compute.device")),
	}
}

func (d *DeviceBackend) Name() string { return Device }

// Acquire compiles the kernels for the model precision.
func (d *DeviceBackend) Acquire() error {
	if d.prog != nil {
		return nil
	}
	switch d.c.Precision {
	case physics.Single:
		d.prog = newKernelSet[float32](d.c, d.workers)
	case physics.Double:
		d.prog = newKernelSet[float64](d.c, d.workers)
	default:
		return fmt.Errorf("compute: unsupported precision %v", d.c.Precision)
	}
	d.logger.Debug("backend acquired",
		slog.String("precision", d.c.Precision.String()),
		slog.Int("work_group", workGroupSize),
		slog.Int("workers", d.workers))
	return nil
}

func (d *DeviceBackend) Release() error {
	d.prog = nil
	d.z = nil
	d.logger.Debug("backend released")
	return nil
}

func (d *DeviceBackend) program() program {
	if d.prog == nil {
		panic(ErrNotAcquired)
	}
	return d.prog
}

func (d *DeviceBackend) Forward(data []complex128) error {
	return d.transform(data, false)
}

func (d *DeviceBackend) Inverse(data []complex128) error {
	return d.transform(data, true)
}

func (d *DeviceBackend) transform(data []complex128, inverse bool) error {
	if d.prog == nil {
		return ErrNotAcquired
	}
	if err := d.plan.execute(data, inverse); err != nil {
		return err
	}
	d.prog.round(data)
	return nil
}

// The primitives below panic with ErrNotAcquired when called outside an
// Acquire/Release bracket.

func (d *DeviceBackend) RotateKinetic(a, b []complex128, dt float64) {
	d.program().rotate(a, b, dt)
}

func (d *DeviceBackend) PropagateNonlinear(a, b []complex128, cp Coupling, dt float64) {
	d.program().nonlinear(a, b, cp, dt)
}

func (d *DeviceBackend) InjectNoise(a, b []complex128, dt float64, model NoiseModel) {
	p := d.program()
	d.z = growFloat(d.z, normalsPerCell(model)*len(a))
	d.rng.fill(d.z)
	p.noise(a, b, d.z, dt, model)
}

func (d *DeviceBackend) ApplyProjector(a, b []complex128) {
	d.program().project(a, b)
}

func (d *DeviceBackend) Normals(dst []float64) {
	d.rng.fill(dst)
}
