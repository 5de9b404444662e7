package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/becsim/internal/compute"
	"github.com/san-kum/becsim/internal/config"
	"github.com/san-kum/becsim/internal/evolution"
	"github.com/san-kum/becsim/internal/physics"
)

type BenchResult struct {
	Backend   string
	Precision string
	Cells     int
	Ensembles int
	Steps     int
	Elapsed   time.Duration
}

func (b BenchResult) StepsPerSecond() float64 {
	if b.Elapsed <= 0 {
		return 0
	}
	return float64(b.Steps) / b.Elapsed.Seconds()
}

// Benchmark times steps Propagate calls on the Thomas-Fermi state of cfg using
// the backend kind. Setup and the final Settle are excluded.
func Benchmark(ctx context.Context, cfg *config.Config, kind string, steps int) (BenchResult, error) {
	if steps <= 0 {
		return BenchResult{}, fmt.Errorf("benchmark needs a positive step count, got %d", steps)
	}
	model, err := cfg.PhysicsModel()
	if err != nil {
		return BenchResult{}, err
	}
	c, err := physics.NewConstants(model)
	if err != nil {
		return BenchResult{}, err
	}
	nm, err := compute.ParseNoiseModel(cfg.Run.NoiseModel)
	if err != nil {
		return BenchResult{}, err
	}

	backend, err := compute.New(kind, c, cfg.Run.Seed)
	if err != nil {
		return BenchResult{}, err
	}
	if err := backend.Acquire(); err != nil {
		return BenchResult{}, err
	}
	defer backend.Release()

	cloud, err := physics.NewThomasFermi(c).CreateCloud()
	if err != nil {
		return BenchResult{}, err
	}
	evo := evolution.New(c, backend, evolution.WithNoiseModel(nm))

	res := BenchResult{
		Backend:   backend.Name(),
		Precision: c.Precision.String(),
		Cells:     c.Cells,
		Ensembles: c.Ensembles,
	}
	start := time.Now()
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := evo.Propagate(cloud, c.Dt, cfg.Run.Noise); err != nil {
			return res, err
		}
		res.Steps++
	}
	res.Elapsed = time.Since(start)
	return res, evo.Settle(cloud)
}
