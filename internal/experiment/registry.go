package experiment

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/becsim/internal/config"
	"github.com/san-kum/becsim/internal/control"
	"github.com/san-kum/becsim/internal/metrics"
	"github.com/san-kum/becsim/internal/physics"
)

// buildCollectors resolves the configured collector names. A particle counter
// picks up the readout pulse when one is configured.
func buildCollectors(cfg *config.Config, c *physics.Constants, logger *slog.Logger) ([]metrics.Collector, error) {
	seen := make(map[string]bool)
	out := make([]metrics.Collector, 0, len(cfg.Run.Collectors))
	for _, name := range cfg.Run.Collectors {
		if seen[name] {
			return nil, fmt.Errorf("collector %s listed twice", name)
		}
		seen[name] = true

		if name == "particles" && cfg.Run.Pulse.Readout != 0 {
			pulse := control.NewPulse(cfg.Run.Seed + 2)
			out = append(out, metrics.NewParticleNumber(c,
				metrics.WithMeasurementPulse(pulse, cfg.Run.Pulse.Readout),
				metrics.WithParticleLogger(logger)))
			continue
		}
		col, err := metrics.New(name, c)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}
