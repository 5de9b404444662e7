package config

import (
	"math"
	"sort"
)

// Presets reproduce the standard interferometry runs. Each is a full config
// derived from DefaultConfig.
var Presets = map[string]func() *Config{
	// Ramsey sequence on a mean-field trajectory.
	"visibility": func() *Config {
		cfg := DefaultConfig()
		cfg.Run.Duration = 0.1
		cfg.Run.Interval = 0.002
		cfg.Run.Collectors = []string{"particles", "visibility"}
		return cfg
	},
	// Truncated-Wigner ensemble with loss noise.
	"wigner": func() *Config {
		cfg := DefaultConfig()
		cfg.Model.N = 70000
		cfg.Model.Ensembles = 16
		cfg.Model.ECut = 2500
		cfg.Run.Duration = 0.05
		cfg.Run.Interval = 0.005
		cfg.Run.Noise = true
		cfg.Run.Wigner = true
		cfg.Run.Collectors = []string{"particles", "visibility"}
		return cfg
	},
	// Relative phase spread with a noisy splitting pulse.
	"phase_noise": func() *Config {
		cfg := DefaultConfig()
		cfg.Model.N = 70000
		cfg.Model.Ensembles = 32
		cfg.Model.ECut = 2500
		cfg.Run.Duration = 0.1
		cfg.Run.Interval = 0.01
		cfg.Run.Noise = true
		cfg.Run.Wigner = true
		cfg.Run.NoiseModel = "full"
		cfg.Run.Pulse.ThetaNoise = 0.5 * math.Pi / math.Sqrt(float64(cfg.Model.N))
		cfg.Run.Collectors = []string{"phase_noise", "visibility"}
		return cfg
	},
	// A grid small enough for smoke tests and benchmarks.
	"tiny": func() *Config {
		cfg := DefaultConfig()
		cfg.Model.N = 2000
		cfg.Model.Nvx, cfg.Model.Nvy, cfg.Model.Nvz = 4, 4, 16
		cfg.Model.Ensembles = 2
		cfg.Run.Duration = 0.002
		cfg.Run.Interval = 0.0005
		cfg.Run.Collectors = []string{"particles", "visibility", "phase_noise"}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
