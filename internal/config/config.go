package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/becsim/internal/physics"
)

const (
	DefaultDuration = 0.05
	DefaultInterval = 0.001
	DefaultBackend  = "host"
)

type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Run     RunConfig     `yaml:"run"`
	Backend BackendConfig `yaml:"backend"`
}

// ModelConfig mirrors physics.Model in file units: scattering lengths in Bohr
// radii, frequencies in Hz, loss rates in SI.
type ModelConfig struct {
	N         int        `yaml:"n"`
	A11       float64    `yaml:"a11"`
	A12       float64    `yaml:"a12"`
	A22       float64    `yaml:"a22"`
	Fx        float64    `yaml:"fx"`
	Fy        float64    `yaml:"fy"`
	Fz        float64    `yaml:"fz"`
	L111      float64    `yaml:"l111"`
	L12       float64    `yaml:"l12"`
	L22       float64    `yaml:"l22"`
	Nvx       int        `yaml:"nvx"`
	Nvy       int        `yaml:"nvy"`
	Nvz       int        `yaml:"nvz"`
	Box       [3]float64 `yaml:"box,flow"`
	BoxScale  float64    `yaml:"box_scale"`
	Dt        float64    `yaml:"dt"`
	ItMax     int        `yaml:"itmax"`
	Ensembles int        `yaml:"ensembles"`
	ECut      float64    `yaml:"e_cut"`
}

type RunConfig struct {
	Duration   float64     `yaml:"duration"`
	Interval   float64     `yaml:"interval"`
	Noise      bool        `yaml:"noise"`
	NoiseModel string      `yaml:"noise_model"`
	Wigner     bool        `yaml:"wigner"`
	Seed       uint64      `yaml:"seed"`
	Pulse      PulseConfig `yaml:"pulse"`
	Collectors []string    `yaml:"collectors"`
}

// PulseConfig describes the splitting pulse applied to the ground state before
// evolution. A zero Theta disables it.
type PulseConfig struct {
	Theta      float64 `yaml:"theta"`
	Phase      float64 `yaml:"phase"`
	ThetaNoise float64 `yaml:"theta_noise"`
	// Readout applies a pulse of this angle to a copy of the cloud before
	// counting atoms. Zero disables it.
	Readout float64 `yaml:"readout"`
}

type BackendConfig struct {
	Kind      string `yaml:"kind"`
	Precision string `yaml:"precision"`
}

func DefaultConfig() *Config {
	m := physics.DefaultModel()
	return &Config{
		Model: fromModel(m),
		Run: RunConfig{
			Duration:   DefaultDuration,
			Interval:   DefaultInterval,
			NoiseModel: "diagonal",
			Seed:       1,
			Pulse:      PulseConfig{Theta: math.Pi / 2},
			Collectors: []string{"particles", "visibility"},
		},
		Backend: BackendConfig{
			Kind:      DefaultBackend,
			Precision: m.Precision.String(),
		},
	}
}

func fromModel(m physics.Model) ModelConfig {
	return ModelConfig{
		N: m.N, A11: m.A11, A12: m.A12, A22: m.A22,
		Fx: m.Fx, Fy: m.Fy, Fz: m.Fz,
		L111: m.L111, L12: m.L12, L22: m.L22,
		Nvx: m.Nvx, Nvy: m.Nvy, Nvz: m.Nvz,
		Box: m.Box, BoxScale: m.BoxScale,
		Dt: m.DtEvo, ItMax: m.ItMax, Ensembles: m.Ensembles, ECut: m.ECut,
	}
}

// PhysicsModel converts the file representation into a validated physics.Model.
func (c *Config) PhysicsModel() (physics.Model, error) {
	prec, err := physics.ParsePrecision(c.Backend.Precision)
	if err != nil {
		return physics.Model{}, err
	}
	mc := c.Model
	m := physics.Model{
		N:    mc.N,
		Mass: physics.Rb87Mass,
		A11:  mc.A11, A12: mc.A12, A22: mc.A22,
		Fx: mc.Fx, Fy: mc.Fy, Fz: mc.Fz,
		L111: mc.L111, L12: mc.L12, L22: mc.L22,
		Nvx: mc.Nvx, Nvy: mc.Nvy, Nvz: mc.Nvz,
		Box:       mc.Box,
		BoxScale:  mc.BoxScale,
		DtEvo:     mc.Dt,
		ItMax:     mc.ItMax,
		Ensembles: mc.Ensembles,
		ECut:      mc.ECut,
		Precision: prec,
	}
	if err := m.Validate(); err != nil {
		return physics.Model{}, err
	}
	return m, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Run.Collectors = append([]string(nil), c.Run.Collectors...)
	return &out
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
