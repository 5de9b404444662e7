package metrics

import (
	"fmt"
	"sort"

	"github.com/san-kum/becsim/internal/dynamo"
	"github.com/san-kum/becsim/internal/physics"
)

// Collector accumulates a time series from settled clouds.
type Collector interface {
	Name() string
	Observe(t float64, c *dynamo.Cloud)
	Series() Series
	Reset()
}

// Series is a collected time series. Rows[i] holds one value per column at Times[i].
type Series struct {
	Name    string
	Columns []string
	Times   []float64
	Rows    [][]float64
}

func newSeries(name string, columns ...string) Series {
	return Series{Name: name, Columns: columns}
}

func (s *Series) add(t float64, values ...float64) {
	s.Times = append(s.Times, t)
	s.Rows = append(s.Rows, values)
}

func (s *Series) reset() {
	s.Times, s.Rows = nil, nil
}

// Len is the number of samples.
func (s Series) Len() int { return len(s.Times) }

// Column returns the samples of one column, or nil if there is no such column.
func (s Series) Column(name string) []float64 {
	idx := -1
	for i, c := range s.Columns {
		if c == name {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r[idx]
	}
	return out
}

// Callback adapts a collector to the evolution callback contract.
func Callback(c Collector) dynamo.Callback {
	return func(t float64, cloud *dynamo.Cloud) dynamo.Signal {
		c.Observe(t, cloud)
		return dynamo.Continue
	}
}

func Callbacks(cs ...Collector) []dynamo.Callback {
	out := make([]dynamo.Callback, len(cs))
	for i, c := range cs {
		out[i] = Callback(c)
	}
	return out
}

// StopAfter returns a callback that stops the run once simulated time reaches limit.
func StopAfter(limit float64) dynamo.Callback {
	return func(t float64, _ *dynamo.Cloud) dynamo.Signal {
		if t >= limit {
			return dynamo.Stop
		}
		return dynamo.Continue
	}
}

// StopAfterCalls stops the run on the n-th invocation.
func StopAfterCalls(n int) dynamo.Callback {
	calls := 0
	return func(float64, *dynamo.Cloud) dynamo.Signal {
		calls++
		if calls >= n {
			return dynamo.Stop
		}
		return dynamo.Continue
	}
}

var registry = map[string]func(c *physics.Constants) Collector{
	"particles":   func(c *physics.Constants) Collector { return NewParticleNumber(c) },
	"visibility":  func(c *physics.Constants) Collector { return NewVisibility(c) },
	"phase_noise": func(c *physics.Constants) Collector { return NewPhaseNoise(c) },
}

// New builds a collector by name.
func New(name string, c *physics.Constants) (Collector, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown collector: %s", name)
	}
	return fn(c), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
