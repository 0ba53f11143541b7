// Package sensors generates the simulated environment readings served by
// GET /api/sensors/all. There is no physical sensor hardware behind it.
package sensors

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Reading ranges.
const (
	MinTemperature = 22.0
	MaxTemperature = 26.0
	MinHumidity    = 40.0
	MaxHumidity    = 60.0
	MinLight       = 100.0
	MaxLight       = 800.0
)

// Reading is one snapshot of all simulated sensors.
type Reading struct {
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	MotionDetected bool    `json:"motion_detected"`
	Light          float64 `json:"light"`
}

// Generator produces random readings. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator creates a Generator. A nil source uses a randomly seeded PCG.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rnd: rand.New(src)} //nolint:gosec // Simulated readings
}

// Read returns a fresh reading, each value rounded to one decimal place.
func (g *Generator) Read() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Reading{
		Temperature:    g.uniform(MinTemperature, MaxTemperature),
		Humidity:       g.uniform(MinHumidity, MaxHumidity),
		MotionDetected: g.rnd.IntN(2) == 1,
		Light:          g.uniform(MinLight, MaxLight),
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return round1(lo + g.rnd.Float64()*(hi-lo))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
