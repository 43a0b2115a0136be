// Package sensor simulates the BME280 environmental sensor the demo workers
// read and the Modbus RTU frames its readings travel in.
package sensor

import (
	"math/rand"
	"sync"
	"time"
)

// Reading is one BME280 sample.
type Reading struct {
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %RH
	Pressure    float64   `json:"pressure"`    // hPa
	Timestamp   time.Time `json:"ts"`
}

// Generator produces plausible readings for an indoor plant floor.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator drawing from rng. A nil rng is seeded from
// the clock.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// Read draws a sample: temperature 20-30, humidity 40-60, pressure 1008-1023.
func (g *Generator) Read() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Reading{
		Temperature: 20 + g.rng.Float64()*10,
		Humidity:    40 + g.rng.Float64()*20,
		Pressure:    1008 + g.rng.Float64()*15,
		Timestamp:   time.Now().UTC(),
	}
}
