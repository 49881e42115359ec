// Package generator produces synthetic sensor-log samples within the probe's normal
// operating ranges.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/kjstillabower/water-quality-monitor/internal/models"
)

// Range is an inclusive [Min, Max] interval sampled uniformly and rounded to Decimals.
type Range struct {
	Min      float64
	Max      float64
	Decimals int
}

// Ranges for each generated field.
var (
	TemperatureRange = Range{Min: 27.0, Max: 31.5, Decimals: 2}
	TDSRange         = Range{Min: 350, Max: 520, Decimals: 3}
	PHRange          = Range{Min: 7.0, Max: 8.3, Decimals: 2}
	ORPRange         = Range{Min: 180, Max: 320, Decimals: 2}
)

// Generator draws samples from its own random source. Not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator. A non-zero seed gives a reproducible sequence; zero seeds
// from the current time.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns one synthetic sample stamped with ts.
func (g *Generator) Sample(ts time.Time) models.Sample {
	return models.Sample{
		Timestamp:   ts.Format(models.TimestampLayout),
		Temperature: g.draw(TemperatureRange),
		TDS:         g.draw(TDSRange),
		PH:          g.draw(PHRange),
		ORP:         g.draw(ORPRange),
	}
}

func (g *Generator) draw(r Range) float64 {
	return Round(r.Min+g.rng.Float64()*(r.Max-r.Min), r.Decimals)
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Timestamps returns count instants starting at base and spaced by interval.
func Timestamps(base time.Time, count int, interval time.Duration) []time.Time {
	if count <= 0 {
		return nil
	}
	out := make([]time.Time, count)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * interval)
	}
	return out
}
