// Package rank maps agent point totals onto named rank bands.
package rank

// Rank band names, lowest to highest.
const (
	Initiate  = "INITIATE"
	Operative = "OPERATIVE"
	Agent     = "AGENT"
	Sentinel  = "SENTINEL"
)

// band is a half-open score interval [Min, Max).
type band struct {
	Name string
	Min  int
	Max  int // exclusive; Sentinel has no upper bound
}

// bands in ascending order. Thresholds are fixed product values.
var bands = []band{
	{Name: Initiate, Min: 0, Max: 100},
	{Name: Operative, Min: 100, Max: 500},
	{Name: Agent, Min: 500, Max: 1000},
	{Name: Sentinel, Min: 1000, Max: 0},
}

// ForPoints returns the rank band name for a point total. Total function:
// negative scores clamp to the lowest band.
func ForPoints(points int) string {
	for _, b := range bands[:len(bands)-1] {
		if points < b.Max {
			return b.Name
		}
	}
	return Sentinel
}

// Next returns the band above the given one, or "" for the top band or an
// unknown name.
func Next(name string) string {
	for i, b := range bands {
		if b.Name == name && i+1 < len(bands) {
			return bands[i+1].Name
		}
	}
	return ""
}

// Progress reports progression through the current band: percent in [0,100]
// and points remaining to the next band. The top band is always 100 / 0.
func Progress(points int) (percent float64, toNext int) {
	for _, b := range bands[:len(bands)-1] {
		if points < b.Max {
			if points < b.Min {
				return 0, b.Max - b.Min
			}
			span := b.Max - b.Min
			return float64(points-b.Min) / float64(span) * 100, b.Max - points
		}
	}
	return 100, 0
}
