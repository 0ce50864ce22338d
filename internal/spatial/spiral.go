package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Default spiral geometry, in screen pixels.
const (
	DefaultBaseRadius         = 40.0
	DefaultRadiusIncrement    = 25.0
	DefaultItemsPerRevolution = 6
)

// SpiralLayout spreads N stacked markers around a shared centre.
// Items fill rings of ItemsPerRevolution; each further ring is
// RadiusIncrement pixels farther out.
type SpiralLayout struct {
	BaseRadius         float64 `json:"baseRadius" yaml:"base_radius"`
	RadiusIncrement    float64 `json:"radiusIncrement" yaml:"radius_increment"`
	ItemsPerRevolution int     `json:"itemsPerRevolution" yaml:"items_per_revolution"`
}

// DefaultSpiralLayout returns the layout used by the map view
func DefaultSpiralLayout() SpiralLayout {
	return SpiralLayout{
		BaseRadius:         DefaultBaseRadius,
		RadiusIncrement:    DefaultRadiusIncrement,
		ItemsPerRevolution: DefaultItemsPerRevolution,
	}
}

// AngleStep returns the angular distance between neighbours of one ring
func (l SpiralLayout) AngleStep() float64 {
	return 2 * math.Pi / float64(l.perRevolution())
}

func (l SpiralLayout) perRevolution() int {
	if l.ItemsPerRevolution < 1 {
		return DefaultItemsPerRevolution
	}
	return l.ItemsPerRevolution
}

// Offsets returns exactly n screen-space offsets. Index 0 sits straight
// above the centre and the ring proceeds clockwise (screen y grows down).
func (l SpiralLayout) Offsets(n int) []r2.Point {
	if n <= 0 {
		return nil
	}

	per := l.perRevolution()
	step := l.AngleStep()
	offsets := make([]r2.Point, n)
	for i := 0; i < n; i++ {
		revolution := i / per
		angle := float64(i%per)*step - math.Pi/2
		radius := l.BaseRadius + float64(revolution)*l.RadiusIncrement
		offsets[i] = r2.Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
	}
	return offsets
}

// Place converts n spiral offsets around center into map coordinates
// using the projection's current state.
func (l SpiralLayout) Place(center Coord, proj Projection, n int) ([]Coord, error) {
	origin, err := proj.CoordToPixel(center)
	if err != nil {
		return nil, fmt.Errorf("failed to project cluster centre: %w", err)
	}

	offsets := l.Offsets(n)
	coords := make([]Coord, len(offsets))
	for i, off := range offsets {
		c, err := proj.PixelToCoord(origin.Add(off))
		if err != nil {
			return nil, fmt.Errorf("failed to unproject offset %d: %w", i, err)
		}
		coords[i] = c
	}
	return coords, nil
}
