package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestSpiralFirstOffsetIsTop(t *testing.T) {
	offsets := DefaultSpiralLayout().Offsets(2)
	require.Len(t, offsets, 2)

	assert.InDelta(t, 0, offsets[0].X, epsilon)
	assert.InDelta(t, -DefaultBaseRadius, offsets[0].Y, epsilon)

	// Clockwise on screen: the second item is to the right of the top one.
	assert.Greater(t, offsets[1].X, 0.0)
	assert.Less(t, offsets[1].Y, 0.0)
}

func TestSpiralSingleRing(t *testing.T) {
	layout := DefaultSpiralLayout()
	for n := 1; n <= layout.ItemsPerRevolution; n++ {
		for _, off := range layout.Offsets(n) {
			assert.InDelta(t, layout.BaseRadius, off.Norm(), epsilon, "n=%d", n)
		}
	}
}

func TestSpiralSecondRevolution(t *testing.T) {
	layout := DefaultSpiralLayout()
	offsets := layout.Offsets(layout.ItemsPerRevolution + 1)

	larger := 0
	for _, off := range offsets {
		if off.Norm() > layout.BaseRadius+epsilon {
			larger++
			assert.InDelta(t, layout.BaseRadius+layout.RadiusIncrement, off.Norm(), epsilon)
		}
	}
	assert.Equal(t, 1, larger)
}

func TestSpiralEdgeCases(t *testing.T) {
	assert.Empty(t, DefaultSpiralLayout().Offsets(0))
	assert.Empty(t, DefaultSpiralLayout().Offsets(-3))

	// A zero ring size falls back to the default instead of dividing by zero.
	broken := SpiralLayout{BaseRadius: 10, RadiusIncrement: 5}
	assert.Len(t, broken.Offsets(8), 8)
	assert.InDelta(t, 2*math.Pi/DefaultItemsPerRevolution, broken.AngleStep(), epsilon)
}

func TestSpiralProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	layout := DefaultSpiralLayout()

	properties.Property("layout is deterministic", prop.ForAll(
		func(n int) bool {
			a, b := layout.Offsets(n), layout.Offsets(n)
			if len(a) != n || len(b) != n {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 60),
	))

	properties.Property("no two offsets coincide", prop.ForAll(
		func(n int) bool {
			offsets := layout.Offsets(n)
			for i := range offsets {
				for j := i + 1; j < len(offsets); j++ {
					if offsets[i].Sub(offsets[j]).Norm() < 1 {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

func TestSpiralPlaceUsesProjection(t *testing.T) {
	proj := NewSimpleCRS(Viewport{Center: Coord{100, 100}, Zoom: 1, Size: r2.Point{X: 800, Y: 600}})
	layout := DefaultSpiralLayout()

	coords, err := layout.Place(Coord{100, 100}, proj, 1)
	require.NoError(t, err)
	require.Len(t, coords, 1)

	// 40px at scale 2 is 20 map units, and screen-up is map-up.
	assert.InDelta(t, 100, coords[0].X, epsilon)
	assert.InDelta(t, 120, coords[0].Y, epsilon)

	// Zooming in halves the map-space distance.
	proj.SetViewport(Viewport{Center: Coord{100, 100}, Zoom: 2, Size: r2.Point{X: 800, Y: 600}})
	coords, err = layout.Place(Coord{100, 100}, proj, 1)
	require.NoError(t, err)
	assert.InDelta(t, 110, coords[0].Y, epsilon)
}

func TestSpiralPlaceProjectionNotReady(t *testing.T) {
	_, err := DefaultSpiralLayout().Place(Coord{}, &SimpleCRS{}, 3)
	assert.ErrorIs(t, err, ErrProjectionNotReady)
}
