package spatial

import (
	"encoding/json"
	"math"
	"strconv"
)

// Coord is a position on the map image, in map units (pixel-like values of
// the source image, not degrees).
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Key returns the exact-match grouping key for the coordinate.
// Two coordinates share a key iff both components are equal.
func (c Coord) Key() string {
	return formatComponent(c.X) + "," + formatComponent(c.Y)
}

// formatComponent folds -0 into 0 so keys agree with Equal.
func formatComponent(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Equal reports exact equality of both components.
func (c Coord) Equal(o Coord) bool {
	return c.X == o.X && c.Y == o.Y
}

// Finite reports whether both components are finite numbers.
func (c Coord) Finite() bool {
	return !math.IsNaN(c.X) && !math.IsInf(c.X, 0) && !math.IsNaN(c.Y) && !math.IsInf(c.Y, 0)
}

// Pair returns the coordinate as an [x, y] pair
func (c Coord) Pair() [2]float64 {
	return [2]float64{c.X, c.Y}
}

// ParseCoord converts a coordinate-like value into a Coord.
// Accepted shapes are Coord, *Coord, [2]float64, []float64 and []any (as
// produced by encoding/json) with exactly two numeric components.
// Missing or non-numeric values return false.
func ParseCoord(v any) (Coord, bool) {
	switch c := v.(type) {
	case nil:
		return Coord{}, false
	case Coord:
		return c, true
	case *Coord:
		if c == nil {
			return Coord{}, false
		}
		return *c, true
	case [2]float64:
		return Coord{X: c[0], Y: c[1]}, true
	case []float64:
		if len(c) != 2 {
			return Coord{}, false
		}
		return Coord{X: c[0], Y: c[1]}, true
	case []any:
		if len(c) != 2 {
			return Coord{}, false
		}
		x, okX := toFloat(c[0])
		y, okY := toFloat(c[1])
		if !okX || !okY {
			return Coord{}, false
		}
		return Coord{X: x, Y: y}, true
	case map[string]any:
		x, okX := toFloat(c["x"])
		y, okY := toFloat(c["y"])
		if !okX || !okY {
			return Coord{}, false
		}
		return Coord{X: x, Y: y}, true
	}
	return Coord{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
