package spatial

import "github.com/golang/geo/r2"

// Centroid calculates the arithmetic centre of a set of coordinates
func Centroid(coords []Coord) Coord {
	if len(coords) == 0 {
		return Coord{}
	}

	var sumX, sumY float64
	for _, c := range coords {
		sumX += c.X
		sumY += c.Y
	}

	return Coord{
		X: sumX / float64(len(coords)),
		Y: sumY / float64(len(coords)),
	}
}

// Bounds calculates the bounding rectangle of a set of coordinates.
// Returns an empty rect for no input.
func Bounds(coords []Coord) r2.Rect {
	rect := r2.EmptyRect()
	for _, c := range coords {
		rect = rect.AddPoint(r2.Point{X: c.X, Y: c.Y})
	}
	return rect
}

// Topmost returns the index of the point with the smallest screen y.
// Ties keep the earliest index. Returns -1 for no input.
func Topmost(pixels []r2.Point) int {
	best := -1
	for i, p := range pixels {
		if best == -1 || p.Y < pixels[best].Y {
			best = i
		}
	}
	return best
}
