package spatial

import "github.com/golang/geo/r2"

// MinPathPoints is the number of valid points a path needs to be drawable.
const MinPathPoints = 2

// ValidationResult is the outcome of sanitising a list of raw coordinates
type ValidationResult struct {
	Coordinates   []Coord `json:"coordinates"`
	Indices       []int   `json:"indices"` // input index of each kept coordinate
	OriginalCount int     `json:"originalCount"`
	ValidCount    int     `json:"validCount"`
	Valid         bool    `json:"valid"`
}

// Dropped returns how many input items were discarded.
func (r ValidationResult) Dropped() int {
	return r.OriginalCount - r.ValidCount
}

// Validator drops missing, non-numeric, non-finite and out-of-bounds
// coordinates. A nil Bounds disables the range check.
type Validator struct {
	Bounds *r2.Rect
}

// NewValidator creates a validator restricted to the given map bounds.
// An empty rect means no restriction.
func NewValidator(bounds r2.Rect) Validator {
	if bounds.IsEmpty() {
		return Validator{}
	}
	return Validator{Bounds: &bounds}
}

// Validate sanitises raw and keeps the relative order of valid items.
// It never fails; callers decide whether dropped items are worth reporting.
func (v Validator) Validate(raw []any) ValidationResult {
	result := ValidationResult{
		Coordinates:   make([]Coord, 0, len(raw)),
		Indices:       make([]int, 0, len(raw)),
		OriginalCount: len(raw),
	}

	for i, item := range raw {
		c, ok := ParseCoord(item)
		if !ok || !v.accepts(c) {
			continue
		}
		result.Coordinates = append(result.Coordinates, c)
		result.Indices = append(result.Indices, i)
	}

	result.ValidCount = len(result.Coordinates)
	result.Valid = result.ValidCount >= MinPathPoints
	return result
}

// Accepts reports whether a single coordinate passes validation.
func (v Validator) Accepts(c Coord) bool {
	return v.accepts(c)
}

func (v Validator) accepts(c Coord) bool {
	if !c.Finite() {
		return false
	}
	if v.Bounds != nil && !v.Bounds.ContainsPoint(r2.Point{X: c.X, Y: c.Y}) {
		return false
	}
	return true
}
