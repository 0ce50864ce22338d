package models

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// Point is one renderable stop of a path
type Point struct {
	Coordinates   spatial.Coord  `json:"coordinates"`
	Record        MovementRecord `json:"record"`
	SequenceIndex int            `json:"sequenceIndex"` // 0-based position in temporal order
	Current       bool           `json:"current,omitempty"`
}

// Label returns the 1-based stop number shown on the marker.
func (p Point) Label() int {
	return p.SequenceIndex + 1
}

// DateStart returns the start date of the underlying record
func (p Point) DateStart() time.Time {
	return p.Record.DateStart
}

// Path is the ordered polyline connecting an entity's valid stops
type Path struct {
	EntityID string  `json:"entityId"`
	Points   []Point `json:"points"`
	Style    Style   `json:"style"`
}

// Coordinates returns the polyline vertices in path order.
func (p Path) Coordinates() []spatial.Coord {
	coords := make([]spatial.Coord, len(p.Points))
	for i, pt := range p.Points {
		coords[i] = pt.Coordinates
	}
	return coords
}

// Marker describes one per-stop marker of a path
type Marker struct {
	EntityID    string        `json:"entityId"`
	Coordinates spatial.Coord `json:"coordinates"`
	Label       int           `json:"label"`
	Current     bool          `json:"current,omitempty"`
	Kind        string        `json:"kind"`
}

// LocationCluster groups all stops of one path at an identical coordinate
type LocationCluster struct {
	Key    string        `json:"key"`
	Center spatial.Coord `json:"center"`
	Visits []Point       `json:"visits"`
}

// Single reports whether the location was visited only once.
func (c LocationCluster) Single() bool {
	return len(c.Visits) == 1
}

// PathView is the read model of one entity's path served to map clients
type PathView struct {
	Entity   Entity            `json:"entity"`
	Path     *Path             `json:"path"`
	Markers  []Marker          `json:"markers"`
	Clusters []LocationCluster `json:"clusters"`
	Bounds   *ViewBounds       `json:"bounds,omitempty"`
	Dropped  int               `json:"dropped"`
	Excluded int               `json:"excluded"`
}

// ViewBounds is a map-space rectangle
type ViewBounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// NewViewBounds converts a rect; nil for an empty rect.
func NewViewBounds(rect r2.Rect) *ViewBounds {
	if rect.IsEmpty() {
		return nil
	}
	return &ViewBounds{MinX: rect.X.Lo, MinY: rect.Y.Lo, MaxX: rect.X.Hi, MaxY: rect.Y.Hi}
}
