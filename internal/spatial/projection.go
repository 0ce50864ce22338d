package spatial

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
)

// ErrProjectionNotReady is returned before a viewport has been set.
var ErrProjectionNotReady = errors.New("projection not ready")

// Projection converts between map coordinates and container pixels.
type Projection interface {
	CoordToPixel(c Coord) (r2.Point, error)
	PixelToCoord(p r2.Point) (Coord, error)
}

// Viewport describes what part of the map image is on screen
type Viewport struct {
	Center Coord    `json:"center"`
	Zoom   float64  `json:"zoom"`
	Size   r2.Point `json:"size"` // container size in pixels
}

// SimpleCRS is an affine projection for flat images: one map unit is 2^zoom
// pixels and the y axis points up on the map but down on screen.
type SimpleCRS struct {
	viewport *Viewport
}

// NewSimpleCRS returns a projection with the given viewport.
func NewSimpleCRS(vp Viewport) *SimpleCRS {
	return &SimpleCRS{viewport: &vp}
}

// SetViewport replaces the current viewport (pan/zoom).
func (p *SimpleCRS) SetViewport(vp Viewport) {
	p.viewport = &vp
}

// Viewport returns the current viewport and whether one is set.
func (p *SimpleCRS) Viewport() (Viewport, bool) {
	if p.viewport == nil {
		return Viewport{}, false
	}
	return *p.viewport, true
}

func (p *SimpleCRS) scale() float64 {
	return math.Pow(2, p.viewport.Zoom)
}

// CoordToPixel implements Projection
func (p *SimpleCRS) CoordToPixel(c Coord) (r2.Point, error) {
	if p.viewport == nil {
		return r2.Point{}, ErrProjectionNotReady
	}
	s := p.scale()
	return r2.Point{
		X: (c.X-p.viewport.Center.X)*s + p.viewport.Size.X/2,
		Y: (p.viewport.Center.Y-c.Y)*s + p.viewport.Size.Y/2,
	}, nil
}

// PixelToCoord implements Projection
func (p *SimpleCRS) PixelToCoord(px r2.Point) (Coord, error) {
	if p.viewport == nil {
		return Coord{}, ErrProjectionNotReady
	}
	s := p.scale()
	return Coord{
		X: (px.X-p.viewport.Size.X/2)/s + p.viewport.Center.X,
		Y: p.viewport.Center.Y - (px.Y-p.viewport.Size.Y/2)/s,
	}, nil
}

// Bounds returns the map-space rectangle currently on screen.
func (p *SimpleCRS) Bounds() (r2.Rect, error) {
	if p.viewport == nil {
		return r2.EmptyRect(), ErrProjectionNotReady
	}
	topLeft, _ := p.PixelToCoord(r2.Point{})
	bottomRight, _ := p.PixelToCoord(p.viewport.Size)
	return r2.RectFromPoints(
		r2.Point{X: topLeft.X, Y: topLeft.Y},
		r2.Point{X: bottomRight.X, Y: bottomRight.Y},
	), nil
}
