package mapview

import (
	"github.com/golang/geo/r2"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// Handle identifies one object placed on the render surface
type Handle string

// IconKind selects how a marker is drawn
type IconKind string

const (
	IconStop    IconKind = "stop"
	IconCurrent IconKind = "current"
	IconCluster IconKind = "cluster"
	IconFanned  IconKind = "fanned"
)

// IconSpec describes a marker icon
type IconSpec struct {
	Kind  IconKind `json:"kind"`
	Label string   `json:"label"`
	Color string   `json:"color"`
	Size  float64  `json:"size"`
}

// MarkerOptions carries the icon, tooltip and pointer callbacks of a marker.
// Callbacks are invoked by the surface on its event goroutine.
type MarkerOptions struct {
	Icon    IconSpec
	Tooltip string
	OnClick func()
	OnEnter func()
	OnLeave func()
}

// View is the current zoom level and visible map rectangle
type View struct {
	Zoom   float64
	Bounds r2.Rect
}

// Surface is the map the engine draws on. Every object added must later be
// removed through Remove; the engine never relies on a global clear.
type Surface interface {
	spatial.Projection

	AddPolyline(points []spatial.Coord, style models.Style) (Handle, error)
	AddMarker(at spatial.Coord, opts MarkerOptions) (Handle, error)
	OpenPopup(anchor spatial.Coord, content string) (Handle, error)
	Remove(h Handle) error
	View() (View, error)
}
