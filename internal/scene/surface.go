package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/mapview"
	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

var (
	// ErrUnknownHandle is returned when removing or triggering a handle
	// that is not on the surface, including one already removed.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrUnsupportedEvent is returned for events an object cannot receive.
	ErrUnsupportedEvent = errors.New("unsupported event")

	// ErrInvalidViewport is returned for viewports with no drawable area.
	ErrInvalidViewport = errors.New("invalid viewport")
)

// Kind is the type of a drawn object
type Kind string

const (
	KindPolyline Kind = "polyline"
	KindMarker   Kind = "marker"
	KindPopup    Kind = "popup"
)

// Event is a pointer event delivered to a marker
type Event string

const (
	EventClick Event = "click"
	EventEnter Event = "enter"
	EventLeave Event = "leave"
)

// ParseEvent validates an event name
func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case EventClick, EventEnter, EventLeave:
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEvent, s)
}

// Object is one drawn object as seen by clients
type Object struct {
	Handle      mapview.Handle    `json:"handle"`
	Kind        Kind              `json:"kind"`
	Coordinates []spatial.Coord   `json:"coordinates"`
	Style       *models.Style     `json:"style,omitempty"`
	Icon        *mapview.IconSpec `json:"icon,omitempty"`
	Tooltip     string            `json:"tooltip,omitempty"`
	Content     string            `json:"content,omitempty"`
}

type entry struct {
	Object
	seq  uint64
	opts mapview.MarkerOptions
}

// Stats counts objects over the surface's lifetime
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Live    int `json:"live"`
}

// Surface is a headless render surface. It keeps every drawn object in
// memory so clients can fetch the scene and send pointer events back.
// Like the map view it drives, it is confined to the loop goroutine.
type Surface struct {
	crs     *spatial.SimpleCRS
	objects map[mapview.Handle]*entry
	seq     uint64
	added   int
	removed int
	logger  *zap.Logger
}

// NewSurface creates an empty surface. Projection calls fail with
// spatial.ErrProjectionNotReady until SetViewport is called.
func NewSurface(logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{
		crs:     &spatial.SimpleCRS{},
		objects: make(map[mapview.Handle]*entry),
		logger:  logger.Named("scene"),
	}
}

// SetViewport pans and zooms the surface.
func (s *Surface) SetViewport(vp spatial.Viewport) error {
	if !(vp.Size.X > 0 && vp.Size.Y > 0) || math.IsNaN(vp.Zoom) || math.IsInf(vp.Zoom, 0) || !vp.Center.Finite() {
		return fmt.Errorf("%w: %+v", ErrInvalidViewport, vp)
	}
	s.crs.SetViewport(vp)
	return nil
}

// Viewport returns the current viewport, if one is set.
func (s *Surface) Viewport() (spatial.Viewport, bool) {
	return s.crs.Viewport()
}

// CoordToPixel implements spatial.Projection
func (s *Surface) CoordToPixel(c spatial.Coord) (r2.Point, error) {
	return s.crs.CoordToPixel(c)
}

// PixelToCoord implements spatial.Projection
func (s *Surface) PixelToCoord(p r2.Point) (spatial.Coord, error) {
	return s.crs.PixelToCoord(p)
}

// View implements mapview.Surface
func (s *Surface) View() (mapview.View, error) {
	vp, ok := s.crs.Viewport()
	if !ok {
		return mapview.View{}, spatial.ErrProjectionNotReady
	}
	bounds, err := s.crs.Bounds()
	if err != nil {
		return mapview.View{}, err
	}
	return mapview.View{Zoom: vp.Zoom, Bounds: bounds}, nil
}

// AddPolyline implements mapview.Surface
func (s *Surface) AddPolyline(points []spatial.Coord, style models.Style) (mapview.Handle, error) {
	if len(points) < spatial.MinPathPoints {
		return "", fmt.Errorf("polyline needs at least %d points, got %d", spatial.MinPathPoints, len(points))
	}
	return s.add(&entry{Object: Object{
		Kind:        KindPolyline,
		Coordinates: append([]spatial.Coord(nil), points...),
		Style:       &style,
	}}), nil
}

// AddMarker implements mapview.Surface
func (s *Surface) AddMarker(at spatial.Coord, opts mapview.MarkerOptions) (mapview.Handle, error) {
	if !at.Finite() {
		return "", fmt.Errorf("marker position is not finite: %v", at)
	}
	icon := opts.Icon
	return s.add(&entry{
		Object: Object{
			Kind:        KindMarker,
			Coordinates: []spatial.Coord{at},
			Icon:        &icon,
			Tooltip:     opts.Tooltip,
		},
		opts: opts,
	}), nil
}

// OpenPopup implements mapview.Surface
func (s *Surface) OpenPopup(anchor spatial.Coord, content string) (mapview.Handle, error) {
	if !anchor.Finite() {
		return "", fmt.Errorf("popup anchor is not finite: %v", anchor)
	}
	return s.add(&entry{Object: Object{
		Kind:        KindPopup,
		Coordinates: []spatial.Coord{anchor},
		Content:     content,
	}}), nil
}

func (s *Surface) add(e *entry) mapview.Handle {
	s.seq++
	e.seq = s.seq
	e.Handle = mapview.Handle(uuid.NewString())
	s.objects[e.Handle] = e
	s.added++
	return e.Handle
}

// Remove implements mapview.Surface
func (s *Surface) Remove(h mapview.Handle) error {
	if _, ok := s.objects[h]; !ok {
		s.logger.Warn("remove of unknown handle", zap.String("handle", string(h)))
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(s.objects, h)
	s.removed++
	return nil
}

// Trigger delivers a pointer event to a marker. Markers without a
// callback for the event ignore it.
func (s *Surface) Trigger(h mapview.Handle, ev Event) error {
	e, ok := s.objects[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if e.Kind != KindMarker {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedEvent, ev, e.Kind)
	}

	var fn func()
	switch ev {
	case EventClick:
		fn = e.opts.OnClick
	case EventEnter:
		fn = e.opts.OnEnter
	case EventLeave:
		fn = e.opts.OnLeave
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEvent, ev)
	}
	if fn != nil {
		fn()
	}
	return nil
}

// Snapshot returns the live objects in the order they were added.
func (s *Surface) Snapshot() []Object {
	entries := make([]*entry, 0, len(s.objects))
	for _, e := range s.objects {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]Object, len(entries))
	for i, e := range entries {
		out[i] = e.Object
	}
	return out
}

// Stats returns the add/remove counters.
func (s *Surface) Stats() Stats {
	return Stats{Added: s.added, Removed: s.removed, Live: len(s.objects)}
}

// GeoJSON exports the live objects as a feature collection in map
// coordinates: polylines as LineStrings, markers and popups as Points.
func (s *Surface) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, obj := range s.Snapshot() {
		var f *geojson.Feature
		if obj.Kind == KindPolyline {
			line := make(orb.LineString, len(obj.Coordinates))
			for i, c := range obj.Coordinates {
				line[i] = orb.Point{c.X, c.Y}
			}
			f = geojson.NewFeature(line)
		} else {
			c := obj.Coordinates[0]
			f = geojson.NewFeature(orb.Point{c.X, c.Y})
		}

		f.ID = string(obj.Handle)
		f.Properties["kind"] = string(obj.Kind)
		if obj.Style != nil {
			f.Properties["color"] = obj.Style.Color
			f.Properties["weight"] = obj.Style.Weight
			f.Properties["opacity"] = obj.Style.Opacity
			if obj.Style.DashArray != "" {
				f.Properties["dashArray"] = obj.Style.DashArray
			}
		}
		if obj.Icon != nil {
			f.Properties["icon"] = string(obj.Icon.Kind)
			f.Properties["label"] = obj.Icon.Label
			f.Properties["color"] = obj.Icon.Color
		}
		if obj.Tooltip != "" {
			f.Properties["tooltip"] = obj.Tooltip
		}
		if obj.Content != "" {
			f.Properties["content"] = obj.Content
		}
		fc.Append(f)
	}
	return fc
}
