package mapview

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

var errSurfaceDown = errors.New("surface down")

type fakeObject struct {
	kind    string
	at      spatial.Coord
	points  []spatial.Coord
	opts    MarkerOptions
	content string
}

// fakeSurface projects map coordinates 1:1 onto pixels (y included) and
// records every add and remove so tests can check for leaks.
type fakeSurface struct {
	objects map[Handle]*fakeObject
	order   []Handle
	next    int

	added   int
	removed int
	errs    []string // misuse such as double removal

	failAddAfter int // fail every add once this many have succeeded; 0 disables
	failRemove   map[Handle]bool
	notReady     bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{objects: make(map[Handle]*fakeObject), failRemove: make(map[Handle]bool)}
}

func (s *fakeSurface) CoordToPixel(c spatial.Coord) (r2.Point, error) {
	if s.notReady {
		return r2.Point{}, spatial.ErrProjectionNotReady
	}
	return r2.Point{X: c.X, Y: c.Y}, nil
}

func (s *fakeSurface) PixelToCoord(p r2.Point) (spatial.Coord, error) {
	if s.notReady {
		return spatial.Coord{}, spatial.ErrProjectionNotReady
	}
	return spatial.Coord{X: p.X, Y: p.Y}, nil
}

func (s *fakeSurface) add(obj *fakeObject) (Handle, error) {
	if s.failAddAfter > 0 && s.added >= s.failAddAfter {
		return "", errSurfaceDown
	}
	s.next++
	h := Handle(fmt.Sprintf("h%d", s.next))
	s.objects[h] = obj
	s.order = append(s.order, h)
	s.added++
	return h, nil
}

func (s *fakeSurface) AddPolyline(points []spatial.Coord, style models.Style) (Handle, error) {
	return s.add(&fakeObject{kind: "polyline", points: points})
}

func (s *fakeSurface) AddMarker(at spatial.Coord, opts MarkerOptions) (Handle, error) {
	return s.add(&fakeObject{kind: "marker", at: at, opts: opts})
}

func (s *fakeSurface) OpenPopup(anchor spatial.Coord, content string) (Handle, error) {
	return s.add(&fakeObject{kind: "popup", at: anchor, content: content})
}

func (s *fakeSurface) Remove(h Handle) error {
	if s.failRemove[h] {
		return errSurfaceDown
	}
	if _, ok := s.objects[h]; !ok {
		s.errs = append(s.errs, "remove of unknown handle "+string(h))
		return fmt.Errorf("unknown handle %s", h)
	}
	delete(s.objects, h)
	s.removed++
	return nil
}

func (s *fakeSurface) View() (View, error) {
	return View{Zoom: 0, Bounds: r2.RectFromPoints(r2.Point{}, r2.Point{X: 1000, Y: 1000})}, nil
}

func (s *fakeSurface) live() int {
	return len(s.objects)
}

func (s *fakeSurface) count(kind string) int {
	n := 0
	for _, obj := range s.objects {
		if obj.kind == kind {
			n++
		}
	}
	return n
}

// markerAt returns the live marker placed at c.
func (s *fakeSurface) markerAt(c spatial.Coord) (Handle, *fakeObject) {
	for _, h := range s.order {
		obj, ok := s.objects[h]
		if ok && obj.kind == "marker" && obj.at.Equal(c) {
			return h, obj
		}
	}
	return "", nil
}

func (s *fakeSurface) popups() []*fakeObject {
	var out []*fakeObject
	for _, h := range s.order {
		if obj, ok := s.objects[h]; ok && obj.kind == "popup" {
			out = append(out, obj)
		}
	}
	return out
}
