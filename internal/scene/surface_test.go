package scene

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piosteiner/adenai-map/internal/mapview"
	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

func readySurface(t *testing.T) *Surface {
	t.Helper()
	s := NewSurface(nil)
	require.NoError(t, s.SetViewport(spatial.Viewport{
		Center: spatial.Coord{X: 500, Y: 500},
		Zoom:   0,
		Size:   r2.Point{X: 1000, Y: 800},
	}))
	return s
}

func TestSurfaceNotReadyUntilViewport(t *testing.T) {
	s := NewSurface(nil)

	_, err := s.CoordToPixel(spatial.Coord{})
	assert.ErrorIs(t, err, spatial.ErrProjectionNotReady)
	_, err = s.View()
	assert.ErrorIs(t, err, spatial.ErrProjectionNotReady)

	err = s.SetViewport(spatial.Viewport{Size: r2.Point{X: 0, Y: 100}})
	assert.ErrorIs(t, err, ErrInvalidViewport)
}

func TestSurfaceView(t *testing.T) {
	s := readySurface(t)

	view, err := s.View()
	require.NoError(t, err)
	assert.Equal(t, 0.0, view.Zoom)
	assert.InDelta(t, 0, view.Bounds.X.Lo, 1e-9)
	assert.InDelta(t, 1000, view.Bounds.X.Hi, 1e-9)
	assert.InDelta(t, 100, view.Bounds.Y.Lo, 1e-9)
	assert.InDelta(t, 900, view.Bounds.Y.Hi, 1e-9)
}

func TestSurfaceAddRemove(t *testing.T) {
	s := readySurface(t)

	line, err := s.AddPolyline([]spatial.Coord{{X: 1, Y: 1}, {X: 2, Y: 2}}, models.Style{Color: "#fff"})
	require.NoError(t, err)
	marker, err := s.AddMarker(spatial.Coord{X: 1, Y: 1}, mapview.MarkerOptions{Icon: mapview.IconSpec{Label: "1"}})
	require.NoError(t, err)
	assert.NotEqual(t, line, marker)

	assert.Equal(t, Stats{Added: 2, Removed: 0, Live: 2}, s.Stats())

	require.NoError(t, s.Remove(line))
	err = s.Remove(line)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, s.Remove("nope"), ErrUnknownHandle)

	assert.Equal(t, Stats{Added: 2, Removed: 1, Live: 1}, s.Stats())
}

func TestSurfaceRejectsBadGeometry(t *testing.T) {
	s := readySurface(t)

	_, err := s.AddPolyline([]spatial.Coord{{X: 1, Y: 1}}, models.Style{})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Stats().Added)
}

func TestSurfaceSnapshotOrder(t *testing.T) {
	s := readySurface(t)

	var handles []mapview.Handle
	for i := 0; i < 5; i++ {
		h, err := s.AddMarker(spatial.Coord{X: float64(i), Y: 0}, mapview.MarkerOptions{})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.NoError(t, s.Remove(handles[2]))

	snap := s.Snapshot()
	require.Len(t, snap, 4)
	for i, want := range []mapview.Handle{handles[0], handles[1], handles[3], handles[4]} {
		assert.Equal(t, want, snap[i].Handle)
		assert.Equal(t, KindMarker, snap[i].Kind)
	}
}

func TestSurfaceTrigger(t *testing.T) {
	s := readySurface(t)

	var events []string
	marker, err := s.AddMarker(spatial.Coord{}, mapview.MarkerOptions{
		OnClick: func() { events = append(events, "click") },
		OnEnter: func() { events = append(events, "enter") },
	})
	require.NoError(t, err)

	require.NoError(t, s.Trigger(marker, EventEnter))
	require.NoError(t, s.Trigger(marker, EventClick))
	// no leave callback
	require.NoError(t, s.Trigger(marker, EventLeave))
	assert.Equal(t, []string{"enter", "click"}, events)

	popup, err := s.OpenPopup(spatial.Coord{}, "hello")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Trigger(popup, EventClick), ErrUnsupportedEvent)
	assert.ErrorIs(t, s.Trigger("missing", EventClick), ErrUnknownHandle)
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("leave")
	require.NoError(t, err)
	assert.Equal(t, EventLeave, ev)

	_, err = ParseEvent("dblclick")
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestSurfaceGeoJSON(t *testing.T) {
	s := readySurface(t)

	_, err := s.AddPolyline([]spatial.Coord{{X: 1, Y: 2}, {X: 3, Y: 4}}, models.Style{Color: "#f00", Weight: 3, DashArray: "6 4"})
	require.NoError(t, err)
	_, err = s.AddMarker(spatial.Coord{X: 1, Y: 2}, mapview.MarkerOptions{
		Icon:    mapview.IconSpec{Kind: mapview.IconStop, Label: "1", Color: "#f00"},
		Tooltip: "1 Jun 2024",
	})
	require.NoError(t, err)

	fc := s.GeoJSON()
	require.Len(t, fc.Features, 2)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{1, 2}, {3, 4}}, line)
	assert.Equal(t, "polyline", fc.Features[0].Properties["kind"])
	assert.Equal(t, "6 4", fc.Features[0].Properties["dashArray"])

	point, ok := fc.Features[1].Geometry.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 2}, point)
	assert.Equal(t, "stop", fc.Features[1].Properties["icon"])
	assert.Equal(t, "1 Jun 2024", fc.Features[1].Properties["tooltip"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}
