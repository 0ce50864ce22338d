package mapview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testCluster(n int) models.LocationCluster {
	center := spatial.Coord{X: 500, Y: 500}
	c := models.LocationCluster{Key: center.Key(), Center: center}
	for i := 0; i < n; i++ {
		c.Visits = append(c.Visits, models.Point{
			Coordinates:   center,
			Record:        models.MovementRecord{Coordinates: &center, DateStart: base.AddDate(0, 0, i)},
			SequenceIndex: i,
		})
	}
	return c
}

type fanHarness struct {
	surface *fakeSurface
	clock   *ManualClock
	fan     *Fan
	clicks  []spatial.Coord
	errs    []error
}

func newFanHarness(n int) *fanHarness {
	h := &fanHarness{surface: newFakeSurface(), clock: NewManualClock()}
	h.fan = newFan("ilya", testCluster(n), models.Style{Color: "#123"}, fanConfig{
		surface: h.surface,
		clock:   h.clock,
		layout:  spatial.DefaultSpiralLayout(),
		delay:   DefaultCollapseDelay,
		logger:  zap.NewNop(),
		onClick: func(_ models.Point, at spatial.Coord, _ []spatial.Coord) {
			h.clicks = append(h.clicks, at)
		},
		onError: func(err error) { h.errs = append(h.errs, err) },
	})
	return h
}

func TestFanEnterSpawnsOneMarkerPerVisit(t *testing.T) {
	h := newFanHarness(3)

	require.NoError(t, h.fan.Enter())
	assert.Equal(t, Fanned, h.fan.State())
	assert.Equal(t, 3, h.surface.live())
	assert.Len(t, h.fan.Children(), 3)

	// Entering again while fanned adds nothing.
	require.NoError(t, h.fan.Enter())
	assert.Equal(t, 3, h.surface.added)

	// The first child sits straight above the centre (smaller screen y).
	positions := h.fan.Positions()
	assert.InDelta(t, 500, positions[0].X, 1e-9)
	assert.InDelta(t, 500-spatial.DefaultBaseRadius, positions[0].Y, 1e-9)
}

func TestFanLeaveCollapsesAfterDelay(t *testing.T) {
	h := newFanHarness(4)
	require.NoError(t, h.fan.Enter())

	h.fan.Leave()
	assert.True(t, h.fan.CollapsePending())

	h.clock.Advance(DefaultCollapseDelay - time.Millisecond)
	assert.Equal(t, Fanned, h.fan.State())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, Collapsed, h.fan.State())
	assert.Equal(t, 0, h.surface.live())
	assert.Equal(t, h.surface.added, h.surface.removed)
	assert.Empty(t, h.surface.errs)
	assert.Empty(t, h.errs)
}

func TestFanChildEnterCancelsCollapse(t *testing.T) {
	h := newFanHarness(2)
	require.NoError(t, h.fan.Enter())

	h.fan.Leave()
	h.clock.Advance(200 * time.Millisecond)

	_, child := h.surface.markerAt(h.fan.Positions()[1])
	require.NotNil(t, child)
	child.opts.OnEnter()

	h.clock.Advance(time.Second)
	assert.Equal(t, Fanned, h.fan.State())
	assert.Equal(t, 0, h.clock.Pending())

	// Leaving the child restarts the debounce.
	child.opts.OnLeave()
	h.clock.Advance(DefaultCollapseDelay)
	assert.Equal(t, Collapsed, h.fan.State())
	assert.Equal(t, 0, h.surface.live())
}

func TestFanReenterClusterCancelsCollapse(t *testing.T) {
	h := newFanHarness(2)
	require.NoError(t, h.fan.Enter())

	h.fan.Leave()
	h.clock.Advance(100 * time.Millisecond)
	require.NoError(t, h.fan.Enter())
	h.clock.Advance(time.Second)

	assert.Equal(t, Fanned, h.fan.State())
	assert.Equal(t, 2, h.surface.added)
}

func TestFanOnlyOnePendingTimer(t *testing.T) {
	h := newFanHarness(3)
	require.NoError(t, h.fan.Enter())

	h.fan.Leave()
	h.fan.ChildLeave()
	h.fan.Leave()
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(DefaultCollapseDelay)
	assert.Equal(t, Collapsed, h.fan.State())
	assert.Equal(t, 3, h.surface.removed)
	assert.Empty(t, h.surface.errs)
}

func TestFanClickKeepsFanOpen(t *testing.T) {
	h := newFanHarness(3)
	require.NoError(t, h.fan.Enter())

	at := h.fan.Positions()[2]
	_, child := h.surface.markerAt(at)
	require.NotNil(t, child)
	child.opts.OnClick()

	assert.Equal(t, []spatial.Coord{at}, h.clicks)
	assert.Equal(t, Fanned, h.fan.State())
	assert.False(t, h.fan.CollapsePending())
}

func TestFanCollapseIsIdempotent(t *testing.T) {
	h := newFanHarness(3)
	require.NoError(t, h.fan.Enter())

	require.NoError(t, h.fan.Collapse())
	require.NoError(t, h.fan.Collapse())
	assert.Equal(t, 3, h.surface.removed)
	assert.Empty(t, h.surface.errs)

	// Collapsing leaves no timer behind to fire later.
	h.fan.Leave()
	h.clock.Advance(time.Second)
	assert.Equal(t, 3, h.surface.removed)
}

func TestFanBalanceOverRepeatedCycles(t *testing.T) {
	h := newFanHarness(7)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.fan.Enter())
		h.fan.Leave()
		h.clock.Advance(DefaultCollapseDelay)
	}
	assert.Equal(t, 35, h.surface.added)
	assert.Equal(t, 35, h.surface.removed)
	assert.Empty(t, h.surface.errs)
}

func TestFanFailedFanOutRollsBack(t *testing.T) {
	h := newFanHarness(4)
	h.surface.failAddAfter = 2

	err := h.fan.Enter()
	require.ErrorIs(t, err, errSurfaceDown)
	assert.Equal(t, Collapsed, h.fan.State())
	assert.Equal(t, 0, h.surface.live())
	assert.Equal(t, 2, h.surface.removed)
}

func TestFanProjectionNotReady(t *testing.T) {
	h := newFanHarness(2)
	h.surface.notReady = true

	err := h.fan.Enter()
	require.ErrorIs(t, err, spatial.ErrProjectionNotReady)
	assert.Equal(t, Collapsed, h.fan.State())
	assert.Equal(t, 0, h.surface.added)
}

func TestFanFailedCollapseRetriesOnlyLeftovers(t *testing.T) {
	h := newFanHarness(3)
	require.NoError(t, h.fan.Enter())

	stuck := h.fan.Children()[1]
	h.surface.failRemove[stuck] = true

	h.fan.Leave()
	h.clock.Advance(DefaultCollapseDelay)
	require.Len(t, h.errs, 1)
	assert.Equal(t, Fanned, h.fan.State())
	assert.Equal(t, []Handle{stuck}, h.fan.Children())

	delete(h.surface.failRemove, stuck)
	require.NoError(t, h.fan.Collapse())
	assert.Equal(t, 0, h.surface.live())
	assert.Empty(t, h.surface.errs)
}

func TestFanStaleTimerIgnored(t *testing.T) {
	h := newFanHarness(2)
	require.NoError(t, h.fan.Enter())

	// A clock whose Stop cannot prevent the callback, like a timer that
	// already fired and queued its callback.
	var queued []func()
	h.fan.clock = clockFunc(func(d time.Duration, f func()) Timer {
		queued = append(queued, f)
		return stopNoop{}
	})

	h.fan.Leave()
	require.NoError(t, h.fan.Enter())
	require.Len(t, queued, 1)
	queued[0]()

	assert.Equal(t, Fanned, h.fan.State())
	assert.Equal(t, 0, h.surface.removed)
}

type clockFunc func(d time.Duration, f func()) Timer

func (c clockFunc) AfterFunc(d time.Duration, f func()) Timer { return c(d, f) }

type stopNoop struct{}

func (stopNoop) Stop() bool { return false }

func TestFanStateString(t *testing.T) {
	assert.Equal(t, "collapsed", Collapsed.String())
	assert.Equal(t, "fanned", Fanned.String())
}
