package mapview

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/movement"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// DefaultCollapseDelay is how long a fanned cluster waits after the pointer
// leaves before collapsing.
const DefaultCollapseDelay = 400 * time.Millisecond

// FanState is the declustering state of one cluster marker
type FanState int

const (
	Collapsed FanState = iota
	Fanned
)

func (s FanState) String() string {
	if s == Fanned {
		return "fanned"
	}
	return "collapsed"
}

// Fan spreads the stacked visits of one cluster into individual markers
// while hovered. It is not safe for concurrent use; all calls, including
// timer callbacks, must come from the map's event goroutine.
type Fan struct {
	entityID string
	cluster  models.LocationCluster
	style    models.Style

	surface Surface
	clock   Clock
	layout  spatial.SpiralLayout
	delay   time.Duration
	logger  *zap.Logger

	onClick func(visit models.Point, at spatial.Coord, siblings []spatial.Coord)
	onError func(error)

	state     FanState
	children  []Handle
	positions []spatial.Coord

	timer Timer
	gen   uint64 // invalidates timer callbacks that were already in flight
}

type fanConfig struct {
	surface Surface
	clock   Clock
	layout  spatial.SpiralLayout
	delay   time.Duration
	logger  *zap.Logger
	onClick func(visit models.Point, at spatial.Coord, siblings []spatial.Coord)
	onError func(error)
}

func newFan(entityID string, cluster models.LocationCluster, style models.Style, cfg fanConfig) *Fan {
	return &Fan{
		entityID: entityID,
		cluster:  cluster,
		style:    style,
		surface:  cfg.surface,
		clock:    cfg.clock,
		layout:   cfg.layout,
		delay:    cfg.delay,
		logger:   cfg.logger,
		onClick:  cfg.onClick,
		onError:  cfg.onError,
	}
}

// State returns the current fan state
func (f *Fan) State() FanState {
	return f.state
}

// Key returns the coordinate key of the cluster
func (f *Fan) Key() string {
	return f.cluster.Key
}

// Children returns the handles of the fanned markers.
func (f *Fan) Children() []Handle {
	return append([]Handle(nil), f.children...)
}

// Positions returns the map positions of the fanned markers.
func (f *Fan) Positions() []spatial.Coord {
	return append([]spatial.Coord(nil), f.positions...)
}

// CollapsePending reports whether a collapse timer is running.
func (f *Fan) CollapsePending() bool {
	return f.timer != nil
}

// Enter handles the pointer entering the cluster marker.
func (f *Fan) Enter() error {
	f.cancelCollapse()
	if f.state == Fanned {
		return nil
	}

	// Offsets depend on the current zoom, so they are never cached.
	positions, err := f.layout.Place(f.cluster.Center, f.surface, len(f.cluster.Visits))
	if err != nil {
		return fmt.Errorf("failed to lay out cluster %s: %w", f.cluster.Key, err)
	}

	children := make([]Handle, 0, len(positions))
	for i, visit := range f.cluster.Visits {
		h, err := f.surface.AddMarker(positions[i], f.childOptions(visit, positions[i]))
		if err != nil {
			remaining, rbErr := removeHandles(f.surface, children)
			if len(remaining) > 0 {
				// Keep what could not be removed so a later collapse retries it.
				f.children, f.positions, f.state = remaining, positions, Fanned
			}
			return fmt.Errorf("failed to fan out cluster %s: %w", f.cluster.Key, multierr.Append(err, rbErr))
		}
		children = append(children, h)
	}

	f.children, f.positions, f.state = children, positions, Fanned
	f.logger.Debug("cluster fanned out",
		zap.String("entity", f.entityID),
		zap.String("cluster", f.cluster.Key),
		zap.Int("markers", len(children)))
	return nil
}

// Leave handles the pointer leaving the cluster marker.
func (f *Fan) Leave() {
	if f.state == Fanned {
		f.scheduleCollapse()
	}
}

// ChildEnter handles the pointer entering one of the fanned markers.
func (f *Fan) ChildEnter() {
	f.cancelCollapse()
}

// ChildLeave handles the pointer leaving one of the fanned markers.
func (f *Fan) ChildLeave() {
	if f.state == Fanned {
		f.scheduleCollapse()
	}
}

// Collapse removes every fanned marker immediately. Calling it on a
// collapsed fan does nothing. Markers that fail to be removed stay tracked
// and the fan stays fanned.
func (f *Fan) Collapse() error {
	f.cancelCollapse()
	if f.state == Collapsed {
		return nil
	}

	remaining, err := removeHandles(f.surface, f.children)
	if len(remaining) > 0 {
		f.children = remaining
		return fmt.Errorf("failed to collapse cluster %s: %w", f.cluster.Key, err)
	}

	f.children, f.positions, f.state = nil, nil, Collapsed
	f.logger.Debug("cluster collapsed",
		zap.String("entity", f.entityID),
		zap.String("cluster", f.cluster.Key))
	return nil
}

func (f *Fan) scheduleCollapse() {
	f.cancelCollapse()
	gen := f.gen
	f.timer = f.clock.AfterFunc(f.delay, func() {
		if gen != f.gen {
			return
		}
		f.timer = nil
		if err := f.Collapse(); err != nil && f.onError != nil {
			f.onError(err)
		}
	})
}

func (f *Fan) cancelCollapse() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
}

func (f *Fan) childOptions(visit models.Point, at spatial.Coord) MarkerOptions {
	return MarkerOptions{
		Icon: IconSpec{
			Kind:  IconFanned,
			Label: strconv.Itoa(visit.Label()),
			Color: f.style.Color,
		},
		Tooltip: movement.FormatDateRange(visit.Record.DateStart, visit.Record.DateEnd),
		OnClick: func() {
			// Clicking leaves the fan as it is; only hover-out collapses it.
			if f.onClick != nil {
				f.onClick(visit, at, f.Positions())
			}
		},
		OnEnter: f.ChildEnter,
		OnLeave: f.ChildLeave,
	}
}

// removeHandles removes every handle and returns the ones that failed.
func removeHandles(s Surface, handles []Handle) ([]Handle, error) {
	var failed []Handle
	var errs error
	for _, h := range handles {
		if err := s.Remove(h); err != nil {
			failed = append(failed, h)
			errs = multierr.Append(errs, err)
		}
	}
	return failed, errs
}
