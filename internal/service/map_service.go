package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/mapview"
	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/movement"
	"github.com/piosteiner/adenai-map/internal/scene"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

const noticeBuffer = 32

// EntitySource is the read-only entity feed
type EntitySource interface {
	ListEntities(ctx context.Context) ([]models.Entity, error)
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
}

// Options configures a MapService
type Options struct {
	View      mapview.Options
	Palette   *mapview.Palette
	Validator spatial.Validator
	Viewport  spatial.Viewport
}

// DefaultOptions returns options with the built-in palette and a
// 1280x800 viewport centred on the map origin.
func DefaultOptions() Options {
	return Options{
		View:     mapview.DefaultOptions(),
		Palette:  mapview.DefaultPalette(),
		Viewport: spatial.Viewport{Size: r2.Point{X: 1280, Y: 800}},
	}
}

// EntitySummary is one row of the entity list
type EntitySummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	DefaultVisible bool   `json:"defaultVisible"`
	Records        int    `json:"records"`
	Visible        bool   `json:"visible"`
}

// SceneState is everything currently drawn on the scene surface
type SceneState struct {
	Viewport *spatial.Viewport `json:"viewport,omitempty"`
	Visible  []string          `json:"visible"`
	Objects  []scene.Object    `json:"objects"`
	Stats    scene.Stats       `json:"stats"`
}

// ReloadResult summarises a rebuild from the feed
type ReloadResult struct {
	Entities int `json:"entities"`
	Visible  int `json:"visible"`
}

// MapService owns the scene loop, surface and map view. Every call that
// touches map state is executed on the loop goroutine.
type MapService struct {
	source  EntitySource
	loop    *scene.Loop
	surface *scene.Surface
	view    *mapview.MapView
	builder *movement.Builder
	layout  spatial.SpiralLayout

	notices chan string
	mu      sync.Mutex // serialises reloads
	logger  *zap.Logger
}

// NewMapService creates a map service. The caller must run loop.
func NewMapService(source EntitySource, loop *scene.Loop, opts Options, logger *zap.Logger) (*MapService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Palette == nil {
		opts.Palette = mapview.DefaultPalette()
	}

	surface := scene.NewSurface(logger)
	if err := surface.SetViewport(opts.Viewport); err != nil {
		return nil, fmt.Errorf("failed to set initial viewport: %w", err)
	}

	builder := movement.NewBuilder(opts.Validator, opts.Palette, logger)
	s := &MapService{
		source:  source,
		loop:    loop,
		surface: surface,
		view:    mapview.New(surface, scene.NewLoopClock(loop), builder, opts.View, logger),
		builder: builder,
		layout:  opts.View.Layout,
		notices: make(chan string, noticeBuffer),
		logger:  logger.Named("map_service"),
	}
	if s.layout.ItemsPerRevolution <= 0 {
		s.layout = spatial.DefaultSpiralLayout()
	}
	s.view.SetNotifier(s.notify)
	return s, nil
}

// notify runs on the loop and must never block it.
func (s *MapService) notify(msg string) {
	select {
	case s.notices <- msg:
	default:
		s.logger.Warn("notice dropped, buffer full", zap.String("notice", msg))
	}
}

// Notices delivers user-facing messages about failed map operations
func (s *MapService) Notices() <-chan string {
	return s.notices
}

// Reload reads the whole feed and rebuilds every path.
func (s *MapService) Reload(ctx context.Context) (ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities, err := s.source.ListEntities(ctx)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("failed to load entities: %w", err)
	}

	result, err := scene.Call(ctx, s.loop, func() (ReloadResult, error) {
		var r ReloadResult
		if err := s.view.Rebuild(entities); err != nil {
			return r, err
		}
		r.Entities = len(s.view.Entities())
		for _, id := range s.view.Entities() {
			if s.view.IsVisible(id) {
				r.Visible++
			}
		}
		return r, nil
	})
	if err != nil {
		return ReloadResult{}, fmt.Errorf("failed to rebuild map: %w", err)
	}

	s.logger.Info("map reloaded", zap.Int("entities", result.Entities), zap.Int("visible", result.Visible))
	return result, nil
}

// Entities lists the feed with each entity's visibility on the scene.
func (s *MapService) Entities(ctx context.Context) ([]EntitySummary, error) {
	entities, err := s.source.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	return scene.Call(ctx, s.loop, func() ([]EntitySummary, error) {
		summaries := make([]EntitySummary, len(entities))
		for i, e := range entities {
			summaries[i] = EntitySummary{
				ID:             e.ID,
				Name:           e.Name,
				Category:       e.Category,
				DefaultVisible: e.DefaultVisible,
				Records:        len(e.History),
				Visible:        s.view.IsVisible(e.ID),
			}
		}
		return summaries, nil
	})
}

// EntityPath builds the path read model of one entity. It does not touch
// the scene.
func (s *MapService) EntityPath(ctx context.Context, id string) (*models.PathView, error) {
	entity, err := s.source.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.builder.Build(*entity)
	view := &models.PathView{
		Entity:   *entity,
		Path:     result.Path,
		Markers:  result.Markers,
		Dropped:  result.Dropped,
		Excluded: result.Excluded,
	}
	if result.Path != nil {
		view.Clusters = movement.Group(result.Path.Points)
		view.Bounds = models.NewViewBounds(spatial.Bounds(result.Path.Coordinates()))
	}
	return view, nil
}

// Show draws an entity on the scene
func (s *MapService) Show(ctx context.Context, id string) error {
	return s.loop.Do(ctx, func() error { return s.view.Show(id) })
}

// Hide removes an entity from the scene
func (s *MapService) Hide(ctx context.Context, id string) error {
	return s.loop.Do(ctx, func() error { return s.view.Hide(id) })
}

// ShowAll draws every entity
func (s *MapService) ShowAll(ctx context.Context) error {
	return s.loop.Do(ctx, s.view.ShowAll)
}

// HideAll hides every entity, subject to the default-visible option
func (s *MapService) HideAll(ctx context.Context) error {
	return s.loop.Do(ctx, s.view.HideAll)
}

// IsVisible reports whether an entity is drawn
func (s *MapService) IsVisible(ctx context.Context, id string) (bool, error) {
	return scene.Call(ctx, s.loop, func() (bool, error) {
		for _, known := range s.view.Entities() {
			if known == id {
				return s.view.IsVisible(id), nil
			}
		}
		return false, fmt.Errorf("%w: %s", mapview.ErrUnknownEntity, id)
	})
}

// Dispatch delivers a pointer event to a drawn marker.
func (s *MapService) Dispatch(ctx context.Context, handle mapview.Handle, event string) error {
	ev, err := scene.ParseEvent(event)
	if err != nil {
		return err
	}
	return s.loop.Do(ctx, func() error { return s.surface.Trigger(handle, ev) })
}

// SetViewport pans or zooms the scene. Open fans are collapsed since their
// spiral offsets were computed for the old zoom.
func (s *MapService) SetViewport(ctx context.Context, vp spatial.Viewport) error {
	return s.loop.Do(ctx, func() error {
		if err := s.surface.SetViewport(vp); err != nil {
			return err
		}
		return s.view.CollapseFans()
	})
}

// Scene returns a snapshot of the drawn objects
func (s *MapService) Scene(ctx context.Context) (*SceneState, error) {
	return scene.Call(ctx, s.loop, func() (*SceneState, error) {
		state := &SceneState{Visible: []string{}}
		if vp, ok := s.surface.Viewport(); ok {
			state.Viewport = &vp
		}
		for _, id := range s.view.Entities() {
			if s.view.IsVisible(id) {
				state.Visible = append(state.Visible, id)
			}
		}
		state.Objects = s.surface.Snapshot()
		state.Stats = s.surface.Stats()
		return state, nil
	})
}

// GeoJSON exports the drawn objects
func (s *MapService) GeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	return scene.Call(ctx, s.loop, func() (*geojson.FeatureCollection, error) {
		return s.surface.GeoJSON(), nil
	})
}

// SpiralLayout returns the pixel offsets a cluster of n visits fans out to.
func (s *MapService) SpiralLayout(n int) []r2.Point {
	return s.layout.Offsets(n)
}

// Shutdown removes everything from the scene.
func (s *MapService) Shutdown(ctx context.Context) error {
	return s.loop.Do(ctx, s.view.Teardown)
}
