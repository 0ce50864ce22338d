package mapview

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/movement"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// ErrUnknownEntity is returned for entity ids not present in the last rebuild.
var ErrUnknownEntity = errors.New("unknown entity")

// Notifier receives one user-facing message per failed surface operation.
type Notifier func(message string)

// Options configures a MapView
type Options struct {
	Layout        spatial.SpiralLayout
	CollapseDelay time.Duration
	PopupMargin   float64

	// KeepDefaultVisibleOnHideAll exempts default-visible entities from HideAll.
	KeepDefaultVisibleOnHideAll bool
}

// DefaultOptions returns the options used by the server
func DefaultOptions() Options {
	return Options{
		Layout:        spatial.DefaultSpiralLayout(),
		CollapseDelay: DefaultCollapseDelay,
		PopupMargin:   DefaultPopupMargin,
	}
}

// entityLayer owns everything one entity puts on the surface.
type entityLayer struct {
	entity   models.Entity
	path     *models.Path
	clusters []models.LocationCluster
	fans     map[string]*Fan

	polyline Handle
	markers  []Handle
}

func (l *entityLayer) visible() bool {
	return l.polyline != "" || len(l.markers) > 0
}

// MapView draws entity paths on a surface and tracks their visibility.
// Like Fan, it must only be used from the map's event goroutine.
type MapView struct {
	surface Surface
	clock   Clock
	builder *movement.Builder
	index   *movement.Index
	popups  PopupResolver
	opts    Options
	notify  Notifier
	logger  *zap.Logger

	layers map[string]*entityLayer
	order  []string

	popup      Handle
	popupOwner string
}

// New creates a map view drawing on surface
func New(surface Surface, clock Clock, builder *movement.Builder, opts Options, logger *zap.Logger) *MapView {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CollapseDelay <= 0 {
		opts.CollapseDelay = DefaultCollapseDelay
	}
	if opts.Layout.ItemsPerRevolution <= 0 {
		opts.Layout = spatial.DefaultSpiralLayout()
	}
	return &MapView{
		surface: surface,
		clock:   clock,
		builder: builder,
		index:   movement.NewIndex(),
		popups:  PopupResolver{Margin: opts.PopupMargin},
		opts:    opts,
		logger:  logger.Named("mapview"),
		layers:  make(map[string]*entityLayer),
	}
}

// SetNotifier installs the receiver of user-facing failure messages.
func (m *MapView) SetNotifier(n Notifier) {
	m.notify = n
}

// Rebuild tears down every drawn object and rebuilds all paths from the
// feed. Default-visible entities are shown afterwards. When teardown fails
// the previous layers are kept so they can still be removed later.
func (m *MapView) Rebuild(entities []models.Entity) error {
	if err := m.Teardown(); err != nil {
		m.report("rebuild", err)
		return err
	}

	layers := make(map[string]*entityLayer, len(entities))
	order := make([]string, 0, len(entities))
	paths := make([]models.Path, 0, len(entities))

	for _, entity := range entities {
		if _, dup := layers[entity.ID]; dup {
			m.logger.Warn("skipping duplicate entity in feed", zap.String("entity", entity.ID))
			continue
		}
		result := m.builder.Build(entity)
		layer := &entityLayer{entity: entity, path: result.Path, fans: make(map[string]*Fan)}
		if result.Path != nil {
			paths = append(paths, *result.Path)
		}
		layers[entity.ID] = layer
		order = append(order, entity.ID)
	}

	m.index.Rebuild(paths)
	for _, id := range order {
		layer := layers[id]
		layer.clusters = m.index.ClustersFor(id)
		for _, cluster := range layer.clusters {
			if !cluster.Single() {
				layer.fans[cluster.Key] = m.newFan(layer, cluster)
			}
		}
	}

	m.layers, m.order = layers, order
	m.logger.Info("map rebuilt",
		zap.Int("entities", len(order)),
		zap.Int("paths", len(paths)))

	var errs error
	for _, id := range order {
		if layers[id].entity.DefaultVisible {
			errs = multierr.Append(errs, m.show(layers[id]))
		}
	}
	if errs != nil {
		m.report("show default entities", errs)
	}
	return errs
}

// Teardown removes every object the view placed on the surface.
func (m *MapView) Teardown() error {
	errs := m.closePopup()
	for _, id := range m.order {
		errs = multierr.Append(errs, m.hide(m.layers[id]))
	}
	return errs
}

// Show draws an entity's path and markers. Showing a visible entity or one
// without a drawable path does nothing.
func (m *MapView) Show(entityID string) error {
	layer, ok := m.layers[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	if err := m.show(layer); err != nil {
		m.report("show "+displayName(layer.entity), err)
		return err
	}
	return nil
}

// Hide removes an entity's path and markers, collapsing fanned clusters first.
func (m *MapView) Hide(entityID string) error {
	layer, ok := m.layers[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	if err := m.hide(layer); err != nil {
		m.report("hide "+displayName(layer.entity), err)
		return err
	}
	return nil
}

// IsVisible reports whether any of the entity's objects are on the surface.
func (m *MapView) IsVisible(entityID string) bool {
	layer, ok := m.layers[entityID]
	return ok && layer.visible()
}

// ShowAll shows every entity. Failures are reported once for the batch.
func (m *MapView) ShowAll() error {
	var errs error
	for _, id := range m.order {
		errs = multierr.Append(errs, m.show(m.layers[id]))
	}
	if errs != nil {
		m.report("show all", errs)
	}
	return errs
}

// HideAll hides every entity, except default-visible ones when the view is
// configured to keep them.
func (m *MapView) HideAll() error {
	var errs error
	for _, id := range m.order {
		layer := m.layers[id]
		if m.opts.KeepDefaultVisibleOnHideAll && layer.entity.DefaultVisible {
			continue
		}
		errs = multierr.Append(errs, m.hide(layer))
	}
	if errs != nil {
		m.report("hide all", errs)
	}
	return errs
}

// CollapseFans collapses every fanned cluster, e.g. after a zoom change
// made their offsets stale.
func (m *MapView) CollapseFans() error {
	var errs error
	for _, id := range m.order {
		for _, f := range m.layers[id].fans {
			errs = multierr.Append(errs, f.Collapse())
		}
	}
	if errs != nil {
		m.report("collapse clusters", errs)
	}
	return errs
}

// Entities returns the ids of the last rebuild, in feed order.
func (m *MapView) Entities() []string {
	return append([]string(nil), m.order...)
}

// Fan returns the declustering state machine of one cluster.
func (m *MapView) Fan(entityID, clusterKey string) (*Fan, bool) {
	layer, ok := m.layers[entityID]
	if !ok {
		return nil, false
	}
	f, ok := layer.fans[clusterKey]
	return f, ok
}

// Popup returns the currently open popup, if any.
func (m *MapView) Popup() (Handle, bool) {
	return m.popup, m.popup != ""
}

// ClosePopup removes the open popup.
func (m *MapView) ClosePopup() error {
	return m.closePopup()
}

func (m *MapView) show(layer *entityLayer) error {
	if layer.visible() || layer.path == nil {
		return nil
	}

	var added []Handle
	rollback := func(cause error) error {
		_, rbErr := removeHandles(m.surface, added)
		return fmt.Errorf("failed to show %s: %w", layer.entity.ID, multierr.Append(cause, rbErr))
	}

	polyline, err := m.surface.AddPolyline(layer.path.Coordinates(), layer.path.Style)
	if err != nil {
		return rollback(err)
	}
	added = append(added, polyline)

	markers := make([]Handle, 0, len(layer.clusters))
	for _, cluster := range layer.clusters {
		h, err := m.surface.AddMarker(cluster.Center, m.markerOptions(layer, cluster))
		if err != nil {
			return rollback(err)
		}
		added = append(added, h)
		markers = append(markers, h)
	}

	layer.polyline, layer.markers = polyline, markers
	m.logger.Debug("entity shown", zap.String("entity", layer.entity.ID), zap.Int("markers", len(markers)))
	return nil
}

func (m *MapView) hide(layer *entityLayer) error {
	var errs error
	for _, f := range layer.fans {
		errs = multierr.Append(errs, f.Collapse())
	}
	if m.popupOwner == layer.entity.ID {
		errs = multierr.Append(errs, m.closePopup())
	}

	remaining, err := removeHandles(m.surface, layer.markers)
	layer.markers = remaining
	errs = multierr.Append(errs, err)

	if layer.polyline != "" {
		if err := m.surface.Remove(layer.polyline); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			layer.polyline = ""
		}
	}

	if errs != nil {
		return fmt.Errorf("failed to hide %s: %w", layer.entity.ID, errs)
	}
	return nil
}

func (m *MapView) markerOptions(layer *entityLayer, cluster models.LocationCluster) MarkerOptions {
	style := layer.path.Style
	if cluster.Single() {
		visit := cluster.Visits[0]
		kind := IconStop
		if visit.Current {
			kind = IconCurrent
		}
		return MarkerOptions{
			Icon:    IconSpec{Kind: kind, Label: strconv.Itoa(visit.Label()), Color: style.Color},
			Tooltip: movement.FormatDateRange(visit.Record.DateStart, visit.Record.DateEnd),
			OnClick: func() {
				m.openPopup(layer, visit.Coordinates, nil, VisitContent(layer.entity, visit))
			},
		}
	}

	f := layer.fans[cluster.Key]
	return MarkerOptions{
		Icon:    IconSpec{Kind: IconCluster, Label: strconv.Itoa(len(cluster.Visits)), Color: style.Color},
		Tooltip: fmt.Sprintf("%d visits", len(cluster.Visits)),
		OnClick: func() {
			m.openPopup(layer, cluster.Center, nil, ClusterContent(layer.entity, cluster))
		},
		OnEnter: func() {
			if err := f.Enter(); err != nil {
				m.report("expand cluster", err)
			}
		},
		OnLeave: f.Leave,
	}
}

func (m *MapView) newFan(layer *entityLayer, cluster models.LocationCluster) *Fan {
	return newFan(layer.entity.ID, cluster, layer.path.Style, fanConfig{
		surface: m.surface,
		clock:   m.clock,
		layout:  m.opts.Layout,
		delay:   m.opts.CollapseDelay,
		logger:  m.logger,
		onClick: func(visit models.Point, at spatial.Coord, siblings []spatial.Coord) {
			m.openPopup(layer, at, siblings, VisitContent(layer.entity, visit))
		},
		onError: func(err error) {
			m.report("collapse cluster", err)
		},
	})
}

// openPopup replaces the open popup with one anchored per PopupResolver.
func (m *MapView) openPopup(layer *entityLayer, clicked spatial.Coord, siblings []spatial.Coord, content string) {
	anchor, err := m.popups.Anchor(m.surface, clicked, siblings)
	if err != nil {
		m.report("open popup", err)
		return
	}
	if err := m.closePopup(); err != nil {
		m.report("close popup", err)
		return
	}

	h, err := m.surface.OpenPopup(anchor, content)
	if err != nil {
		m.report("open popup", err)
		return
	}
	m.popup, m.popupOwner = h, layer.entity.ID
}

func (m *MapView) closePopup() error {
	if m.popup == "" {
		return nil
	}
	if err := m.surface.Remove(m.popup); err != nil {
		return fmt.Errorf("failed to close popup: %w", err)
	}
	m.popup, m.popupOwner = "", ""
	return nil
}

func (m *MapView) report(op string, err error) {
	m.logger.Error("surface operation failed", zap.String("op", op), zap.Error(err))
	if m.notify != nil {
		m.notify(fmt.Sprintf("Could not %s on the map", op))
	}
}
