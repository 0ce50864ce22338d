package movement

import (
	"sort"

	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// KindCurrent marks the synthetic stop built from an entity's current position.
const KindCurrent = "current"

// Styler maps an entity category to its path style
type Styler interface {
	StyleFor(category string) models.Style
}

// BuildResult is the outcome of building one entity's path.
// Path is nil when the entity has fewer than two drawable stops.
type BuildResult struct {
	Path     *models.Path
	Markers  []models.Marker
	Dropped  int // stops discarded for missing or invalid coordinates
	Excluded int // stops discarded for an inverted date range
}

// Builder turns movement histories into ordered paths and marker descriptors
type Builder struct {
	validator spatial.Validator
	styles    Styler
	logger    *zap.Logger
}

// NewBuilder creates a new path builder
func NewBuilder(validator spatial.Validator, styles Styler, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		validator: validator,
		styles:    styles,
		logger:    logger.Named("path_builder"),
	}
}

// Build produces the path of one entity. The entity is not modified and
// repeated calls with the same input give the same output.
func (b *Builder) Build(entity models.Entity) BuildResult {
	records := b.orderedRecords(entity)

	hasCurrent := false
	if stop, ok := b.currentStop(entity, records); ok {
		records = append(records, stop)
		hasCurrent = true
	}

	raw := make([]any, len(records))
	for i := range records {
		raw[i] = records[i].Coordinates
	}
	validation := b.validator.Validate(raw)

	result := BuildResult{
		Dropped:  validation.Dropped(),
		Excluded: len(entity.History) - countHistory(records, hasCurrent),
	}
	if result.Dropped > 0 {
		b.logger.Debug("dropped stops without usable coordinates",
			zap.String("entity", entity.ID),
			zap.Int("dropped", result.Dropped),
			zap.Int("total", validation.OriginalCount))
	}
	if !validation.Valid {
		b.logger.Debug("entity has no drawable path",
			zap.String("entity", entity.ID),
			zap.Int("validPoints", validation.ValidCount))
		return result
	}

	points := make([]models.Point, len(validation.Indices))
	markers := make([]models.Marker, len(validation.Indices))
	for seq, idx := range validation.Indices {
		rec := records[idx]
		current := hasCurrent && idx == len(records)-1
		points[seq] = models.Point{
			Coordinates:   validation.Coordinates[seq],
			Record:        rec,
			SequenceIndex: seq,
			Current:       current,
		}
		markers[seq] = models.Marker{
			EntityID:    entity.ID,
			Coordinates: validation.Coordinates[seq],
			Label:       seq + 1,
			Current:     current,
			Kind:        rec.Kind,
		}
	}

	result.Path = &models.Path{
		EntityID: entity.ID,
		Points:   points,
		Style:    b.styleFor(entity.Category),
	}
	result.Markers = markers
	return result
}

// orderedRecords returns a stably sorted copy of the history without
// records whose end date precedes their start date.
func (b *Builder) orderedRecords(entity models.Entity) []models.MovementRecord {
	records := make([]models.MovementRecord, 0, len(entity.History)+1)
	for _, rec := range entity.History {
		if !rec.HasValidRange() {
			b.logger.Warn("excluding record with end date before start date",
				zap.String("entity", entity.ID),
				zap.Time("dateStart", rec.DateStart),
				zap.Time("dateEnd", *rec.DateEnd))
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DateStart.Before(records[j].DateStart)
	})
	return records
}

// currentStop returns the synthetic final stop for the entity's current
// position, unless it repeats the last located history stop.
func (b *Builder) currentStop(entity models.Entity, records []models.MovementRecord) (models.MovementRecord, bool) {
	cp := entity.CurrentPosition
	if cp == nil || cp.Coordinates == nil {
		return models.MovementRecord{}, false
	}

	for i := len(records) - 1; i >= 0; i-- {
		c := records[i].Coordinates
		if c == nil || !b.validator.Accepts(*c) {
			continue
		}
		if c.Equal(*cp.Coordinates) {
			return models.MovementRecord{}, false
		}
		break
	}

	// Legacy feeds carry a bare position without a date; it still comes last.
	asOf := cp.AsOf
	if asOf.IsZero() && len(records) > 0 {
		asOf = records[len(records)-1].DateStart
	}

	coords := *cp.Coordinates
	return models.MovementRecord{
		Coordinates: &coords,
		DateStart:   asOf,
		Kind:        KindCurrent,
		Location:    cp.Location,
	}, true
}

func (b *Builder) styleFor(category string) models.Style {
	if b.styles == nil {
		return models.Style{}
	}
	return b.styles.StyleFor(category)
}

func countHistory(records []models.MovementRecord, hasCurrent bool) int {
	if hasCurrent {
		return len(records) - 1
	}
	return len(records)
}
