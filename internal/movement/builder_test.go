package movement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dayN(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

func at(x, y float64) *spatial.Coord {
	return &spatial.Coord{X: x, Y: y}
}

func stop(x, y float64, d int) models.MovementRecord {
	return models.MovementRecord{Coordinates: at(x, y), DateStart: dayN(d), Kind: "travel"}
}

type fixedStyle struct{}

func (fixedStyle) StyleFor(category string) models.Style {
	return models.Style{Color: "#" + category, Weight: 3, Opacity: 0.8}
}

func newTestBuilder() *Builder {
	return NewBuilder(spatial.Validator{}, fixedStyle{}, nil)
}

func TestBuildOrdersByStartDate(t *testing.T) {
	entity := models.Entity{
		ID:       "ilya",
		Category: "ally",
		History:  []models.MovementRecord{stop(30, 30, 5), stop(10, 10, 1), stop(20, 20, 3)},
	}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)

	assert.Equal(t, []spatial.Coord{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}, result.Path.Coordinates())
	for i, p := range result.Path.Points {
		assert.Equal(t, i, p.SequenceIndex)
		assert.Equal(t, i+1, result.Markers[i].Label)
	}
	assert.Equal(t, "#ally", result.Path.Style.Color)
	assert.Equal(t, "ilya", result.Markers[0].EntityID)
}

func TestBuildStableForEqualDates(t *testing.T) {
	entity := models.Entity{
		ID:      "a",
		History: []models.MovementRecord{stop(1, 1, 2), stop(2, 2, 2), stop(0, 0, 1)},
	}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)
	assert.Equal(t, []spatial.Coord{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}, result.Path.Coordinates())
}

func TestBuildRenumbersAfterReorder(t *testing.T) {
	first := models.Entity{ID: "a", History: []models.MovementRecord{stop(1, 1, 1), stop(2, 2, 2)}}
	swapped := models.Entity{ID: "a", History: []models.MovementRecord{stop(1, 1, 3), stop(2, 2, 2)}}

	b := newTestBuilder()
	before := b.Build(first)
	after := b.Build(swapped)

	assert.Equal(t, spatial.Coord{X: 1, Y: 1}, before.Path.Points[0].Coordinates)
	assert.Equal(t, spatial.Coord{X: 2, Y: 2}, after.Path.Points[0].Coordinates)
	assert.Equal(t, 2, after.Path.Points[1].Label())
}

func TestBuildIsIdempotent(t *testing.T) {
	entity := models.Entity{
		ID:              "a",
		History:         []models.MovementRecord{stop(1, 1, 2), stop(5, 5, 1), {DateStart: dayN(3)}},
		CurrentPosition: &models.CurrentPosition{Coordinates: at(9, 9), AsOf: dayN(10)},
	}

	b := newTestBuilder()
	assert.Equal(t, b.Build(entity), b.Build(entity))
	assert.Equal(t, spatial.Coord{X: 5, Y: 5}, *entity.History[1].Coordinates)
}

func TestBuildDropsMissingCoordinates(t *testing.T) {
	entity := models.Entity{
		ID:      "a",
		History: []models.MovementRecord{stop(1, 1, 1), {DateStart: dayN(2), Kind: "rumour"}, stop(3, 3, 3)},
	}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)
	assert.Equal(t, 1, result.Dropped)
	assert.Len(t, result.Path.Points, 2)
	assert.Equal(t, 2, result.Path.Points[1].Label())
	assert.Equal(t, dayN(3), result.Path.Points[1].Record.DateStart)
}

func TestBuildTooFewPoints(t *testing.T) {
	entity := models.Entity{ID: "a", History: []models.MovementRecord{stop(1, 1, 1), {DateStart: dayN(2)}}}

	result := newTestBuilder().Build(entity)
	assert.Nil(t, result.Path)
	assert.Empty(t, result.Markers)
	assert.Equal(t, 1, result.Dropped)
}

func TestBuildExcludesInvertedRange(t *testing.T) {
	bad := stop(7, 7, 5)
	end := dayN(4)
	bad.DateEnd = &end

	entity := models.Entity{ID: "a", History: []models.MovementRecord{stop(1, 1, 1), bad, stop(2, 2, 6)}}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)
	assert.Equal(t, 1, result.Excluded)
	assert.Equal(t, []spatial.Coord{{X: 1, Y: 1}, {X: 2, Y: 2}}, result.Path.Coordinates())
}

func TestBuildCurrentPosition(t *testing.T) {
	tests := []struct {
		name       string
		current    *spatial.Coord
		wantPoints int
		wantLast   spatial.Coord
		wantFlag   bool
	}{
		{name: "distinct position is appended", current: at(9, 9), wantPoints: 3, wantLast: spatial.Coord{X: 9, Y: 9}, wantFlag: true},
		{name: "duplicate of last stop is skipped", current: at(2, 2), wantPoints: 2, wantLast: spatial.Coord{X: 2, Y: 2}},
		{name: "missing coordinates are ignored", current: nil, wantPoints: 2, wantLast: spatial.Coord{X: 2, Y: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := models.Entity{
				ID:              "a",
				History:         []models.MovementRecord{stop(1, 1, 1), stop(2, 2, 2)},
				CurrentPosition: &models.CurrentPosition{Coordinates: tt.current, AsOf: dayN(8), Location: "Vaelthara"},
			}

			result := newTestBuilder().Build(entity)
			require.NotNil(t, result.Path)
			require.Len(t, result.Path.Points, tt.wantPoints)

			last := result.Path.Points[len(result.Path.Points)-1]
			assert.Equal(t, tt.wantLast, last.Coordinates)
			assert.Equal(t, tt.wantFlag, last.Current)
			assert.Equal(t, tt.wantFlag, result.Markers[len(result.Markers)-1].Current)
			if tt.wantFlag {
				assert.Equal(t, KindCurrent, last.Record.Kind)
				assert.Equal(t, "Vaelthara", last.Record.Location)
			}
		})
	}
}

func TestBuildCurrentPositionComparesLastLocatedStop(t *testing.T) {
	entity := models.Entity{
		ID:              "a",
		History:         []models.MovementRecord{stop(1, 1, 1), stop(2, 2, 2), {DateStart: dayN(3)}},
		CurrentPosition: &models.CurrentPosition{Coordinates: at(2, 2), AsOf: dayN(4)},
	}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)
	assert.Len(t, result.Path.Points, 2)
	assert.Equal(t, 1, result.Dropped)
}

func TestBuildCurrentPositionCompletesShortHistory(t *testing.T) {
	entity := models.Entity{
		ID:              "a",
		History:         []models.MovementRecord{stop(1, 1, 1)},
		CurrentPosition: &models.CurrentPosition{Coordinates: at(4, 4), AsOf: dayN(2)},
	}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)
	assert.True(t, result.Path.Points[1].Current)
	assert.Equal(t, 0, result.Excluded)
}

func TestBuildUndatedCurrentPositionTakesLastDate(t *testing.T) {
	entity := models.Entity{
		ID:              "a",
		History:         []models.MovementRecord{stop(1, 1, 4), stop(2, 2, 1)},
		CurrentPosition: &models.CurrentPosition{Coordinates: at(2, 2)},
	}

	result := newTestBuilder().Build(entity)
	require.NotNil(t, result.Path)
	require.Len(t, result.Path.Points, 3)

	last := result.Path.Points[2]
	assert.True(t, last.Current)
	assert.Equal(t, dayN(4), last.Record.DateStart)
}
