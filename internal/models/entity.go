package models

import (
	"time"

	"github.com/piosteiner/adenai-map/internal/spatial"
)

// Entity represents a trackable character with its movement history
type Entity struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Category       string `json:"category" db:"category"` // relationship/faction, used for styling only
	DefaultVisible bool   `json:"defaultVisible" db:"default_visible"`

	History         []MovementRecord `json:"movementHistory"`
	CurrentPosition *CurrentPosition `json:"currentPosition,omitempty"`
}

// MovementRecord is one dated stop in an entity's history.
// DateEnd, when set, must not precede DateStart.
type MovementRecord struct {
	ID          int64          `json:"id,omitempty" db:"id"`
	Coordinates *spatial.Coord `json:"coordinates"` // nil when unknown
	DateStart   time.Time      `json:"dateStart" db:"date_start"`
	DateEnd     *time.Time     `json:"dateEnd,omitempty" db:"date_end"`
	Kind        string         `json:"kind" db:"kind"`                   // e.g. "travel", "stay", "battle"
	Location    string         `json:"location,omitempty" db:"location"` // display name of the place
	Note        *string        `json:"note,omitempty" db:"note"`
}

// HasValidRange reports whether the record's date range is ordered.
func (r MovementRecord) HasValidRange() bool {
	return r.DateEnd == nil || !r.DateEnd.Before(r.DateStart)
}

// CurrentPosition is the separately tracked latest position of an entity
type CurrentPosition struct {
	Coordinates *spatial.Coord `json:"coordinates"`
	AsOf        time.Time      `json:"asOf"`
	Location    string         `json:"location,omitempty"`
}
