package movement

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// dateLayouts are the date formats found in the document store, tried in order
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// IngestReport summarises a document import
type IngestReport struct {
	Entities       int      `json:"entities"`
	Records        int      `json:"records"`
	DroppedRecords int      `json:"droppedRecords"`
	Problems       []string `json:"problems,omitempty"`
}

func (r *IngestReport) drop(format string, args ...any) {
	r.DroppedRecords++
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// rawDocument accepts either {"characters": [...]} or a bare array.
type rawDocument struct {
	Characters []rawCharacter `json:"characters"`
}

type rawCharacter struct {
	ID             any    `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Relationship   string `json:"relationship"`
	Faction        string `json:"faction"`
	DefaultVisible *bool  `json:"defaultVisible"`
	IsParty        *bool  `json:"isParty"`

	MovementHistory []rawRecord `json:"movementHistory"`
	LegacyHistory   []rawRecord `json:"movement_history"`

	CurrentPosition *rawCurrent `json:"currentPosition"`
	Coordinates     any         `json:"coordinates"`
	Location        string      `json:"location"`
	LastSeen        string      `json:"lastSeen"`
}

type rawRecord struct {
	DateStart    string  `json:"dateStart"`
	Date         string  `json:"date"`
	DateEnd      string  `json:"dateEnd"`
	EndDate      string  `json:"endDate"`
	Kind         string  `json:"kind"`
	Type         string  `json:"type"`
	MovementType string  `json:"movement_type"`
	Location     string  `json:"location"`
	Note         *string `json:"note"`
	Notes        *string `json:"notes"`
	Coordinates  any     `json:"coordinates"`
	X            any     `json:"x"`
	Y            any     `json:"y"`
}

type rawCurrent struct {
	Coordinates any    `json:"coordinates"`
	AsOf        string `json:"asOf"`
	Date        string `json:"date"`
	Location    string `json:"location"`
}

// DecodeDocument reads a characters document and normalises every legacy
// field variant into canonical entities. Records with unusable dates are
// dropped and reported; coordinates that cannot be parsed are kept as
// unknown so the rest of the history survives.
func DecodeDocument(r io.Reader) ([]models.Entity, IngestReport, error) {
	var report IngestReport

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, report, fmt.Errorf("failed to read document: %w", err)
	}

	characters, err := decodeCharacters(data)
	if err != nil {
		return nil, report, err
	}

	entities := make([]models.Entity, 0, len(characters))
	for i, raw := range characters {
		entity, ok := normaliseCharacter(raw, &report)
		if !ok {
			report.Problems = append(report.Problems, fmt.Sprintf("character %d has no id", i))
			continue
		}
		entities = append(entities, entity)
	}
	report.Entities = len(entities)
	return entities, report, nil
}

func decodeCharacters(data []byte) ([]rawCharacter, error) {
	trimmed := strings.TrimSpace(string(data))
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	if strings.HasPrefix(trimmed, "[") {
		var characters []rawCharacter
		if err := dec.Decode(&characters); err != nil {
			return nil, fmt.Errorf("failed to parse characters array: %w", err)
		}
		return characters, nil
	}

	var doc rawDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse characters document: %w", err)
	}
	return doc.Characters, nil
}

func normaliseCharacter(raw rawCharacter, report *IngestReport) (models.Entity, bool) {
	id := ""
	if raw.ID != nil {
		id = strings.TrimSpace(fmt.Sprint(raw.ID))
	}
	if id == "" {
		return models.Entity{}, false
	}

	entity := models.Entity{
		ID:             id,
		Name:           raw.Name,
		Category:       firstNonEmpty(raw.Category, raw.Relationship, raw.Faction),
		DefaultVisible: firstBool(raw.DefaultVisible, raw.IsParty),
	}

	history := raw.MovementHistory
	if len(history) == 0 {
		history = raw.LegacyHistory
	}
	for i, rec := range history {
		record, err := normaliseRecord(rec)
		if err != nil {
			report.drop("character %s record %d: %v", id, i, err)
			continue
		}
		entity.History = append(entity.History, record)
		report.Records++
	}

	entity.CurrentPosition = normaliseCurrent(raw)
	return entity, true
}

func normaliseRecord(raw rawRecord) (models.MovementRecord, error) {
	start, err := ParseDate(firstNonEmpty(raw.DateStart, raw.Date))
	if err != nil {
		return models.MovementRecord{}, fmt.Errorf("invalid start date: %w", err)
	}

	record := models.MovementRecord{
		DateStart: start,
		Kind:      firstNonEmpty(raw.Kind, raw.Type, raw.MovementType),
		Location:  raw.Location,
		Note:      raw.Note,
	}
	if record.Note == nil {
		record.Note = raw.Notes
	}

	if endStr := firstNonEmpty(raw.DateEnd, raw.EndDate); endStr != "" {
		end, err := ParseDate(endStr)
		if err != nil {
			return models.MovementRecord{}, fmt.Errorf("invalid end date: %w", err)
		}
		record.DateEnd = &end
	}

	coords := raw.Coordinates
	if coords == nil && raw.X != nil && raw.Y != nil {
		coords = []any{raw.X, raw.Y}
	}
	if c, ok := spatial.ParseCoord(coords); ok {
		record.Coordinates = &c
	}
	return record, nil
}

func normaliseCurrent(raw rawCharacter) *models.CurrentPosition {
	coords, asOf, location := raw.Coordinates, raw.LastSeen, raw.Location
	if raw.CurrentPosition != nil {
		coords = raw.CurrentPosition.Coordinates
		asOf = firstNonEmpty(raw.CurrentPosition.AsOf, raw.CurrentPosition.Date)
		location = raw.CurrentPosition.Location
	}

	c, ok := spatial.ParseCoord(coords)
	if !ok {
		return nil
	}

	cp := &models.CurrentPosition{Coordinates: &c, Location: location}
	if t, err := ParseDate(asOf); err == nil {
		cp.AsOf = t
	}
	return cp
}

// ParseDate accepts RFC 3339 timestamps and plain dates as used by the feed.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstBool(values ...*bool) bool {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return false
}
