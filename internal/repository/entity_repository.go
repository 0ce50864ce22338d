package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/database"
	"github.com/piosteiner/adenai-map/internal/models"
	"github.com/piosteiner/adenai-map/internal/spatial"
)

// ErrEntityNotFound is returned by GetEntity for unknown ids.
var ErrEntityNotFound = errors.New("entity not found")

const timeLayout = time.RFC3339Nano

// EntityRepository reads and writes the entity feed
type EntityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *sql.DB, logger *zap.Logger) *EntityRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityRepository{db: db, logger: logger.Named("repository")}
}

// ListEntities returns every entity with its history, in feed order
func (r *EntityRepository) ListEntities(ctx context.Context) ([]models.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, category, default_visible FROM entities ORDER BY feed_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}

	var entities []models.Entity
	index := make(map[string]int)
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.DefaultVisible); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		index[e.ID] = len(entities)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}
	rows.Close()

	records, err := r.queryRecords(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if i, ok := index[rec.entityID]; ok {
			entities[i].History = append(entities[i].History, rec.record)
		}
	}

	positions, err := r.queryCurrentPositions(ctx, "")
	if err != nil {
		return nil, err
	}
	for id, pos := range positions {
		if i, ok := index[id]; ok {
			entities[i].CurrentPosition = pos
		}
	}

	return entities, nil
}

// GetEntity returns one entity with its history
func (r *EntityRepository) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	var e models.Entity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, category, default_visible FROM entities WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Category, &e.DefaultVisible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}

	records, err := r.queryRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		e.History = append(e.History, rec.record)
	}

	positions, err := r.queryCurrentPositions(ctx, id)
	if err != nil {
		return nil, err
	}
	e.CurrentPosition = positions[id]

	return &e, nil
}

// ReplaceAll swaps the whole feed for entities in one transaction.
func (r *EntityRepository) ReplaceAll(ctx context.Context, entities []models.Entity) error {
	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"current_positions", "movement_records", "entities"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		entityStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO entities (id, name, category, default_visible, feed_order) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare entity insert: %w", err)
		}
		defer entityStmt.Close()

		recordStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO movement_records (entity_id, feed_order, x, y, date_start, date_end, kind, location, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare record insert: %w", err)
		}
		defer recordStmt.Close()

		for i, e := range entities {
			if _, err := entityStmt.ExecContext(ctx, e.ID, e.Name, e.Category, e.DefaultVisible, i); err != nil {
				return fmt.Errorf("failed to insert entity %s: %w", e.ID, err)
			}

			for j, rec := range e.History {
				x, y := nullCoord(rec.Coordinates)
				var end sql.NullString
				if rec.DateEnd != nil {
					end = sql.NullString{String: rec.DateEnd.Format(timeLayout), Valid: true}
				}
				var note sql.NullString
				if rec.Note != nil {
					note = sql.NullString{String: *rec.Note, Valid: true}
				}
				_, err := recordStmt.ExecContext(ctx, e.ID, j, x, y,
					rec.DateStart.Format(timeLayout), end, rec.Kind, rec.Location, note)
				if err != nil {
					return fmt.Errorf("failed to insert record %d of %s: %w", j, e.ID, err)
				}
			}

			if pos := e.CurrentPosition; pos != nil {
				x, y := nullCoord(pos.Coordinates)
				_, err := tx.ExecContext(ctx,
					`INSERT INTO current_positions (entity_id, x, y, as_of, location) VALUES (?, ?, ?, ?, ?)`,
					e.ID, x, y, pos.AsOf.Format(timeLayout), pos.Location)
				if err != nil {
					return fmt.Errorf("failed to insert current position of %s: %w", e.ID, err)
				}
			}
		}
		return nil
	})
}

type entityRecord struct {
	entityID string
	record   models.MovementRecord
}

// queryRecords loads movement records, for one entity when id is set.
func (r *EntityRepository) queryRecords(ctx context.Context, id string) ([]entityRecord, error) {
	query := `SELECT id, entity_id, x, y, date_start, date_end, kind, location, note FROM movement_records`
	var args []interface{}
	if id != "" {
		query += " WHERE entity_id = ?"
		args = append(args, id)
	}
	query += " ORDER BY entity_id, feed_order"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movement records: %w", err)
	}
	defer rows.Close()

	var out []entityRecord
	for rows.Next() {
		var (
			rec       entityRecord
			x, y      sql.NullFloat64
			start     string
			end, note sql.NullString
		)
		err := rows.Scan(&rec.record.ID, &rec.entityID, &x, &y, &start, &end,
			&rec.record.Kind, &rec.record.Location, &note)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement record: %w", err)
		}

		rec.record.Coordinates = coordFromNull(x, y)
		if rec.record.DateStart, err = time.Parse(timeLayout, start); err != nil {
			r.skipRecord(rec, "date_start", err)
			continue
		}
		if end.Valid {
			t, err := time.Parse(timeLayout, end.String)
			if err != nil {
				r.skipRecord(rec, "date_end", err)
				continue
			}
			rec.record.DateEnd = &t
		}
		if note.Valid {
			n := note.String
			rec.record.Note = &n
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (r *EntityRepository) queryCurrentPositions(ctx context.Context, id string) (map[string]*models.CurrentPosition, error) {
	query := `SELECT entity_id, x, y, as_of, location FROM current_positions`
	var args []interface{}
	if id != "" {
		query += " WHERE entity_id = ?"
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query current positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.CurrentPosition)
	for rows.Next() {
		var (
			entityID string
			x, y     sql.NullFloat64
			asOf     string
			pos      models.CurrentPosition
		)
		if err := rows.Scan(&entityID, &x, &y, &asOf, &pos.Location); err != nil {
			return nil, fmt.Errorf("failed to scan current position: %w", err)
		}
		pos.Coordinates = coordFromNull(x, y)
		if t, err := time.Parse(timeLayout, asOf); err == nil {
			pos.AsOf = t
		} else {
			// An undated position still renders as the final stop.
			r.logger.Warn("ignoring unreadable as_of",
				zap.String("entity", entityID),
				zap.String("as_of", asOf),
				zap.Error(err))
		}
		out[entityID] = &pos
	}

	return out, rows.Err()
}

// skipRecord drops a stored record whose dates cannot be read.
func (r *EntityRepository) skipRecord(rec entityRecord, column string, err error) {
	r.logger.Warn("skipping movement record with unreadable date",
		zap.String("entity", rec.entityID),
		zap.Int64("record", rec.record.ID),
		zap.String("column", column),
		zap.Error(err))
}

func nullCoord(c *spatial.Coord) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.X, Valid: true}, sql.NullFloat64{Float64: c.Y, Valid: true}
}

// coordFromNull maps a row with either column null to unknown coordinates.
func coordFromNull(x, y sql.NullFloat64) *spatial.Coord {
	if !x.Valid || !y.Valid {
		return nil
	}
	return &spatial.Coord{X: x.Float64, Y: y.Float64}
}
