package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Noru-0/ordersourcing/core"
)

// SQL is an event store backed by a database/sql database, sqlite in mind
type SQL struct {
	db *sql.DB
}

// Open the event store on an already opened database
func Open(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// Close the database connection
func (s *SQL) Close() {
	s.db.Close()
}

// Save persists events to the database in one transaction
func (s *SQL) Save(events []core.Event) error {
	// If no event return no error
	if len(events) == 0 {
		return nil
	}

	aggregateID := events[0].AggregateID
	aggregateType := events[0].AggregateType

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback()

	// the current version of the aggregate is the version on the last event
	currentVersion := core.Version(0)
	var version sql.NullInt64
	selectStm := `SELECT version FROM events WHERE id=? AND type=? ORDER BY version DESC LIMIT 1`
	err = tx.QueryRow(selectStm, aggregateID, aggregateType).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if version.Valid {
		currentVersion = core.Version(version.Int64)
	}

	err = core.ValidateEvents(aggregateID, currentVersion, events)
	if err != nil {
		return err
	}

	insert := `INSERT INTO events (event_id, id, version, reason, type, timestamp, data, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, event := range events {
		// the timestamp is stored with nano precision, rollbacks address
		// instants and must not lose resolution in the round trip
		res, err := tx.Exec(insert, event.ID, event.AggregateID, event.Version, event.Reason, event.AggregateType, event.Timestamp.Format(time.RFC3339Nano), event.Data, event.Metadata)
		if err != nil {
			return err
		}
		lastInsertedID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		events[i].GlobalVersion = core.Version(lastInsertedID)
	}
	return tx.Commit()
}

// Get events for the aggregate with version higher than afterVersion
func (s *SQL) Get(ctx context.Context, id string, aggregateType string, afterVersion core.Version) (core.Iterator, error) {
	selectStm := `SELECT seq, event_id, id, version, reason, type, timestamp, data, metadata FROM events WHERE id=? AND type=? AND version>? ORDER BY version ASC`
	rows, err := s.db.QueryContext(ctx, selectStm, id, aggregateType, afterVersion)
	if err != nil {
		return nil, err
	}
	return &iterator{rows: rows}, nil
}
