package sql

import (
	"database/sql"
	"time"

	"github.com/Noru-0/ordersourcing/core"
)

type iterator struct {
	rows *sql.Rows
}

// Next steps the iterator to the next event
func (i *iterator) Next() bool {
	return i.rows.Next()
}

// Value returns the event on the current position
func (i *iterator) Value() (core.Event, error) {
	var globalVersion core.Version
	var version core.Version
	var eventID, id, reason, typ, timestamp string
	var data, metadata []byte
	if err := i.rows.Scan(&globalVersion, &eventID, &id, &version, &reason, &typ, &timestamp, &data, &metadata); err != nil {
		return core.Event{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return core.Event{}, err
	}

	event := core.Event{
		ID:            eventID,
		AggregateID:   id,
		Version:       version,
		GlobalVersion: globalVersion,
		AggregateType: typ,
		Timestamp:     t,
		Reason:        reason,
		Data:          data,
		Metadata:      metadata,
	}
	return event, nil
}

// Close closes the iterator
func (i *iterator) Close() {
	i.rows.Close()
}
