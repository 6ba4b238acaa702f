package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Noru-0/ordersourcing/core"
)

type iterator struct {
	rows pgx.Rows
}

// Next steps the iterator to the next event
func (i *iterator) Next() bool {
	return i.rows.Next()
}

// Value returns the event on the current position
func (i *iterator) Value() (core.Event, error) {
	var seq, version int64
	var eventID, id, reason, typ string
	var timestamp time.Time
	var data, metadata []byte
	if err := i.rows.Scan(&seq, &eventID, &id, &version, &reason, &typ, &timestamp, &data, &metadata); err != nil {
		return core.Event{}, err
	}
	return core.Event{
		ID:            eventID,
		AggregateID:   id,
		Version:       core.Version(version),
		GlobalVersion: core.Version(seq),
		AggregateType: typ,
		Timestamp:     timestamp,
		Reason:        reason,
		Data:          data,
		Metadata:      metadata,
	}, nil
}

// Close closes the iterator
func (i *iterator) Close() {
	i.rows.Close()
}
