package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Noru-0/ordersourcing/core"
)

// Postgres is an event store backed by PostgreSQL through a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to the database and returns the event store
func Open(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("could not create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not reach database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close the connection pool
func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate the database
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL,
			id TEXT NOT NULL,
			version BIGINT NOT NULL,
			reason TEXT NOT NULL,
			type TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			data BYTEA,
			metadata BYTEA
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS events_id_type_version ON events (id, type, version)`,
		`CREATE INDEX IF NOT EXISTS events_id_type ON events (id, type)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save persists events to the database in one transaction
func (p *Postgres) Save(events []core.Event) error {
	// Return if there is no events to save
	if len(events) == 0 {
		return nil
	}

	aggregateID := events[0].AggregateID
	aggregateType := events[0].AggregateType

	ctx := context.Background()
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// the current version of the aggregate is the version on the last event
	currentVersion := core.Version(0)
	var version int64
	selectStm := `SELECT version FROM events WHERE id=$1 AND type=$2 ORDER BY version DESC LIMIT 1`
	err = tx.QueryRow(ctx, selectStm, aggregateID, aggregateType).Scan(&version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err == nil {
		currentVersion = core.Version(version)
	}

	err = core.ValidateEvents(aggregateID, currentVersion, events)
	if err != nil {
		return err
	}

	insert := `INSERT INTO events (event_id, id, version, reason, type, timestamp, data, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`
	for i, event := range events {
		var seq int64
		err := tx.QueryRow(ctx, insert, event.ID, event.AggregateID, int64(event.Version), event.Reason, event.AggregateType, event.Timestamp, event.Data, event.Metadata).Scan(&seq)
		if err != nil {
			return err
		}
		events[i].GlobalVersion = core.Version(seq)
	}
	return tx.Commit(ctx)
}

// Get events for the aggregate with version higher than afterVersion
func (p *Postgres) Get(ctx context.Context, id string, aggregateType string, afterVersion core.Version) (core.Iterator, error) {
	selectStm := `SELECT seq, event_id, id, version, reason, type, timestamp, data, metadata FROM events WHERE id=$1 AND type=$2 AND version>$3 ORDER BY version ASC`
	rows, err := p.pool.Query(ctx, selectStm, id, aggregateType, int64(afterVersion))
	if err != nil {
		return nil, err
	}
	return &iterator{rows: rows}, nil
}
