package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Noru-0/ordersourcing/core"
	"go.etcd.io/bbolt"
)

const (
	globalEventOrderBucketName = "global_event_order"
)

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// BBolt is a file based event store
type BBolt struct {
	db *bbolt.DB
}

// boltEvent is the internal representation of an event in the store
type boltEvent struct {
	ID            string
	AggregateID   string
	Version       uint64
	GlobalVersion uint64
	Reason        string
	AggregateType string
	Timestamp     time.Time
	Data          []byte
	Metadata      []byte
}

// MustOpenBBolt opens the event store found in the given file. If the file is not found it will be created and
// initialized. Will panic if it has problems persisting the changes to the filesystem.
func MustOpenBBolt(dbFile string) *BBolt {
	db, err := bbolt.Open(dbFile, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		panic(err)
	}

	// Ensure that we have a bucket to store the global event ordering
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(globalEventOrderBucketName)); err != nil {
			return fmt.Errorf("could not create global event order bucket")
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
	return &BBolt{db: db}
}

// Save an aggregate's events. Events are stored gzip compressed.
func (e *BBolt) Save(events []core.Event) error {
	// Return if there is no events to save
	if len(events) == 0 {
		return nil
	}

	// get bucket name from first event
	aggregateType := events[0].AggregateType
	aggregateID := events[0].AggregateID
	bucketName := aggregateKey(aggregateType, aggregateID)

	tx, err := e.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	evBucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
	if err != nil {
		return fmt.Errorf("could not create aggregate events bucket: %w", err)
	}

	currentVersion := core.Version(0)
	cursor := evBucket.Cursor()
	k, obj := cursor.Last()
	if k != nil {
		lastEvent := boltEvent{}
		err := json.Unmarshal(MustDecompress(obj), &lastEvent)
		if err != nil {
			return fmt.Errorf("could not deserialize event: %w", err)
		}
		currentVersion = core.Version(lastEvent.Version)
	}

	err = core.ValidateEvents(aggregateID, currentVersion, events)
	if err != nil {
		return err
	}

	globalBucket := tx.Bucket([]byte(globalEventOrderBucketName))
	if globalBucket == nil {
		return fmt.Errorf("global bucket not found")
	}

	for i, event := range events {
		sequence, err := evBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("could not get sequence for %q: %w", bucketName, err)
		}

		// We need to establish a global event order that spans over all buckets. This is so that we can be
		// able to play the events (or send them) in the order that they were entered into this database.
		globalSequence, err := globalBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("could not get next sequence for global bucket: %w", err)
		}

		bEvent := boltEvent{
			ID:            event.ID,
			AggregateID:   event.AggregateID,
			AggregateType: event.AggregateType,
			Version:       uint64(event.Version),
			GlobalVersion: globalSequence,
			Reason:        event.Reason,
			Timestamp:     event.Timestamp,
			Data:          event.Data,
			Metadata:      event.Metadata,
		}
		value, err := json.Marshal(bEvent)
		if err != nil {
			return fmt.Errorf("could not serialize event: %w", err)
		}

		compressed := MustCompress(value)
		err = evBucket.Put(itob(sequence), compressed)
		if err != nil {
			return fmt.Errorf("could not save event version %d in bucket: %w", event.Version, err)
		}
		err = globalBucket.Put(itob(globalSequence), compressed)
		if err != nil {
			return fmt.Errorf("could not save global sequence pointer for %q: %w", bucketName, err)
		}

		// expose the global version to the caller
		events[i].GlobalVersion = core.Version(globalSequence)
	}
	return tx.Commit()
}

// Get aggregate events with version higher than afterVersion
func (e *BBolt) Get(ctx context.Context, id string, aggregateType string, afterVersion core.Version) (core.Iterator, error) {
	bucketName := aggregateKey(aggregateType, id)

	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, err
	}
	// event versions start at 1 and are contiguous, the bucket sequence is
	// the event version
	return &iterator{tx: tx, bucketName: bucketName, firstEventIndex: uint64(afterVersion) + 1}, nil
}

// GlobalEvents returns count events in the order they were stored, spanning
// all aggregates, starting at the global version start
func (e *BBolt) GlobalEvents(start, count uint64) ([]core.Event, error) {
	var events []core.Event
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	globalBucket := tx.Bucket([]byte(globalEventOrderBucketName))
	cursor := globalBucket.Cursor()
	for k, obj := cursor.Seek(itob(start)); k != nil; k, obj = cursor.Next() {
		bEvent := boltEvent{}
		err := json.Unmarshal(MustDecompress(obj), &bEvent)
		if err != nil {
			return nil, fmt.Errorf("could not deserialize event: %w", err)
		}
		events = append(events, coreEvent(bEvent))
		count--
		if count == 0 {
			break
		}
	}
	return events, nil
}

// Close closes the event store and the underlying database
func (e *BBolt) Close() error {
	return e.db.Close()
}

func coreEvent(bEvent boltEvent) core.Event {
	return core.Event{
		ID:            bEvent.ID,
		AggregateID:   bEvent.AggregateID,
		AggregateType: bEvent.AggregateType,
		Version:       core.Version(bEvent.Version),
		GlobalVersion: core.Version(bEvent.GlobalVersion),
		Timestamp:     bEvent.Timestamp,
		Reason:        bEvent.Reason,
		Data:          bEvent.Data,
		Metadata:      bEvent.Metadata,
	}
}

// aggregateKey generates the bucket name to store events against from aggregateType and aggregateID
func aggregateKey(aggregateType, aggregateID string) string {
	return aggregateType + "_" + aggregateID
}
