package bbolt

import (
	"encoding/json"
	"fmt"

	"github.com/Noru-0/ordersourcing/core"
	"go.etcd.io/bbolt"
)

type iterator struct {
	tx              *bbolt.Tx
	bucketName      string
	firstEventIndex uint64
	cursor          *bbolt.Cursor
	value           []byte
}

// Close closes the iterator and releases the read transaction
func (i *iterator) Close() {
	i.tx.Rollback()
}

// Next steps the iterator to the next event
func (i *iterator) Next() bool {
	var k []byte
	if i.cursor == nil {
		bucket := i.tx.Bucket([]byte(i.bucketName))
		if bucket == nil {
			return false
		}
		i.cursor = bucket.Cursor()
		k, i.value = i.cursor.Seek(itob(i.firstEventIndex))
		return k != nil
	}
	k, i.value = i.cursor.Next()
	return k != nil
}

// Value returns the event on the current position
func (i *iterator) Value() (core.Event, error) {
	bEvent := boltEvent{}
	err := json.Unmarshal(MustDecompress(i.value), &bEvent)
	if err != nil {
		return core.Event{}, fmt.Errorf("could not deserialize event: %w", err)
	}
	return coreEvent(bEvent), nil
}
