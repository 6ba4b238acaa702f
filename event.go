package ordersourcing

import (
	"encoding/json"
	"reflect"
	"time"
)

// Version is the event version used in event.Version, event.GlobalVersion and
// on the aggregate root
type Version uint64

// Event holds the meta data and the application specific event in the Data property
type Event struct {
	// ID is the unique identifier of the event
	ID string
	// AggregateID of the aggregate that the event belongs to
	AggregateID string
	// Version of the aggregate when the event was created
	Version Version
	// GlobalVersion is the version of the event in the event store, spanning all aggregates
	GlobalVersion Version
	// AggregateType is the name of the aggregate struct
	AggregateType string
	// Timestamp when the event was created
	Timestamp time.Time
	// Data is the application specific event payload
	Data interface{}
	// Metadata is extra information about the event
	Metadata map[string]interface{}
}

// Reason returns the name of the Data type, the reason the event exists
func (e Event) Reason() string {
	if e.Data == nil {
		return ""
	}
	return reflect.TypeOf(e.Data).Elem().Name()
}

// DataAs maps the event Data property to the given type
func (e Event) DataAs(data interface{}) error {
	b, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, data)
}
