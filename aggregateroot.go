package ordersourcing

import (
	"errors"
	"reflect"
	"time"
)

// AggregateRoot to be included into aggregates
type AggregateRoot struct {
	aggregateID            string
	aggregateVersion       Version
	aggregateGlobalVersion Version
	aggregateEvents        []Event
}

const (
	emptyAggregateID = ""
	zeroVersion      = Version(0)
)

// ErrAggregateAlreadyExists returned if the aggregateID is set more than one time
var ErrAggregateAlreadyExists = errors.New("its not possible to set ID on already existing aggregate")

// ErrAggregateNeedsToBeAPointer return if aggregate is sent in as value object
var ErrAggregateNeedsToBeAPointer = errors.New("aggregate needs to be a pointer")

// TrackChange is used internally by behaviour methods to apply a state change to
// the current instance and also track it in order to be saved later
func (ar *AggregateRoot) TrackChange(a aggregate, data interface{}) error {
	return ar.TrackChangeWithMetadata(a, data, nil)
}

// TrackChangeWithMetadata is used internally by behaviour methods to apply a state
// change to the current instance and also track it in order to be saved later.
// metadata is handled by the event store to store extra information about the event.
func (ar *AggregateRoot) TrackChangeWithMetadata(a aggregate, data interface{}, metadata map[string]interface{}) error {
	// This can be overwritten in the constructor of the aggregate
	if ar.aggregateID == emptyAggregateID {
		ar.aggregateID = idFunc()
	}

	event := Event{
		ID:            idFunc(),
		AggregateID:   ar.aggregateID,
		Version:       ar.nextVersion(),
		AggregateType: aggregateType(a),
		Timestamp:     time.Now().UTC(),
		Data:          data,
		Metadata:      metadata,
	}
	if err := a.Transition(event); err != nil {
		return err
	}
	ar.aggregateEvents = append(ar.aggregateEvents, event)
	return nil
}

// BuildFromHistory builds the aggregate state from events. The events must
// already be in replay order; a failed transition aborts the build.
func (ar *AggregateRoot) BuildFromHistory(a aggregate, events []Event) error {
	for _, event := range events {
		if err := a.Transition(event); err != nil {
			return err
		}
		// Set the aggregate ID
		ar.aggregateID = event.AggregateID
		// Make sure the aggregate is in the correct version (the last event)
		ar.aggregateVersion = event.Version
		ar.aggregateGlobalVersion = event.GlobalVersion
	}
	return nil
}

func (ar *AggregateRoot) nextVersion() Version {
	return ar.Version() + 1
}

// update sets the AggregateVersion and AggregateGlobalVersion to the values in the
// last event. This function is called after the aggregate is saved in the repository.
func (ar *AggregateRoot) update() {
	if len(ar.aggregateEvents) > 0 {
		lastEvent := ar.aggregateEvents[len(ar.aggregateEvents)-1]
		ar.aggregateVersion = lastEvent.Version
		ar.aggregateGlobalVersion = lastEvent.GlobalVersion
		ar.aggregateEvents = []Event{}
	}
}

// setInternals pins the aggregate root to a known point of the event log.
// Used by the repository after a rollback aware rebuild, where the visible
// events can end before the head of the full log.
func (ar *AggregateRoot) setInternals(id string, version, globalVersion Version) {
	ar.aggregateID = id
	ar.aggregateVersion = version
	ar.aggregateGlobalVersion = globalVersion
	ar.aggregateEvents = []Event{}
}

// SetID opens up the possibility to set manual aggregate ID from the outside
func (ar *AggregateRoot) SetID(id string) error {
	if ar.aggregateID != emptyAggregateID {
		return ErrAggregateAlreadyExists
	}
	ar.aggregateID = id
	return nil
}

// ID returns the aggregate ID as a string
func (ar *AggregateRoot) ID() string {
	return ar.aggregateID
}

// Root returns the included Aggregate Root state, and is used from the interface Aggregate.
func (ar *AggregateRoot) Root() *AggregateRoot {
	return ar
}

// Version return the version based on events that are not stored
func (ar *AggregateRoot) Version() Version {
	if len(ar.aggregateEvents) > 0 {
		return ar.aggregateEvents[len(ar.aggregateEvents)-1].Version
	}
	return ar.aggregateVersion
}

// GlobalVersion returns the global version based on the last stored event
func (ar *AggregateRoot) GlobalVersion() Version {
	return ar.aggregateGlobalVersion
}

// Events return the aggregate events from the aggregate.
// The returned slice is a copy, detached from the aggregate.
func (ar *AggregateRoot) Events() []Event {
	e := make([]Event, len(ar.aggregateEvents))
	copy(e, ar.aggregateEvents)
	return e
}

// UnsavedEvents return true if there's unsaved events on the aggregate
func (ar *AggregateRoot) UnsavedEvents() bool {
	return len(ar.aggregateEvents) > 0
}

func aggregateType(a aggregate) string {
	return reflect.TypeOf(a).Elem().Name()
}
