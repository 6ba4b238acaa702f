package memory

import (
	"context"
	"sync"

	"github.com/Noru-0/ordersourcing/core"
)

// Memory is an in memory event store, useful in tests and demos
type Memory struct {
	aggregateEvents map[string][]core.Event
	eventsInOrder   []core.Event
	lock            sync.RWMutex
}

// Create in memory event store
func Create() *Memory {
	return &Memory{
		aggregateEvents: make(map[string][]core.Event),
		eventsInOrder:   make([]core.Event, 0),
	}
}

// Save events to the memory store, appending them to the global order
func (e *Memory) Save(events []core.Event) error {
	if len(events) == 0 {
		return nil
	}

	// get the bucket name from the first event
	aggregateID := events[0].AggregateID
	aggregateType := events[0].AggregateType
	bucketName := aggregateKey(aggregateType, aggregateID)

	e.lock.Lock()
	defer e.lock.Unlock()

	evBucket := e.aggregateEvents[bucketName]
	currentVersion := core.Version(0)
	if len(evBucket) > 0 {
		currentVersion = evBucket[len(evBucket)-1].Version
	}

	err := core.ValidateEvents(aggregateID, currentVersion, events)
	if err != nil {
		return err
	}

	globalVersion := core.Version(len(e.eventsInOrder))
	for i := range events {
		globalVersion++
		events[i].GlobalVersion = globalVersion
		evBucket = append(evBucket, events[i])
		e.eventsInOrder = append(e.eventsInOrder, events[i])
	}
	e.aggregateEvents[bucketName] = evBucket
	return nil
}

// Get events for the aggregate with version higher than afterVersion
func (e *Memory) Get(ctx context.Context, id string, aggregateType string, afterVersion core.Version) (core.Iterator, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	evBucket, ok := e.aggregateEvents[aggregateKey(aggregateType, id)]
	if !ok {
		return core.NopIterator{}, nil
	}
	events := make([]core.Event, 0, len(evBucket))
	for _, event := range evBucket {
		if event.Version > afterVersion {
			events = append(events, event)
		}
	}
	return &iterator{events: events, position: -1}, nil
}

// Close does nothing
func (e *Memory) Close() {}

// aggregateKey generates the storage key from aggregateType and aggregateID
func aggregateKey(aggregateType, aggregateID string) string {
	return aggregateType + "_" + aggregateID
}

type iterator struct {
	events   []core.Event
	position int
}

func (i *iterator) Next() bool {
	if i.position+1 >= len(i.events) {
		return false
	}
	i.position++
	return true
}

func (i *iterator) Value() (core.Event, error) {
	return i.events[i.position], nil
}

func (i *iterator) Close() {}
