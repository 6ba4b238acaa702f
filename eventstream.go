package ordersourcing

import (
	"reflect"
	"sync"
)

// EventStream delivers saved events to subscribers
type EventStream struct {
	// subscribers to all events
	all []*subscription
	// subscribers to specific event data types
	specificEvents map[reflect.Type][]*subscription
	// subscribers to all events of an aggregate type
	aggregateTypes map[string][]*subscription
	// subscribers to events of a specific aggregate, type plus identifier
	specificAggregates map[string][]*subscription
	// subscribers to aggregate type plus event name combinations
	names map[string][]*subscription

	// guards the subscriber collections and keeps delivery in order
	lock sync.Mutex
}

// subscription is a receiver of events, Close stops the deliveries
type subscription struct {
	eventF func(e Event)
	closeF func()
}

// Close unsubscribes the subscription from the event stream
func (s *subscription) Close() {
	s.closeF()
}

// NewEventStream factory function
func NewEventStream() *EventStream {
	return &EventStream{
		all:                make([]*subscription, 0),
		specificEvents:     make(map[reflect.Type][]*subscription),
		aggregateTypes:     make(map[string][]*subscription),
		specificAggregates: make(map[string][]*subscription),
		names:              make(map[string][]*subscription),
	}
}

// Publish delivers events to the matching subscribers. Deliveries run on the
// caller's goroutine, a slow subscriber slows down the publisher.
func (e *EventStream) Publish(events []Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, event := range events {
		for _, s := range e.all {
			s.eventF(event)
		}
		if event.Data != nil {
			for _, s := range e.specificEvents[reflect.TypeOf(event.Data)] {
				s.eventF(event)
			}
		}
		for _, s := range e.aggregateTypes[event.AggregateType] {
			s.eventF(event)
		}
		for _, s := range e.specificAggregates[event.AggregateType+"_"+event.AggregateID] {
			s.eventF(event)
		}
		for _, s := range e.names[event.AggregateType+"_"+event.Reason()] {
			s.eventF(event)
		}
	}
}

// All subscribes to all events
func (e *EventStream) All(f func(e Event)) *subscription {
	s := subscription{eventF: f}
	s.closeF = func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		e.all = remove(e.all, &s)
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	e.all = append(e.all, &s)
	return &s
}

// Event subscribes to events of the given data types
func (e *EventStream) Event(f func(e Event), events ...interface{}) *subscription {
	keys := make([]reflect.Type, 0, len(events))
	for _, event := range events {
		keys = append(keys, reflect.TypeOf(event))
	}

	s := subscription{eventF: f}
	s.closeF = func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		for _, key := range keys {
			e.specificEvents[key] = remove(e.specificEvents[key], &s)
		}
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	for _, key := range keys {
		e.specificEvents[key] = append(e.specificEvents[key], &s)
	}
	return &s
}

// Aggregate subscribes to all events of the given aggregate types
func (e *EventStream) Aggregate(f func(e Event), aggregates ...aggregate) *subscription {
	keys := make([]string, 0, len(aggregates))
	for _, a := range aggregates {
		keys = append(keys, aggregateType(a))
	}

	s := subscription{eventF: f}
	s.closeF = func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		for _, key := range keys {
			e.aggregateTypes[key] = remove(e.aggregateTypes[key], &s)
		}
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	for _, key := range keys {
		e.aggregateTypes[key] = append(e.aggregateTypes[key], &s)
	}
	return &s
}

// AggregateID subscribes to events of the given aggregate instances, matched
// on aggregate type and identifier
func (e *EventStream) AggregateID(f func(e Event), aggregates ...aggregate) *subscription {
	keys := make([]string, 0, len(aggregates))
	for _, a := range aggregates {
		keys = append(keys, aggregateType(a)+"_"+a.Root().ID())
	}

	s := subscription{eventF: f}
	s.closeF = func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		for _, key := range keys {
			e.specificAggregates[key] = remove(e.specificAggregates[key], &s)
		}
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	for _, key := range keys {
		e.specificAggregates[key] = append(e.specificAggregates[key], &s)
	}
	return &s
}

// Name subscribes to events by aggregate type and event names
func (e *EventStream) Name(f func(e Event), aggregate string, events ...string) *subscription {
	keys := make([]string, 0, len(events))
	for _, event := range events {
		keys = append(keys, aggregate+"_"+event)
	}

	s := subscription{eventF: f}
	s.closeF = func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		for _, key := range keys {
			e.names[key] = remove(e.names[key], &s)
		}
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	for _, key := range keys {
		e.names[key] = append(e.names[key], &s)
	}
	return &s
}

func remove(subs []*subscription, s *subscription) []*subscription {
	for i, sub := range subs {
		if sub == s {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
