package ordersourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/Noru-0/ordersourcing/core"
)

// aggregate interface to use the aggregate root specific methods
type aggregate interface {
	Root() *AggregateRoot
	Transition(event Event) error
	Register(RegisterFunc)
}

// EventSubscribers provides the methods to subscribe to events
type EventSubscribers interface {
	All(f func(e Event)) *subscription
	AggregateID(f func(e Event), aggregates ...aggregate) *subscription
	Aggregate(f func(e Event), aggregates ...aggregate) *subscription
	Event(f func(e Event), events ...interface{}) *subscription
	Name(f func(e Event), aggregate string, events ...string) *subscription
}

var (
	// ErrAggregateNotFound returns if no events are stored for the aggregate
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrAggregateNotRegistered when saving an aggregate that is not registered in the repository
	ErrAggregateNotRegistered = errors.New("aggregate not registered")

	// ErrEventNotRegistered when saving an aggregate with an event that is not registered in the repository
	ErrEventNotRegistered = errors.New("event not registered")

	// ErrConcurrency when the currently saved version of the aggregate differs from the new events
	ErrConcurrency = errors.New("concurrency error")
)

// SerializeFunc serializes an event payload to bytes before it is stored
type SerializeFunc func(v interface{}) ([]byte, error)

// DeserializeFunc deserializes a stored payload back to its type
type DeserializeFunc func(data []byte, v interface{}) error

// EventRepository is the returned instance from the factory function
type EventRepository struct {
	eventStream *EventStream
	eventStore  core.EventStore
	register    *register
	// Serializer and Deserializer control how event payloads are persisted,
	// default is encoding/json
	Serializer   SerializeFunc
	Deserializer DeserializeFunc
	// Warnings receives non fatal replay notices, nil disables them
	Warnings WarningFunc
}

// NewEventRepository factory function
func NewEventRepository(eventStore core.EventStore) *EventRepository {
	return &EventRepository{
		eventStream:  NewEventStream(),
		eventStore:   eventStore,
		register:     newRegister(),
		Serializer:   json.Marshal,
		Deserializer: json.Unmarshal,
	}
}

// Register registers the aggregate and its events. All aggregates must be
// registered before the repository serves requests.
func (er *EventRepository) Register(a aggregate) {
	er.register.Register(a)
}

// Subscribers returns an interface with all event subscribers
func (er *EventRepository) Subscribers() EventSubscribers {
	return er.eventStream
}

// Save an aggregate's tracked events to the event store
func (er *EventRepository) Save(a aggregate) error {
	if !er.register.AggregateRegistered(a) {
		return ErrAggregateNotRegistered
	}

	root := a.Root()
	esEvents := make([]core.Event, 0, len(root.aggregateEvents))

	for _, event := range root.aggregateEvents {
		data, err := er.Serializer(event.Data)
		if err != nil {
			return err
		}
		var metadata []byte
		if event.Metadata != nil {
			metadata, err = er.Serializer(event.Metadata)
			if err != nil {
				return err
			}
		}

		esEvent := core.Event{
			ID:            event.ID,
			AggregateID:   event.AggregateID,
			Version:       core.Version(event.Version),
			AggregateType: event.AggregateType,
			Timestamp:     event.Timestamp,
			Reason:        event.Reason(),
			Data:          data,
			Metadata:      metadata,
		}
		if _, ok := er.register.EventRegistered(esEvent); !ok {
			return ErrEventNotRegistered
		}
		esEvents = append(esEvents, esEvent)
	}

	err := er.eventStore.Save(esEvents)
	if err != nil {
		if errors.Is(err, core.ErrConcurrency) {
			return ErrConcurrency
		}
		return fmt.Errorf("error from event store: %w", err)
	}

	// the event store assigns the global version on save
	for i := range esEvents {
		root.aggregateEvents[i].GlobalVersion = Version(esEvents[i].GlobalVersion)
	}

	er.eventStream.Publish(root.Events())

	root.update()
	return nil
}

// Get fetches the aggregate's events and builds up the aggregate.
// If the aggregate is not found it returns ErrAggregateNotFound.
func (er *EventRepository) Get(id string, a aggregate) error {
	return er.GetWithContext(context.Background(), id, a)
}

// GetWithContext fetches the aggregate's events and builds up the aggregate,
// respecting the latest rollback in the history. The event fetching can be
// canceled from the outside.
func (er *EventRepository) GetWithContext(ctx context.Context, id string, a aggregate) error {
	if reflect.ValueOf(a).Kind() != reflect.Ptr {
		return ErrAggregateNeedsToBeAPointer
	}

	history, err := er.fetch(ctx, id, a)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return ErrAggregateNotFound
	}
	return er.rebuild(a, id, history)
}

// GetToVersion builds up the aggregate as it was when toVersion was its most
// recent event. Events recorded after that version, rollback events included,
// are left out before the history is replayed. If no event at or below
// toVersion exists it returns ErrAggregateNotFound.
func (er *EventRepository) GetToVersion(ctx context.Context, id string, a aggregate, toVersion Version) error {
	if reflect.ValueOf(a).Kind() != reflect.Ptr {
		return ErrAggregateNeedsToBeAPointer
	}

	history, err := er.fetch(ctx, id, a)
	if err != nil {
		return err
	}
	trimmed := make([]Event, 0, len(history))
	for _, event := range history {
		if event.Version <= toVersion {
			trimmed = append(trimmed, event)
		}
	}
	if len(trimmed) == 0 {
		return ErrAggregateNotFound
	}
	return er.rebuild(a, id, trimmed)
}

// GetToTimestamp builds up the aggregate as it was at the given instant.
// Events recorded after the instant, rollback events included, are left out
// before the history is replayed. If no event at or before the instant exists
// it returns ErrAggregateNotFound.
func (er *EventRepository) GetToTimestamp(ctx context.Context, id string, a aggregate, toTime time.Time) error {
	if reflect.ValueOf(a).Kind() != reflect.Ptr {
		return ErrAggregateNeedsToBeAPointer
	}

	history, err := er.fetch(ctx, id, a)
	if err != nil {
		return err
	}
	trimmed := make([]Event, 0, len(history))
	for _, event := range history {
		if !event.Timestamp.After(toTime) {
			trimmed = append(trimmed, event)
		}
	}
	if len(trimmed) == 0 {
		return ErrAggregateNotFound
	}
	return er.rebuild(a, id, trimmed)
}

// SkippedVersions returns the versions that can no longer be used as rollback
// targets for the aggregate, in ascending order.
func (er *EventRepository) SkippedVersions(ctx context.Context, id string, a aggregate) ([]Version, error) {
	history, err := er.fetch(ctx, id, a)
	if err != nil {
		return nil, err
	}
	sorted, err := sequenceEvents(history)
	if err != nil {
		return nil, err
	}
	return SkippedVersions(sorted), nil
}

// RollbackToVersion records a rollback of the aggregate to toVersion. The
// target must not be a version that earlier rollbacks made unreachable, a
// rejected target returns a RollbackTargetError carrying the complete skipped
// set. The rollback is stored as a RolledBack event on top of the history, a
// is used for type information only and is left untouched.
func (er *EventRepository) RollbackToVersion(ctx context.Context, id string, a aggregate, toVersion Version) error {
	return er.rollback(ctx, id, a, RolledBack{Kind: RollbackKindVersion, ToVersion: toVersion})
}

// RollbackToTimestamp records a rollback of the aggregate to the given
// instant. Events recorded after the instant are undone the same way a
// version addressed rollback undoes them.
func (er *EventRepository) RollbackToTimestamp(ctx context.Context, id string, a aggregate, toTime time.Time) error {
	return er.rollback(ctx, id, a, RolledBack{Kind: RollbackKindTimestamp, ToTime: toTime})
}

func (er *EventRepository) rollback(ctx context.Context, id string, a aggregate, data RolledBack) error {
	if !er.register.AggregateRegistered(a) {
		return ErrAggregateNotRegistered
	}

	history, err := er.fetch(ctx, id, a)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return ErrAggregateNotFound
	}
	sorted, err := sequenceEvents(history)
	if err != nil {
		return err
	}
	if data.Kind == RollbackKindVersion {
		skipped := SkippedVersions(sorted)
		for _, v := range skipped {
			if v == data.ToVersion {
				return &RollbackTargetError{Target: data.ToVersion, Skipped: skipped}
			}
		}
	}

	visibleBefore, err := resolveRollbacks(sorted)
	if err != nil {
		return err
	}

	head := sorted[len(sorted)-1].Version
	event := Event{
		ID:            idFunc(),
		AggregateID:   id,
		Version:       head + 1,
		AggregateType: aggregateType(a),
		Timestamp:     time.Now().UTC(),
		Data:          &data,
	}

	// resolve the history as it will read once the rollback is recorded,
	// to fill in the audit fields
	visibleAfter, err := resolveRollbacks(append(append([]Event{}, sorted...), event))
	if err != nil {
		return err
	}
	data.EventsUndone = len(visibleBefore) - len(visibleAfter)
	data.PreviousState = er.describe(a, visibleBefore)
	data.NewState = er.describe(a, visibleAfter)

	payload, err := er.Serializer(event.Data)
	if err != nil {
		return err
	}
	esEvent := core.Event{
		ID:            event.ID,
		AggregateID:   event.AggregateID,
		Version:       core.Version(event.Version),
		AggregateType: event.AggregateType,
		Timestamp:     event.Timestamp,
		Reason:        event.Reason(),
		Data:          payload,
	}
	if err := er.eventStore.Save([]core.Event{esEvent}); err != nil {
		if errors.Is(err, core.ErrConcurrency) {
			return ErrConcurrency
		}
		return fmt.Errorf("error from event store: %w", err)
	}
	event.GlobalVersion = Version(esEvent.GlobalVersion)
	er.eventStream.Publish([]Event{event})
	return nil
}

// describe replays the events onto a fresh instance of the aggregate type and
// returns its fmt.Stringer form, or an empty string when the aggregate does
// not implement fmt.Stringer or can not be replayed.
func (er *EventRepository) describe(a aggregate, events []Event) string {
	fresh, ok := reflect.New(reflect.TypeOf(a).Elem()).Interface().(aggregate)
	if !ok {
		return ""
	}
	if err := fresh.Root().BuildFromHistory(fresh, events); err != nil {
		return ""
	}
	if s, ok := fresh.(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}

// rebuild folds the visible events into the aggregate and pins the aggregate
// version to the head of the full log so that new events continue after it.
func (er *EventRepository) rebuild(a aggregate, id string, history []Event) error {
	sorted, err := sequenceEvents(history)
	if err != nil {
		return err
	}
	visible, err := resolveRollbacks(sorted)
	if err != nil {
		return err
	}
	root := a.Root()
	if err := root.BuildFromHistory(a, visible); err != nil {
		return err
	}
	head := sorted[len(sorted)-1]
	root.setInternals(id, head.Version, head.GlobalVersion)
	return nil
}

// fetch loads and decodes the full event history of the aggregate. The
// rollback interpretation needs every recorded event, so the fetch always
// starts from version zero. Events with a type that is not registered for the
// aggregate are skipped and reported through Warnings.
func (er *EventRepository) fetch(ctx context.Context, id string, a aggregate) ([]Event, error) {
	iterator, err := er.eventStore.Get(ctx, id, aggregateType(a), 0)
	if err != nil {
		return nil, err
	}
	defer iterator.Close()

	events := make([]Event, 0)
	for iterator.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		event, err := iterator.Value()
		if err != nil {
			return nil, err
		}
		f, found := er.register.EventRegistered(event)
		if !found {
			er.warn(Warning{
				AggregateID:   event.AggregateID,
				AggregateType: event.AggregateType,
				Version:       Version(event.Version),
				Reason:        event.Reason,
				Message:       "skipping event with unregistered type",
			})
			continue
		}
		data := f()
		if err := er.Deserializer(event.Data, data); err != nil {
			return nil, err
		}
		var metadata map[string]interface{}
		if len(event.Metadata) > 0 {
			if err := er.Deserializer(event.Metadata, &metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, Event{
			ID:            event.ID,
			AggregateID:   event.AggregateID,
			Version:       Version(event.Version),
			GlobalVersion: Version(event.GlobalVersion),
			AggregateType: event.AggregateType,
			Timestamp:     event.Timestamp,
			Data:          data,
			Metadata:      metadata,
		})
	}
	return events, nil
}

func (er *EventRepository) warn(warning Warning) {
	if er.Warnings != nil {
		er.Warnings(warning)
	}
}
