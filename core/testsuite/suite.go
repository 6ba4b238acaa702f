package testsuite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/Noru-0/ordersourcing/core"
)

var seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))

func AggregateID() string {
	r := seededRand.Intn(999999999999)
	return fmt.Sprintf("%d", r)
}

// eventID returns a uuid, some backends store event ids in uuid form
func eventID() string {
	return uuid.Must(uuid.NewV4()).String()
}

type eventstoreFunc = func() (core.EventStore, func(), error)

type Created struct {
	CustomerID string
	Status     string
}

type ItemAdded struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
}

type StatusUpdated struct {
	Status string
}

// rolledBack mirrors the payload shape the repository stores for rollbacks,
// the store must carry it through untouched like any other payload
type rolledBack struct {
	Kind      string `json:"kind"`
	ToVersion uint64 `json:"toVersion,omitempty"`
}

var aggregateType = "Order"
var timestamp = time.Now()

func eventToByte(i interface{}) []byte {
	b, _ := json.Marshal(i)
	return b
}

func testEvents(aggregateID string) []core.Event {
	metadata := make(map[string]interface{})
	metadata["test"] = "hello"
	history := []core.Event{
		{ID: eventID(), AggregateID: aggregateID, Version: 1, AggregateType: aggregateType, Timestamp: timestamp, Reason: "Created", Data: eventToByte(&Created{CustomerID: "cust-1", Status: "PENDING"}), Metadata: eventToByte(metadata)},
		{ID: eventID(), AggregateID: aggregateID, Version: 2, AggregateType: aggregateType, Timestamp: timestamp, Reason: "ItemAdded", Data: eventToByte(&ItemAdded{ProductID: "p-1", Name: "keyboard", Quantity: 1, Price: 150}), Metadata: eventToByte(metadata)},
		{ID: eventID(), AggregateID: aggregateID, Version: 3, AggregateType: aggregateType, Timestamp: timestamp, Reason: "ItemAdded", Data: eventToByte(&ItemAdded{ProductID: "p-2", Name: "mouse", Quantity: 2, Price: 40}), Metadata: eventToByte(metadata)},
		{ID: eventID(), AggregateID: aggregateID, Version: 4, AggregateType: aggregateType, Timestamp: timestamp, Reason: "StatusUpdated", Data: eventToByte(&StatusUpdated{Status: "CONFIRMED"}), Metadata: eventToByte(metadata)},
		{ID: eventID(), AggregateID: aggregateID, Version: 5, AggregateType: aggregateType, Timestamp: timestamp, Reason: "ItemAdded", Data: eventToByte(&ItemAdded{ProductID: "p-3", Name: "monitor", Quantity: 1, Price: 320}), Metadata: eventToByte(metadata)},
		{ID: eventID(), AggregateID: aggregateID, Version: 6, AggregateType: aggregateType, Timestamp: timestamp, Reason: "StatusUpdated", Data: eventToByte(&StatusUpdated{Status: "SHIPPED"}), Metadata: eventToByte(metadata)},
	}
	return history
}

func testEventsPartTwo(aggregateID string) []core.Event {
	history := []core.Event{
		{ID: eventID(), AggregateID: aggregateID, Version: 7, AggregateType: aggregateType, Timestamp: timestamp, Reason: "StatusUpdated", Data: eventToByte(&StatusUpdated{Status: "DELIVERED"})},
		{ID: eventID(), AggregateID: aggregateID, Version: 8, AggregateType: aggregateType, Timestamp: timestamp, Reason: "StatusUpdated", Data: eventToByte(&StatusUpdated{Status: "CLOSED"})},
	}
	return history
}

func testEventOtherAggregate(aggregateID string) core.Event {
	return core.Event{ID: eventID(), AggregateID: aggregateID, Version: 1, AggregateType: aggregateType, Timestamp: timestamp, Reason: "Created", Data: eventToByte(&Created{CustomerID: "cust-2", Status: "PENDING"})}
}

func Test(t *testing.T, esFunc eventstoreFunc) {
	tests := []struct {
		title string
		run   func(es core.EventStore) error
	}{
		{"should save and get events", saveAndGetEvents},
		{"should get events after version", getEventsAfterVersion},
		{"should not save events in wrong version", saveEventsInWrongVersion},
		{"should save and get event concurrently", saveAndGetEventsConcurrently},
		{"should return no events when aggregate is missing", getNoEventsWhenAggregateMissing},
		{"should get global event order from save", saveReturnGlobalEventOrder},
		{"should keep rollback payloads intact", rollbackPayloadRoundTrip},
	}

	for _, test := range tests {
		t.Run(test.title, func(t *testing.T) {
			es, closeFunc, err := esFunc()
			if err != nil {
				t.Fatal(err)
			}
			err = test.run(es)
			if err != nil {
				// make use of t.Error instead of t.Fatal to make sure the closeFunc is executed
				t.Error(err)
			}
			closeFunc()
		})
	}
}

func fetchAll(es core.EventStore, aggregateID string, afterVersion core.Version) ([]core.Event, error) {
	iterator, err := es.Get(context.Background(), aggregateID, aggregateType, afterVersion)
	if err != nil {
		return nil, err
	}
	defer iterator.Close()

	events := make([]core.Event, 0)
	for iterator.Next() {
		event, err := iterator.Value()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func saveAndGetEvents(es core.EventStore) error {
	aggregateID := AggregateID()
	events := testEvents(aggregateID)
	err := es.Save(events)
	if err != nil {
		return err
	}
	fetchedEvents, err := fetchAll(es, aggregateID, 0)
	if err != nil {
		return err
	}
	if len(fetchedEvents) != len(events) {
		return errors.New("wrong number of events returned")
	}
	if fetchedEvents[0].Version != events[0].Version {
		return errors.New("wrong events returned")
	}

	// Add more events to the same aggregate event stream
	err = es.Save(testEventsPartTwo(aggregateID))
	if err != nil {
		return err
	}
	fetchedEvents, err = fetchAll(es, aggregateID, 0)
	if err != nil {
		return err
	}
	if len(fetchedEvents) != len(events)+len(testEventsPartTwo(aggregateID)) {
		return errors.New("wrong number of events returned")
	}
	if fetchedEvents[0].Version != events[0].Version {
		return errors.New("wrong event version returned")
	}
	if fetchedEvents[0].AggregateID != events[0].AggregateID {
		return errors.New("wrong event aggregateID returned")
	}
	if fetchedEvents[0].AggregateType != events[0].AggregateType {
		return errors.New("wrong event aggregateType returned")
	}
	if fetchedEvents[0].Reason != events[0].Reason {
		return errors.New("wrong event reason returned")
	}
	if fetchedEvents[0].ID != events[0].ID {
		return errors.New("wrong event id returned")
	}
	return nil
}

func getEventsAfterVersion(es core.EventStore) error {
	aggregateID := AggregateID()
	err := es.Save(testEvents(aggregateID))
	if err != nil {
		return err
	}

	fetchedEvents, err := fetchAll(es, aggregateID, 1)
	if err != nil {
		return err
	}
	// Should return one less event
	if len(fetchedEvents) != len(testEvents(aggregateID))-1 {
		return fmt.Errorf("wrong number of events returned exp: %d, got: %d", len(testEvents(aggregateID))-1, len(fetchedEvents))
	}
	// first event version should be 2
	if fetchedEvents[0].Version != 2 {
		return fmt.Errorf("wrong events returned")
	}
	return nil
}

func saveEventsInWrongVersion(es core.EventStore) error {
	aggregateID := AggregateID()
	events := testEventsPartTwo(aggregateID)
	err := es.Save(events)

	if !errors.Is(err, core.ErrConcurrency) {
		return errors.New("should not be able to save events that are out of sync compared to the storage order")
	}
	return nil
}

func saveAndGetEventsConcurrently(es core.EventStore) error {
	wg := sync.WaitGroup{}
	var err error
	aggregateID := AggregateID()

	wg.Add(10)
	for i := 0; i < 10; i++ {
		events := testEvents(fmt.Sprintf("%s-%d", aggregateID, i))
		go func() {
			e := es.Save(events)
			if e != nil {
				err = e
			}
			wg.Done()
		}()
	}
	wg.Wait()
	if err != nil {
		return err
	}

	wg.Add(10)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("%s-%d", aggregateID, i)
		go func() {
			defer wg.Done()
			events, e := fetchAll(es, id, 0)
			if e != nil {
				err = e
				return
			}
			if len(events) != 6 {
				err = fmt.Errorf("wrong number of events fetched, expecting 6 got %d", len(events))
			}
		}()
	}
	wg.Wait()
	return err
}

func getNoEventsWhenAggregateMissing(es core.EventStore) error {
	aggregateID := AggregateID()
	iterator, err := es.Get(context.Background(), aggregateID, aggregateType, 0)
	if err != nil {
		return err
	}
	defer iterator.Close()
	if iterator.Next() {
		return fmt.Errorf("expect no event when no events are saved")
	}
	return nil
}

func saveReturnGlobalEventOrder(es core.EventStore) error {
	aggregateID := AggregateID()
	aggregateID2 := AggregateID()
	events := testEvents(aggregateID)
	err := es.Save(events)
	if err != nil {
		return err
	}
	if events[len(events)-1].GlobalVersion == 0 {
		return fmt.Errorf("expected global event order > 0 on last event got %d", events[len(events)-1].GlobalVersion)
	}
	events2 := []core.Event{testEventOtherAggregate(aggregateID2)}
	err = es.Save(events2)
	if err != nil {
		return err
	}
	if events2[0].GlobalVersion <= events[len(events)-1].GlobalVersion {
		return fmt.Errorf("expected larger global event order got %d", events2[0].GlobalVersion)
	}
	return nil
}

// The store must not interpret payloads, a stored rollback event comes back
// with the exact bytes it was saved with.
func rollbackPayloadRoundTrip(es core.EventStore) error {
	aggregateID := AggregateID()
	events := testEvents(aggregateID)
	err := es.Save(events)
	if err != nil {
		return err
	}
	payload := eventToByte(&rolledBack{Kind: "version", ToVersion: 2})
	rollback := core.Event{
		ID:            eventID(),
		AggregateID:   aggregateID,
		Version:       7,
		AggregateType: aggregateType,
		Timestamp:     timestamp,
		Reason:        "RolledBack",
		Data:          payload,
	}
	err = es.Save([]core.Event{rollback})
	if err != nil {
		return err
	}

	fetchedEvents, err := fetchAll(es, aggregateID, 6)
	if err != nil {
		return err
	}
	if len(fetchedEvents) != 1 {
		return fmt.Errorf("expected the rollback event only, got %d events", len(fetchedEvents))
	}
	if fetchedEvents[0].Reason != "RolledBack" {
		return fmt.Errorf("wrong reason returned: %s", fetchedEvents[0].Reason)
	}
	if string(fetchedEvents[0].Data) != string(payload) {
		return fmt.Errorf("rollback payload altered by the store: %s", string(fetchedEvents[0].Data))
	}
	return nil
}
