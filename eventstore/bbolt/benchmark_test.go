package bbolt_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Noru-0/ordersourcing/core"
	"github.com/Noru-0/ordersourcing/eventstore/bbolt"
)

func orderHistory(id string, count int) []core.Event {
	timestamp := time.Now()
	created, _ := json.Marshal(struct {
		CustomerID string
		Status     string
	}{CustomerID: "cust-1", Status: "PENDING"})
	statusUpdated, _ := json.Marshal(struct{ Status string }{Status: "CONFIRMED"})

	events := make([]core.Event, 0, count)
	events = append(events, core.Event{
		ID: fmt.Sprintf("%s-1", id), AggregateID: id, Version: 1, AggregateType: "Order",
		Timestamp: timestamp, Reason: "Created", Data: created,
	})
	for i := 2; i <= count; i++ {
		events = append(events, core.Event{
			ID: fmt.Sprintf("%s-%d", id, i), AggregateID: id, Version: core.Version(i), AggregateType: "Order",
			Timestamp: timestamp, Reason: "StatusUpdated", Data: statusUpdated,
		})
	}
	return events
}

// Benchmark the time it takes to fetch and decode the events of one aggregate
func BenchmarkFetch101Events(b *testing.B) {
	dbFile := filepath.Join(b.TempDir(), "bolt.db")
	eventStore := bbolt.MustOpenBBolt(dbFile)
	defer eventStore.Close()

	err := eventStore.Save(orderHistory("order-bench", 101))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		iterator, err := eventStore.Get(context.Background(), "order-bench", "Order", 0)
		if err != nil {
			b.Fatal(err)
		}
		count := 0
		for iterator.Next() {
			if _, err := iterator.Value(); err != nil {
				b.Fatal(err)
			}
			count++
		}
		iterator.Close()
		if count != 101 {
			b.Fatalf("expected 101 events got %d", count)
		}
	}
}

// Benchmark the time it takes to save 101 events
func BenchmarkSave101Events(b *testing.B) {
	dbFile := filepath.Join(b.TempDir(), "bolt.db")
	eventStore := bbolt.MustOpenBBolt(dbFile)
	defer eventStore.Close()

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		err := eventStore.Save(orderHistory(fmt.Sprintf("order-%d", n), 101))
		if err != nil {
			b.Fatal(err)
		}
	}
}
