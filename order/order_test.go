package order_test

import (
	"errors"
	"testing"

	"github.com/Noru-0/ordersourcing"
	"github.com/Noru-0/ordersourcing/order"
)

func createOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.Create("cust-1", []order.LineItem{
		{ProductID: "p-1", Name: "keyboard", Quantity: 1, Price: 150},
	})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestCreateOrder(t *testing.T) {
	o := createOrder(t)
	if o.Status != order.StatusPending {
		t.Fatalf("expected status %s got %s", order.StatusPending, o.Status)
	}
	if o.Total != 150 {
		t.Fatalf("expected total 150 got %f", o.Total)
	}
	if o.Version() != 1 {
		t.Fatalf("expected version 1 got %d", o.Version())
	}
	if !o.UnsavedEvents() {
		t.Fatal("expected unsaved events on new order")
	}
}

func TestCreateOrderWithoutCustomer(t *testing.T) {
	_, err := order.Create("", nil)
	if !errors.Is(err, order.ErrEmptyCustomerID) {
		t.Fatalf("expected ErrEmptyCustomerID got %v", err)
	}
}

func TestCreateOrderWithBrokenItem(t *testing.T) {
	_, err := order.Create("cust-1", []order.LineItem{{ProductID: "", Quantity: 0}})
	if !errors.Is(err, order.ErrEmptyItem) {
		t.Fatalf("expected ErrEmptyItem got %v", err)
	}
}

func TestCommands(t *testing.T) {
	o := createOrder(t)
	if err := o.AddItem("p-2", "mouse", 2, 40); err != nil {
		t.Fatal(err)
	}
	if err := o.UpdateStatus(order.StatusConfirmed); err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusConfirmed {
		t.Fatalf("expected status %s got %s", order.StatusConfirmed, o.Status)
	}
	if o.Total != 230 {
		t.Fatalf("expected total 230 got %f", o.Total)
	}
	if err := o.RemoveItem("p-1"); err != nil {
		t.Fatal(err)
	}
	if len(o.Items) != 1 || o.Items[0].ProductID != "p-2" {
		t.Fatalf("expected only p-2 left got %v", o.Items)
	}
	if o.Version() != 4 {
		t.Fatalf("expected version 4 got %d", o.Version())
	}
}

func TestAddExistingItemGrowsQuantity(t *testing.T) {
	o := createOrder(t)
	if err := o.AddItem("p-1", "keyboard", 2, 150); err != nil {
		t.Fatal(err)
	}
	if len(o.Items) != 1 {
		t.Fatalf("expected one line got %d", len(o.Items))
	}
	if o.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3 got %d", o.Items[0].Quantity)
	}
	if o.Total != 450 {
		t.Fatalf("expected total 450 got %f", o.Total)
	}
}

func TestRemoveUnknownItem(t *testing.T) {
	o := createOrder(t)
	err := o.RemoveItem("p-404")
	if !errors.Is(err, order.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem got %v", err)
	}
}

func TestUpdateToInvalidStatus(t *testing.T) {
	o := createOrder(t)
	err := o.UpdateStatus(order.Status("NOT_A_STATUS"))
	if !errors.Is(err, order.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus got %v", err)
	}
}

func TestCommandsBeforeCreate(t *testing.T) {
	o := order.Order{}
	if err := o.AddItem("p-1", "keyboard", 1, 150); !errors.Is(err, order.ErrNotCreated) {
		t.Fatalf("expected ErrNotCreated got %v", err)
	}
	if err := o.UpdateStatus(order.StatusConfirmed); !errors.Is(err, order.ErrNotCreated) {
		t.Fatalf("expected ErrNotCreated got %v", err)
	}
	if o.UnsavedEvents() {
		t.Fatal("rejected commands must not track events")
	}
}

func laggedHistory() []ordersourcing.Event {
	return []ordersourcing.Event{
		{AggregateID: "o-1", Version: 1, AggregateType: "Order", Data: &order.Created{CustomerID: "cust-1", Status: order.StatusPending}},
		{AggregateID: "o-1", Version: 2, AggregateType: "Order", Data: &order.Created{CustomerID: "cust-2", Status: order.StatusPending}},
		{AggregateID: "o-1", Version: 3, AggregateType: "Order", Data: &order.StatusUpdated{Status: order.StatusConfirmed}},
	}
}

func TestReplayToleratesDoubleCreate(t *testing.T) {
	var warnings []ordersourcing.Warning
	o := order.Order{}
	o.Warn = func(w ordersourcing.Warning) {
		warnings = append(warnings, w)
	}
	if err := o.BuildFromHistory(&o, laggedHistory()); err != nil {
		t.Fatal(err)
	}
	if o.CustomerID != "cust-1" {
		t.Fatalf("the second create must be skipped, got customer %s", o.CustomerID)
	}
	if o.Status != order.StatusConfirmed {
		t.Fatalf("expected status %s got %s", order.StatusConfirmed, o.Status)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning got %d", len(warnings))
	}
	if warnings[0].Version != 2 || warnings[0].Reason != "Created" {
		t.Fatalf("warning should point at the skipped event, got %+v", warnings[0])
	}
}

func TestStrictReplayFailsOnDoubleCreate(t *testing.T) {
	o := order.Order{Strict: true}
	err := o.BuildFromHistory(&o, laggedHistory())
	if !errors.Is(err, order.ErrAlreadyCreated) {
		t.Fatalf("expected ErrAlreadyCreated got %v", err)
	}
}

type legacyDiscount struct{}

func TestReplayUnknownEventType(t *testing.T) {
	history := []ordersourcing.Event{
		{AggregateID: "o-1", Version: 1, AggregateType: "Order", Data: &order.Created{CustomerID: "cust-1", Status: order.StatusPending}},
		{AggregateID: "o-1", Version: 2, AggregateType: "Order", Data: &legacyDiscount{}},
	}

	var warnings []ordersourcing.Warning
	o := order.Order{}
	o.Warn = func(w ordersourcing.Warning) {
		warnings = append(warnings, w)
	}
	if err := o.BuildFromHistory(&o, history); err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning got %d", len(warnings))
	}

	strict := order.Order{Strict: true}
	err := strict.BuildFromHistory(&strict, history)
	if !errors.Is(err, order.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent got %v", err)
	}
}

func TestReplaySkipsRolledBackMarker(t *testing.T) {
	// a rollback event reaching the transition must leave the state alone
	history := []ordersourcing.Event{
		{AggregateID: "o-1", Version: 1, AggregateType: "Order", Data: &order.Created{CustomerID: "cust-1", Status: order.StatusPending}},
		{AggregateID: "o-1", Version: 2, AggregateType: "Order", Data: &ordersourcing.RolledBack{Kind: ordersourcing.RollbackKindVersion, ToVersion: 1}},
	}
	o := order.Order{Strict: true}
	if err := o.BuildFromHistory(&o, history); err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusPending {
		t.Fatalf("expected status %s got %s", order.StatusPending, o.Status)
	}
}

func TestString(t *testing.T) {
	o := createOrder(t)
	if err := o.AddItem("p-2", "mouse", 2, 40); err != nil {
		t.Fatal(err)
	}
	got := o.String()
	want := "PENDING [p-1 p-2] total 230.00"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}
