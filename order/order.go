// Package order implements an event sourced order aggregate. Commands
// validate input and track events, Transition folds the events back into
// state when the order is rebuilt.
package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Noru-0/ordersourcing"
)

var (
	// ErrEmptyCustomerID when creating an order without a customer
	ErrEmptyCustomerID = errors.New("customer id can not be empty")

	// ErrInvalidStatus when the status is not one of the known ones
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrAlreadyCreated when a created event hits an already created order
	ErrAlreadyCreated = errors.New("order already created")

	// ErrNotCreated when events arrive before the order exists
	ErrNotCreated = errors.New("order not created")

	// ErrUnknownItem when removing a product that is not on the order
	ErrUnknownItem = errors.New("item not on the order")

	// ErrUnknownEvent when replaying an event type the order does not know
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrEmptyItem when adding an item without product id or a positive quantity
	ErrEmptyItem = errors.New("item needs a product id and a positive quantity")
)

// Order is the aggregate, rebuilt from its events
type Order struct {
	ordersourcing.AggregateRoot
	CustomerID string
	Status     Status
	Items      []LineItem
	Total      float64

	// Strict makes Transition return an error on events that do not apply to
	// the current state. Default is to skip them and report through Warn.
	Strict bool
	// Warn receives notices about skipped events, nil disables them
	Warn ordersourcing.WarningFunc

	created bool
}

// Register binds the order events to the aggregate type
func (o *Order) Register(r ordersourcing.RegisterFunc) {
	r(&Created{}, &StatusUpdated{}, &ItemAdded{}, &ItemRemoved{})
}

// Transition builds the order state from its events
func (o *Order) Transition(event ordersourcing.Event) error {
	switch e := event.Data.(type) {
	case *Created:
		if o.created {
			return o.reject(event, ErrAlreadyCreated)
		}
		o.created = true
		o.CustomerID = e.CustomerID
		o.Status = e.Status
		o.Items = append([]LineItem{}, e.Items...)
	case *StatusUpdated:
		if !o.created {
			return o.reject(event, ErrNotCreated)
		}
		o.Status = e.Status
	case *ItemAdded:
		if !o.created {
			return o.reject(event, ErrNotCreated)
		}
		// adding a product that is already on the order grows its quantity
		merged := false
		for i, item := range o.Items {
			if item.ProductID == e.ProductID {
				o.Items[i].Quantity += e.Quantity
				merged = true
				break
			}
		}
		if !merged {
			o.Items = append(o.Items, LineItem{ProductID: e.ProductID, Name: e.Name, Quantity: e.Quantity, Price: e.Price})
		}
	case *ItemRemoved:
		if !o.created {
			return o.reject(event, ErrNotCreated)
		}
		items := make([]LineItem, 0, len(o.Items))
		found := false
		for _, item := range o.Items {
			if item.ProductID == e.ProductID {
				found = true
				continue
			}
			items = append(items, item)
		}
		if !found {
			return o.reject(event, ErrUnknownItem)
		}
		o.Items = items
	case *ordersourcing.RolledBack:
		// rollbacks are resolved by the repository before the replay, by the
		// time events reach the order the history is already narrowed
	default:
		return o.reject(event, ErrUnknownEvent)
	}
	o.Total = total(o.Items)
	return nil
}

// reject handles an event that does not apply to the current state. In strict
// mode it fails the transition, otherwise the event is skipped and reported
// through Warn.
func (o *Order) reject(event ordersourcing.Event, err error) error {
	if o.Strict {
		return fmt.Errorf("%w: %s at version %d", err, event.Reason(), event.Version)
	}
	if o.Warn != nil {
		o.Warn(ordersourcing.Warning{
			AggregateID:   event.AggregateID,
			AggregateType: event.AggregateType,
			Version:       event.Version,
			Reason:        event.Reason(),
			Message:       err.Error(),
		})
	}
	return nil
}

// Create starts a new order for the customer with an optional set of initial items
func Create(customerID string, items []LineItem) (*Order, error) {
	if customerID == "" {
		return nil, ErrEmptyCustomerID
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, ErrEmptyItem
		}
	}
	order := Order{}
	if err := order.TrackChange(&order, &Created{CustomerID: customerID, Status: StatusPending, Items: items}); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves the order to the given status
func (o *Order) UpdateStatus(status Status) error {
	if !status.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if !o.created {
		return ErrNotCreated
	}
	return o.TrackChange(o, &StatusUpdated{Status: status})
}

// AddItem puts a new product line on the order
func (o *Order) AddItem(productID, name string, quantity int, price float64) error {
	if productID == "" || quantity <= 0 {
		return ErrEmptyItem
	}
	if !o.created {
		return ErrNotCreated
	}
	return o.TrackChange(o, &ItemAdded{ProductID: productID, Name: name, Quantity: quantity, Price: price})
}

// RemoveItem removes the product lines carrying the product id
func (o *Order) RemoveItem(productID string) error {
	if !o.created {
		return ErrNotCreated
	}
	for _, item := range o.Items {
		if item.ProductID == productID {
			return o.TrackChange(o, &ItemRemoved{ProductID: productID})
		}
	}
	return ErrUnknownItem
}

// String is the short audit form of the order state
func (o *Order) String() string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return fmt.Sprintf("%s [%s] total %.2f", o.Status, strings.Join(ids, " "), o.Total)
}

func total(items []LineItem) float64 {
	var sum float64
	for _, item := range items {
		sum += float64(item.Quantity) * item.Price
	}
	return sum
}
