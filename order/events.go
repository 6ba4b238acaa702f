package order

// Status of the order
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// LineItem is one product line of an order
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
}

// Created is the initial event of every order
type Created struct {
	CustomerID string
	Status     Status
	Items      []LineItem
}

// StatusUpdated moves the order to a new status
type StatusUpdated struct {
	Status Status
}

// ItemAdded puts a product line on the order
type ItemAdded struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
}

// ItemRemoved removes the product lines carrying the product id
type ItemRemoved struct {
	ProductID string
}
