package ordersourcing

import "github.com/gofrs/uuid/v5"

// idFunc is the generator of aggregate and event identifiers.
// It can be changed from the outside via the SetIDFunc function.
var idFunc = randomUUID

// SetIDFunc is used to change how identifiers are generated, default is a random uuid
func SetIDFunc(f func() string) {
	idFunc = f
}

func randomUUID() string {
	return uuid.Must(uuid.NewV4()).String()
}
