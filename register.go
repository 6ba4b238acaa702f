package ordersourcing

import (
	"reflect"

	"github.com/Noru-0/ordersourcing/core"
)

type registerFunc = func() interface{}

// RegisterFunc is the function handed to the aggregate Register method where it
// binds its event types
type RegisterFunc = func(events ...interface{})

type register struct {
	aggregateEvents map[string]registerFunc
	aggregates      map[string]struct{}
}

func newRegister() *register {
	return &register{
		aggregateEvents: make(map[string]registerFunc),
		aggregates:      make(map[string]struct{}),
	}
}

// EventRegistered returns a function that creates a fresh instance of the
// event data type bound to the aggregate type and reason of the stored event
func (r *register) EventRegistered(event core.Event) (registerFunc, bool) {
	d, ok := r.aggregateEvents[event.AggregateType+"_"+event.Reason]
	return d, ok
}

// AggregateRegistered returns true if the aggregate is registered
func (r *register) AggregateRegistered(a aggregate) bool {
	_, ok := r.aggregates[aggregateType(a)]
	return ok
}

// Register binds the aggregate type to its events. The RolledBack event is
// bound to every aggregate type, the repository needs it to interpret
// rollbacks without the aggregate declaring it.
func (r *register) Register(a aggregate) {
	typ := aggregateType(a)
	r.aggregates[typ] = struct{}{}
	r.bind(typ, &RolledBack{})

	a.Register(func(events ...interface{}) {
		for _, event := range events {
			r.bind(typ, event)
		}
	})
}

func (r *register) bind(aggregateType string, event interface{}) {
	reason := reflect.TypeOf(event).Elem().Name()
	r.aggregateEvents[aggregateType+"_"+reason] = eventToFunc(event)
}

func eventToFunc(event interface{}) registerFunc {
	typ := reflect.TypeOf(event).Elem()
	return func() interface{} {
		return reflect.New(typ).Interface()
	}
}
