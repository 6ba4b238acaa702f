package core

import "errors"

// ErrEventMultipleAggregates when events holds different id
var ErrEventMultipleAggregates = errors.New("events holds events for more than one aggregate")

// ErrEventMultipleAggregateTypes when events holds different aggregate types
var ErrEventMultipleAggregateTypes = errors.New("events holds events for more than one aggregate type")

// ErrReasonMissing when the reason is not present in the events
var ErrReasonMissing = errors.New("event holds no reason")

// ErrIDMissing when the event id is not present in the events
var ErrIDMissing = errors.New("event holds no id")

// ValidateEvents make sure the incoming events are valid
func ValidateEvents(aggregateID string, currentVersion Version, events []Event) error {
	aggregateType := events[0].AggregateType

	for _, event := range events {
		if event.AggregateID != aggregateID {
			return ErrEventMultipleAggregates
		}

		if event.AggregateType != aggregateType {
			return ErrEventMultipleAggregateTypes
		}

		if currentVersion+1 != event.Version {
			return ErrConcurrency
		}

		if event.Reason == "" {
			return ErrReasonMissing
		}

		if event.ID == "" {
			return ErrIDMissing
		}

		currentVersion = event.Version
	}
	return nil
}

// ValidateEventsNoVersionCheck make sure the incoming events are valid without
// checking them against the stored version, for stores that enforce the
// version server side
func ValidateEventsNoVersionCheck(aggregateID string, events []Event) error {
	aggregateType := events[0].AggregateType
	currentVersion := events[0].Version - 1

	for _, event := range events {
		if event.AggregateID != aggregateID {
			return ErrEventMultipleAggregates
		}

		if event.AggregateType != aggregateType {
			return ErrEventMultipleAggregateTypes
		}

		if currentVersion+1 != event.Version {
			return ErrConcurrency
		}

		if event.Reason == "" {
			return ErrReasonMissing
		}

		if event.ID == "" {
			return ErrIDMissing
		}

		currentVersion = event.Version
	}
	return nil
}
