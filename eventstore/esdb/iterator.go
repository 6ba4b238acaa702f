package esdb

import (
	"errors"
	"io"
	"strings"

	"github.com/EventStore/EventStore-Client-Go/v3/esdb"

	"github.com/Noru-0/ordersourcing/core"
)

type iterator struct {
	stream *esdb.ReadStream
	event  core.Event
	err    error
}

// Next steps the iterator to the next event
func (i *iterator) Next() bool {
	resolved, err := i.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false
		}
		if esdbErr, ok := esdb.FromError(err); !ok && esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
			// the stream does not exist, nothing to deliver
			return false
		}
		i.event, i.err = core.Event{}, err
		return true
	}

	streamID := strings.SplitN(resolved.Event.StreamID, streamSeparator, 2)
	i.event, i.err = core.Event{
		ID:            resolved.Event.EventID.String(),
		AggregateID:   streamID[1],
		Version:       core.Version(resolved.Event.EventNumber) + 1, // +1 as the version starts on 1 but the stream revision on 0
		AggregateType: streamID[0],
		Timestamp:     resolved.Event.CreatedDate,
		Reason:        resolved.Event.EventType,
		Data:          resolved.Event.Data,
		Metadata:      resolved.Event.UserMetadata,
		// the global version is not available when reading a single stream
	}, nil
	return true
}

// Value returns the event on the current position
func (i *iterator) Value() (core.Event, error) {
	return i.event, i.err
}

// Close closes the stream
func (i *iterator) Close() {
	i.stream.Close()
}
