package esdb

import (
	"context"

	"github.com/EventStore/EventStore-Client-Go/v3/esdb"
	"github.com/gofrs/uuid"

	"github.com/Noru-0/ordersourcing/core"
)

const streamSeparator = "_"

// ESDB event store handler
type ESDB struct {
	client      *esdb.Client
	contentType esdb.ContentType
}

// Open an event store based on EventStoreDB
func Open(client *esdb.Client, jsonSerializer bool) *ESDB {
	// defaults to binary
	var contentType esdb.ContentType
	if jsonSerializer {
		contentType = esdb.ContentTypeJson
	}
	return &ESDB{
		client:      client,
		contentType: contentType,
	}
}

// Save persists events to the database
func (es *ESDB) Save(events []core.Event) error {
	if len(events) == 0 {
		return nil
	}

	var streamOptions esdb.AppendToStreamOptions
	aggregateID := events[0].AggregateID
	aggregateType := events[0].AggregateType
	version := events[0].Version
	streamID := stream(aggregateType, aggregateID)

	err := core.ValidateEventsNoVersionCheck(aggregateID, events)
	if err != nil {
		return err
	}

	esdbEvents := make([]esdb.EventData, len(events))
	for i, event := range events {
		eventID, err := uuid.FromString(event.ID)
		if err != nil {
			eventID = uuid.Must(uuid.NewV4())
		}
		esdbEvents[i] = esdb.EventData{
			EventID:     eventID,
			ContentType: es.contentType,
			EventType:   event.Reason,
			Data:        event.Data,
			Metadata:    event.Metadata,
		}
	}

	if version > 1 {
		// StreamRevision value -2 as the version starts on 1 but the stream
		// revision on 0, and the expected revision is the one just before the
		// first appended event.
		streamOptions.ExpectedRevision = esdb.Revision(uint64(version) - 2)
	} else if version == 1 {
		streamOptions.ExpectedRevision = esdb.NoStream{}
	}
	wr, err := es.client.AppendToStream(context.Background(), streamID, streamOptions, esdbEvents...)
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); !ok && esdbErr.Code() == esdb.ErrorCodeWrongExpectedVersion {
			return core.ErrConcurrency
		}
		return err
	}
	for i := range events {
		// Set all events GlobalVersion to the last events commit position.
		events[i].GlobalVersion = core.Version(wr.CommitPosition)
	}
	return nil
}

// Get a stream of events with version higher than afterVersion
func (es *ESDB) Get(ctx context.Context, id string, aggregateType string, afterVersion core.Version) (core.Iterator, error) {
	streamID := stream(aggregateType, id)

	// the stream revision is zero based, the first returned revision is the
	// one holding afterVersion plus one
	from := esdb.Revision(uint64(afterVersion))
	stream, err := es.client.ReadStream(ctx, streamID, esdb.ReadStreamOptions{From: from}, ^uint64(0))
	if err != nil {
		return nil, err
	}
	return &iterator{stream: stream}, nil
}

func stream(aggregateType, aggregateID string) string {
	return aggregateType + streamSeparator + aggregateID
}
