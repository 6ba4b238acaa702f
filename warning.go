package ordersourcing

// Warning describes a non fatal condition observed while events are replayed,
// such as an event type that is no longer registered. Warnings never stop a
// replay, they only surface what was tolerated.
type Warning struct {
	AggregateID   string
	AggregateType string
	Version       Version
	Reason        string
	Message       string
}

// WarningFunc receives replay warnings. The function is called in the replay
// path and must not block.
type WarningFunc func(warning Warning)
