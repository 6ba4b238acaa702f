package ordersourcing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RollbackKind selects how a RolledBack event addresses its target point.
type RollbackKind string

const (
	// RollbackKindVersion addresses the target by aggregate version
	RollbackKindVersion RollbackKind = "version"
	// RollbackKindTimestamp addresses the target by event timestamp
	RollbackKindTimestamp RollbackKind = "timestamp"
)

// RolledBack is recorded when an aggregate is rolled back to an earlier point
// of its history. It occupies a version slot like any other event, the history
// itself is never truncated, only narrowed when it is replayed.
//
// EventsUndone, PreviousState and NewState are audit information and are never
// consulted when the history is replayed.
type RolledBack struct {
	Kind          RollbackKind `json:"kind"`
	ToVersion     Version      `json:"toVersion,omitempty"`
	ToTime        time.Time    `json:"toTime,omitempty"`
	EventsUndone  int          `json:"eventsUndone"`
	PreviousState string       `json:"previousState,omitempty"`
	NewState      string       `json:"newState,omitempty"`
}

var (
	// ErrDuplicateVersion when two events claim the same version slot of one aggregate
	ErrDuplicateVersion = errors.New("duplicate event version")

	// ErrMalformedRollbackChain when rollback events point at each other without
	// ever reaching an ordinary event
	ErrMalformedRollbackChain = errors.New("malformed rollback chain")

	// ErrUnknownRollbackKind when a stored RolledBack event has a kind this
	// version of the library does not know
	ErrUnknownRollbackKind = errors.New("unknown rollback kind")
)

// RollbackTargetError is returned when a rollback addresses a version that
// earlier rollbacks made unreachable. Skipped carries the complete set of
// unreachable versions so the caller can see why the target was rejected.
type RollbackTargetError struct {
	Target  Version
	Skipped []Version
}

func (e *RollbackTargetError) Error() string {
	s := make([]string, 0, len(e.Skipped))
	for _, v := range e.Skipped {
		s = append(s, strconv.FormatUint(uint64(v), 10))
	}
	return fmt.Sprintf("version %d can not be used as rollback target, skipped versions: [%s]", e.Target, strings.Join(s, " "))
}

// rollbackData returns the RolledBack payload when the event is a rollback event.
func rollbackData(event Event) (*RolledBack, bool) {
	rb, ok := event.Data.(*RolledBack)
	return rb, ok
}

// sequenceEvents orders events ascending by version. Versions are unique
// within one aggregate, a duplicate means the history is corrupt.
func sequenceEvents(events []Event) ([]Event, error) {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("%w: version %d", ErrDuplicateVersion, sorted[i].Version)
		}
	}
	return sorted, nil
}

// ordinaryEvents filters out rollback events.
func ordinaryEvents(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, event := range events {
		if _, ok := rollbackData(event); ok {
			continue
		}
		out = append(out, event)
	}
	return out
}

// SkippedVersions returns every version that rollback events in the history
// have made unreachable as a rollback target. Each rollback event contributes
// the versions between its target point and the version just before itself,
// the union over all rollback events is returned in ascending order.
//
// The set only ever grows as events are added, rollbacks included, since
// recorded events are never altered.
func SkippedVersions(events []Event) []Version {
	skipped := make(map[Version]struct{})
	for _, event := range events {
		rb, ok := rollbackData(event)
		if !ok || event.Version == zeroVersion {
			continue
		}
		var to Version
		switch rb.Kind {
		case RollbackKindVersion:
			to = rb.ToVersion
		case RollbackKindTimestamp:
			to = highestVersionAt(events, rb.ToTime)
		default:
			// the kind is rejected when the history is replayed
			continue
		}
		for v := to + 1; v < event.Version; v++ {
			skipped[v] = struct{}{}
		}
	}
	out := make([]Version, 0, len(skipped))
	for v := range skipped {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// highestVersionAt returns the highest version among ordinary events recorded
// at or before the given instant.
func highestVersionAt(events []Event, at time.Time) Version {
	var highest Version
	for _, event := range events {
		if _, ok := rollbackData(event); ok {
			continue
		}
		if !event.Timestamp.After(at) && event.Version > highest {
			highest = event.Version
		}
	}
	return highest
}

// resolveRollbacks narrows the history to the events that remain visible after
// the latest rollback. Only the rollback event with the highest version is in
// effect, earlier rollbacks are superseded by it. A rollback that targets the
// version slot of another version addressed rollback is followed through that
// rollback until an ordinary version is reached.
//
// The returned events are ordinary events only, in replay order.
func resolveRollbacks(events []Event) ([]Event, error) {
	var latest Event
	var latestData *RolledBack
	byVersion := make(map[Version]*RolledBack)
	for _, event := range events {
		rb, ok := rollbackData(event)
		if !ok {
			continue
		}
		byVersion[event.Version] = rb
		if latestData == nil || event.Version > latest.Version {
			latest = event
			latestData = rb
		}
	}
	if latestData == nil {
		return sequenceEvents(ordinaryEvents(events))
	}

	visible := make([]Event, 0, len(events))
	switch latestData.Kind {
	case RollbackKindVersion:
		cutoff := latestData.ToVersion
		// Each rollback event in the chain can be crossed at most once,
		// more hops than rollback events means the chain never lands on
		// an ordinary version.
		for hops := 0; ; hops++ {
			rb, ok := byVersion[cutoff]
			if !ok || rb.Kind != RollbackKindVersion {
				break
			}
			if hops >= len(byVersion) {
				return nil, fmt.Errorf("%w: version %d never resolves to an ordinary event", ErrMalformedRollbackChain, latestData.ToVersion)
			}
			cutoff = rb.ToVersion
		}
		for _, event := range ordinaryEvents(events) {
			if event.Version <= cutoff || event.Version > latest.Version {
				visible = append(visible, event)
			}
		}
	case RollbackKindTimestamp:
		cutoff := latestData.ToTime
		for _, event := range ordinaryEvents(events) {
			if !event.Timestamp.After(cutoff) || event.Version > latest.Version {
				visible = append(visible, event)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q at version %d", ErrUnknownRollbackKind, latestData.Kind, latest.Version)
	}
	return sequenceEvents(visible)
}
