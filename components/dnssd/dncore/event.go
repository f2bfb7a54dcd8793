package dncore

// EventType is a type of the browser event.
type EventType int

const (
	// EventAdded is emitted once a new service is resolved.
	EventAdded EventType = iota

	// EventRemoved is emitted when a known service is no longer advertised.
	EventRemoved

	// EventError is emitted on browsing or resolving failure.
	EventError
)

// String returns string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventError:
		return "error"
	default:
		return "<none>"
	}
}

// Event is a single browser notification.
type Event struct {
	// Type is the event type.
	Type EventType

	// Record is set for EventAdded and EventRemoved.
	Record *ServiceRecord

	// Err is set for EventError.
	Err error

	// Fatal is set for EventError if the browse session is no longer operational.
	Fatal bool
}

// AddedEvent makes EventAdded event.
func AddedEvent(record *ServiceRecord) Event {
	return Event{Type: EventAdded, Record: record}
}

// RemovedEvent makes EventRemoved event.
func RemovedEvent(record *ServiceRecord) Event {
	return Event{Type: EventRemoved, Record: record}
}

// ErrorEvent makes EventError event for the failure of a single service.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Err: err}
}

// FatalEvent makes EventError event for the failure of the whole session.
func FatalEvent(err error) Event {
	return Event{Type: EventError, Err: err, Fatal: true}
}
