package resource

// Handle is an opaque reference to a host value held for native code.
// Handle 0 is reserved and always invalid, so a handle fits a nullable
// pointer-sized slot.
type Handle uint32

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventReturned
	// EventDeferred is sent when a drop is requested while the entry is
	// borrowed; the drop happens when the last borrow is returned.
	EventDeferred
)

var eventNames = [...]string{
	EventCreated:  "created",
	EventDropped:  "dropped",
	EventBorrowed: "borrowed",
	EventReturned: "returned",
	EventDeferred: "deferred",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event is a lifecycle notification for one handle.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives lifecycle notifications. Observers are called without
// the table lock held.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is dropped.
type Dropper interface {
	Drop()
}
