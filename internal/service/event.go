package service

// EventType is the kind of change reported by the remote table.
type EventType string

const (
	EventInsert  EventType = "insert"
	EventUpdate  EventType = "update"
	EventDelete  EventType = "delete"
	EventUnknown EventType = "unknown"
)

// Event reports that some row in the task table changed. Nothing beyond
// the fact of the change is relied upon.
type Event struct {
	Type EventType
	ID   string // row id when the backend reports it
}

// Subscription is an open change subscription.
type Subscription interface {
	// Close releases the subscription. It is safe to call more than once.
	Close() error
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func() error

// Close implements Subscription.
func (f SubscriptionFunc) Close() error { return f() }
