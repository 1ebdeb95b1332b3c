package contracts

// Event types published to subscribers
const (
	EventIndexBuilt   = "index.built"
	EventDataAcquired = "data.acquired"
)

// EventPublisher broadcasts domain events. Publish must not block.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(string, interface{}) {}
