package usecase

import "context"

// Event subjects, relative to the publisher's prefix.
const (
	EventUserRegistered = "users.registered"
	EventTaskCreated    = "tasks.created"
	EventTaskUpdated    = "tasks.updated"
	EventTaskDeleted    = "tasks.deleted"
)

// EventPublisher fans domain events out to other services. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error {
	return nil
}
