// Package eventbus provides the event bus for publishing and subscribing to events.
package eventbus

import (
	"lungscan-go/core/event"
)

// EventBus is the interface for the event bus.
type EventBus interface {
	// Publish publishes an event to all subscribers.
	// Events are queued for async dispatch in publish order. Publish blocks
	// while the queue is full; events are never dropped.
	// Handlers must not call Publish on the same bus.
	Publish(e event.Event)

	// Subscribe subscribes to all events.
	// Returns a subscription ID that can be used to unsubscribe.
	Subscribe(handler EventHandler) string

	// SubscribeJob subscribes to events from a specific job.
	// Only events implementing JobEvent with matching JobID will be delivered.
	// Returns a subscription ID that can be used to unsubscribe.
	SubscribeJob(jobID string, handler EventHandler) string

	// Unsubscribe removes a subscription by its ID.
	Unsubscribe(subscriptionID string)

	// Close delivers queued events, then shuts down the event bus.
	// After Close is called, Publish will be a no-op.
	Close()
}

// EventHandler is a function that handles an event.
type EventHandler func(e event.Event)
