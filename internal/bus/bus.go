// Package bus is the in-process publish/subscribe channel that carries
// events to the trigger store and resolved requests to integrations.
// A Bus is constructed explicitly and injected; there is no global instance.
package bus

import (
	"context"
	"errors"
	"time"
)

const (
	// TopicExecuteAction carries models.InternalRequest payloads
	TopicExecuteAction = "execute-action"
	// TopicNotification carries Notification payloads
	TopicNotification = "notification"

	eventTopicPrefix = "event:"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("bus is closed")

// EventTopic returns the topic that events named name are published on.
func EventTopic(name string) string {
	return eventTopicPrefix + name
}

// Message is one delivery.
type Message struct {
	Topic     string
	Payload   interface{}
	Timestamp time.Time
}

// Handler consumes messages of one subscription. Handlers of the same
// subscription run sequentially in publish order.
type Handler func(ctx context.Context, msg Message)

// Subscription can be cancelled.
type Subscription interface {
	Unsubscribe()
}

// Bus is the publish/subscribe contract.
type Bus interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Subscribe(topic string, handler Handler) (Subscription, error)
	Close() error
}

// Notification is a human readable line emitted by the engine.
type Notification struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}
