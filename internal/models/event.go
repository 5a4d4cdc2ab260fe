package models

import (
	"fmt"
	"time"
)

// Well-known event fields used for user throttling and notifications.
const (
	FieldPlatform = "platform"
	FieldUsername = "username"
	FieldNickname = "nickname"
	FieldComment  = "comment"
)

// Event is one occurrence published by a source. Data must be JSON-shaped.
type Event struct {
	Name string                 `json:"event"`
	Data map[string]interface{} `json:"data"`
	// Source becomes the caller of requests whose template leaves it unset
	Source     Caller    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Event{Name: name, Data: data, ReceivedAt: time.Now()}
}

// WithSource returns a copy of e attributed to caller.
func (e Event) WithSource(caller Caller) Event {
	e.Source = caller
	return e
}

// Field returns a top-level field rendered as a string, or "" when absent.
func (e Event) Field(key string) string {
	v, ok := e.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
