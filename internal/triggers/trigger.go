// Package triggers holds rule definitions and the store that matches
// incoming events against them.
//
// A Trigger lists the events it listens to, each with a conjunction of
// conditions, and the request templates it emits when accepted. The Store
// keeps triggers in insertion order, indexes them by event name and runs
// HandleEvent for every event published on the bus.
package triggers

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"triggerd/internal/conditions"
	"triggerd/internal/cooldown"
	"triggerd/internal/models"
)

// EventMapping binds an event name to the conditions that must hold.
type EventMapping struct {
	Event      string                 `json:"event" yaml:"event" validate:"required"`
	Conditions []conditions.Condition `json:"conditions" yaml:"conditions" validate:"dive"`
}

// Trigger is one rule. Cooldown and UserCooldown are milliseconds.
type Trigger struct {
	ID           string                   `json:"id" yaml:"id" validate:"required"`
	Name         string                   `json:"name" yaml:"name" validate:"required"`
	Events       []EventMapping           `json:"events" yaml:"events" validate:"required,min=1,dive"`
	Actions      []models.InternalRequest `json:"actions" yaml:"actions" validate:"required,dive"`
	Cooldown     int64                    `json:"cooldown" yaml:"cooldown" validate:"gte=0"`
	UserCooldown int64                    `json:"user_cooldown,omitempty" yaml:"user_cooldown,omitempty" validate:"gte=0"`
	Log          bool                     `json:"log" yaml:"log"`
	Enabled      bool                     `json:"enabled" yaml:"enabled"`

	// LastExecuted is runtime state and never persisted.
	LastExecuted time.Time `json:"-" yaml:"-"`
}

// UnmarshalJSON applies the defaults log=true and enabled=true.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	type plain Trigger
	p := plain{Log: true, Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Trigger(p)
	t.LastExecuted = time.Time{}
	return nil
}

// UnmarshalYAML applies the same defaults as UnmarshalJSON.
func (t *Trigger) UnmarshalYAML(value *yaml.Node) error {
	type plain Trigger
	p := plain{Log: true, Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Trigger(p)
	t.LastExecuted = time.Time{}
	return nil
}

// Mapping returns the first mapping declared for event.
func (t *Trigger) Mapping(event string) (EventMapping, bool) {
	for _, m := range t.Events {
		if m.Event == event {
			return m, true
		}
	}
	return EventMapping{}, false
}

// EventNames returns the distinct event names in declaration order.
func (t *Trigger) EventNames() []string {
	seen := make(map[string]struct{}, len(t.Events))
	names := make([]string, 0, len(t.Events))
	for _, m := range t.Events {
		if _, ok := seen[m.Event]; ok {
			continue
		}
		seen[m.Event] = struct{}{}
		names = append(names, m.Event)
	}
	return names
}

// CooldownDuration returns the trigger cooldown.
func (t *Trigger) CooldownDuration() time.Duration {
	return cooldown.Millis(t.Cooldown)
}

// UserCooldownDuration returns the per-user cooldown applied on acceptance.
func (t *Trigger) UserCooldownDuration() time.Duration {
	return cooldown.Millis(t.UserCooldown)
}
