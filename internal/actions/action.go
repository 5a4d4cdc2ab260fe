// Package actions holds the per-provider action catalogue: categories of
// ActionData, the reverse action -> category index, action cooldowns and
// fuzzy name resolution.
package actions

import (
	"time"

	"triggerd/internal/cooldown"
)

// ActionData describes one action an integration can perform.
// Optional fields are pointers so that a partial update can be told apart
// from an explicit zero.
type ActionData struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
	// Cooldown in milliseconds
	Cooldown *int64 `json:"cooldown,omitempty"`
	// LastTriggered is a unix millisecond timestamp, 0 when never triggered
	LastTriggered int64 `json:"lastTriggered,omitempty"`
	// Fuzzy marks actions that may be resolved by approximate name
	Fuzzy      *bool                  `json:"fuzzy,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// CooldownDuration returns the action cooldown, zero when unset.
func (a ActionData) CooldownDuration() time.Duration {
	if a.Cooldown == nil {
		return 0
	}
	return cooldown.Millis(*a.Cooldown)
}

// IsFuzzy reports whether the action accepts approximate name matches.
func (a ActionData) IsFuzzy() bool {
	return a.Fuzzy != nil && *a.Fuzzy
}

// OnCooldown reports whether the action is still cooling down at now.
func (a ActionData) OnCooldown(now time.Time) bool {
	if a.LastTriggered == 0 {
		return false
	}
	return cooldown.Active(time.UnixMilli(a.LastTriggered), a.CooldownDuration(), now)
}

// merge returns a with every field set in update applied on top.
func merge(a, update ActionData) ActionData {
	out := a
	if update.Name != "" {
		out.Name = update.Name
	}
	if update.Cooldown != nil {
		v := *update.Cooldown
		out.Cooldown = &v
	}
	if update.LastTriggered != 0 {
		out.LastTriggered = update.LastTriggered
	}
	if update.Fuzzy != nil {
		v := *update.Fuzzy
		out.Fuzzy = &v
	}
	if len(update.Attributes) > 0 {
		attrs := make(map[string]interface{}, len(a.Attributes)+len(update.Attributes))
		for k, v := range a.Attributes {
			attrs[k] = v
		}
		for k, v := range update.Attributes {
			attrs[k] = v
		}
		out.Attributes = attrs
	}
	return out
}

// Int64 is a helper for building ActionData literals.
func Int64(v int64) *int64 { return &v }

// Bool is a helper for building ActionData literals.
func Bool(v bool) *bool { return &v }
