// Package models holds the wire shapes exchanged between the trigger store,
// the dispatcher and the integrations.
package models

// Caller identifies who originated an InternalRequest.
type Caller string

const (
	CallerInternal  Caller = "internal"
	CallerTikfinity Caller = "tikfinity"
	CallerSchedule  Caller = "schedule"
	CallerAPI       Caller = "api"
)

// ProviderKey addresses a category (and optionally specific actions) inside a provider.
type ProviderKey struct {
	CategoryID string   `json:"categoryId" yaml:"categoryId" validate:"required"`
	Actions    []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// InternalRequest is the unit of dispatched work. Templates are stored on
// triggers; live requests are deep copies created for every dispatch.
type InternalRequest struct {
	Caller         Caller                 `json:"caller" yaml:"caller"`
	RequestID      string                 `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	ProviderID     string                 `json:"providerId" yaml:"providerId" validate:"required"`
	ProviderKey    ProviderKey            `json:"providerKey" yaml:"providerKey"`
	BypassCooldown bool                   `json:"bypass_cooldown" yaml:"bypass_cooldown"`
	Context        map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
}

// ContextString returns a string context field and whether it was present.
func (r *InternalRequest) ContextString(key string) (string, bool) {
	if r.Context == nil {
		return "", false
	}
	s, ok := r.Context[key].(string)
	return s, ok
}

// TryItemKey is the context field that carries free-text action names
// resolved through fuzzy matching.
const TryItemKey = "tryItem"
