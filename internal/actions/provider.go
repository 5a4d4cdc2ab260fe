package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
)

// Category is one (categoryId, actions) pair produced by a loader.
type Category struct {
	ID      string       `json:"categoryId" validate:"required"`
	Actions []ActionData `json:"actions" validate:"dive"`
}

// Loader fetches the full catalogue of a provider.
type Loader func(ctx context.Context) ([]Category, error)

// Provider is the action registry of one integration.
type Provider struct {
	id     string
	loader Loader
	logger logging.Logger

	mu         sync.RWMutex
	categories map[string]*ActionMap
	order      []string
	reverse    map[string]string
}

// NewProvider creates an empty registry for providerID.
func NewProvider(providerID string, loader Loader, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Provider{
		id:         providerID,
		loader:     loader,
		logger:     logger.WithFields(logging.String("provider", providerID)),
		categories: make(map[string]*ActionMap),
		reverse:    make(map[string]string),
	}
}

// ID returns the provider id.
func (p *Provider) ID() string {
	return p.id
}

// GetActionMap returns the map for categoryID, creating it if absent.
func (p *Provider) GetActionMap(categoryID string) *ActionMap {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actionMapLocked(categoryID)
}

func (p *Provider) actionMapLocked(categoryID string) *ActionMap {
	m, ok := p.categories[categoryID]
	if !ok {
		m = NewActionMap()
		p.categories[categoryID] = m
		p.order = append(p.order, categoryID)
	}
	return m
}

// Has reports whether categoryID exists.
func (p *Provider) Has(categoryID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.categories[categoryID]
	return ok
}

// LookupCategory returns the category that owns actionID.
func (p *Provider) LookupCategory(actionID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.reverse[actionID]
	return c, ok
}

// Categories returns the category ids in creation order.
func (p *Provider) Categories() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// RemoveCategory drops a category and its reverse index entries.
func (p *Provider) RemoveCategory(categoryID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.categories[categoryID]; !ok {
		return
	}
	delete(p.categories, categoryID)
	for i, id := range p.order {
		if id == categoryID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	for actionID, owner := range p.reverse {
		if owner == categoryID {
			delete(p.reverse, actionID)
		}
	}
}

// ClearAll empties every category and the reverse index.
func (p *Provider) ClearAll() {
	p.mu.Lock()
	p.categories = make(map[string]*ActionMap)
	p.order = nil
	p.reverse = make(map[string]string)
	p.mu.Unlock()
}

// ActionCount returns the number of actions across all categories.
func (p *Provider) ActionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for _, m := range p.categories {
		count += m.Size()
	}
	return count
}

// Put upserts action into categoryID and points the reverse index at it.
// An id already owned by another category is logged and re-pointed.
func (p *Provider) Put(categoryID string, action ActionData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.putLocked(categoryID, action)
}

func (p *Provider) putLocked(categoryID string, action ActionData) {
	if owner, ok := p.reverse[action.ID]; ok && owner != categoryID {
		p.logger.Warn("Action id collision across categories",
			logging.String("action_id", action.ID),
			logging.String("previous_category", owner),
			logging.String("category", categoryID),
		)
	}
	p.actionMapLocked(categoryID).Put(action)
	p.reverse[action.ID] = categoryID
}

// LoadActions clears the registry, fetches the catalogue through the
// loader and repopulates. An empty catalogue is an EmptyResultError.
// Concurrent calls must be serialised by the caller.
func (p *Provider) LoadActions(ctx context.Context) (int, error) {
	if p.loader == nil {
		return 0, errors.ConfigError(ErrNoLoader.Error()).WithContext("provider", p.id)
	}

	p.ClearAll()

	categories, err := p.loader(ctx)
	if err != nil {
		p.logger.Error("Failed to load actions", err)
		return 0, err
	}

	total := 0
	for _, c := range categories {
		total += len(c.Actions)
	}
	if total == 0 {
		err := errors.EmptyResultError(fmt.Sprintf("provider %s returned no actions", p.id))
		p.logger.Error("Failed to load actions", err)
		return 0, err
	}

	p.mu.Lock()
	for _, c := range categories {
		p.actionMapLocked(c.ID)
		for _, a := range c.Actions {
			p.putLocked(c.ID, a)
		}
	}
	count := len(p.categories)
	p.mu.Unlock()

	p.logger.Info("Loaded actions",
		logging.Int("categories", count),
		logging.Int("actions", total),
	)
	return total, nil
}

// Snapshot returns every category with its actions.
func (p *Provider) Snapshot() []Category {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Category, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, Category{ID: id, Actions: p.categories[id].Actions()})
	}
	return out
}

// Acquire applies the action-level cooldown to ids within categoryID and
// stamps them with now. With bypass set the cooldown check is skipped.
func (p *Provider) Acquire(categoryID string, ids []string, bypass bool, now time.Time) ([]ActionData, error) {
	p.mu.RLock()
	m, ok := p.categories[categoryID]
	p.mu.RUnlock()
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("category %s", categoryID)).WithContext("provider", p.id)
	}

	acquired, missing, err := m.acquire(ids, bypass, now.UnixMilli(), func(a ActionData) bool {
		return a.OnCooldown(now)
	})
	if len(missing) > 0 {
		return nil, errors.NotFoundError(fmt.Sprintf("actions [%s] in category %s", strings.Join(missing, ", "), categoryID)).
			WithContext("provider", p.id)
	}
	return acquired, err
}

// Resolve returns the action ids a request addresses. A "tryItem" context
// entry is matched by name against the category's fuzzy actions;
// otherwise the ids listed in the provider key are used.
func (p *Provider) Resolve(req models.InternalRequest, commandPrefix string) ([]string, error) {
	categoryID := req.ProviderKey.CategoryID
	if !p.Has(categoryID) {
		return nil, errors.NotFoundError(fmt.Sprintf("category %s", categoryID)).WithContext("provider", p.id)
	}

	if item, ok := req.ContextString(models.TryItemKey); ok && item != "" {
		name := item
		if commandPrefix != "" {
			name = strings.Replace(item, commandPrefix, "", 1)
		}
		action, found := p.GetActionMap(categoryID).ClosestMatch(name, ActionData.IsFuzzy)
		if !found {
			return nil, errors.NotFoundError(fmt.Sprintf("action matching '%s'", item)).WithContext("provider", p.id)
		}
		return []string{action.ID}, nil
	}

	if len(req.ProviderKey.Actions) == 0 {
		return nil, errors.ValidationError("request names no actions").WithContext("provider", p.id)
	}
	return append([]string(nil), req.ProviderKey.Actions...), nil
}
