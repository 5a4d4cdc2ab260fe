package actions

import (
	"math/rand"
	"sync"
)

// ActionMap stores the actions of one category in insertion order.
type ActionMap struct {
	mu     sync.RWMutex
	order  []string
	items  map[string]*ActionData
	random func(n int) int
}

// NewActionMap creates an empty map.
func NewActionMap() *ActionMap {
	return &ActionMap{
		items:  make(map[string]*ActionData),
		random: rand.Intn,
	}
}

func (m *ActionMap) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok
}

// Get returns a copy of the action.
func (m *ActionMap) Get(id string) (ActionData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return ActionData{}, false
	}
	return *a, true
}

// Put inserts the action or merges it into the stored one.
func (m *ActionMap) Put(action ActionData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.items[action.ID]; ok {
		merged := merge(*existing, action)
		m.items[action.ID] = &merged
		return
	}
	a := action
	m.items[action.ID] = &a
	m.order = append(m.order, action.ID)
}

func (m *ActionMap) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *ActionMap) Clear() {
	m.mu.Lock()
	m.items = make(map[string]*ActionData)
	m.order = nil
	m.mu.Unlock()
}

func (m *ActionMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Actions returns copies of every action in insertion order.
func (m *ActionMap) Actions() []ActionData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ActionData, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.items[id])
	}
	return out
}

// ClosestMatch resolves name to an action among those accepted by
// predicate (all when nil). See closestMatch for the ranking rules.
func (m *ActionMap) ClosestMatch(name string, predicate func(ActionData) bool) (ActionData, bool) {
	candidates := m.Actions()
	if predicate != nil {
		filtered := candidates[:0]
		for _, a := range candidates {
			if predicate(a) {
				filtered = append(filtered, a)
			}
		}
		candidates = filtered
	}
	return closestMatch(name, candidates, m.random)
}

// acquire checks every id against its cooldown and, unless one is active
// and bypass is false, stamps them all with nowMillis. Missing ids are
// returned separately.
func (m *ActionMap) acquire(ids []string, bypass bool, nowMillis int64, onCooldown func(ActionData) bool) ([]ActionData, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var missing []string
	selected := make([]*ActionData, 0, len(ids))
	for _, id := range ids {
		a, ok := m.items[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, a)
	}
	if len(missing) > 0 {
		return nil, missing, nil
	}

	if !bypass {
		for _, a := range selected {
			if onCooldown(*a) {
				return nil, nil, ErrCooldownActive
			}
		}
	}

	out := make([]ActionData, 0, len(selected))
	for _, a := range selected {
		a.LastTriggered = nowMillis
		out = append(out, *a)
	}
	return out, nil, nil
}
