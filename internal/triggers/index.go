package triggers

// Index maps event names to trigger ids in insertion order. It is not
// safe for concurrent use; the Store serialises access.
type Index struct {
	byEvent    map[string][]string
	onNewEvent func(event string)
}

// NewIndex creates an index. onNewEvent, when set, is called the first
// time an event name gains an entry.
func NewIndex(onNewEvent func(event string)) *Index {
	return &Index{
		byEvent:    make(map[string][]string),
		onNewEvent: onNewEvent,
	}
}

// Add registers t under each of its event names.
func (i *Index) Add(t *Trigger) {
	for _, event := range t.EventNames() {
		ids, known := i.byEvent[event]
		if contains(ids, t.ID) {
			continue
		}
		i.byEvent[event] = append(ids, t.ID)
		if !known && i.onNewEvent != nil {
			i.onNewEvent(event)
		}
	}
}

// Remove drops id from every event.
func (i *Index) Remove(id string) {
	for event, ids := range i.byEvent {
		for n, v := range ids {
			if v == id {
				i.byEvent[event] = append(ids[:n:n], ids[n+1:]...)
				break
			}
		}
	}
}

// Lookup returns a copy of the ids registered under event.
func (i *Index) Lookup(event string) []string {
	return append([]string(nil), i.byEvent[event]...)
}

// Contains reports whether id is registered under event.
func (i *Index) Contains(event, id string) bool {
	return contains(i.byEvent[event], id)
}

// Events returns every event name that has ever been indexed.
func (i *Index) Events() []string {
	out := make([]string, 0, len(i.byEvent))
	for event := range i.byEvent {
		out = append(out, event)
	}
	return out
}

// Clear empties every entry; known event names are kept.
func (i *Index) Clear() {
	for event := range i.byEvent {
		i.byEvent[event] = nil
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
