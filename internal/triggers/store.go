package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	"triggerd/internal/bus"
	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/conditions"
	"triggerd/internal/cooldown"
	"triggerd/internal/injector"
	"triggerd/internal/metrics"
	"triggerd/internal/models"
	"triggerd/internal/pathquery"
	"triggerd/internal/users"
)

// Status is the result of one trigger for one event.
type Status string

const (
	StatusExecuted        Status = "executed"
	StatusCooldown        Status = "cooldown"
	StatusConditionsUnmet Status = "conditions_unmet"
	StatusUserBlocked     Status = "user_blocked"
	StatusUserCooldown    Status = "user_cooldown"
	StatusError           Status = "error"
)

// Outcome reports what happened to one trigger during HandleEvent.
type Outcome struct {
	TriggerID string                   `json:"triggerId"`
	Status    Status                   `json:"status"`
	Reason    string                   `json:"reason,omitempty"`
	Requests  []models.InternalRequest `json:"requests,omitempty"`
	Err       error                    `json:"-"`
}

// Executed reports whether the trigger was accepted.
func (o Outcome) Executed() bool {
	return o.Status == StatusExecuted
}

type entry struct {
	trigger Trigger
	tracker cooldown.Tracker
}

// Store owns every trigger and runs event handling. One mutex covers both
// mutations and HandleEvent, so an event is always processed against a
// consistent set and trigger logic never runs in parallel.
type Store struct {
	bus       bus.Bus
	selector  pathquery.Selector
	mode      injector.Mode
	evaluator *conditions.Evaluator
	injector  *injector.Injector
	users     users.Registry
	recorder  metrics.Recorder
	logger    logging.Logger
	clock     cooldown.Clock
	newID     func() string

	mu         sync.Mutex
	triggers   map[string]*entry
	order      []string
	index      *Index
	subscribed map[string]bus.Subscription
}

// Option configures a Store.
type Option func(*Store)

// WithSelector sets the path selector used by conditions and injection.
func WithSelector(selector pathquery.Selector) Option {
	return func(s *Store) {
		if selector != nil {
			s.selector = selector
		}
	}
}

// WithInjectionMode selects the placeholder forms that are expanded.
func WithInjectionMode(mode injector.Mode) Option {
	return func(s *Store) { s.mode = mode }
}

// WithUsers enables block lists and per-user cooldowns.
func WithUsers(r users.Registry) Option {
	return func(s *Store) { s.users = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(clock cooldown.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator replaces the request id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore creates an empty store publishing through b.
func NewStore(b bus.Bus, opts ...Option) *Store {
	s := &Store{
		bus:        b,
		selector:   pathquery.NewSelector(),
		mode:       injector.ModeBoth,
		recorder:   metrics.Noop(),
		logger:     logging.GetGlobalLogger(),
		clock:      cooldown.SystemClock,
		newID:      uuid.NewString,
		triggers:   make(map[string]*entry),
		subscribed: make(map[string]bus.Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.evaluator = conditions.NewEvaluator(s.selector)
	s.injector = injector.New(s.selector, s.mode)
	s.logger = s.logger.WithFields(logging.String("component", "triggers"))
	s.index = NewIndex(s.subscribe)
	return s
}

// Add stores a new trigger. Enabled triggers are indexed immediately.
func (s *Store) Add(t Trigger) error {
	if err := Validate(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.triggers[t.ID]; exists {
		return errors.DuplicateIDError("trigger", t.ID)
	}
	e := &entry{trigger: clone(t)}
	s.triggers[t.ID] = e
	s.order = append(s.order, t.ID)
	if e.trigger.Enabled {
		s.index.Add(&e.trigger)
	}
	return nil
}

// Update replaces the definition of an existing trigger, keeping its
// position and cooldown state.
func (s *Store) Update(t Trigger) error {
	if err := Validate(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(t.ID)
	if err != nil {
		return err
	}
	e.trigger = clone(t)
	s.reindex()
	return nil
}

// Remove deletes a trigger and every index entry pointing at it.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	delete(s.triggers, id)
	for n, v := range s.order {
		if v == id {
			s.order = append(s.order[:n], s.order[n+1:]...)
			break
		}
	}
	s.index.Remove(id)
	return nil
}

// Enable indexes a trigger again.
func (s *Store) Enable(id string) error {
	_, err := s.setEnabled(id, func(bool) bool { return true })
	return err
}

// Disable keeps the trigger addressable but stops it receiving events.
func (s *Store) Disable(id string) error {
	_, err := s.setEnabled(id, func(bool) bool { return false })
	return err
}

// Toggle flips the enabled flag and returns the new value.
func (s *Store) Toggle(id string) (bool, error) {
	return s.setEnabled(id, func(v bool) bool { return !v })
}

func (s *Store) setEnabled(id string, next func(bool) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	e.trigger.Enabled = next(e.trigger.Enabled)
	s.reindex()
	return e.trigger.Enabled, nil
}

// SetCooldown changes the trigger cooldown (milliseconds).
func (s *Store) SetCooldown(id string, ms int64) error {
	if ms < 0 {
		return errors.ValidationError("cooldown must not be negative").WithContext("trigger_id", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.trigger.Cooldown = ms
	return nil
}

// Replace swaps the whole trigger set. Nothing changes when any trigger
// is invalid. Cooldown state of ids present before and after is kept.
func (s *Store) Replace(ts []Trigger) error {
	if err := ValidateAll(ts); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*entry, len(ts))
	order := make([]string, 0, len(ts))
	for _, t := range ts {
		e := &entry{trigger: clone(t)}
		if old, ok := s.triggers[t.ID]; ok {
			if last := old.tracker.Last(); !last.IsZero() {
				e.tracker.Mark(last)
			}
		}
		next[t.ID] = e
		order = append(order, t.ID)
	}

	s.triggers = next
	s.order = order
	s.reindex()
	s.logger.Info("Replaced trigger set", logging.Int("triggers", len(order)))
	return nil
}

// Clear removes every trigger.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = make(map[string]*entry)
	s.order = nil
	s.index.Clear()
}

// Get returns a copy of one trigger.
func (s *Store) Get(id string) (Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return Trigger{}, err
	}
	return snapshot(e), nil
}

// List returns copies of every trigger in insertion order.
func (s *Store) List() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Trigger, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.triggers[id]))
	}
	return out
}

// Indexed returns the ids registered under event, in handling order.
func (s *Store) Indexed(event string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Lookup(event)
}

// Close drops the event subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for event, sub := range s.subscribed {
		sub.Unsubscribe()
		delete(s.subscribed, event)
	}
}

func (s *Store) lookup(id string) (*entry, error) {
	e, ok := s.triggers[id]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("trigger %s", id))
	}
	return e, nil
}

// reindex rebuilds the index so that handling order follows store order.
func (s *Store) reindex() {
	s.index.Clear()
	for _, id := range s.order {
		if e := s.triggers[id]; e.trigger.Enabled {
			s.index.Add(&e.trigger)
		}
	}
}

// subscribe is the index hook: the first trigger for an event name
// subscribes the store to that event's bus topic.
func (s *Store) subscribe(event string) {
	if s.bus == nil {
		return
	}
	if _, ok := s.subscribed[event]; ok {
		return
	}

	sub, err := s.bus.Subscribe(bus.EventTopic(event), func(ctx context.Context, msg bus.Message) {
		ev, ok := eventFrom(msg.Payload)
		if !ok {
			s.logger.Warn("Ignoring malformed event payload", logging.String("topic", msg.Topic))
			return
		}
		if ev.Name == "" {
			ev.Name = event
		}
		s.HandleEvent(ctx, ev)
	})
	if err != nil {
		s.logger.Error("Failed to subscribe to event", err, logging.String("event", event))
		return
	}
	s.subscribed[event] = sub
}

func eventFrom(payload interface{}) (models.Event, bool) {
	switch v := payload.(type) {
	case models.Event:
		return v, true
	case *models.Event:
		if v == nil {
			return models.Event{}, false
		}
		return *v, true
	default:
		return models.Event{}, false
	}
}

// PublishEvent publishes ev on its bus topic.
func PublishEvent(ctx context.Context, b bus.Bus, ev models.Event) error {
	return b.Publish(ctx, bus.EventTopic(ev.Name), ev)
}

func clone(t Trigger) Trigger {
	c := deepcopy.Copy(t).(Trigger)
	c.LastExecuted = time.Time{}
	return c
}

func snapshot(e *entry) Trigger {
	c := clone(e.trigger)
	c.LastExecuted = e.tracker.Last()
	return c
}

// LoadFrom replaces the store contents with the triggers in repo.
func (s *Store) LoadFrom(ctx context.Context, repo Repository) (int, error) {
	ts, err := repo.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.Replace(ts); err != nil {
		return 0, err
	}
	return len(ts), nil
}

// SaveTo writes the current trigger list to repo.
func (s *Store) SaveTo(ctx context.Context, repo Repository) error {
	return repo.Save(ctx, s.List())
}
