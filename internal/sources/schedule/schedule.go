// Package schedule publishes events on cron schedules. Entries are read
// from a YAML file:
//
//	- name: hourly-reminder
//	  cron: "0 0 * * * *"
//	  event: reminder
//	  data:
//	    comment: "!hydrate"
//	- name: heartbeat
//	  every: 30s
//	  event: heartbeat
package schedule

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"triggerd/internal/bus"
	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/common/validation"
	"triggerd/internal/models"
	"triggerd/internal/triggers"
)

// Entry is one scheduled event.
type Entry struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Cron takes precedence over Every when both are set.
	Cron     string                 `json:"cron,omitempty" yaml:"cron,omitempty" validate:"omitempty,cron_expression"`
	Every    string                 `json:"every,omitempty" yaml:"every,omitempty" validate:"omitempty,duration"`
	Timezone string                 `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Event    string                 `json:"event" yaml:"event" validate:"required"`
	Data     map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// Spec returns the cron spec the entry is scheduled with.
func (e Entry) Spec() string {
	spec := e.Cron
	if spec == "" {
		spec = "@every " + e.Every
	}
	if e.Timezone != "" {
		spec = fmt.Sprintf("CRON_TZ=%s %s", e.Timezone, spec)
	}
	return spec
}

// Validate checks tags, the timezone and that the spec parses.
func (e Entry) Validate() error {
	if err := validation.ValidateStruct(e); err != nil {
		return err
	}
	if e.Cron == "" && e.Every == "" {
		return errors.ValidationError("one of cron or every is required").WithContext("schedule", e.Name)
	}
	if e.Timezone != "" {
		if _, err := time.LoadLocation(e.Timezone); err != nil {
			return errors.ValidationError(fmt.Sprintf("invalid timezone: %s", e.Timezone)).WithContext("schedule", e.Name)
		}
	}
	if _, err := validation.CronParser.Parse(e.Spec()); err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid schedule: %v", err)).WithContext("schedule", e.Name)
	}
	return nil
}

// LoadFile reads and validates a schedule file. Names must be unique.
func LoadFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read schedule file %s: %v", path, err))
	}

	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid schedule file %s: %v", path, err))
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
		if seen[e.Name] {
			return nil, errors.DuplicateIDError("schedule", e.Name)
		}
		seen[e.Name] = true
	}
	return entries, nil
}

// Status is an entry with its next fire time.
type Status struct {
	Entry
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

// Source fires the configured entries on the bus.
type Source struct {
	bus    bus.Bus
	cron   *cron.Cron
	logger logging.Logger

	mu      sync.Mutex
	entries []Entry
	ids     []cron.EntryID
	running bool
}

// New schedules entries. Nothing fires before Start.
func New(b bus.Bus, entries []Entry, logger logging.Logger) (*Source, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("component", "schedule"))
	cl := cronLogger{logger: logger}

	s := &Source{
		bus: b,
		cron: cron.New(
			cron.WithParser(validation.CronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		entry := e
		id, err := s.cron.AddFunc(entry.Spec(), func() { s.Fire(context.Background(), entry) })
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("failed to schedule %s: %v", entry.Name, err))
		}
		s.entries = append(s.entries, entry)
		s.ids = append(s.ids, id)
	}
	return s, nil
}

// Fire publishes the event of entry now. The event carries the entry data
// plus "schedule" (the entry name) and "firedAt" (unix ms).
func (s *Source) Fire(ctx context.Context, entry Entry) {
	data := make(map[string]interface{}, len(entry.Data)+2)
	for k, v := range entry.Data {
		data[k] = v
	}
	data["schedule"] = entry.Name
	data["firedAt"] = time.Now().UnixMilli()

	ev := models.NewEvent(entry.Event, data).WithSource(models.CallerSchedule)
	if err := triggers.PublishEvent(ctx, s.bus, ev); err != nil {
		s.logger.Error("Failed to publish scheduled event", err,
			logging.String("schedule", entry.Name),
			logging.String("event", entry.Event),
		)
		return
	}
	s.logger.Debug("Scheduled event published",
		logging.String("schedule", entry.Name),
		logging.String("event", entry.Event),
	)
}

// Start begins firing entries.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("Schedule started", logging.Int("entries", len(s.entries)))
}

// Stop stops the scheduler and waits for running jobs or ctx.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns every entry with its next and previous fire times.
func (s *Source) Entries() []Status {
	out := make([]Status, len(s.entries))
	for i, e := range s.entries {
		ce := s.cron.Entry(s.ids[i])
		out[i] = Status{Entry: e, Next: ce.Next, Prev: ce.Prev}
	}
	return out
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, err, fields(keysAndValues)...)
}

func fields(keysAndValues []interface{}) []logging.Field {
	out := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
