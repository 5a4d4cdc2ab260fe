package triggers

import (
	"context"
	"fmt"
	"time"

	"github.com/mohae/deepcopy"

	"triggerd/internal/bus"
	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
	"triggerd/internal/pathquery"
	"triggerd/internal/users"
)

// HandleEvent runs every trigger indexed under ev.Name, in index order,
// and returns one Outcome per trigger. Accepted triggers publish one
// request per action template on the execute-action topic. A failure in
// one trigger never affects the others.
func (s *Store) HandleEvent(ctx context.Context, ev models.Event) []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorder.EventHandled(ev.Name)

	ids := s.index.Lookup(ev.Name)
	if len(ids) == 0 {
		return nil
	}

	doc, err := pathquery.FromValue(ev.Data)
	if err != nil {
		s.logger.Error("Discarding event", err, logging.String("event", ev.Name))
		outcomes := make([]Outcome, 0, len(ids))
		for _, id := range ids {
			outcomes = append(outcomes, Outcome{TriggerID: id, Status: StatusError, Reason: err.Error(), Err: err})
			s.recorder.TriggerOutcome(string(StatusError))
		}
		return outcomes
	}

	now := s.clock()
	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		e, ok := s.triggers[id]
		if !ok {
			err := errors.InternalError("indexed trigger is missing from the store", nil).WithContext("trigger_id", id)
			outcomes = append(outcomes, Outcome{TriggerID: id, Status: StatusError, Reason: err.Message, Err: err})
			s.recorder.TriggerOutcome(string(StatusError))
			continue
		}

		out := s.runTrigger(ctx, e, ev, doc, now)
		s.recorder.TriggerOutcome(string(out.Status))
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (s *Store) runTrigger(ctx context.Context, e *entry, ev models.Event, doc pathquery.Document, now time.Time) (out Outcome) {
	t := &e.trigger
	out.TriggerID = t.ID
	log := s.logger.WithFields(logging.String("trigger_id", t.ID), logging.String("event", ev.Name))

	defer func() {
		if r := recover(); r != nil {
			err := errors.InternalError(fmt.Sprintf("trigger panicked: %v", r), nil)
			log.Error("Trigger panicked", err)
			out = Outcome{TriggerID: t.ID, Status: StatusError, Reason: err.Message, Err: err}
		}
	}()

	mapping, ok := t.Mapping(ev.Name)
	if !ok {
		err := errors.InternalError("trigger does not declare the event it is indexed under", nil).
			WithContext("trigger_id", t.ID)
		log.Error("Inconsistent trigger index", err)
		return fail(out, err)
	}

	met, err := s.evaluator.EvaluateAll(mapping.Conditions, doc)
	if err != nil {
		log.Warn("Condition evaluation failed", logging.Err(err))
		return fail(out, err)
	}

	if e.tracker.Active(t.CooldownDuration(), now) {
		return reject(out, StatusCooldown, "Trigger on cooldown")
	}
	if !met {
		return reject(out, StatusConditionsUnmet, "Conditions not met")
	}

	actor, hasActor := actorOf(ev)
	if hasActor && s.users != nil {
		blocked, err := s.users.IsBlocked(ctx, actor.platform, actor.username, t.ID)
		if err != nil {
			log.Error("User lookup failed", err)
			return fail(out, err)
		}
		if blocked {
			return reject(out, StatusUserBlocked, fmt.Sprintf("User %s is blocked", actor.username))
		}

		cooling, err := users.OnCooldown(ctx, s.users, actor.platform, actor.username, t.ID, now)
		if err != nil {
			log.Error("User lookup failed", err)
			return fail(out, err)
		}
		if cooling {
			return reject(out, StatusUserCooldown, fmt.Sprintf("User %s is on cooldown", actor.username))
		}
	}

	e.tracker.Mark(now)
	if hasActor && s.users != nil && t.UserCooldown > 0 {
		if err := s.users.SetCooldown(ctx, actor.platform, actor.username, t.ID, t.UserCooldownDuration()); err != nil {
			log.Error("Failed to record user cooldown", err)
		}
	}

	out.Status = StatusExecuted
	out.Reason = "Trigger executed"
	for _, tpl := range t.Actions {
		req := deepcopy.Copy(tpl).(models.InternalRequest)
		req.RequestID = s.newID()
		if req.Caller == "" {
			req.Caller = callerOf(ev)
		}
		s.injector.InjectContext(req.Context, doc)

		if t.Log {
			s.notify(ctx, executedMessage(t.Name, ev))
		}

		if err := s.bus.Publish(ctx, bus.TopicExecuteAction, req); err != nil {
			log.Error("Failed to publish request", err, logging.String("provider", req.ProviderID))
			continue
		}
		s.recorder.RequestDispatched(req.ProviderID)
		out.Requests = append(out.Requests, req)
	}
	return out
}

func fail(out Outcome, err error) Outcome {
	out.Status = StatusError
	out.Reason = err.Error()
	out.Err = err
	return out
}

func reject(out Outcome, status Status, reason string) Outcome {
	out.Status = status
	out.Reason = reason
	return out
}

func (s *Store) notify(ctx context.Context, message string) {
	s.logger.Info(message)
	n := bus.Notification{Severity: string(models.SeverityInfo), Message: message, Source: "triggers"}
	if err := s.bus.Publish(ctx, bus.TopicNotification, n); err != nil {
		s.logger.Debug("Notification not delivered", logging.Err(err))
	}
}

// executedMessage renders "Trigger 'name' executed by @user(nick) from ...".
// The comment is quoted when the event carries one, otherwise the event name.
func executedMessage(name string, ev models.Event) string {
	who := "@" + ev.Field(models.FieldUsername)
	if nick := ev.Field(models.FieldNickname); nick != "" {
		who += "(" + nick + ")"
	}
	if comment := ev.Field(models.FieldComment); comment != "" {
		return fmt.Sprintf("Trigger '%s' executed by %s from '%s'", name, who, comment)
	}
	return fmt.Sprintf("Trigger '%s' executed by %s from '%s' event", name, who, ev.Name)
}

type actor struct {
	platform users.Platform
	username string
}

func actorOf(ev models.Event) (actor, bool) {
	username := ev.Field(models.FieldUsername)
	if username == "" {
		return actor{}, false
	}
	platform, err := users.ParsePlatform(ev.Field(models.FieldPlatform))
	if err != nil {
		return actor{}, false
	}
	return actor{platform: platform, username: username}, true
}

func callerOf(ev models.Event) models.Caller {
	if ev.Source != "" {
		return ev.Source
	}
	return models.CallerInternal
}
