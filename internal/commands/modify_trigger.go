package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
	"triggerd/internal/providers"
	"triggerd/internal/triggers"
)

// ModifyTriggerName is the action id of ModifyTrigger.
const ModifyTriggerName = "ModifyTrigger"

type modifyTriggerContext struct {
	TriggerID string      `json:"triggerId" validate:"required"`
	Action    string      `json:"action" validate:"required,oneof=toggle enable disable cooldown replace"`
	Data      interface{} `json:"data"`
}

// ModifyTrigger changes a trigger in the store: toggles it, sets its
// cooldown or replaces it wholesale. When a repository is configured the
// store is saved after every change.
type ModifyTrigger struct {
	store  *triggers.Store
	repo   triggers.Repository
	logger logging.Logger
}

// NewModifyTrigger creates the command. repo may be nil.
func NewModifyTrigger(store *triggers.Store, repo triggers.Repository, logger logging.Logger) *ModifyTrigger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ModifyTrigger{store: store, repo: repo, logger: logger}
}

func (c *ModifyTrigger) Name() string { return ModifyTriggerName }

func (c *ModifyTrigger) Execute(ctx context.Context, req models.InternalRequest) (string, error) {
	in, err := providers.DecodeContext[modifyTriggerContext](req)
	if err != nil {
		return "", err
	}

	var msg string
	switch in.Action {
	case "toggle":
		enabled, err := c.store.Toggle(in.TriggerID)
		if err != nil {
			return "", err
		}
		msg = fmt.Sprintf("Trigger %s %s", in.TriggerID, enabledWord(enabled))
	case "enable":
		if err := c.store.Enable(in.TriggerID); err != nil {
			return "", err
		}
		msg = fmt.Sprintf("Trigger %s enabled", in.TriggerID)
	case "disable":
		if err := c.store.Disable(in.TriggerID); err != nil {
			return "", err
		}
		msg = fmt.Sprintf("Trigger %s disabled", in.TriggerID)
	case "cooldown":
		ms, err := cooldownMillis(in.Data)
		if err != nil {
			return "", err
		}
		if err := c.store.SetCooldown(in.TriggerID, ms); err != nil {
			return "", err
		}
		msg = fmt.Sprintf("Trigger %s cooldown set to %dms", in.TriggerID, ms)
	case "replace":
		if err := c.replace(in.TriggerID, in.Data); err != nil {
			return "", err
		}
		msg = fmt.Sprintf("Trigger %s replaced", in.TriggerID)
	}

	c.persist(ctx)
	return msg, nil
}

// cooldownMillis reads a cooldown value. Values below 1000 are taken as
// seconds; negatives clamp to zero.
func cooldownMillis(data interface{}) (int64, error) {
	n, err := parseNumber(data)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.ValidationError("cooldown must be finite")
	}
	if n < 1000 {
		n *= 1000
	}
	return int64(math.Max(0, n)), nil
}

func (c *ModifyTrigger) replace(id string, data interface{}) error {
	if data == nil {
		return errors.ValidationError("replace requires trigger data")
	}

	var raw []byte
	if s, ok := data.(string); ok {
		raw = []byte(s)
	} else {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return errors.ValidationError(fmt.Sprintf("trigger data is not serialisable: %v", err))
		}
	}

	var next triggers.Trigger
	if err := json.Unmarshal(raw, &next); err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid trigger data: %v", err))
	}
	if next.ID == "" {
		next.ID = id
	}
	if err := triggers.Validate(next); err != nil {
		return err
	}

	if next.ID == id {
		return c.store.Update(next)
	}
	if _, err := c.store.Get(id); err != nil {
		return err
	}
	if _, err := c.store.Get(next.ID); err == nil {
		return errors.DuplicateIDError("trigger", next.ID)
	}
	if err := c.store.Remove(id); err != nil {
		return err
	}
	return c.store.Add(next)
}

func (c *ModifyTrigger) persist(ctx context.Context) {
	if c.repo == nil {
		return
	}
	if err := c.store.SaveTo(ctx, c.repo); err != nil {
		c.logger.Error("Failed to persist triggers", err)
	}
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
