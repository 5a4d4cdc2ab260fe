package triggers

import (
	"fmt"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/validation"
	"triggerd/internal/conditions"
)

// Validate checks a trigger definition: struct tags first, then the
// operand types of every condition.
func Validate(t Trigger) error {
	if err := validation.ValidateStruct(t); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && t.ID != "" {
			return appErr.WithContext("trigger_id", t.ID)
		}
		return err
	}

	for _, m := range t.Events {
		for n, c := range m.Conditions {
			if err := conditions.Validate(c); err != nil {
				return errors.ValidationError(fmt.Sprintf("event '%s' condition %d: %v", m.Event, n, err)).
					WithContext("trigger_id", t.ID)
			}
		}
	}
	return nil
}

// ValidateAll validates every trigger and rejects duplicate ids. It stops
// at the first failure.
func ValidateAll(ts []Trigger) error {
	seen := make(map[string]struct{}, len(ts))
	for n, t := range ts {
		if err := Validate(t); err != nil {
			return fmt.Errorf("trigger %d: %w", n, err)
		}
		if _, dup := seen[t.ID]; dup {
			return errors.DuplicateIDError("trigger", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
