package providers

import (
	"encoding/json"
	"fmt"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/validation"
	"triggerd/internal/models"
)

// DecodeContext converts the free-form context of req into the typed
// variant T and validates it with T's `validate` tags.
func DecodeContext[T any](req models.InternalRequest) (T, error) {
	var out T

	raw, err := json.Marshal(req.Context)
	if err != nil {
		return out, errors.ValidationError(fmt.Sprintf("context is not serialisable: %v", err))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.ValidationError(fmt.Sprintf("invalid context: %v", err))
	}
	if err := validation.ValidateStruct(out); err != nil {
		return out, err
	}
	return out, nil
}
