package triggers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"triggerd/internal/common/errors"
	"triggerd/internal/conditions"
	"triggerd/internal/models"
)

func sampleTrigger(id string) Trigger {
	return Trigger{
		ID:   id,
		Name: "Throw on rose",
		Events: []EventMapping{{
			Event: "gift",
			Conditions: []conditions.Condition{
				{DataPath: "giftName", Operation: conditions.Equals, Value: "rose", IgnoreCase: true},
			},
		}},
		Actions: []models.InternalRequest{{
			ProviderID:  "tits",
			ProviderKey: models.ProviderKey{CategoryID: "throw", Actions: []string{"1"}},
			Context:     map[string]interface{}{"amount": "$$repeatCount", "text": "thanks ${nickname}"},
		}},
		Log:     true,
		Enabled: true,
	}
}

func TestTrigger_JSONRoundTripResetsLastExecuted(t *testing.T) {
	in := sampleTrigger("t1")
	in.Cooldown = 5000
	in.LastExecuted = time.Now()

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "LastExecuted")
	assert.NotContains(t, string(raw), "lastExecuted")

	var out Trigger
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.True(t, out.LastExecuted.IsZero())
	in.LastExecuted = time.Time{}
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Cooldown, out.Cooldown)
	assert.Equal(t, in.Events[0].Conditions[0].DataPath, out.Events[0].Conditions[0].DataPath)
	assert.Equal(t, in.Actions[0].ProviderKey, out.Actions[0].ProviderKey)
	assert.Equal(t, "$$repeatCount", out.Actions[0].Context["amount"])
}

func TestTrigger_Defaults(t *testing.T) {
	var fromJSON Trigger
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","name":"A","events":[],"actions":[]}`), &fromJSON))
	assert.True(t, fromJSON.Log)
	assert.True(t, fromJSON.Enabled)
	assert.Zero(t, fromJSON.Cooldown)

	var explicit Trigger
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","name":"A","log":false,"enabled":false}`), &explicit))
	assert.False(t, explicit.Log)
	assert.False(t, explicit.Enabled)

	var fromYAML Trigger
	require.NoError(t, yaml.Unmarshal([]byte("id: a\nname: A\nuser_cooldown: 1000\n"), &fromYAML))
	assert.True(t, fromYAML.Log)
	assert.True(t, fromYAML.Enabled)
	assert.Equal(t, int64(1000), fromYAML.UserCooldown)
}

func TestTrigger_MappingAndEventNames(t *testing.T) {
	tr := sampleTrigger("t1")
	tr.Events = append(tr.Events, EventMapping{Event: "chat"}, EventMapping{Event: "gift"})

	m, ok := tr.Mapping("gift")
	require.True(t, ok)
	assert.Len(t, m.Conditions, 1)

	_, ok = tr.Mapping("follow")
	assert.False(t, ok)

	assert.Equal(t, []string{"gift", "chat"}, tr.EventNames())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sampleTrigger("t1")))

	noID := sampleTrigger("")
	assert.True(t, errors.IsType(Validate(noID), errors.ErrTypeValidation))

	noEvents := sampleTrigger("t1")
	noEvents.Events = nil
	assert.Error(t, Validate(noEvents))

	badOp := sampleTrigger("t1")
	badOp.Events[0].Conditions[0].Operation = "matches"
	assert.Error(t, Validate(badOp))

	nonNumeric := sampleTrigger("t1")
	nonNumeric.Events[0].Conditions[0] = conditions.Condition{DataPath: "amount", Operation: conditions.GreaterThan, Value: "lots"}
	assert.Error(t, Validate(nonNumeric))

	noCategory := sampleTrigger("t1")
	noCategory.Actions[0].ProviderKey.CategoryID = ""
	assert.Error(t, Validate(noCategory))

	negative := sampleTrigger("t1")
	negative.Cooldown = -1
	assert.Error(t, Validate(negative))
}

func TestValidateAll_Duplicates(t *testing.T) {
	err := ValidateAll([]Trigger{sampleTrigger("a"), sampleTrigger("a")})
	assert.True(t, errors.IsType(err, errors.ErrTypeDuplicateID))
}
