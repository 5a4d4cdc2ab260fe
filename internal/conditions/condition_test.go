package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/common/errors"
	"triggerd/internal/pathquery"
)

func doc(t *testing.T, data map[string]interface{}) pathquery.Document {
	t.Helper()
	d, err := pathquery.FromValue(data)
	require.NoError(t, err)
	return d
}

func TestEvaluate_MissingPathIsFalse(t *testing.T) {
	e := NewEvaluator(nil)
	d := doc(t, map[string]interface{}{"other": "x"})

	for _, op := range Operations() {
		for _, negate := range []bool{false, true} {
			c := Condition{DataPath: "test", Operation: op, Value: 1, Negate: negate}
			ok, err := e.Evaluate(c, d)
			assert.NoError(t, err, "op %s", op)
			assert.False(t, ok, "op %s negate %v", op, negate)
		}
	}
}

func TestEvaluate_Operations(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		name string
		cond Condition
		data map[string]interface{}
		want bool
	}{
		{"equals match", Condition{DataPath: "test", Operation: Equals, Value: "test"}, map[string]interface{}{"test": "test"}, true},
		{"equals mismatch", Condition{DataPath: "test", Operation: Equals, Value: "test"}, map[string]interface{}{"test": "foo"}, false},
		{"equals number vs numeric string", Condition{DataPath: "n", Operation: Equals, Value: "5"}, map[string]interface{}{"n": 5}, true},
		{"equals bool vs 1", Condition{DataPath: "b", Operation: Equals, Value: 1.0}, map[string]interface{}{"b": true}, true},
		{"equals ignore case", Condition{DataPath: "s", Operation: Equals, Value: "HELLO", IgnoreCase: true}, map[string]interface{}{"s": "hello"}, true},
		{"equals case sensitive", Condition{DataPath: "s", Operation: Equals, Value: "HELLO"}, map[string]interface{}{"s": "hello"}, false},
		{"equals null", Condition{DataPath: "s", Operation: Equals, Value: nil}, map[string]interface{}{"s": nil}, true},
		{"equals object never", Condition{DataPath: "o", Operation: Equals, Value: "x"}, map[string]interface{}{"o": map[string]interface{}{}}, false},
		{"contains", Condition{DataPath: "msg", Operation: Contains, Value: "pizza"}, map[string]interface{}{"msg": "I love pizza"}, true},
		{"contains ignore case", Condition{DataPath: "msg", Operation: Contains, Value: "PIZZA", IgnoreCase: true}, map[string]interface{}{"msg": "I love pizza"}, true},
		{"contains negated", Condition{DataPath: "msg", Operation: Contains, Value: "pizza", Negate: true}, map[string]interface{}{"msg": "I love pizza"}, false},
		{"starts_with match", Condition{DataPath: "test", Operation: StartsWith, Value: "xthis"}, map[string]interface{}{"test": "xthis test is cool"}, true},
		{"starts_with mismatch", Condition{DataPath: "test", Operation: StartsWith, Value: "xthis"}, map[string]interface{}{"test": "this xthis is cool"}, false},
		{"greater_than", Condition{DataPath: "coins", Operation: GreaterThan, Value: 10.0}, map[string]interface{}{"coins": 11}, true},
		{"greater_than equal", Condition{DataPath: "coins", Operation: GreaterThan, Value: 10.0}, map[string]interface{}{"coins": 10}, false},
		{"less_than numeric string threshold", Condition{DataPath: "coins", Operation: LessThan, Value: "10"}, map[string]interface{}{"coins": 3}, true},
		{"nested path", Condition{DataPath: "gift.name", Operation: Equals, Value: "Rose"}, map[string]interface{}{"gift": map[string]interface{}{"name": "Rose"}}, true},
		{"first of many matches", Condition{DataPath: "items[*].id", Operation: Equals, Value: "a"}, map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": "a"}, map[string]interface{}{"id": "b"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.cond, doc(t, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		name string
		cond Condition
		data map[string]interface{}
	}{
		{"contains on number", Condition{DataPath: "test", Operation: Contains, Value: "test"}, map[string]interface{}{"test": 123}},
		{"starts_with on bool", Condition{DataPath: "test", Operation: StartsWith, Value: "t"}, map[string]interface{}{"test": true}},
		{"greater_than on string", Condition{DataPath: "test", Operation: GreaterThan, Value: 1}, map[string]interface{}{"test": "5"}},
		{"negate does not hide errors", Condition{DataPath: "test", Operation: LessThan, Value: 1, Negate: true}, map[string]interface{}{"test": "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := e.Evaluate(tt.cond, doc(t, tt.data))
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, errors.IsType(err, errors.ErrTypeTypeMismatch))
		})
	}
}

func TestEvaluate_ConfigErrors(t *testing.T) {
	e := NewEvaluator(nil)
	d := doc(t, map[string]interface{}{"test": 5})

	_, err := e.Evaluate(Condition{DataPath: "test", Operation: "matches", Value: "x"}, d)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = e.Evaluate(Condition{DataPath: "test", Operation: GreaterThan, Value: "lots"}, d)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = e.Evaluate(Condition{DataPath: "test[", Operation: Equals, Value: 5}, d)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestEvaluateAll(t *testing.T) {
	e := NewEvaluator(nil)
	d := doc(t, map[string]interface{}{"user": "bob", "coins": 50, "msg": "hi"})

	all := []Condition{
		{Order: 1, DataPath: "user", Operation: Equals, Value: "bob"},
		{Order: 2, DataPath: "coins", Operation: GreaterThan, Value: 10},
	}
	ok, err := e.EvaluateAll(all, d)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateAll(nil, d)
	require.NoError(t, err)
	assert.True(t, ok, "empty conjunction holds")

	// short-circuits before the mismatching condition
	failing := []Condition{
		{DataPath: "user", Operation: Equals, Value: "alice"},
		{DataPath: "coins", Operation: Contains, Value: "5"},
	}
	ok, err = e.EvaluateAll(failing, d)
	require.NoError(t, err)
	assert.False(t, ok)

	erroring := []Condition{
		{DataPath: "user", Operation: Equals, Value: "bob"},
		{DataPath: "coins", Operation: Contains, Value: "5"},
	}
	_, err = e.EvaluateAll(erroring, d)
	assert.True(t, errors.IsType(err, errors.ErrTypeTypeMismatch))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Condition{DataPath: "a", Operation: Equals}))
	assert.NoError(t, Validate(Condition{DataPath: "a", Operation: GreaterThan, Value: 3}))
	assert.NoError(t, Validate(Condition{DataPath: "a", Operation: Contains, Value: "x"}))

	for name, c := range map[string]Condition{
		"missing path":        {Operation: Equals},
		"bad path":            {DataPath: "a[", Operation: Equals},
		"unknown operation":   {DataPath: "a", Operation: "between"},
		"non numeric":         {DataPath: "a", Operation: LessThan, Value: "many"},
		"contains without op": {DataPath: "a", Operation: Contains},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.IsType(Validate(c), errors.ErrTypeConfig))
		})
	}
}
