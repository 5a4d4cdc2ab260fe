package pathquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/common/errors"
)

const sample = `{
	"username": "alice",
	"gift": {"name": "Rose", "count": 3},
	"items": [{"id": "a"}, {"id": "b"}],
	"weird.key": {"x": 1},
	"tags": ["one", "two"]
}`

func mustDoc(t *testing.T) Document {
	t.Helper()
	doc, err := FromJSON([]byte(sample))
	require.NoError(t, err)
	return doc
}

func TestSelect(t *testing.T) {
	doc := mustDoc(t)
	sel := NewSelector()

	tests := []struct {
		path string
		want []interface{}
	}{
		{"username", []interface{}{"alice"}},
		{"$.username", []interface{}{"alice"}},
		{"$.gift.count", []interface{}{3.0}},
		{"gift['name']", []interface{}{"Rose"}},
		{`$["weird.key"].x`, []interface{}{1.0}},
		{"$.items[1].id", []interface{}{"b"}},
		{"$.items[*].id", []interface{}{"a", "b"}},
		{"$.tags.*", []interface{}{"one", "two"}},
		{"$.items[5].id", []interface{}{}},
		{"$.missing.deeper", []interface{}{}},
		{"$.username.deeper", []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := sel.Select(doc, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_Root(t *testing.T) {
	doc, err := FromValue(map[string]interface{}{"a": 1})
	require.NoError(t, err)

	got, err := NewSelector().Select(doc, "$")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]interface{}{"a": 1.0}, got[0])
}

func TestCompile_Errors(t *testing.T) {
	for _, path := range []string{"$.", "$.a[", "$.a[x]", "$.a[-1]", "$['a", "$['a'x", "$a"} {
		t.Run(path, func(t *testing.T) {
			_, err := Compile(path)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestEscapedKeysAreLiteral(t *testing.T) {
	doc, err := FromValue(map[string]interface{}{"a*b": "star", "#": "hash", "@this": "at"})
	require.NoError(t, err)
	sel := NewSelector()

	got, err := sel.Select(doc, "['a*b']")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"star"}, got)

	got, err = sel.Select(doc, "$['#']")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"hash"}, got)

	got, err = sel.Select(doc, "$['@this']")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"at"}, got)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{not json"))
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestSelect_EmptyDocument(t *testing.T) {
	got, err := NewSelector().Select(Document{}, "$.a")
	require.NoError(t, err)
	assert.Empty(t, got)
}
