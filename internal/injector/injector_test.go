package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/pathquery"
)

func eventDoc(t *testing.T) pathquery.Document {
	t.Helper()
	d, err := pathquery.FromValue(map[string]interface{}{
		"username": "alice",
		"comment":  "!throw apple pie",
		"coins":    25,
		"gift":     map[string]interface{}{"name": "Rose"},
		"tags":     []interface{}{"a", "b"},
	})
	require.NoError(t, err)
	return d
}

func TestInject_WholeValue(t *testing.T) {
	inj := New(nil, ModeBoth)
	d := eventDoc(t)

	assert.Equal(t, "alice", inj.Inject("$$username", d))
	assert.Equal(t, "Rose", inj.Inject("$$gift.name", d))
	assert.Equal(t, "25", inj.Inject("$$coins", d))
	// several matches leave the literal untouched
	assert.Equal(t, "$$tags[*]", inj.Inject("$$tags[*]", d))
	assert.Equal(t, "$$missing", inj.Inject("$$missing", d))
}

func TestInject_Inline(t *testing.T) {
	inj := New(nil, ModeInline)
	d := eventDoc(t)

	assert.Equal(t, "thanks alice for Rose", inj.Inject("thanks ${username} for ${gift.name}", d))
	assert.Equal(t, "hi ${nobody}", inj.Inject("hi ${nobody}", d))
	assert.Equal(t, "n=25", inj.Inject("n=${$.coins}", d))
	// whole form is ignored in inline mode
	assert.Equal(t, "$$username", inj.Inject("$$username", d))
}

func TestInject_WholeModeSkipsInline(t *testing.T) {
	inj := New(nil, ModeWhole)
	d := eventDoc(t)

	assert.Equal(t, "hi ${username}", inj.Inject("hi ${username}", d))
	assert.Equal(t, "alice", inj.Inject("$$username", d))
}

func TestInject_ArgsAfterInline(t *testing.T) {
	inj := New(nil, ModeBoth)
	d := eventDoc(t)

	assert.Equal(t, "apple", inj.Inject("args(${comment})[1]", d))
	assert.Equal(t, "undefined", inj.Inject("args(${comment})[9]", d))
}

func TestProcessArgs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"args(one two three)[0]", "one"},
		{"args(one   two three)[2]", "three"},
		{"x args(a b)[1] y", "x b y"},
		{"args(a b)[5]", "undefined"},
		{"args(a b)[x]", "undefined"},
		{"args(a b)[-1]", "undefined"},
		{"no template here", "no template here"},
		{"args(a b)", "args(a b)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ProcessArgs(tt.in))
		})
	}
}

func TestInjectContext(t *testing.T) {
	inj := New(nil, ModeBoth)
	ctx := map[string]interface{}{
		"user":    "$$username",
		"amount":  "$$coins",
		"message": "gift from ${username}",
		"fixed":   42,
		"nested":  map[string]interface{}{"v": "$$username"},
	}

	inj.InjectContext(ctx, eventDoc(t))

	assert.Equal(t, "alice", ctx["user"])
	assert.Equal(t, 25.0, ctx["amount"])
	assert.Equal(t, "gift from alice", ctx["message"])
	assert.Equal(t, 42, ctx["fixed"])
	assert.Equal(t, map[string]interface{}{"v": "$$username"}, ctx["nested"])
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, m)

	m, err = ParseMode("Inline")
	require.NoError(t, err)
	assert.Equal(t, ModeInline, m)

	_, err = ParseMode("sometimes")
	assert.Error(t, err)
}
