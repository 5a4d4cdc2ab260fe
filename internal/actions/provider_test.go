package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
)

func newTestProvider(loader Loader) *Provider {
	return NewProvider("tits", loader, logging.NewNopLogger())
}

func TestActionMap_PutMerges(t *testing.T) {
	m := NewActionMap()
	m.Put(ActionData{ID: "a1", Name: "Apple", Cooldown: Int64(1000), Attributes: map[string]interface{}{"color": "red"}})
	m.Put(ActionData{ID: "a1", LastTriggered: 42})
	m.Put(ActionData{ID: "a1", Name: "Green Apple", Attributes: map[string]interface{}{"size": "l"}})

	got, ok := m.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "Green Apple", got.Name)
	assert.Equal(t, int64(1000), *got.Cooldown)
	assert.Equal(t, int64(42), got.LastTriggered)
	assert.Equal(t, map[string]interface{}{"color": "red", "size": "l"}, got.Attributes)
	assert.Equal(t, 1, m.Size())
}

func TestActionMap_OrderAndRemove(t *testing.T) {
	m := NewActionMap()
	for _, id := range []string{"c", "a", "b"} {
		m.Put(ActionData{ID: id, Name: id})
	}
	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))

	ids := []string{}
	for _, a := range m.Actions() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)
	assert.False(t, m.Has("a"))

	m.Clear()
	assert.Zero(t, m.Size())
}

func TestProvider_GetActionMapCreates(t *testing.T) {
	p := newTestProvider(nil)
	assert.False(t, p.Has("throw"))
	m := p.GetActionMap("throw")
	assert.NotNil(t, m)
	assert.True(t, p.Has("throw"))
	assert.Same(t, m, p.GetActionMap("throw"))
	assert.Equal(t, []string{"throw"}, p.Categories())
}

func TestProvider_ReverseIndexCollision(t *testing.T) {
	p := newTestProvider(nil)
	p.Put("items", ActionData{ID: "x", Name: "X"})
	p.Put("triggers", ActionData{ID: "x", Name: "X trigger"})

	cat, ok := p.LookupCategory("x")
	require.True(t, ok)
	assert.Equal(t, "triggers", cat)
	assert.Equal(t, 2, p.ActionCount())

	p.RemoveCategory("triggers")
	_, ok = p.LookupCategory("x")
	assert.False(t, ok)
	assert.Equal(t, []string{"items"}, p.Categories())
}

func TestProvider_LoadActions(t *testing.T) {
	calls := 0
	p := newTestProvider(func(ctx context.Context) ([]Category, error) {
		calls++
		return []Category{
			{ID: "throw", Actions: []ActionData{{ID: "i1", Name: "Apple"}, {ID: "i2", Name: "Pear"}}},
			{ID: "trigger", Actions: []ActionData{{ID: "t1", Name: "Explode"}}},
		}, nil
	})
	p.Put("stale", ActionData{ID: "old"})

	n, err := p.LoadActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, calls)
	assert.False(t, p.Has("stale"), "load starts from a clean registry")
	assert.Equal(t, []string{"throw", "trigger"}, p.Categories())

	cat, ok := p.LookupCategory("t1")
	require.True(t, ok)
	assert.Equal(t, "trigger", cat)

	snap := p.Snapshot()
	require.Len(t, snap, 2)
	assert.Len(t, snap[0].Actions, 2)
}

func TestProvider_LoadActionsFailures(t *testing.T) {
	t.Run("empty result", func(t *testing.T) {
		p := newTestProvider(func(ctx context.Context) ([]Category, error) {
			return []Category{{ID: "throw"}}, nil
		})
		_, err := p.LoadActions(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeEmptyResult))
	})

	t.Run("loader error", func(t *testing.T) {
		boom := errors.New("socket closed")
		p := newTestProvider(func(ctx context.Context) ([]Category, error) { return nil, boom })
		_, err := p.LoadActions(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no loader", func(t *testing.T) {
		_, err := newTestProvider(nil).LoadActions(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	})
}

func TestProvider_Acquire(t *testing.T) {
	p := newTestProvider(nil)
	p.Put("throw", ActionData{ID: "a", Name: "Apple", Cooldown: Int64(1000)})
	p.Put("throw", ActionData{ID: "b", Name: "Pear"})
	now := time.UnixMilli(1_000_000)

	got, err := p.Acquire("throw", []string{"a", "b"}, false, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, now.UnixMilli(), got[0].LastTriggered)

	_, err = p.Acquire("throw", []string{"b", "a"}, false, now.Add(500*time.Millisecond))
	assert.ErrorIs(t, err, ErrCooldownActive)

	// a refused acquire does not stamp the other action
	b, _ := p.GetActionMap("throw").Get("b")
	assert.Equal(t, now.UnixMilli(), b.LastTriggered)

	_, err = p.Acquire("throw", []string{"a"}, true, now.Add(500*time.Millisecond))
	assert.NoError(t, err, "bypass skips the cooldown")

	_, err = p.Acquire("throw", []string{"a"}, false, now.Add(1600*time.Millisecond))
	assert.NoError(t, err)

	_, err = p.Acquire("throw", []string{"zzz"}, false, now)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = p.Acquire("nope", []string{"a"}, false, now)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestProvider_Resolve(t *testing.T) {
	p := newTestProvider(nil)
	p.Put("throw", ActionData{ID: "apple", Name: "Apple", Fuzzy: Bool(true)})
	p.Put("throw", ActionData{ID: "pie", Name: "Apple Pie", Fuzzy: Bool(true)})
	p.Put("throw", ActionData{ID: "secret", Name: "Aple"})

	req := models.InternalRequest{
		ProviderID:  "tits",
		ProviderKey: models.ProviderKey{CategoryID: "throw"},
		Context:     map[string]interface{}{"tryItem": "!throw Aple"},
	}
	ids, err := p.Resolve(req, "!throw ")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple"}, ids, "non-fuzzy exact names are not candidates")

	req.Context["tryItem"] = "!throw qqqqqqqq"
	_, err = p.Resolve(req, "!throw ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	explicit := models.InternalRequest{ProviderKey: models.ProviderKey{CategoryID: "throw", Actions: []string{"pie"}}}
	ids, err = p.Resolve(explicit, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"pie"}, ids)

	empty := models.InternalRequest{ProviderKey: models.ProviderKey{CategoryID: "throw"}}
	_, err = p.Resolve(empty, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	unknown := models.InternalRequest{ProviderKey: models.ProviderKey{CategoryID: "dance", Actions: []string{"x"}}}
	_, err = p.Resolve(unknown, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
