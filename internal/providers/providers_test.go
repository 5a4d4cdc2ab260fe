package providers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/actions"
	"triggerd/internal/bus"
	apperrors "triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
)

type fakeIntegration struct {
	id       string
	registry *actions.Provider

	mu       sync.Mutex
	received []models.InternalRequest
	result   models.Result

	started bool
	stopped bool
	health  *Health
}

func newFake(id string, loader actions.Loader) *fakeIntegration {
	return &fakeIntegration{
		id:       id,
		registry: actions.NewProvider(id, loader, logging.NewNopLogger()),
		result:   models.OK("done"),
	}
}

func (f *fakeIntegration) ProviderID() string          { return f.id }
func (f *fakeIntegration) Actions() *actions.Provider { return f.registry }

func (f *fakeIntegration) ExecuteRequest(ctx context.Context, req models.InternalRequest) models.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, req)
	return f.result
}

func (f *fakeIntegration) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeIntegration) Stop(ctx context.Context) error  { f.stopped = true; return nil }

func (f *fakeIntegration) Health() Health {
	if f.health != nil {
		return *f.health
	}
	return Health{Status: StatusHealthy}
}

func (f *fakeIntegration) requests() []models.InternalRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.InternalRequest(nil), f.received...)
}

func newTestManager(t *testing.T) (*Manager, *bus.LocalBus) {
	t.Helper()
	b := bus.NewLocalBus(bus.WithLogger(logging.NewNopLogger()))
	t.Cleanup(func() { _ = b.Close() })
	return NewManager(b, WithLogger(logging.NewNopLogger())), b
}

func TestManager_DuplicateRegistration(t *testing.T) {
	m, b := newTestManager(t)

	first := newFake("tits", nil)
	require.NoError(t, m.Register(first))

	err := m.Register(newFake("tits", nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDuplicateID))

	assert.Len(t, m.List(), 1)
	got, err := m.Get("tits")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 1, b.SubscriberCount(bus.TopicExecuteAction))
}

func TestManager_DispatchSelfFilters(t *testing.T) {
	m, b := newTestManager(t)
	tits := newFake("tits", nil)
	other := newFake("obs", nil)
	require.NoError(t, m.Register(tits))
	require.NoError(t, m.Register(other))

	req := models.InternalRequest{Caller: models.CallerInternal, ProviderID: "tits", ProviderKey: models.ProviderKey{CategoryID: "throw"}}
	require.NoError(t, b.Publish(context.Background(), bus.TopicExecuteAction, req))
	require.NoError(t, b.Publish(context.Background(), bus.TopicExecuteAction, &req))
	require.NoError(t, b.Publish(context.Background(), bus.TopicExecuteAction, "garbage"))

	assert.Eventually(t, func() bool { return len(tits.requests()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, other.requests())
}

func TestManager_LookupByCategory(t *testing.T) {
	m, _ := newTestManager(t)
	a := newFake("a", nil)
	b := newFake("b", nil)
	b.registry.GetActionMap("throw")
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	p, ok := m.LookupByCategory("throw")
	require.True(t, ok)
	assert.Equal(t, "b", p.ProviderID())

	_, ok = m.LookupByCategory("missing")
	assert.False(t, ok)
}

func TestManager_StartStopHealth(t *testing.T) {
	m, b := newTestManager(t)
	f := newFake("tits", nil)
	require.NoError(t, m.Register(f))

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, f.started)

	f.health = &Health{Status: StatusUnhealthy, Message: "socket closed"}
	assert.Equal(t, StatusUnhealthy, m.Health()["tits"].Status)

	require.NoError(t, m.Stop(context.Background()))
	assert.True(t, f.stopped)
	assert.Zero(t, b.SubscriberCount(bus.TopicExecuteAction))
}

func TestManager_Unregister(t *testing.T) {
	m, b := newTestManager(t)
	require.NoError(t, m.Register(newFake("tits", nil)))

	assert.True(t, m.Unregister("tits"))
	assert.False(t, m.Unregister("tits"))
	assert.Zero(t, b.SubscriberCount(bus.TopicExecuteAction))

	_, err := m.Refresh(context.Background(), "tits")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestManager_Refresh(t *testing.T) {
	m, _ := newTestManager(t)
	f := newFake("tits", func(ctx context.Context) ([]actions.Category, error) {
		return []actions.Category{{ID: "throw", Actions: []actions.ActionData{{ID: "1", Name: "Apple"}}}}, nil
	})
	require.NoError(t, m.Register(f))

	n, err := m.Refresh(context.Background(), "tits")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.registry.Has("throw"))
	assert.NoError(t, m.RefreshAll(context.Background()))
}

func TestRefresher_InProgress(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	reg := actions.NewProvider("tits", func(ctx context.Context) ([]actions.Category, error) {
		close(entered)
		<-release
		return []actions.Category{{ID: "c", Actions: []actions.ActionData{{ID: "1"}}}}, nil
	}, logging.NewNopLogger())
	r := NewRefresher(reg, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background())
		done <- err
	}()
	<-entered

	_, err := r.Refresh(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeRefreshInProgress))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, r.InProgress())
}

func TestRefresher_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	reg := actions.NewProvider("tits", func(ctx context.Context) ([]actions.Category, error) {
		<-release
		return nil, nil
	}, logging.NewNopLogger())

	_, err := NewRefresher(reg, 20*time.Millisecond).Refresh(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeRefreshTimeout))
}

func TestRefresher_EmptyResult(t *testing.T) {
	reg := actions.NewProvider("tits", func(ctx context.Context) ([]actions.Category, error) {
		return []actions.Category{{ID: "c"}}, nil
	}, logging.NewNopLogger())

	_, err := NewRefresher(reg, time.Second).Refresh(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeEmptyResult))
}

type throwContext struct {
	Amount int    `json:"amount" validate:"min=1,max=50"`
	Target string `json:"target" validate:"required"`
}

func TestDecodeContext(t *testing.T) {
	req := models.InternalRequest{Context: map[string]interface{}{"amount": 3, "target": "streamer"}}
	got, err := DecodeContext[throwContext](req)
	require.NoError(t, err)
	assert.Equal(t, throwContext{Amount: 3, Target: "streamer"}, got)

	_, err = DecodeContext[throwContext](models.InternalRequest{Context: map[string]interface{}{"amount": 0, "target": "x"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = DecodeContext[throwContext](models.InternalRequest{Context: map[string]interface{}{"amount": "three"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestClaimAndResultFromError(t *testing.T) {
	reg := actions.NewProvider("tits", nil, logging.NewNopLogger())
	reg.Put("throw", actions.ActionData{ID: "1", Name: "Apple", Cooldown: actions.Int64(60000), Fuzzy: actions.Bool(true)})
	now := time.UnixMilli(1_000_000)

	req := models.InternalRequest{
		ProviderID:  "tits",
		ProviderKey: models.ProviderKey{CategoryID: "throw"},
		Context:     map[string]interface{}{models.TryItemKey: "!throw Aple"},
	}
	got, err := Claim(reg, req, "!throw ", now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	_, err = Claim(reg, req, "!throw ", now.Add(time.Second))
	res := ResultFromError(err)
	assert.False(t, res.Success)
	assert.Equal(t, models.SeverityInfo, res.Severity)

	req.BypassCooldown = true
	_, err = Claim(reg, req, "!throw ", now.Add(time.Second))
	assert.NoError(t, err)

	req.ProviderKey.CategoryID = "missing"
	_, err = Claim(reg, req, "!throw ", now)
	res = ResultFromError(err)
	assert.Equal(t, models.SeverityError, res.Severity)
}
