package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/actions"
	"triggerd/internal/circuitbreaker"
	"triggerd/internal/common/logging"
	"triggerd/internal/models"
	"triggerd/internal/providers"
	"triggerd/internal/redis"
)

func setup(t *testing.T, opts ...Option) (*Provider, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	return New("obs", client, opts...), client, mr
}

func publishCatalogue(t *testing.T, client *redis.Client) {
	t.Helper()
	catalogue := []actions.Category{{
		ID: "scenes",
		Actions: []actions.ActionData{
			{ID: "s1", Name: "Intro", Fuzzy: actions.Bool(true)},
			{ID: "s2", Name: "Outro", Fuzzy: actions.Bool(true)},
		},
	}}
	require.NoError(t, client.SetJSON(context.Background(), CatalogueKey("obs"), catalogue, 0))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "triggerd:actions:obs", CatalogueKey("obs"))
	assert.Equal(t, "triggerd:requests:obs", RequestChannel("obs"))
}

func TestProvider_StartWithoutCatalogue(t *testing.T) {
	p, _, _ := setup(t)
	require.NoError(t, p.Start(context.Background()))
	assert.Zero(t, p.Actions().ActionCount())
	assert.Equal(t, providers.StatusDegraded, p.Health().Status)
}

func TestProvider_LoadsCatalogue(t *testing.T) {
	p, client, _ := setup(t)
	publishCatalogue(t, client)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 2, p.Actions().ActionCount())
	assert.Equal(t, providers.StatusHealthy, p.Health().Status)
}

func TestProvider_RejectsMalformedCatalogue(t *testing.T) {
	p, client, _ := setup(t)
	require.NoError(t, client.SetJSON(context.Background(), CatalogueKey("obs"), []map[string]interface{}{{"actions": []interface{}{}}}, 0))

	assert.Error(t, p.Start(context.Background()))
}

func TestProvider_PublishesResolvedRequest(t *testing.T) {
	p, client, _ := setup(t, WithCommandPrefix("!scene "))
	publishCatalogue(t, client)
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))

	sub := client.Subscribe(ctx, RequestChannel("obs"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	req := models.InternalRequest{
		Caller:      models.CallerInternal,
		RequestID:   "r-1",
		ProviderID:  "obs",
		ProviderKey: models.ProviderKey{CategoryID: "scenes"},
		Context:     map[string]interface{}{models.TryItemKey: "!scene intro"},
	}
	res := p.ExecuteRequest(ctx, req)
	require.True(t, res.Success, res.Message)

	select {
	case msg := <-sub.Channel():
		var got models.InternalRequest
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "r-1", got.RequestID)
		assert.Equal(t, []string{"s1"}, got.ProviderKey.Actions)
	case <-time.After(2 * time.Second):
		t.Fatal("request was not published")
	}
}

func TestProvider_UnknownCategory(t *testing.T) {
	p, client, _ := setup(t)
	publishCatalogue(t, client)
	require.NoError(t, p.Start(context.Background()))

	res := p.ExecuteRequest(context.Background(), models.InternalRequest{
		ProviderID:  "obs",
		ProviderKey: models.ProviderKey{CategoryID: "sounds", Actions: []string{"x"}},
	})
	assert.False(t, res.Success)
	assert.Equal(t, models.SeverityError, res.Severity)
}

func TestProvider_BreakerOpensWhenRedisIsDown(t *testing.T) {
	p, client, mr := setup(t, WithBreakerConfig(circuitbreaker.Config{
		MaxFailures: 1, Timeout: time.Minute, MaxConcurrentRequests: 1,
	}))
	publishCatalogue(t, client)
	require.NoError(t, p.Start(context.Background()))

	mr.Close()

	req := models.InternalRequest{
		ProviderID:  "obs",
		ProviderKey: models.ProviderKey{CategoryID: "scenes", Actions: []string{"s1"}},
	}
	res := p.ExecuteRequest(context.Background(), req)
	assert.False(t, res.Success)

	assert.Equal(t, providers.StatusUnhealthy, p.Health().Status)
	assert.Equal(t, "open", p.Breaker().State)

	res = p.ExecuteRequest(context.Background(), req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "open")
}
