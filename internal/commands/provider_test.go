package commands

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"triggerd/internal/common/logging"
	"triggerd/internal/models"
)

type mockCommand struct {
	mock.Mock
	name string
}

func (m *mockCommand) Name() string { return m.name }

func (m *mockCommand) Execute(ctx context.Context, req models.InternalRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newMockProvider(t *testing.T, cmds ...Command) *Provider {
	t.Helper()
	p := NewProvider(logging.NewNopLogger(), cmds...)
	require.NoError(t, p.Start(context.Background()))
	return p
}

func TestProvider_RunsCommandsInRequestOrder(t *testing.T) {
	first := &mockCommand{name: "First"}
	second := &mockCommand{name: "Second"}
	p := newMockProvider(t, first, second)

	req := models.InternalRequest{
		ProviderID:  ProviderID,
		ProviderKey: models.ProviderKey{CategoryID: CategoryID, Actions: []string{"Second", "First"}},
	}
	second.On("Execute", mock.Anything, req).Return("two", nil).Once()
	first.On("Execute", mock.Anything, req).Return("one", nil).Once()

	result := p.ExecuteRequest(context.Background(), req)
	assert.True(t, result.Success)
	assert.Equal(t, "two; one", result.Message)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestProvider_StopsAtFirstFailure(t *testing.T) {
	failing := &mockCommand{name: "Failing"}
	never := &mockCommand{name: "Never"}
	p := newMockProvider(t, failing, never)

	req := models.InternalRequest{
		ProviderID:  ProviderID,
		ProviderKey: models.ProviderKey{CategoryID: CategoryID, Actions: []string{"Failing", "Never"}},
	}
	failing.On("Execute", mock.Anything, mock.Anything).Return("", stderrors.New("boom")).Once()

	result := p.ExecuteRequest(context.Background(), req)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Message)

	failing.AssertExpectations(t)
	never.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestProvider_DuplicateCommandKeepsFirstPosition(t *testing.T) {
	a := &mockCommand{name: "A"}
	b := &mockCommand{name: "B"}
	replacement := &mockCommand{name: "A"}
	p := newMockProvider(t, a, b, replacement)

	snap := p.Actions().Snapshot()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Actions, 2)
	assert.Equal(t, "A", snap[0].Actions[0].ID)
	assert.Equal(t, "B", snap[0].Actions[1].ID)

	req := models.InternalRequest{
		ProviderID:  ProviderID,
		ProviderKey: models.ProviderKey{CategoryID: CategoryID, Actions: []string{"A"}},
	}
	replacement.On("Execute", mock.Anything, req).Return("replaced", nil).Once()
	assert.Equal(t, "replaced", p.ExecuteRequest(context.Background(), req).Message)
	a.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}
