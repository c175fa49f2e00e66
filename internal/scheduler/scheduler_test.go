package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/models"
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) ListLinkedAccounts(ctx context.Context, provider models.Provider) ([]models.LinkedAccount, error) {
	args := m.Called(provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LinkedAccount), args.Error(1)
}

type mockEnqueuer struct{ mock.Mock }

func (m *mockEnqueuer) EnqueueSync(ctx context.Context, userID, steamID string) (string, error) {
	args := m.Called(userID, steamID)
	return args.String(0), args.Error(1)
}

func TestRunOnce_EnqueuesEveryAccount(t *testing.T) {
	accounts := &mockAccounts{}
	enq := &mockEnqueuer{}
	accounts.On("ListLinkedAccounts", models.ProviderSteam).Return([]models.LinkedAccount{
		{UserID: "user-1", Provider: models.ProviderSteam, ProviderAccountID: "111"},
		{UserID: "user-2", Provider: models.ProviderSteam, ProviderAccountID: "222"},
		{UserID: "user-3", Provider: models.ProviderSteam, ProviderAccountID: "333"},
	}, nil).Once()
	enq.On("EnqueueSync", "user-1", "111").Return("sync:user-1", nil).Once()
	enq.On("EnqueueSync", "user-2", "222").Return("", errors.New("redis down")).Once()
	enq.On("EnqueueSync", "user-3", "333").Return("sync:user-3", nil).Once()

	s, err := New(accounts, enq, "", zap.NewNop())
	require.NoError(t, err)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	accounts.AssertExpectations(t)
	enq.AssertExpectations(t)
}

func TestRunOnce_ListFailure(t *testing.T) {
	accounts := &mockAccounts{}
	accounts.On("ListLinkedAccounts", models.ProviderSteam).Return(nil, errors.New("connection refused")).Once()

	s, err := New(accounts, &mockEnqueuer{}, "", zap.NewNop())
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestNew_Schedule(t *testing.T) {
	s, err := New(&mockAccounts{}, &mockEnqueuer{}, "@every 24h", zap.NewNop())
	require.NoError(t, err)
	s.Start()
	s.Stop()

	_, err = New(&mockAccounts{}, &mockEnqueuer{}, "every day please", zap.NewNop())
	assert.Error(t, err)

	disabled, err := New(&mockAccounts{}, &mockEnqueuer{}, "", zap.NewNop())
	require.NoError(t, err)
	disabled.Start()
	disabled.Stop()
}
