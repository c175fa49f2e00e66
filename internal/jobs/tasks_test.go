package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
	"github.com/CondeArmand/gamemate-backend/internal/librarysync"
)

type mockSyncer struct{ mock.Mock }

func (m *mockSyncer) Sync(ctx context.Context, userID, steamID string) (*librarysync.Result, error) {
	args := m.Called(userID, steamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*librarysync.Result), args.Error(1)
}

type mockEnricher struct{ mock.Mock }

func (m *mockEnricher) Enrich(ctx context.Context, t enrichment.Task) error {
	return m.Called(t).Error(0)
}

func newTask(t *testing.T, typ string, payload interface{}) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestEnrichGamePayload_RoundTripsTask(t *testing.T) {
	in := enrichment.Task{UserID: "user-1", SteamAppID: "620", Name: "Portal 2", Playtime: 1312}

	p, err := NewEnrichGamePayload(in)
	require.NoError(t, err)
	assert.Equal(t, 620, p.SteamAppID)
	assert.Equal(t, in, p.Task())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"user-1","steam_app_id":620,"steam_game_name":"Portal 2","playtime":1312}`, string(data))
}

func TestEnrichGamePayload_RejectsNonNumericApp(t *testing.T) {
	_, err := NewEnrichGamePayload(enrichment.Task{UserID: "user-1", SteamAppID: "abc"})
	assert.Error(t, err)
}

func TestTaskIDs(t *testing.T) {
	assert.Equal(t, "enrich:user-1:620", EnrichTaskID("user-1", "620"))
	assert.Equal(t, "sync:user-1", SyncTaskID("user-1"))
}

func TestIsTaskConflict(t *testing.T) {
	assert.True(t, isTaskConflict(asynq.ErrTaskIDConflict))
	assert.True(t, isTaskConflict(fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask)))
	assert.True(t, isTaskConflict(errors.New("task ID conflicts with another task")))
	assert.False(t, isTaskConflict(errors.New("dial tcp: connection refused")))
}

func TestSyncLibraryHandler(t *testing.T) {
	s := &mockSyncer{}
	s.Test(t)
	h := NewSyncLibraryHandler(s, zap.NewNop())

	s.On("Sync", "user-1", "76561197960435530").Return(&librarysync.Result{UserID: "user-1"}, nil).Once()
	require.NoError(t, h.ProcessTask(context.Background(),
		newTask(t, TaskSyncLibrary, SyncLibraryPayload{UserID: "user-1", SteamID: "76561197960435530"})))

	s.On("Sync", "user-2", "sid").Return(nil, errors.New("update library stats: connection reset")).Once()
	err := h.ProcessTask(context.Background(), newTask(t, TaskSyncLibrary, SyncLibraryPayload{UserID: "user-2", SteamID: "sid"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	s.AssertExpectations(t)
}

func TestHandlers_BadPayloadSkipsRetry(t *testing.T) {
	syncH := NewSyncLibraryHandler(&mockSyncer{}, zap.NewNop())
	enrichH := NewEnrichGameHandler(&mockEnricher{}, zap.NewNop())

	tests := []struct {
		name    string
		handler asynq.Handler
		task    *asynq.Task
	}{
		{"sync garbage", syncH, asynq.NewTask(TaskSyncLibrary, []byte("{"))},
		{"sync missing steam id", syncH, newTask(t, TaskSyncLibrary, SyncLibraryPayload{UserID: "user-1"})},
		{"enrich garbage", enrichH, asynq.NewTask(TaskEnrichGame, []byte("not json"))},
		{"enrich missing app", enrichH, newTask(t, TaskEnrichGame, EnrichGamePayload{UserID: "user-1"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.handler.ProcessTask(context.Background(), tt.task)
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestEnrichGameHandler(t *testing.T) {
	e := &mockEnricher{}
	e.Test(t)
	h := NewEnrichGameHandler(e, zap.NewNop())
	payload := EnrichGamePayload{UserID: "user-1", SteamAppID: 620, SteamGameName: "Portal 2", Playtime: 1312}
	want := enrichment.Task{UserID: "user-1", SteamAppID: "620", Name: "Portal 2", Playtime: 1312}

	e.On("Enrich", want).Return(nil).Once()
	require.NoError(t, h.ProcessTask(context.Background(), newTask(t, TaskEnrichGame, payload)))

	dbErr := errors.New("step=upsert: connection refused")
	e.On("Enrich", want).Return(dbErr).Once()
	err := h.ProcessTask(context.Background(), newTask(t, TaskEnrichGame, payload))
	assert.ErrorIs(t, err, dbErr)

	e.AssertExpectations(t)
}
