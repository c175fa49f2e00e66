package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/models"
	"github.com/CondeArmand/gamemate-backend/internal/ownership"
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAccounts) GetLinkedAccount(ctx context.Context, userID string, provider models.Provider) (*models.LinkedAccount, error) {
	args := m.Called(userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LinkedAccount), args.Error(1)
}

func (m *mockAccounts) UnlinkAccount(ctx context.Context, userID string, provider models.Provider) (int64, error) {
	args := m.Called(userID, provider)
	return args.Get(0).(int64), args.Error(1)
}

type mockLibrary struct{ mock.Mock }

func (m *mockLibrary) ListByUser(ctx context.Context, userID string, f ownership.ListFilter) ([]models.OwnedGame, int, error) {
	args := m.Called(userID, f)
	return args.Get(0).([]models.OwnedGame), args.Int(1), args.Error(2)
}

func (m *mockLibrary) Add(ctx context.Context, userID string, gameID uuid.UUID, source models.Provider) (*models.OwnedGame, error) {
	args := m.Called(userID, gameID, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OwnedGame), args.Error(1)
}

func (m *mockLibrary) Remove(ctx context.Context, userID string, gameID uuid.UUID) error {
	return m.Called(userID, gameID).Error(0)
}

func (m *mockLibrary) UpdateStatus(ctx context.Context, userID string, gameID uuid.UUID, status models.GameStatus) error {
	return m.Called(userID, gameID, status).Error(0)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) EnqueueSync(ctx context.Context, userID, steamID string) (string, error) {
	args := m.Called(userID, steamID)
	return args.String(0), args.Error(1)
}

type handlerFixture struct {
	accounts *mockAccounts
	library  *mockLibrary
	queue    *mockQueue
	router   http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	f := &handlerFixture{accounts: &mockAccounts{}, library: &mockLibrary{}, queue: &mockQueue{}}
	f.accounts.Test(t)
	f.library.Test(t)
	f.queue.Test(t)
	f.router = NewHandler(f.accounts, f.library, f.queue, zap.NewNop()).Router()
	t.Cleanup(func() {
		f.accounts.AssertExpectations(t)
		f.library.AssertExpectations(t)
		f.queue.AssertExpectations(t)
	})
	return f
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestSync_EnqueuesForLinkedAccount(t *testing.T) {
	f := newHandlerFixture(t)
	f.accounts.On("GetLinkedAccount", "user-1", models.ProviderSteam).
		Return(&models.LinkedAccount{UserID: "user-1", ProviderAccountID: "76561197960435530"}, nil).Once()
	f.queue.On("EnqueueSync", "user-1", "76561197960435530").Return("sync:user-1", nil).Once()

	rec := f.do(http.MethodPost, "/user-1/sync", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"ok","data":{"task_id":"sync:user-1"}}`, rec.Body.String())
}

func TestSync_NoLinkedAccount(t *testing.T) {
	f := newHandlerFixture(t)
	f.accounts.On("GetLinkedAccount", "user-1", models.ProviderSteam).Return(nil, ErrAccountMissing).Once()

	rec := f.do(http.MethodPost, "/user-1/sync", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestSync_QueueFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.accounts.On("GetLinkedAccount", "user-1", models.ProviderSteam).
		Return(&models.LinkedAccount{ProviderAccountID: "sid"}, nil).Once()
	f.queue.On("EnqueueSync", "user-1", "sid").Return("", errors.New("redis down")).Once()

	rec := f.do(http.MethodPost, "/user-1/sync", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListGames_ParsesFilter(t *testing.T) {
	f := newHandlerFixture(t)
	status := models.StatusPlaying
	provider := models.ProviderSteam
	want := ownership.ListFilter{Status: &status, Provider: &provider, Name: "portal", Skip: 20, Take: 10}
	f.library.On("ListByUser", "user-1", want).
		Return([]models.OwnedGame{{UserID: "user-1", PlaytimeMinutes: 1312}}, 21, nil).Once()

	rec := f.do(http.MethodGet, "/user-1/games?status=playing&provider=steam&name=portal&skip=20&take=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Items []models.OwnedGame `json:"items"`
			Total int                `json:"total"`
			Skip  int                `json:"skip"`
			Take  int                `json:"take"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Items, 1)
	assert.Equal(t, 21, body.Data.Total)
	assert.Equal(t, 20, body.Data.Skip)
	assert.Equal(t, 10, body.Data.Take)
}

func TestListGames_DefaultPage(t *testing.T) {
	f := newHandlerFixture(t)
	f.library.On("ListByUser", "user-1", ownership.ListFilter{}).Return([]models.OwnedGame{}, 0, nil).Once()

	rec := f.do(http.MethodGet, "/user-1/games", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"take":20`)
}

func TestListGames_BadQuery(t *testing.T) {
	f := newHandlerFixture(t)
	for _, q := range []string{"status=BORED", "provider=gog", "skip=-1", "take=abc", "take=51"} {
		rec := f.do(http.MethodGet, "/user-1/games?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAddGame(t *testing.T) {
	gameID := uuid.New()
	f := newHandlerFixture(t)
	f.library.On("Add", "user-1", gameID, models.ProviderManual).
		Return(&models.OwnedGame{UserID: "user-1", GameID: gameID, Status: models.StatusNotPlayed, SourceProvider: models.ProviderManual}, nil).Once()

	rec := f.do(http.MethodPost, "/user-1/games", `{"game_id":"`+gameID.String()+`"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	f.library.On("Add", "user-1", gameID, models.ProviderManual).Return(nil, ownership.ErrAlreadyOwned).Once()
	rec = f.do(http.MethodPost, "/user-1/games", `{"game_id":"`+gameID.String()+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	f.library.On("Add", "user-1", gameID, models.ProviderManual).Return(nil, ownership.ErrUnknownRef).Once()
	rec = f.do(http.MethodPost, "/user-1/games", `{"game_id":"`+gameID.String()+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/user-1/games", `{"game_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveGame(t *testing.T) {
	gameID := uuid.New()
	f := newHandlerFixture(t)
	f.library.On("Remove", "user-1", gameID).Return(nil).Once()
	f.library.On("Remove", "user-1", gameID).Return(ownership.ErrNotFound).Once()

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/user-1/games/"+gameID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/user-1/games/"+gameID.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/user-1/games/42", "").Code)
}

func TestUpdateStatus(t *testing.T) {
	gameID := uuid.New()
	path := "/user-1/games/" + gameID.String() + "/status"
	f := newHandlerFixture(t)
	f.library.On("UpdateStatus", "user-1", gameID, models.StatusCompleted).Return(nil).Once()

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPut, path, `{"status":"COMPLETED"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, path, `{"status":"DONE"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, path, ``).Code)

	f.library.On("UpdateStatus", "user-1", gameID, models.StatusPlaying).Return(ownership.ErrNotFound).Once()
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPut, path, `{"status":"PLAYING"}`).Code)
}

func TestUnlink(t *testing.T) {
	f := newHandlerFixture(t)
	f.accounts.On("UnlinkAccount", "user-1", models.ProviderSteam).Return(int64(12), nil).Once()
	f.accounts.On("UnlinkAccount", "user-2", models.ProviderSteam).Return(int64(0), ErrAccountMissing).Once()

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/user-1/linked-accounts/steam", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/user-2/linked-accounts/STEAM", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/user-1/linked-accounts/epic", "").Code)
}

func TestGetUser(t *testing.T) {
	f := newHandlerFixture(t)
	f.accounts.On("GetByID", "user-1").Return(&models.User{ID: "user-1", TotalGames: 3}, nil).Once()
	f.accounts.On("GetByID", "ghost").Return(nil, ErrNotFound).Once()

	rec := f.do(http.MethodGet, "/user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_games":3`)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/ghost", "").Code)
}
