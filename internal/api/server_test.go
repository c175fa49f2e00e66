package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func newTestServer(db Pinger, routes Routes) *Server {
	return NewServer(0, db, routes, NewWSHub(), zap.NewNop())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(fakePinger{}, Routes{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func TestHealth_DatabaseDown(t *testing.T) {
	srv := newTestServer(fakePinger{err: errors.New("connection refused")}, Routes{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unreachable"`)
}

func TestMountsDomainRouters(t *testing.T) {
	users := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := newTestServer(fakePinger{}, Routes{Users: users})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/games", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/u1/games", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWSHub_FiltersByUser(t *testing.T) {
	hub := NewWSHub()
	mine := &WSClient{userID: "user-1", send: make(chan []byte, 4)}
	all := &WSClient{send: make(chan []byte, 4)}
	hub.addClient(mine)
	hub.addClient(all)

	hub.Broadcast("enrich:complete", map[string]interface{}{"user_id": "user-2", "outcome": "enriched"})
	hub.Broadcast("enrich:complete", map[string]interface{}{"user_id": "user-1", "outcome": "fresh"})

	assert.Len(t, mine.send, 1)
	assert.Len(t, all.send, 2)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(<-mine.send, &msg))
	assert.Equal(t, "enrich:complete", msg.Event)
	assert.Equal(t, "fresh", msg.Data.(map[string]interface{})["outcome"])
}

func TestWSHub_ReplaysRunningSyncs(t *testing.T) {
	hub := NewWSHub()
	hub.Broadcast(syncEvent, map[string]interface{}{"user_id": "user-1", "status": "running", "listed": 3})
	hub.Broadcast(syncEvent, map[string]interface{}{"user_id": "user-2", "status": "running"})
	hub.Broadcast(syncEvent, map[string]interface{}{"user_id": "user-2", "status": "complete"})

	late := &WSClient{userID: "user-1", send: make(chan []byte, 4)}
	hub.sendActiveSyncs(late)
	require.Len(t, late.send, 1)
	assert.Contains(t, string(<-late.send), `"listed":3`)

	other := &WSClient{userID: "user-2", send: make(chan []byte, 4)}
	hub.sendActiveSyncs(other)
	assert.Empty(t, other.send)
}

func TestWebSocket_StreamsUserEvents(t *testing.T) {
	srv := newTestServer(fakePinger{}, Routes{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?user_id=user-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return srv.WSHub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.WSHub().Broadcast("sync:update", map[string]interface{}{"user_id": "user-2", "status": "running"})
	srv.WSHub().Broadcast("sync:update", map[string]interface{}{"user_id": "user-1", "status": "complete"})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "user-1", msg.Data.(map[string]interface{})["user_id"])
}
