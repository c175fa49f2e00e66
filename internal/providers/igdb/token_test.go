package igdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, calls *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		assert.Equal(t, "secret", r.Form.Get("client_secret"))
		n := atomic.AddInt32(calls, 1)
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":3600,"token_type":"bearer"}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenCache_SingleFetchForConcurrentCallers(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	tc := NewTokenCache("client-id", "secret", srv.URL, srv.Client())

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = tc.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "token-1", tokens[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenCache_RefreshesInsideExpiryMargin(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	tc := NewTokenCache("client-id", "secret", srv.URL, srv.Client())

	var offset atomic.Int64
	tc.now = func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }

	tok, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	// Still outside the margin: cached.
	offset.Store(int64(3400 * time.Second))
	tok, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	// 59s before expiry falls inside the 60s margin.
	offset.Store(int64(3541 * time.Second))
	tok, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_Invalidate(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	tc := NewTokenCache("client-id", "secret", srv.URL, srv.Client())

	_, err := tc.Token(context.Background())
	require.NoError(t, err)
	tc.Invalidate()
	tok, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
}

func TestTokenCache_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":400,"message":"invalid client secret"}`))
	}))
	defer srv.Close()

	tc := NewTokenCache("client-id", "bad", srv.URL, srv.Client())
	_, err := tc.Token(context.Background())
	assert.Error(t, err)
}
