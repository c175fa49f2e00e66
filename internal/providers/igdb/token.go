package igdb

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	// expiryMargin retires a token this long before Twitch would.
	expiryMargin = 60 * time.Second
	fetchTimeout = 15 * time.Second
)

// TokenCache holds the Twitch app access token shared by all IGDB calls.
// Concurrent callers with a stale cache share a single refresh.
type TokenCache struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token
	group singleflight.Group
}

func NewTokenCache(clientID, clientSecret, tokenURL string, httpClient *http.Client) *TokenCache {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &TokenCache{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns a valid access token, fetching one if needed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		// Another caller may have refreshed while we waited for the group.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		// The refresh is shared, so one caller's cancellation must not
		// fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		fctx = context.WithValue(fctx, oauth2.HTTPClient, c.httpClient)

		tok, err := c.cfg.Token(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.token = tok
		c.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch twitch token: %w", err)
	}
	return v.(string), nil
}

// Invalidate drops the cached token, e.g. after the API rejects it.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil || c.token.AccessToken == "" {
		return "", false
	}
	if !c.token.Expiry.IsZero() && !c.now().Before(c.token.Expiry.Add(-expiryMargin)) {
		return "", false
	}
	return c.token.AccessToken, true
}
